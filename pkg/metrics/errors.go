package metrics

import "errors"

// ErrRegister wraps the registry's refusal of one of the Manager's collectors.
var ErrRegister = errors.New("metrics: register collector")
