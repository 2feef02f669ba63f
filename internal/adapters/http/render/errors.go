package render

import "errors"

// Sentinel kinds for view resolution errors.
var (
	ErrParse            = errors.New("template parse failed")
	ErrViewNotFound     = errors.New("view not found")
	ErrRender           = errors.New("view render failed")
	ErrWrite            = errors.New("view response write failed")
	ErrWatch            = errors.New("template watch failed")
	ErrWatchUnsupported = errors.New("template watch requires an on-disk template dir")
)
