package controller

import "errors"

// Sentinel kinds for route table errors.
var (
	ErrNoRoutes       = errors.New("route table is empty")
	ErrDuplicateRoute = errors.New("duplicate route")
)
