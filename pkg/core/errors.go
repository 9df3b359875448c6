package core

import "errors"

var (
	// ErrConfig reports an invalid configuration detected before any work starts
	ErrConfig = errors.New("invalid configuration")

	// ErrNotImplemented reports an operation the selected estimator does not support
	ErrNotImplemented = errors.New("not implemented")

	// ErrCancelled reports a render stopped before all tasks finished; partial results are kept
	ErrCancelled = errors.New("render cancelled")
)
