package errors

import "errors"

// Sentinel errors raised by core code paths that are not yet wrapped in an
// AppError (e.g. inside a repository). The HTTP mapper translates these,
// via errors.Is, into the matching Kind when a stage forgets to wrap one
// itself.
var (
	ErrValidation = errors.New("validation failed")
	ErrInternal   = errors.New("internal error")
)
