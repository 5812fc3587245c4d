package domain

import "errors"

// Closed error set surfaced by the persistence gateway. Handlers map each
// to exactly one boundary status code.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrAlreadyExists    = errors.New("resource already exists")
	ErrConflict         = errors.New("state conflict")
	ErrPermissionDenied = errors.New("permission denied")
	ErrStorage          = errors.New("storage failure")
)
