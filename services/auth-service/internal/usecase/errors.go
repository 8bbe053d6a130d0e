package usecase

import "errors"

var (
	ErrValidation           = errors.New("validation failed")
	ErrDuplicateIdentity    = errors.New("user already exists")
	ErrNotFound             = errors.New("user not found")
	ErrAuthenticationFailed = errors.New("invalid credentials")
	ErrPersistence          = errors.New("persistence failure")
	ErrUnauthenticated      = errors.New("no active session")

	// ErrMirrorDegraded marks a failed mirror call. It is logged at the call site and
	// never returned by AuthUsecase.
	ErrMirrorDegraded = errors.New("credential mirror unavailable")
)
