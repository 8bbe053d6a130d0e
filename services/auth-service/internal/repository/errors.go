package repository

import "errors"

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateIdentity = errors.New("username or email already exists")
)
