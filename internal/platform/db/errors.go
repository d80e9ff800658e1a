package db

import "errors"

// Failure categories. Every error returned by the Manager wraps one of these.
var (
	ErrConnection = errors.New("database connection error")
	ErrValidation = errors.New("database validation error")
	ErrSecurity   = errors.New("database security error")
	ErrTestData   = errors.New("test data error")
)
