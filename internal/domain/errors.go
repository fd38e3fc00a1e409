package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrProviderFailure = errors.New("provider failure")
	ErrUnavailable     = errors.New("capability unavailable")
	ErrInvalidOutcome  = errors.New("invalid payment outcome")
	ErrSignature       = errors.New("payment signature mismatch")
)
