package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidQuote   = errors.New("invalid quote")
	ErrClosed         = errors.New("closed")
	ErrCacheDisabled  = errors.New("cache disabled")
	ErrLengthMismatch = errors.New("input slice lengths differ")
)
