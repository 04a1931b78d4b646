package domain

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("content unavailable")
)
