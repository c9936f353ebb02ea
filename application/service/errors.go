package service

import "errors"

var (
	// ErrClientClosed indicates the client has been closed.
	ErrClientClosed = errors.New("poke: client is closed")
	// ErrNoMatch indicates a query produced no candidates.
	ErrNoMatch = errors.New("no match found")
	// ErrInvalidSource indicates an image source that cannot be read.
	ErrInvalidSource = errors.New("invalid image source")
)
