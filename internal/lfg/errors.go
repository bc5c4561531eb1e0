package lfg

import "errors"

// Core error kinds. Call sites wrap these with the context or activity they
// refer to; match with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidBounds = errors.New("invalid player bounds: each bound must be at least 1 and max must be >= min")
	ErrInvalidName   = errors.New("invalid activity name")
	ErrActivityLimit = errors.New("session activity limit reached")
	ErrFull          = errors.New("activity is full")
	ErrForbidden     = errors.New("only the session creator or a privileged user may do this")
)
