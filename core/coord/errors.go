package coord

import "errors"

var (
	ErrShutdownRequested = errors.New("shutdown requested")
	ErrAlreadyStarted    = errors.New("coordinator already started")
)
