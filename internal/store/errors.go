package store

import "errors"

var (
	ErrNotFound       = errors.New("record not found")
	ErrJobTerminal    = errors.New("job is in a terminal state")
	ErrAttemptRunning = errors.New("job already has a running attempt")
	ErrAttemptEnded   = errors.New("attempt has already ended")
)
