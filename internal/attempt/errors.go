package attempt

import "errors"

var (
	// ErrNotProcessable is returned when the job an attempt is requested for
	// cannot be loaded.
	ErrNotProcessable = errors.New("job cannot be processed")
	// ErrNotFound is returned when an attempt or its stats do not exist.
	ErrNotFound = errors.New("attempt not found")
	// ErrBadRequest is returned for malformed input, including a job
	// without a configured catalog.
	ErrBadRequest = errors.New("bad request")
	// ErrRefreshUnsupported is returned when a refresh attempt is created for
	// a destination that cannot run refreshes.
	ErrRefreshUnsupported = errors.New("destination does not support refreshes")
)
