package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is matched by an *APIError with status 404.
	ErrNotFound = errors.New("not found")
	// ErrConflict is matched by an *APIError with status 409.
	ErrConflict = errors.New("conflict")
	// ErrNotConfigured is returned when the client has no server URL.
	ErrNotConfigured = errors.New("syncplane URL not configured")
)

// FieldError is a single invalid field reported by the server.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is an RFC 7807 problem returned by the server.
type APIError struct {
	Type   string       `json:"type"`
	Title  string       `json:"title"`
	Status int          `json:"status"`
	Detail string       `json:"detail"`
	Errors []FieldError `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("syncplane: %d %s: %s", e.Status, e.Title, e.Detail)
	}
	return fmt.Sprintf("syncplane: %d %s", e.Status, e.Title)
}

// Is lets errors.Is match status sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrConflict:
		return e.Status == http.StatusConflict
	}
	return false
}
