package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// jobIDContextKey is the context key for the job id path parameter.
type jobIDContextKey struct{}

// attemptNumberContextKey is the context key for the attempt number path parameter.
type attemptNumberContextKey struct{}

// ErrNoJobInContext indicates no job id was found in the context.
var ErrNoJobInContext = errors.New("no job id in context")

// ErrNoAttemptInContext indicates no attempt number was found in the context.
var ErrNoAttemptInContext = errors.New("no attempt number in context")

// WithJobID returns a new context with the job id attached.
func WithJobID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, jobIDContextKey{}, id)
}

// JobIDFromContext extracts the job id from the context.
func JobIDFromContext(ctx context.Context) (int64, error) {
	id, ok := ctx.Value(jobIDContextKey{}).(int64)
	if !ok {
		return 0, ErrNoJobInContext
	}
	return id, nil
}

// WithAttemptNumber returns a new context with the attempt number attached.
func WithAttemptNumber(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, attemptNumberContextKey{}, n)
}

// AttemptNumberFromContext extracts the attempt number from the context.
func AttemptNumberFromContext(ctx context.Context) (int, error) {
	n, ok := ctx.Value(attemptNumberContextKey{}).(int)
	if !ok {
		return 0, ErrNoAttemptInContext
	}
	return n, nil
}

// JobMiddleware parses the {job_id} path parameter into the request
// context. Ids that are not positive integers are rejected with 400.
func JobMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "job_id")
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			WriteProblem(w, r, http.StatusBadRequest, "job_id must be a positive integer")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithJobID(r.Context(), id)))
	})
}

// AttemptMiddleware parses the {attempt_number} path parameter into the
// request context. Numbers must be non-negative integers.
func AttemptMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "attempt_number")
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			WriteProblem(w, r, http.StatusBadRequest, "attempt_number must be a non-negative integer")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAttemptNumber(r.Context(), n)))
	})
}

// mustJobAndAttempt returns the job id and attempt number placed in the
// context by JobMiddleware and AttemptMiddleware.
// Panics when the routes are misconfigured.
func mustJobAndAttempt(ctx context.Context) (int64, int) {
	jobID, err := JobIDFromContext(ctx)
	if err != nil {
		panic("job id not in context: middleware misconfiguration")
	}
	n, err := AttemptNumberFromContext(ctx)
	if err != nil {
		panic("attempt number not in context: middleware misconfiguration")
	}
	return jobID, n
}
