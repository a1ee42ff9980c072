package chatwoot

import (
	"errors"
	"fmt"
)

// StatusError is an HTTP error response from the API.
type StatusError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("chatwoot: %s returned %d", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("chatwoot: %s returned %d: %s", e.Path, e.StatusCode, e.Body)
}

// ExhaustedError indicates a call failed after using its whole retry budget.
// It wraps the last recoverable error observed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("chatwoot: retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// IsUnauthorized reports whether err is a 401/403 response. Unauthorized
// errors are never retried: the credentials are invalid for the whole run.
func IsUnauthorized(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == 401 || se.StatusCode == 403
}

// IsExhausted reports whether err is a retry-budget exhaustion.
func IsExhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}
