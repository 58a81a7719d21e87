package providers

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// AuthError is returned when a backend has no credential configured.
type AuthError struct {
	Backend string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: no API credential configured", e.Backend)
}

// RemoteError is returned when a backend answers with a non-success HTTP status.
type RemoteError struct {
	Backend    string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Backend, e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth retrying (rate limits and server errors).
func (e *RemoteError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// TimeoutError is returned when a job does not reach a terminal status in time.
type TimeoutError struct {
	JobID string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for job %s", e.After, e.JobID)
}

// IsRateLimited reports whether err is a 429 from a backend.
func IsRateLimited(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.StatusCode == http.StatusTooManyRequests
}
