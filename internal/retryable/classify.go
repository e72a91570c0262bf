package retryable

import (
	"context"
	"errors"
	"fmt"
)

// HTTPError carries the status of a failed provider call so the shared
// classifier can tell rate limits and outages apart from caller mistakes.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("http %d", e.Status)
}

// Transient is the default classifier for provider calls: rate limits,
// server errors and plain transport failures are retried; cancelled
// contexts and 4xx responses are not.
func Transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status == 429 || httpErr.Status >= 500
	}
	return true
}
