package fetch

import (
	"errors"
	"fmt"
)

// ErrRateLimited indicates the retry budget was exhausted on HTTP 429 responses.
var ErrRateLimited = errors.New("fetch: rate limited")

// HTTPError reports a non-2xx response that is not retryable.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("fetch: http status %d for %s", e.StatusCode, e.URL)
}

// IsNotFound reports whether err is an HTTPError with status 404.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == 404
}
