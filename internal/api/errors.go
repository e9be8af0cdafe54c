package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

var ErrRetriesExhausted = errors.New("retries exhausted")

// StatusError is returned for HTTP responses with status >= 400.
type StatusError struct {
	Code       int
	URL        string
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// IsNotFound reports whether err carries a 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// NewStatusError builds the error for a failed response received outside
// Do, e.g. by a crawler sharing this client's retry policy.
func NewStatusError(code int, url string, body []byte, header http.Header) *StatusError {
	return &StatusError{
		Code:       code,
		URL:        url,
		Body:       truncate(string(body), 256),
		RetryAfter: parseRetryAfter(header.Get("Retry-After"), time.Now()),
	}
}

// parseRetryAfter understands both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
