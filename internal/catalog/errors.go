package catalog

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound    = errors.New("catalog: resource not found")
	ErrRateLimited = errors.New("catalog: rate limited")
	ErrAuthFailed  = errors.New("catalog: authentication failed")
)

// StatusError is returned for any non-2xx response other than 429.
type StatusError struct {
	StatusCode int
	Status     string
	Intent     string
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%d (%s) when %s", e.StatusCode, e.Status, e.Intent)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Is lets errors.Is match 404 responses against ErrNotFound and 401/403
// against ErrAuthFailed.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrAuthFailed:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}
