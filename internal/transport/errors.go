package transport

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrBadRequest   = errors.New("transport: bad request")
	ErrUnauthorized = errors.New("transport: unauthorized")
	ErrForbidden    = errors.New("transport: forbidden")
	ErrNotFound     = errors.New("transport: not found")
	ErrConflict     = errors.New("transport: conflict")
	ErrRateLimited  = errors.New("transport: rate limited")
	ErrServerError  = errors.New("transport: server error")
)

// APIError is a non-2xx response from the patch server. Body holds the raw
// response body so callers can show it to the user unchanged.
type APIError struct {
	StatusCode int
	Endpoint   string
	RequestID  string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("patch server error (%d) at %s [%s]: %s", e.StatusCode, e.Endpoint, e.RequestID, e.Message)
	}
	return fmt.Sprintf("patch server error (%d) at %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

// Unwrap maps the status code onto a sentinel error.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		if e.StatusCode >= 500 {
			return ErrServerError
		}
		return nil
	}
}

// ResponseBody returns the server's response body as received.
func (e *APIError) ResponseBody() string {
	return e.Body
}
