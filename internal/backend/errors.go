package backend

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when the backend rejects the session token.
var ErrUnauthorized = errors.New("unauthorized")

// RequestError is a non-2xx answer from the backend.
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Is maps 401 answers onto ErrUnauthorized.
func (e *RequestError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == 401
}
