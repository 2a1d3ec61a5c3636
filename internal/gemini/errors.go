package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
)

// StatusError is the transport-level error for a non-2xx response. The retry
// controller classifies failures by its Code.
type StatusError struct {
	Code       int
	Body       string
	RetryAfter string // raw Retry-After header, empty when absent
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Body)
}

// Retryable reports whether the failure is worth retrying: rate limiting or
// a server-side error. Everything else fails immediately.
func (e *StatusError) Retryable() bool {
	return e.Code == 429 || (e.Code >= 500 && e.Code < 600)
}

// BadRequestError is a 400 response with the server's message.
type BadRequestError struct{ Message string }

func (e *BadRequestError) Error() string { return fmt.Sprintf("bad request (400): %s", e.Message) }

// UnauthorizedError is a 401 response.
type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return fmt.Sprintf("unauthorized (401): %s", e.Message) }

// ForbiddenError is a 403 response.
type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return fmt.Sprintf("forbidden (403): %s", e.Message) }

// FriendlyError converts a StatusError for a fatal 4xx into a typed error
// carrying the server's message. Other errors pass through unchanged.
func FriendlyError(err error) error {
	var se *StatusError
	if !errors.As(err, &se) {
		return err
	}
	msg := extractServerMessage(se.Body)
	switch se.Code {
	case 400:
		return &BadRequestError{Message: msg}
	case 401:
		return &UnauthorizedError{Message: msg}
	case 403:
		return &ForbiddenError{Message: msg}
	}
	return err
}

// extractServerMessage pulls error.message out of a JSON error body, falling
// back to the raw body.
func extractServerMessage(body string) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return body
}
