package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

var (
	// ErrInvalidRequest matches every ValidationError.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNoInput is returned when an embedding request has neither text nor images.
	ErrNoInput = errors.New("no text or image input")

	// ErrEmbeddingCountMismatch is wrapped by a DecodeError when the server
	// returns a different number of vectors than inputs were sent.
	ErrEmbeddingCountMismatch = errors.New("embedding count does not match input count")
)

// maxErrorBody bounds the server body echoed in ServerError messages.
const maxErrorBody = 512

// ValidationError is returned before any request is sent.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

// NewValidationError creates a validation error for a request field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidRequest, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidRequest, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// NetworkError wraps a transport failure: connection refused, DNS, timeout
// or cancellation. No response was received.
type NetworkError struct {
	Server Server
	Op     string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("ingrain: %s on %s server: network error: %v", e.Op, e.Server, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServerError is returned when a server answers with a non-2xx status.
type ServerError struct {
	Server     Server
	Op         string
	StatusCode int
	Message    string
	Body       []byte
}

// NewServerError builds a ServerError, pulling a readable message out of
// the response body when it has one.
func NewServerError(server Server, op string, statusCode int, body []byte) *ServerError {
	return &ServerError{
		Server:     server,
		Op:         op,
		StatusCode: statusCode,
		Message:    errorMessage(statusCode, body),
		Body:       body,
	}
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("ingrain: %s on %s server failed with status %d: %s", e.Op, e.Server, e.StatusCode, e.Message)
}

// Temporary reports whether the status suggests the call may succeed later.
func (e *ServerError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// errorMessage understands {"message": ...}, FastAPI's {"detail": ...} and
// {"error": ...} / {"error": {"message": ...}} bodies.
func errorMessage(statusCode int, body []byte) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"message", "detail", "error.message", "error"} {
			r := gjson.GetBytes(body, path)
			if !r.Exists() {
				continue
			}
			if r.Type == gjson.String {
				if s := strings.TrimSpace(r.String()); s != "" {
					return s
				}
				continue
			}
			return r.Raw
		}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return http.StatusText(statusCode)
	}
	if len(msg) > maxErrorBody {
		n := maxErrorBody
		for n > 0 && !utf8.RuneStart(msg[n]) {
			n--
		}
		msg = msg[:n] + "..."
	}
	return msg
}

// DecodeError is returned when a successful response body does not have
// the expected shape.
type DecodeError struct {
	Server     Server
	Op         string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("ingrain: %s on %s server: failed to decode response: %v", e.Op, e.Server, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
