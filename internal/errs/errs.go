// Package errs provides the structured error envelope shared by the store,
// the HTTP API and the remote data source client.
package errs

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
)

// Code identifies an error category.
type Code string

const (
	// CodeValidation indicates a value outside a field's domain or a malformed request.
	CodeValidation Code = "validation"
	// CodeNotFound indicates that the addressed record does not exist.
	CodeNotFound Code = "not_found"
	// CodeRemote indicates a transport or server failure reaching the data source.
	CodeRemote Code = "remote"
	// CodeUnavailable indicates a dependency is temporarily unavailable.
	CodeUnavailable Code = "unavailable"
)

// E captures structured error information.
type E struct {
	Code    Code
	HTTP    int
	Message string
	Field   string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the given code.
func New(code Code, opts ...Option) *E {
	e := &E{Code: code}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.HTTP == 0 {
		e.HTTP = defaultStatus(code)
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithHTTP records the associated HTTP status code.
func WithHTTP(status int) Option {
	return func(e *E) {
		e.HTTP = status
	}
}

// WithField names the field the error refers to.
func WithField(field string) Option {
	return func(e *E) {
		e.Field = strings.TrimSpace(field)
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

// Error returns the message when one is set, since it is shown to users.
func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message != "" {
		return e.Message
	}
	var parts []string
	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)
	if e.Field != "" {
		parts = append(parts, "field="+strconv.Quote(e.Field))
	}
	if e.HTTP > 0 {
		parts = append(parts, "http="+strconv.Itoa(e.HTTP))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}
	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// Validation returns a validation error with the given message.
func Validation(msg string, opts ...Option) *E {
	return New(CodeValidation, append([]Option{WithMessage(msg)}, opts...)...)
}

// NotFound returns a not-found error with the given message.
func NotFound(msg string, opts ...Option) *E {
	return New(CodeNotFound, append([]Option{WithMessage(msg)}, opts...)...)
}

// Remote returns a remote error with the given message.
func Remote(msg string, opts ...Option) *E {
	return New(CodeRemote, append([]Option{WithMessage(msg)}, opts...)...)
}

// CodeOf returns the code of the first envelope in err's chain, or the empty code.
func CodeOf(err error) Code {
	var e *E
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsValidation reports whether err carries CodeValidation.
func IsValidation(err error) bool { return CodeOf(err) == CodeValidation }

// IsNotFound reports whether err carries CodeNotFound.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsRemote reports whether err carries CodeRemote.
func IsRemote(err error) bool { return CodeOf(err) == CodeRemote }

// StatusOf maps err to an HTTP status code. Errors without an envelope map to 500.
func StatusOf(err error) int {
	var e *E
	if errors.As(err, &e) && e.HTTP > 0 {
		return e.HTTP
	}
	return http.StatusInternalServerError
}

func defaultStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeRemote:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
