package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. An *Error always matches exactly one of ErrTransport,
// ErrStatus, ErrMalformed or ErrClosed; a 404 additionally matches
// ErrNotFound.
var (
	// ErrTransport indicates the request never produced a response.
	ErrTransport = errors.New("upstream: transport failure")

	// ErrStatus indicates a non-2xx response.
	ErrStatus = errors.New("upstream: unexpected status")

	// ErrNotFound indicates a 404 response.
	ErrNotFound = errors.New("upstream: not found")

	// ErrMalformed indicates a response body that is not a JSON document.
	ErrMalformed = errors.New("upstream: malformed document")

	// ErrClosed indicates Fetch after Close.
	ErrClosed = errors.New("upstream: client closed")
)

// Error describes a failed upstream request.
type Error struct {
	// URL is the resolved request URL.
	URL string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Kind is one of the package sentinels.
	Kind error

	// Cause is the underlying error, if any.
	Cause error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s %d", msg, e.StatusCode)
	}
	if e.URL != "" {
		msg += " (" + e.URL + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes the kind, ErrNotFound for 404s, and the cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 3)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.StatusCode == http.StatusNotFound {
		errs = append(errs, ErrNotFound)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Retryable reports whether repeating the request could succeed. Transport
// failures, 429 and 5xx are retryable; other statuses, malformed bodies and
// a closed client are not.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case ErrTransport:
		return true
	case ErrStatus:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	default:
		return false
	}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.StatusCode
	}
	return 0
}
