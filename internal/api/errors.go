package api

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes a backend call failure
type ErrorKind string

const (
	KindNetwork   ErrorKind = "network"
	KindBackend   ErrorKind = "backend"
	KindMalformed ErrorKind = "malformed"
)

// Error is returned by every Client method that fails.
type Error struct {
	Kind ErrorKind

	// Op is the backend path that was called
	Op string

	// Status is the HTTP status code (backend errors only)
	Status int

	// Detail is the backend's "detail" field, if it sent one
	Detail string

	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindBackend:
		if e.Detail != "" {
			return fmt.Sprintf("%s: backend error (status %d): %s", e.Op, e.Status, e.Detail)
		}
		return fmt.Sprintf("%s: backend error (status %d)", e.Op, e.Status)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
		}
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newNetworkError(op string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

func newBackendError(op string, status int, detail string) *Error {
	return &Error{Kind: KindBackend, Op: op, Status: status, Detail: detail}
}

func newMalformedError(op string, err error) *Error {
	return &Error{Kind: KindMalformed, Op: op, Err: err}
}

// IsKind reports whether err is an *Error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}
