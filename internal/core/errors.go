package core

import (
	"errors"

	"chatrelay/internal/backend"
)

// Kind classifies a relay failure. Every error that escapes the service layer
// is one of these; the API layer maps kinds to HTTP statuses.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindBadRequest
	KindNotFound
	KindBackend
	KindStorage
)

// Error is a classified service failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error { return e.Err }

func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }
func BadRequest(msg string) *Error   { return &Error{Kind: KindBadRequest, Message: msg} }
func NotFound(msg string) *Error     { return &Error{Kind: KindNotFound, Message: msg} }

// StorageFailure wraps a persistence error; the driver detail stays in the
// chain for logs but never reaches the client.
func StorageFailure(err error) *Error {
	return &Error{Kind: KindStorage, Message: "storage failure", Err: err}
}

// KindOf extracts the classification from any error in the chain. Backend
// adapter errors classify as KindBackend without needing to be rewrapped.
func KindOf(err error) Kind {
	var be *backend.Error
	if errors.As(err, &be) {
		return KindBackend
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}
