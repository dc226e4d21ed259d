package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure returned by the engine.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindAlreadyExists
	KindInvalidState
	KindConflict
	KindTransient
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindAlreadyExists:
		return "already exists"
	case KindInvalidState:
		return "invalid state"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient store error"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrAlreadyExists  = &Error{Kind: KindAlreadyExists}
	ErrInvalidState   = &Error{Kind: KindInvalidState}
	ErrConflict       = &Error{Kind: KindConflict}
	ErrTransientStore = &Error{Kind: KindTransient}
)

// Error is a classified domain failure carrying a human-readable message.
type Error struct {
	Kind    ErrorKind
	Entity  string
	ID      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
		if e.Entity != "" {
			msg = fmt.Sprintf("%s %s %s", e.Entity, e.ID, e.Kind)
		}
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NotFound reports a missing entity.
func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id}
}

// AlreadyExists reports a duplicate entity.
func AlreadyExists(entity, id string) *Error {
	return &Error{Kind: KindAlreadyExists, Entity: entity, ID: id}
}

// InvalidState reports a request that cannot be applied to the current state.
func InvalidState(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a concurrent modification that was rejected.
func Conflict(entity, id string) *Error {
	return &Error{Kind: KindConflict, Entity: entity, ID: id,
		Message: fmt.Sprintf("%s %s was modified concurrently", entity, id)}
}

// Transient wraps a storage failure.
func Transient(op string, err error) *Error {
	return &Error{Kind: KindTransient, Message: op, Err: err}
}

// KindOf returns the classification of err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ParseErrorKind is the inverse of ErrorKind.String. Unknown names yield
// KindUnknown.
func ParseErrorKind(s string) ErrorKind {
	for k := KindNotFound; k <= KindTransient; k++ {
		if k.String() == s {
			return k
		}
	}
	return KindUnknown
}
