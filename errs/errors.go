// Package errs defines the error taxonomy shared by all cryptbase packages.
//
// Every failure raised by this library is one of four kinds: corrupt data,
// an invalid parameter, an internal bug (or unsupported input shape), or an
// operation attempted before the system was ready for it. Errors are always
// returned synchronously at the point of detection and never recovered
// internally.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind uint8

// Error kinds.
const (
	KindCorrupt Kind = iota
	KindInvalid
	KindBug
	KindNotReady
)

func (k Kind) String() string {
	switch k {
	case KindCorrupt:
		return "corrupt"
	case KindInvalid:
		return "invalid"
	case KindBug:
		return "bug"
	case KindNotReady:
		return "not ready"
	default:
		return "unknown"
	}
}

// Error is a classified error with a human readable message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Message
}

// Corruptf returns a new error of kind KindCorrupt.
func Corruptf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindCorrupt, Message: fmt.Sprintf(format, args...)}
}

// Invalidf returns a new error of kind KindInvalid.
func Invalidf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalid, Message: fmt.Sprintf(format, args...)}
}

// Bugf returns a new error of kind KindBug.
func Bugf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindBug, Message: fmt.Sprintf(format, args...)}
}

// NotReadyf returns a new error of kind KindNotReady.
func NotReadyf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotReady, Message: fmt.Sprintf(format, args...)}
}

// Is reports whether err is, or wraps, an Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
