package pagestyle

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an extraction failed.
type ErrorKind uint8

const (
	KindUnclassified ErrorKind = iota
	KindFetch
	KindTimeout
	KindParse
)

func (k ErrorKind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindTimeout:
		return "timeout"
	case KindParse:
		return "parse"
	default:
		return "unclassified"
	}
}

// Error is the typed failure returned by Extract. Its message is what the
// tool boundary reports after the "Error: " prefix.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// errTimeout is the load-wait failure; its text is the literal reason.
var errTimeout = errors.New("Timeout")

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func fetchErrorf(format string, args ...any) *Error {
	return newError(KindFetch, fmt.Errorf(format, args...))
}

func timeoutError() *Error {
	return newError(KindTimeout, errTimeout)
}

// KindOf reports the kind of err, or KindUnclassified when err does not carry
// a *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnclassified
}

// IsKind reports whether err carries a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
