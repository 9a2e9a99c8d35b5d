// ABOUTME: Error taxonomy for the reconciliation engine
// ABOUTME: One Error type carrying a Kind so callers can decide recover-vs-abort
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the category of a failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindDetector is a single signal source failing; recovered as no-match.
	KindDetector
	// KindParser is structurally unusable model output.
	KindParser
	// KindProvider is an LLM quota/availability failure; retried, then fallback.
	KindProvider
	// KindPersistence is a failed write to the record store; row-level.
	KindPersistence
	// KindLockTimeout aborts a whole pass.
	KindLockTimeout
	// KindNotification is a failed email send; escalated to the operator.
	KindNotification
	KindValidation
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindDetector:
		return "detector"
	case KindParser:
		return "parser"
	case KindProvider:
		return "provider"
	case KindPersistence:
		return "persistence"
	case KindLockTimeout:
		return "lock_timeout"
	case KindNotification:
		return "notification"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Detector(op string, err error) error     { return Wrap(KindDetector, op, err) }
func Parser(op string, err error) error       { return Wrap(KindParser, op, err) }
func Provider(op string, err error) error     { return Wrap(KindProvider, op, err) }
func Persistence(op string, err error) error  { return Wrap(KindPersistence, op, err) }
func Notification(op string, err error) error { return Wrap(KindNotification, op, err) }

// LockTimeout reports that the run lock could not be acquired.
func LockTimeout(name string, attempts int, err error) error {
	e := &Error{
		Kind:    KindLockTimeout,
		Op:      "acquire " + name,
		Message: fmt.Sprintf("lock not acquired after %d attempts", attempts),
		Err:     err,
	}
	return e
}

// Validation creates a validation error.
func Validation(op, message string) *Error {
	return New(KindValidation, op, message)
}

// NotFound creates a not-found error.
func NotFound(op, message string) *Error {
	return New(KindNotFound, op, message)
}

// GetKind returns the kind of the first *Error in err's chain.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err's chain holds an *Error of kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
