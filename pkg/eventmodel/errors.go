// Package eventmodel defines the shared data types that flow through the
// event ingestion, trigger evaluation, and dispatch pipeline: Event,
// Trigger, TriggerCondition, Function, CallbackResult and ThreatEvent.
package eventmodel

import (
	"fmt"
	"runtime"
	"strings"
)

// ErrorKind is the core error taxonomy shared by every component boundary.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindNotFound         ErrorKind = "not_found"
	KindInvalidParams    ErrorKind = "invalid_parameters"
	KindStorage          ErrorKind = "storage"
	KindExecution        ErrorKind = "execution"
	KindTimeout          ErrorKind = "timeout"
	KindUnauthorized     ErrorKind = "unauthorized"
	KindRateLimited      ErrorKind = "rate_limited"
)

// Error is the error type returned across component boundaries. It carries
// enough context (kind, human message, optional rule name, optional cause)
// for a caller to decide whether to retry, surface, or log-and-swallow.
type Error struct {
	Kind    ErrorKind
	Message string
	Rule    string
	Cause   error
	Stack   string
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Rule != "" {
		msg = fmt.Sprintf("%s (rule: %s)", msg, e.Rule)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", msg, e.Cause.Error())
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error of the given kind.
func New(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message, Stack: captureStack()}
}

// Wrap wraps an existing error with a kind and message.
func Wrap(err error, kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: err, Stack: captureStack()}
}

// WithRule attaches the name of the rule that fired (used by the validator).
func (e *Error) WithRule(rule string) *Error {
	e.Rule = rule
	return e
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind ErrorKind) bool {
	if e, ok := err.(*Error); ok {
		return e.Kind == kind
	}
	return false
}

func captureStack() string {
	const depth = 24
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for {
		frame, more := frames.Next()
		if strings.Contains(frame.File, "runtime/") {
			if !more {
				break
			}
			continue
		}
		fmt.Fprintf(&b, "%s:%d - %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return b.String()
}

func ValidationError(rule, message string) *Error {
	return New(KindValidation, message).WithRule(rule)
}

func NotFoundError(message string) *Error { return New(KindNotFound, message) }

func InvalidParametersError(message string) *Error { return New(KindInvalidParams, message) }

func UnauthorizedError(message string) *Error { return New(KindUnauthorized, message) }

func RateLimitedError(message string) *Error { return New(KindRateLimited, message) }
