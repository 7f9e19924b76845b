// Package bridge exposes Go objects to an embedded script engine and
// converts script values back into Go values.
//
// The pieces fit together like this: classes are declared through a builder
// (builder.go) and registered on an Engine (engine.go), which records their
// ClassMeta (meta.go) in per-engine registries. Native values crossing into
// script space pass through the ownership-policy engine (policy.go), which
// consults the polymorphism resolver (resolve.go) and wraps the value in a
// NativeInstance (instance.go) behind a script proxy object. Script calls
// into native code run through overload dispatch (dispatch.go) and the
// conversion registry (convert.go).
package bridge

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a bridge failure. Every error the bridge raises
// toward script code carries exactly one kind.
type ErrorKind uint8

const (
	// ErrRegistration covers duplicate or malformed class/enum
	// registrations and broken base-class links.
	ErrRegistration ErrorKind = iota + 1
	// ErrConversion covers script values that do not match the requested
	// native shape, arity mismatches and failed overload resolution.
	ErrConversion
	// ErrOwnership covers policy violations: slicing without a clone hook,
	// taking ownership of a non-pointer, ReferenceInternal without a
	// parent, unregistered types at conversion time.
	ErrOwnership
	// ErrAccess covers const violations, use of finalized payloads,
	// disabled constructors and calls outside an engine scope.
	ErrAccess
)

// String returns the script-visible name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrRegistration:
		return "RegistrationError"
	case ErrConversion:
		return "ConversionError"
	case ErrOwnership:
		return "OwnershipError"
	case ErrAccess:
		return "AccessError"
	default:
		return "BridgeError"
	}
}

// Error is the single script-visible failure type raised by the bridge.
// The kind is a classification tag; Message is what script code sees.
type Error struct {
	Kind    ErrorKind
	Message string

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// WithCause attaches an underlying error and returns e.
func (e *Error) WithCause(cause error) *Error {
	e.cause = cause
	return e
}

func registrationErrorf(format string, args ...any) *Error {
	return &Error{Kind: ErrRegistration, Message: fmt.Sprintf(format, args...)}
}

func conversionErrorf(format string, args ...any) *Error {
	return &Error{Kind: ErrConversion, Message: fmt.Sprintf(format, args...)}
}

func ownershipErrorf(format string, args ...any) *Error {
	return &Error{Kind: ErrOwnership, Message: fmt.Sprintf(format, args...)}
}

func accessErrorf(format string, args ...any) *Error {
	return &Error{Kind: ErrAccess, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is (or wraps) a bridge Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var be *Error
	if !errors.As(err, &be) {
		return false
	}
	return be.Kind == kind
}

// KindOf extracts the classification of err. ok is false when err does not
// carry a bridge Error.
func KindOf(err error) (kind ErrorKind, ok bool) {
	var be *Error
	if !errors.As(err, &be) {
		return 0, false
	}
	return be.Kind, true
}

// AsScriptError wraps an arbitrary Go error for the script side. Bridge
// errors pass through unchanged; anything else becomes an AccessError so a
// native failure never crosses the boundary untagged.
func AsScriptError(err error) *Error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	return &Error{Kind: ErrAccess, Message: err.Error(), cause: err}
}
