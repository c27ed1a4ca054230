package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an error so front ends can decide how to report it.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindTransport
	KindUnsupported
	KindUnavailable
	KindConflict
	KindBusy
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindUnsupported:
		return "unsupported"
	case KindUnavailable:
		return "unavailable"
	case KindConflict:
		return "conflict"
	case KindBusy:
		return "busy"
	default:
		return "internal"
	}
}

// CustomError represents a custom error with additional arguments and wrapping capability.
type CustomError struct {
	message string
	kind    Kind
	args    map[string]interface{}
	wrapped error
}

// New creates a new CustomError instance.
func New(message string) *CustomError {
	return &CustomError{
		message: message,
		args:    make(map[string]interface{}),
	}
}

// Newf creates a new CustomError with a formatted message.
func Newf(format string, a ...interface{}) *CustomError {
	return New(fmt.Sprintf(format, a...))
}

func NotFound(message string) *CustomError    { return New(message).WithKind(KindNotFound) }
func Validation(message string) *CustomError  { return New(message).WithKind(KindValidation) }
func Transport(message string) *CustomError   { return New(message).WithKind(KindTransport) }
func Unsupported(message string) *CustomError { return New(message).WithKind(KindUnsupported) }
func Unavailable(message string) *CustomError { return New(message).WithKind(KindUnavailable) }
func Conflict(message string) *CustomError    { return New(message).WithKind(KindConflict) }
func Busy(message string) *CustomError        { return New(message).WithKind(KindBusy) }

// Error implements the error interface.
func (e *CustomError) Error() string {
	return e.fullErrorString()
}

// Message returns the bare message without args or wrapped errors.
func (e *CustomError) Message() string {
	return e.message
}

// Kind returns the kind set on this error, without looking at wrapped errors.
func (e *CustomError) Kind() Kind {
	return e.kind
}

// WithKind sets the error kind.
func (e *CustomError) WithKind(k Kind) *CustomError {
	e.kind = k
	return e
}

// Arg adds an argument to the error.
func (e *CustomError) Arg(key string, value interface{}) *CustomError {
	e.args[key] = value
	return e
}

// Wrap wraps another error (can be of the same type or a standard error).
// An error without its own kind inherits the kind of the wrapped one.
func (e *CustomError) Wrap(err error) *CustomError {
	if err != nil {
		e.wrapped = err
		if e.kind == KindInternal {
			e.kind = KindOf(err)
		}
	}
	return e
}

// Unwrap returns the wrapped error if any.
func (e *CustomError) Unwrap() error {
	return e.wrapped
}

// KindOf returns the kind of the first CustomError in the chain that has one.
func KindOf(err error) Kind {
	for err != nil {
		var ce *CustomError
		if !errors.As(err, &ce) {
			return KindInternal
		}
		if ce.kind != KindInternal {
			return ce.kind
		}
		err = ce.wrapped
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// Message returns the user-facing message of the outermost CustomError,
// or the plain error text for foreign errors.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.message
	}
	return err.Error()
}

// fullErrorString builds the error string in the desired format:
// "{msg: <message>, args: <args>, wrappedError: {<wrapped error>}}".
func (e *CustomError) fullErrorString() string {
	var builder strings.Builder

	builder.WriteString("{msg: ")
	builder.WriteString(e.message)

	if len(e.args) > 0 {
		keys := make([]string, 0, len(e.args))
		for k := range e.args {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s:%v", k, e.args[k]))
		}
		builder.WriteString(fmt.Sprintf(", args: map[%s]", strings.Join(pairs, " ")))
	}

	if e.wrapped != nil {
		wrappedErr := &CustomError{}
		if errors.As(e.wrapped, &wrappedErr) {
			// nested custom errors keep the brace format
			builder.WriteString(fmt.Sprintf(", wrappedError: %s", wrappedErr.fullErrorString()))
		} else {
			builder.WriteString(fmt.Sprintf(", wrappedError: {%v}", e.wrapped.Error()))
		}
	}

	builder.WriteString("}")

	return builder.String()
}
