package compliance

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ErrorKind classifies engine failures.
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	KindParse
	KindBinding
	KindPatternCompile
	KindUnknownProcedure
	KindExecution
)

func (k ErrorKind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindBinding:
		return "binding"
	case KindPatternCompile:
		return "pattern"
	case KindUnknownProcedure:
		return "unknown_procedure"
	case KindExecution:
		return "execution"
	}
	return "generic"
}

// Error is a failure with a human-readable message and an errno-style code.
// Callers branch on the code with errors.Is(err, unix.ENOENT) instead of
// matching on the message.
type Error struct {
	Kind    ErrorKind
	Message string
	Code    unix.Errno
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target is the errno carried by e.
func (e *Error) Is(target error) bool {
	errno, ok := target.(unix.Errno)
	return ok && errno == e.Code
}

// NewError creates a generic error with the given code.
func NewError(code unix.Errno, message string) *Error {
	return &Error{Kind: KindGeneric, Message: message, Code: code}
}

// Errorf creates a generic error with a formatted message.
func Errorf(code unix.Errno, format string, args ...interface{}) error {
	return &Error{Kind: KindGeneric, Message: fmt.Sprintf(format, args...), Code: code}
}

// ParseError reports a malformed catalog entry or key.
func ParseError(format string, args ...interface{}) error {
	return &Error{Kind: KindParse, Message: fmt.Sprintf(format, args...), Code: unix.EINVAL}
}

// BindingError reports an argument that could not be bound to its field.
func BindingError(code unix.Errno, format string, args ...interface{}) error {
	return &Error{Kind: KindBinding, Message: fmt.Sprintf(format, args...), Code: code}
}

// PatternError reports a pattern that failed to compile.
func PatternError(pattern string, reason error) error {
	return &Error{
		Kind:    KindPatternCompile,
		Message: fmt.Sprintf("pattern '%s' compilation failed: %v", pattern, reason),
		Code:    unix.EINVAL,
	}
}

// UnknownProcedure reports a procedure name missing from the registry.
func UnknownProcedure() error {
	return &Error{Kind: KindUnknownProcedure, Message: "unknown procedure", Code: unix.ENOENT}
}

// ExecutionError reports a failure raised while a procedure talked to the host.
func ExecutionError(code unix.Errno, format string, args ...interface{}) error {
	return &Error{Kind: KindExecution, Message: fmt.Sprintf(format, args...), Code: code}
}

// CodeOf extracts the errno from an error chain. Errors without one map to EIO.
func CodeOf(err error) unix.Errno {
	if err == nil {
		return 0
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return unix.EIO
}

// KindOf returns the kind of an engine error, or KindGeneric.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindGeneric
}
