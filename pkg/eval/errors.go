package eval

import (
	"errors"
	"fmt"

	"github.com/openfroyo/lazyval/pkg/value"
)

// ErrorClass classifies evaluation failures.
type ErrorClass string

const (
	// ErrorClassThrow is a user-raised, catchable failure.
	ErrorClassThrow ErrorClass = "throw"

	// ErrorClassAbort is a user-raised failure that is never caught.
	ErrorClassAbort ErrorClass = "abort"

	// ErrorClassType is an operation applied to a value of the wrong kind.
	ErrorClassType ErrorClass = "type"

	// ErrorClassInfiniteRecursion is a thunk demanded while it is already
	// being computed.
	ErrorClassInfiniteRecursion ErrorClass = "infinite-recursion"

	// ErrorClassAssertion is a failed assertion.
	ErrorClassAssertion ErrorClass = "assertion"

	// ErrorClassIncomplete is a value the front-end could not make concrete.
	ErrorClassIncomplete ErrorClass = "incomplete"

	// ErrorClassCoercion is a failed conversion to a string or store path.
	ErrorClassCoercion ErrorClass = "coercion"
)

// EvalError is a failure raised while forcing a value.
// nolint:revive // EvalError reads better than Error at call sites
type EvalError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Pos is where the failure was raised, if known.
	Pos value.Pos `json:"-"`

	// Trace holds "while ..." context lines, innermost first.
	Trace []string `json:"trace,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s error at %s: %s", e.Class, e.Pos, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Class, msg)
}

// Msg returns the message without class or position.
func (e *EvalError) Msg() string {
	return e.Message
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EvalError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *EvalError) Is(target error) bool {
	t, ok := target.(*EvalError)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// WithPos records where the error was raised.
func (e *EvalError) WithPos(pos value.Pos) *EvalError {
	e.Pos = pos
	return e
}

// WithCause records the underlying error.
func (e *EvalError) WithCause(err error) *EvalError {
	e.Err = err
	return e
}

// AddTrace appends a context line such as "while evaluating the attribute 'x'".
func (e *EvalError) AddTrace(format string, args ...interface{}) *EvalError {
	e.Trace = append(e.Trace, fmt.Sprintf(format, args...))
	return e
}

// NewError creates an error of the given class.
func NewError(class ErrorClass, format string, args ...interface{}) *EvalError {
	return &EvalError{
		Class:   class,
		Message: fmt.Sprintf(format, args...),
	}
}

// ThrowError creates a catchable user failure.
func ThrowError(message string) *EvalError {
	return &EvalError{Class: ErrorClassThrow, Message: message}
}

// TypeError creates a wrong-kind failure.
func TypeError(format string, args ...interface{}) *EvalError {
	return NewError(ErrorClassType, format, args...)
}

// ErrInfiniteRecursion is the sentinel class value for errors.Is checks.
var ErrInfiniteRecursion = &EvalError{Class: ErrorClassInfiniteRecursion}

// Message returns the text the printer shows for err: the bare message of
// an EvalError, or the full text of any other error.
func Message(err error) string {
	var e *EvalError
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// ClassOf returns the class of err, or "" when err is not an EvalError.
func ClassOf(err error) ErrorClass {
	var e *EvalError
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// IsThrow returns true if the error was raised by throw.
func IsThrow(err error) bool {
	return ClassOf(err) == ErrorClassThrow
}

// IsAbort returns true if the error was raised by abort.
func IsAbort(err error) bool {
	return ClassOf(err) == ErrorClassAbort
}

// IsInfiniteRecursion returns true if a blackhole was re-entered.
func IsInfiniteRecursion(err error) bool {
	return ClassOf(err) == ErrorClassInfiniteRecursion
}

// IsEvalError returns true for any classified evaluation failure.
func IsEvalError(err error) bool {
	return ClassOf(err) != ""
}
