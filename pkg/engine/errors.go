package engine

import (
	"context"
	"errors"
	"fmt"
)

// ErrorClass names the session phase an error came from.
type ErrorClass string

const (
	// ErrorClassLoad indicates the source could not be read, parsed or
	// executed.
	ErrorClassLoad ErrorClass = "load"

	// ErrorClassSelect indicates the attribute path could not be followed.
	ErrorClassSelect ErrorClass = "select"

	// ErrorClassRender indicates the render itself was refused or aborted.
	// Evaluation failures inside the value are printed inline and never
	// become render errors.
	ErrorClassRender ErrorClass = "render"

	// ErrorClassStore indicates the path registry failed.
	ErrorClassStore ErrorClass = "store"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the phase that failed.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Source is the file or directory being loaded, if any.
	Source string `json:"source,omitempty"`

	// AttrPath is the selection path, if any.
	AttrPath string `json:"attr_path,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	switch {
	case e.Source != "" && e.AttrPath != "":
		msg += fmt.Sprintf(" (source=%s, attr=%s)", e.Source, e.AttrPath)
	case e.Source != "":
		msg += fmt.Sprintf(" (source=%s)", e.Source)
	case e.AttrPath != "":
		msg += fmt.Sprintf(" (attr=%s)", e.AttrPath)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewLoadError creates a new load error.
func NewLoadError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassLoad,
		Message: message,
		Err:     err,
	}
}

// NewSelectError creates a new selection error.
func NewSelectError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassSelect,
		Message: message,
		Err:     err,
	}
}

// NewRenderError creates a new render error.
func NewRenderError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassRender,
		Message: message,
		Err:     err,
	}
}

// NewStoreError creates a new store error.
func NewStoreError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassStore,
		Message: message,
		Err:     err,
	}
}

// WithSource adds source context to an error.
func (e *EngineError) WithSource(source string) *EngineError {
	e.Source = source
	return e
}

// WithAttrPath adds selection path context to an error.
func (e *EngineError) WithAttrPath(attrPath string) *EngineError {
	e.AttrPath = attrPath
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func classOf(err error) (ErrorClass, bool) {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class, true
	}
	return "", false
}

// IsLoadError returns true if the error is classified as a load error.
func IsLoadError(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassLoad
}

// IsSelectError returns true if the error is classified as a selection
// error.
func IsSelectError(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassSelect
}

// IsRenderError returns true if the error is classified as a render error.
func IsRenderError(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassRender
}

// IsStoreError returns true if the error is classified as a store error.
func IsStoreError(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassStore
}

// IsCanceled reports whether err was caused by context cancellation or a
// deadline.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Common error codes.
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeTypeMismatch      = "TYPE_MISMATCH"
	ErrCodeOutOfRange        = "OUT_OF_RANGE"
	ErrCodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	ErrCodeNotLoaded         = "NOT_LOADED"
	ErrCodeSessionClosed     = "SESSION_CLOSED"
	ErrCodeEvalFailed        = "EVAL_FAILED"
	ErrCodeCanceled          = "CANCELED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)
