package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// ConflictError indicates an operation that is illegal in the entity's
// current state (resubmitting, revoking a graded submission, answering an
// answered doubt). Reason is a stable machine-readable tag.
type ConflictError struct {
	Reason string
	msg    string
}

func NewConflictError(reason, msg string) *ConflictError {
	return &ConflictError{Reason: reason, msg: msg}
}

func (err *ConflictError) Error() string {
	return err.msg
}

// StaleStateError indicates a lost conditional-update race: the entity
// changed between the caller's read and its write. Callers should re-read
// and retry once.
type StaleStateError struct {
	msg string
}

func NewStaleStateError(msg string) *StaleStateError {
	return &StaleStateError{msg}
}

func (err *StaleStateError) Error() string {
	return err.msg
}

func IsStaleState(err error) bool {
	_, ok := errors.Cause(err).(*StaleStateError)
	return ok
}

// AuthorizationError indicates the acting user lacks the role or ownership
// required for the operation.
type AuthorizationError struct {
	msg string
}

func NewAuthorizationError(msg string) *AuthorizationError {
	return &AuthorizationError{msg}
}

func (err *AuthorizationError) Error() string {
	return err.msg
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
