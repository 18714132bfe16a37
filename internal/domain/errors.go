package domain

import (
	"errors"
	"net/http"
)

// Common business errors. AppError wraps one of these so callers can use errors.Is.
var (
	ErrNotFound             = errors.New("resource not found")
	ErrAlreadyExists        = errors.New("resource already exists")
	ErrInvalidInput         = errors.New("invalid input")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrInternalError        = errors.New("internal error")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrVerificationRequired = errors.New("account verification required")
	ErrAccountDisabled      = errors.New("account disabled")
	ErrBorrowLimitExceeded  = errors.New("borrow limit exceeded")
	ErrNoCopiesAvailable    = errors.New("no copies available")
	ErrAlreadyBorrowed      = errors.New("book already borrowed")
)

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError carries the HTTP status, a client-safe message and the cause.
type AppError struct {
	Code    int          // HTTP status
	Message string       // safe to show to clients
	Err     error        // cause
	Details []FieldError // validation failures, if any
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewNotFoundError(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: msg, Err: ErrNotFound}
}

func NewBadRequestError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg, Err: ErrInvalidInput}
}

func NewValidationError(details []FieldError) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: "Validation error", Err: ErrInvalidInput, Details: details}
}

func NewInternalError(msg string, err error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Message: msg, Err: err}
}

func NewConflictError(msg string) *AppError {
	return &AppError{Code: http.StatusConflict, Message: msg, Err: ErrAlreadyExists}
}

func NewUnauthorizedError(msg string) *AppError {
	return &AppError{Code: http.StatusUnauthorized, Message: msg, Err: ErrUnauthorized}
}

func NewForbiddenError(msg string) *AppError {
	return &AppError{Code: http.StatusForbidden, Message: msg, Err: ErrForbidden}
}

// NewRuleError reports a violated business rule (400) wrapping sentinel.
func NewRuleError(sentinel error, msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg, Err: sentinel}
}

// Validator collects field errors; Err returns nil when none were added.
type Validator struct {
	errs []FieldError
}

func (v *Validator) Check(ok bool, field, msg string) {
	if !ok {
		v.errs = append(v.errs, FieldError{Field: field, Message: msg})
	}
}

func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return NewValidationError(v.errs)
}
