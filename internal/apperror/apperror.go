// Package apperror defines the error kinds every component returns.
//
// Each kind is a sentinel. Constructors wrap it in an *AppError that carries
// a human-readable message, so callers check the kind with errors.Is and read
// the message with errors.As:
//
//	if errors.Is(err, apperror.ErrNotOwned) { ... }
//
// All kinds are caller-correctable. None of them is transient, so none of
// them should be retried.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotSelf       = errors.New("not self")
	ErrNotOwned      = errors.New("not owned")
	ErrNotCreator    = errors.New("not creator")
	ErrNotRecruiter  = errors.New("not recruiter role")
	ErrNotVerifier   = errors.New("not verifier of certificate")
	ErrNotPending    = errors.New("not pending")
)

type AppError struct {
	Err     error  // kind, one of the sentinels above
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func AlreadyExists(resource, id string) *AppError {
	return &AppError{
		Err:     ErrAlreadyExists,
		Message: fmt.Sprintf("%s already exists with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Unauthorized reports that the caller lacks the role an operation requires.
func Unauthorized(principal, required string) *AppError {
	if principal == "" {
		return &AppError{Err: ErrUnauthorized, Message: "caller identity is required"}
	}
	return &AppError{
		Err:     ErrUnauthorized,
		Message: fmt.Sprintf("%s does not hold role %s", principal, required),
	}
}

// NotSelf reports that the caller tried to act on behalf of another principal.
func NotSelf(caller, target string) *AppError {
	return &AppError{
		Err:     ErrNotSelf,
		Message: fmt.Sprintf("%s cannot act for %s", caller, target),
	}
}

func NotOwned(resource, id, caller string) *AppError {
	return &AppError{
		Err:     ErrNotOwned,
		Message: fmt.Sprintf("%s %s is not owned by %s", resource, id, caller),
	}
}

func NotCreator(companyID int64, principal string) *AppError {
	return &AppError{
		Err:     ErrNotCreator,
		Message: fmt.Sprintf("%s is not the creator of company %d", principal, companyID),
	}
}

func NotRecruiter(principal string) *AppError {
	return &AppError{
		Err:     ErrNotRecruiter,
		Message: fmt.Sprintf("%s is not a registered recruiter", principal),
	}
}

func NotVerifier(certificateID int64, principal string) *AppError {
	return &AppError{
		Err:     ErrNotVerifier,
		Message: fmt.Sprintf("%s is not the verifier of certificate %d", principal, certificateID),
	}
}

// NotPending reports a certificate that is no longer Pending. Content edits
// and status decisions both return it.
func NotPending(certificateID int64, status string) *AppError {
	return &AppError{
		Err:     ErrNotPending,
		Message: fmt.Sprintf("certificate %d is already decided (%s)", certificateID, status),
	}
}
