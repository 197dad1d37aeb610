package handler

// RESPONSE HELPERS
// Every error body has the same shape:
//   {"error": "not_creator", "message": "0xabc is not the creator of company 3"}
//
// The error code is the error kind; the message comes from the *AppError.
// Anything that is not an *AppError is reported as a bare 500 so storage
// details never reach the client.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/resumiro/internal/apperror"
)

type ErrorResponse struct {
	Error   string `json:"error"`           // machine-readable kind, e.g. "not_found"
	Message string `json:"message"`         // human-readable description
	Field   string `json:"field,omitempty"` // set for validation errors
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

var statusByKind = []struct {
	kind   error
	status int
	code   string
}{
	{apperror.ErrValidation, http.StatusBadRequest, "validation_error"},
	{apperror.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperror.ErrAlreadyExists, http.StatusConflict, "already_exists"},
	{apperror.ErrNotPending, http.StatusConflict, "not_pending"},
	{apperror.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{apperror.ErrNotSelf, http.StatusForbidden, "not_self"},
	{apperror.ErrNotOwned, http.StatusForbidden, "not_owned"},
	{apperror.ErrNotCreator, http.StatusForbidden, "not_creator"},
	{apperror.ErrNotVerifier, http.StatusForbidden, "not_verifier"},
	{apperror.ErrNotRecruiter, http.StatusUnprocessableEntity, "not_recruiter"},
}

// StatusFor maps an error kind to its HTTP status and error code.
func StatusFor(err error) (int, string) {
	for _, k := range statusByKind {
		if errors.Is(err, k.kind) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, code := StatusFor(err)
		writeJSON(w, status, ErrorResponse{
			Error:   code,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
