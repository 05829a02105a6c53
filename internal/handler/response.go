package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError, so every error
// from the API has the same shape:
//
//	{"error": "not_found", "message": "user not found with id alice"}
//
// STATUS MAPPING:
//
//	ErrValidation      → 400
//	ErrUnauthorized    → 401
//	ErrForbidden       → 403
//	ErrNotFound        → 404
//	ErrConflict        → 406
//	ErrInvalidArgument → 406
//	anything else      → 500
//
// Conflicts are 406 Not Acceptable, not 409: existing clients of this API
// branch on 406 for "edge already exists / precondition missing".

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/putmeon/internal/apperror"
)

// maxBodyBytes caps request bodies. Every body this API accepts is a tiny
// JSON object.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// MessageResponse acknowledges an operation that has no resource to return.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends data with status. Headers must be set before the status,
// and the status before the body.
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

func writeMessage(w http.ResponseWriter, format string, args ...any) {
	writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf(format, args...)})
}

// writeError maps a domain error to its status code. errors.Is walks the
// whole chain, so services may wrap apperror values with fmt.Errorf("%w").
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, kind := statusOf(err)
		writeJSON(w, status, ErrorResponse{Error: kind, Message: appErr.Message})
		return
	}

	// Unknown errors may carry store details; log them, never send them.
	logger.Error("internal error", slog.Any("error", err))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusNotAcceptable, "conflict"
	case errors.Is(err, apperror.ErrInvalidArgument):
		return http.StatusNotAcceptable, "invalid_argument"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decodeJSON reads a JSON object body into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "invalid JSON body: "+err.Error())
	}
	return nil
}
