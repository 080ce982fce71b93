package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/kycdesk/kycdesk/internal/domain"
)

const msgServerError = "Server error"

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeMessage sends a {message} body.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// writeFieldErrors sends a {errors:[...]} body.
func writeFieldErrors(w http.ResponseWriter, fields []domain.FieldError) {
	out := make([]fieldErrorResponse, 0, len(fields))
	for _, f := range fields {
		out = append(out, fieldErrorResponse{Field: f.Field, Message: f.Message})
	}
	writeJSON(w, http.StatusBadRequest, errorsResponse{Errors: out})
}

// statusForKind maps a domain error kind to an HTTP status.
func statusForKind(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation, domain.KindInvalidCredentials, domain.KindConflict:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err. Internal failures are logged and hidden behind a generic message.
func (r *Router) writeError(w http.ResponseWriter, req *http.Request, err error) {
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind == domain.KindInternal {
		r.logger.Error("request failed",
			"error", err,
			"path", req.URL.Path,
			"request_id", middleware.GetReqID(req.Context()),
		)
		writeMessage(w, http.StatusInternalServerError, msgServerError)
		return
	}
	if de.Kind == domain.KindValidation && len(de.Fields) > 0 {
		writeFieldErrors(w, de.Fields)
		return
	}
	if de.Kind == domain.KindUnauthorized && de.Err != nil {
		r.logger.Warn("authorization rejected", "error", de.Err, "path", req.URL.Path)
	}
	writeMessage(w, statusForKind(de.Kind), de.Message)
}
