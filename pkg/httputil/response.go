package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/neosign/identity/pkg/errors"
	"github.com/neosign/identity/pkg/logger"
	"github.com/neosign/identity/pkg/validator"
)

// Message is the standard response body for this API: every error response and
// most success responses carry a single human-readable message.
type Message struct {
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteMessage writes a `{"message": ...}` body with the given status code.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Message{Message: message})
}

// WriteError converts err into an HTTP response. AppError values keep their
// status and message; anything else becomes a 500 with a generic message and
// the full detail logged under the given operation tag. The request-scoped
// logger from context (set by the RequestLogger middleware) is preferred over
// the fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, op string, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() {
		l = fallback
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Status >= http.StatusInternalServerError {
			l.ErrorContext(r.Context(), "unexpected error",
				slog.String("op", op),
				slog.String("error", appErr.Error()),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			WriteMessage(w, appErr.Status, "an unexpected error occurred")
			return
		}
		l.ErrorContext(r.Context(), appErr.Message,
			slog.String("op", op),
			slog.String("code", appErr.Code),
		)
		WriteMessage(w, appErr.Status, appErr.Message)
		return
	}

	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "unexpected error",
			slog.String("op", op),
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		WriteMessage(w, status, "an unexpected error occurred")
		return
	}

	l.ErrorContext(r.Context(), err.Error(), slog.String("op", op))
	WriteMessage(w, status, err.Error())
}

// WriteValidationError writes a 400 response for a failed DTO validation.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteMessage(w, http.StatusBadRequest, valErr.Error())
		return
	}
	WriteMessage(w, http.StatusBadRequest, err.Error())
}
