package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/neosign/identity/pkg/httputil"

	"github.com/neosign/identity/internal/service"
)

// OTPHandler handles the one-time-code endpoints.
type OTPHandler struct {
	service *service.OTPService
	logger  *slog.Logger
}

// NewOTPHandler creates a new OTP HTTP handler.
func NewOTPHandler(svc *service.OTPService, logger *slog.Logger) *OTPHandler {
	return &OTPHandler{service: svc, logger: logger}
}

// AddOTP handles POST /protected-resource/otp/addotp/{userid}
// Always reports success: whether the user exists is never revealed.
func (h *OTPHandler) AddOTP(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userid")

	if err := h.service.GenerateForUser(r.Context(), userID); err != nil {
		httputil.WriteError(w, r, err, "OTPHandler.AddOTP", h.logger)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, "code sent")
}

// AddPassOTP handles POST /protected-resource/otp/addPassOtp/{userEmail}
func (h *OTPHandler) AddPassOTP(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "userEmail")

	if err := h.service.GenerateForEmail(r.Context(), email); err != nil {
		httputil.WriteError(w, r, err, "OTPHandler.AddPassOTP", h.logger)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, "code sent")
}

// Verify handles GET /protected-resource/otp/verify/{userid}/otp/{code}
func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userid")

	code, ok := parseCode(w, chi.URLParam(r, "code"))
	if !ok {
		return
	}

	otp, err := h.service.VerifyForUser(r.Context(), userID, code)
	if err != nil {
		httputil.WriteError(w, r, err, "OTPHandler.Verify", h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, otp)
}

// VerifyPass handles GET /protected-resource/otp/verify/{Email}/Passotp/{code}
func (h *OTPHandler) VerifyPass(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "Email")

	code, ok := parseCode(w, chi.URLParam(r, "code"))
	if !ok {
		return
	}

	otp, err := h.service.VerifyForEmail(r.Context(), email, code)
	if err != nil {
		httputil.WriteError(w, r, err, "OTPHandler.VerifyPass", h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, otp)
}

// parseCode converts the code path segment to an int, writing a 400 when it
// is not numeric.
func parseCode(w http.ResponseWriter, raw string) (int, bool) {
	code, err := strconv.Atoi(raw)
	if err != nil {
		httputil.WriteMessage(w, http.StatusBadRequest, "code must be numeric")
		return 0, false
	}
	return code, true
}
