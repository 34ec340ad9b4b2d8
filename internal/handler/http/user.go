package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/neosign/identity/pkg/httputil"
	"github.com/neosign/identity/pkg/middleware"
	"github.com/neosign/identity/pkg/validator"

	"github.com/neosign/identity/internal/service"
)

// UserHandler handles the authenticated profile and password endpoints, plus
// the public forgot-password reset.
type UserHandler struct {
	service *service.AccountService
	logger  *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(svc *service.AccountService, logger *slog.Logger) *UserHandler {
	return &UserHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// NewPasswordRequest is the JSON request body for the forgot-password reset.
type NewPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	NewPassword string `json:"newpass" validate:"required,min=8"`
}

// ChangePasswordRequest is the JSON request body for an authenticated
// password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"CurrentPassword" validate:"required"`
	NewPassword     string `json:"NewPassword" validate:"required,min=8"`
}

// UpdateProfileRequest is the JSON request body for a profile update. Absent
// fields are left unchanged.
type UpdateProfileRequest struct {
	FirstName *string `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,min=1,max=100"`
	NumeroTel *string `json:"NumeroTel" validate:"omitempty,max=30"`
}

// --- Handlers ---

// NewPassword handles PUT /protected-resource/user/newpassword
// Public: the forgot-password flow verifies an OTP before reaching this.
func (h *UserHandler) NewPassword(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req NewPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Email, req.NewPassword); err != nil {
		httputil.WriteError(w, r, err, "UserHandler.NewPassword", h.logger)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, "password has been reset")
}

// GetUser handles GET /protected-resource/user
// The subject comes from the validated token, never from the request.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	email := middleware.EmailFromContext(r.Context())

	user, err := h.service.GetUser(r.Context(), email)
	if err != nil {
		httputil.WriteError(w, r, err, "UserHandler.GetUser", h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, user)
}

// ChangePassword handles POST /protected-resource/user/ChangePasword
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	email := middleware.EmailFromContext(r.Context())

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), email, req.CurrentPassword, req.NewPassword); err != nil {
		httputil.WriteError(w, r, err, "UserHandler.ChangePassword", h.logger)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, "password changed")
}

// UpdateProfile handles PUT /protected-resource/user/updateuser
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	email := middleware.EmailFromContext(r.Context())

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	input := service.UpdateProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.NumeroTel,
	}

	user, err := h.service.UpdateProfile(r.Context(), email, input)
	if err != nil {
		httputil.WriteError(w, r, err, "UserHandler.UpdateProfile", h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, user)
}
