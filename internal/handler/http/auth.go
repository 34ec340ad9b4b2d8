package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/neosign/identity/pkg/httputil"
	"github.com/neosign/identity/pkg/validator"

	"github.com/neosign/identity/internal/service"
)

// AuthHandler handles the public account lifecycle endpoints.
type AuthHandler struct {
	service *service.AccountService
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.AccountService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// RegisterRequest is the JSON request body for completing registration.
// Field names match the client contract.
type RegisterRequest struct {
	FirstName string `json:"firstName" validate:"required,min=1,max=100"`
	LastName  string `json:"lastName" validate:"required,min=1,max=100"`
	NumeroTel string `json:"NumeroTel" validate:"omitempty,max=30"`
	Password  string `json:"Password" validate:"required,min=8"`
}

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Email    string `json:"Email" validate:"required,email"`
	Password string `json:"Password" validate:"required"`
}

// LoginResponse carries the signed access token.
type LoginResponse struct {
	Token string `json:"token"`
}

// --- Handlers ---

// CreateUser handles POST /protected-resource/authen/CreateUser?email=
// It claims the address and emails a confirmation link. The response does not
// reveal whether the claim was new or re-issued.
func (h *AuthHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		httputil.WriteMessage(w, http.StatusBadRequest, "email is required")
		return
	}

	if err := h.service.ClaimEmail(r.Context(), email); err != nil {
		httputil.WriteError(w, r, err, "AuthHandler.CreateUser", h.logger)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, "a confirmation email has been sent")
}

// ConfirmEmail handles GET /protected-resource/authen/ConfirmEmail?email=&token=
func (h *AuthHandler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	token := r.URL.Query().Get("token")
	if email == "" || token == "" {
		httputil.WriteMessage(w, http.StatusBadRequest, "email and token are required")
		return
	}

	if err := h.service.ConfirmEmail(r.Context(), email, token); err != nil {
		httputil.WriteError(w, r, err, "AuthHandler.ConfirmEmail", h.logger)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, "email confirmed")
}

// Register handles POST /protected-resource/authen/{email}/Registre
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	email := chi.URLParam(r, "email")

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	profile := service.ProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.NumeroTel,
	}

	if _, err := h.service.CompleteRegistration(r.Context(), email, profile, req.Password); err != nil {
		httputil.WriteError(w, r, err, "AuthHandler.Register", h.logger)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, "registration completed")
}

// Login handles POST /protected-resource/authen/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	token, _, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, "AuthHandler.Login", h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, LoginResponse{Token: token})
}
