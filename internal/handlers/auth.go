package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/BradenHooton/mriscan/internal/auth"
	"github.com/BradenHooton/mriscan/internal/models"
	"github.com/BradenHooton/mriscan/internal/services"
	pkghttp "github.com/BradenHooton/mriscan/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Signup(ctx context.Context, email, password, role string) (*models.User, error)
	Login(ctx context.Context, email, password, ipAddress string) (*services.LoginResult, error)
	Me(claims *models.SessionClaims) (*services.SessionUser, error)
	SessionTTL() time.Duration
}

// PasswordResetServiceInterface defines the interface for the reset flow
type PasswordResetServiceInterface interface {
	RequestReset(ctx context.Context, email, ipAddress string)
	ConfirmReset(ctx context.Context, token, newPassword, ipAddress string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service      AuthServiceInterface
	resetService PasswordResetServiceInterface
	cookieConfig auth.CookieConfig
	proxyTrust   *pkghttp.ProxyTrust
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, resetService PasswordResetServiceInterface, cookieConfig auth.CookieConfig, proxyTrust *pkghttp.ProxyTrust) *AuthHandler {
	return &AuthHandler{
		service:      service,
		resetService: resetService,
		cookieConfig: cookieConfig,
		proxyTrust:   proxyTrust,
	}
}

// Request DTOs

// SignupRequest represents the request body for signup
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role,omitempty"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ResetPasswordRequest represents the request body for starting a reset
type ResetPasswordRequest struct {
	Email string `json:"email" validate:"required"`
}

// ConfirmResetRequest represents the request body for completing a reset
type ConfirmResetRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Response DTOs

// SignupResponse is returned after a successful signup
type SignupResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// LoginResponse is returned after a successful login
type LoginResponse struct {
	Message string               `json:"message"`
	User    *services.SessionUser `json:"user"`
}

// MeResponse wraps the current session's identity
type MeResponse struct {
	User *services.SessionUser `json:"user"`
}

const resetRequestedMessage = "If email exists, reset link sent"

// Signup handles account creation
// @Router /api/auth/signup [post]
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest

	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.Signup(r.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteBadRequest(w, "User already exists")
		case errors.Is(err, models.ErrInvalidRole):
			pkghttp.WriteBadRequest(w, "Invalid role")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid email or password")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, SignupResponse{
		Message: "User created successfully",
		UserID:  user.ID,
	})
}

// Login verifies credentials and sets the session cookie
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	// Missing fields are rejected by the service as invalid credentials.
	ipAddress := pkghttp.ClientIP(r, h.proxyTrust)

	result, err := h.service.Login(r.Context(), req.Email, req.Password, ipAddress)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			pkghttp.WriteUnauthorized(w, "Invalid credentials")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	auth.SetSessionCookie(w, result.Token, h.service.SessionTTL(), h.cookieConfig)

	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
		Message: "Login successful",
		User:    result.User,
	})
}

// Logout clears the session cookie. The token itself stays valid until it
// expires; clients holding a copy in a header are unaffected.
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.cookieConfig)
	pkghttp.WriteMessage(w, "Logged out successfully")
}

// Me returns the identity of the current session
// @Router /api/auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Me(auth.GetClaimsFromContext(r))
	if err != nil {
		pkghttp.WriteUnauthorized(w, "Not authenticated")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MeResponse{User: user})
}

// RequestPasswordReset always answers with the same message so the response
// never reveals whether the email is registered.
// @Router /api/auth/reset-password [post]
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest

	if err := decodeJSON(w, r, &req); err == nil && ValidateRequest(req) == nil {
		h.resetService.RequestReset(r.Context(), req.Email, pkghttp.ClientIP(r, h.proxyTrust))
	}

	pkghttp.WriteMessage(w, resetRequestedMessage)
}

// ConfirmPasswordReset redeems a reset token
// @Router /api/auth/reset-password/confirm [post]
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ConfirmResetRequest

	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	err := h.resetService.ConfirmReset(r.Context(), req.Token, req.Password, pkghttp.ClientIP(r, h.proxyTrust))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidOrExpiredToken):
			pkghttp.WriteBadRequest(w, "Invalid or expired token")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid password")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteMessage(w, "Password reset successfully")
}
