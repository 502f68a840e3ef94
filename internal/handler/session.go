package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/faucetdb/rolekeeper/internal/service"
)

// DefaultSessionTTL is how long an issued session token stays valid.
const DefaultSessionTTL = 24 * time.Hour

// SessionHandler issues and discards admin session tokens.
type SessionHandler struct {
	authSvc *service.AuthService
	ttl     time.Duration
	logger  *slog.Logger
}

// NewSessionHandler creates a new SessionHandler. A zero ttl means
// DefaultSessionTTL.
func NewSessionHandler(authSvc *service.AuthService, ttl time.Duration, logger *slog.Logger) *SessionHandler {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{authSvc: authSvc, ttl: ttl, logger: logger}
}

// loginRequest is the expected payload for the Login endpoint.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the response payload for a successful login.
type loginResponse struct {
	Token        string `json:"session_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	AdminID      int64  `json:"admin_id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	IsSuperAdmin bool   `json:"is_super_admin"`
}

// Login authenticates an admin and returns a JWT session token.
// POST /api/v1/session
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	admin, err := h.authSvc.Authenticate(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	case errors.Is(err, service.ErrAccountDisabled):
		writeError(w, http.StatusUnauthorized, "Account is disabled")
		return
	case err != nil:
		h.logger.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Authentication error")
		return
	}

	token, err := h.authSvc.IssueJWT(r.Context(), admin, h.ttl)
	if err != nil {
		h.logger.Error("issue session token", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:        token,
		TokenType:    "bearer",
		ExpiresIn:    int(h.ttl.Seconds()),
		AdminID:      admin.ID,
		Email:        admin.Email,
		Name:         admin.Name,
		Role:         string(admin.Role),
		IsSuperAdmin: admin.IsSuperAdmin(),
	})
}

// Logout acknowledges the end of a session. Tokens are stateless, so the
// client is responsible for discarding its copy.
// DELETE /api/v1/session
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Session invalidated",
	})
}
