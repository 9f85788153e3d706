package server

import (
	"net/http"
	"strings"

	"github.com/hbarro/lares/internal/auth"
	"github.com/hbarro/lares/internal/common"
)

// handleAuthToken handles POST /api/auth/token. It issues a signed session
// token for the given owner handle. Token issuance is only open outside
// production; in production the reverse proxy in front of the server is
// expected to mint tokens after real identity-provider sign-in.
func (s *Server) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Token endpoint disabled in production")
		return
	}

	var req struct {
		Owner string `json:"owner"`
		Email string `json:"email"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Owner == "" {
		WriteError(w, http.StatusBadRequest, "owner is required")
		return
	}

	token, err := auth.SignToken(&common.Session{Owner: req.Owner, Email: req.Email}, &s.app.Config.Auth)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to sign token")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_in": int(s.app.Config.Auth.GetTokenExpiry().Seconds()),
	})
}

// handleAuthValidate handles GET /api/auth/validate. It reports whether the
// presented bearer token is valid and which owner it identifies.
func (s *Server) handleAuthValidate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		WriteError(w, http.StatusUnauthorized, "bearer token required")
		return
	}

	session, err := auth.ValidateToken(strings.TrimPrefix(authHeader, "Bearer "), []byte(s.app.Config.Auth.JWTSecret))
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"owner": session.Owner,
		"email": session.Email,
	})
}
