package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-mfa/internal/audit"
	"github.com/nerrad567/gray-logic-mfa/internal/auth"
	"github.com/nerrad567/gray-logic-mfa/internal/realm"
)

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Realm    string `json:"realm"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the response body for POST /auth/login.
type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	UserID      string `json:"user_id"`
	Realm       string `json:"realm"`

	// Permissions lets clients hide operations the role cannot perform.
	Permissions []auth.Permission `json:"permissions"`
}

// handleLogin authenticates a user within a realm and returns a JWT.
// The site default realm applies when the body names none.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	realmPath := req.Realm
	if realmPath == "" {
		realmPath = s.siteCfg.DefaultRealm
	}
	rlm, err := realm.Parse(realmPath)
	if err != nil {
		writeBadRequest(w, "invalid realm")
		return
	}

	user, err := auth.Authenticate(r.Context(), s.users, rlm.String(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUserInactive):
		writeUnauthorized(w, "invalid credentials")
		return
	case err != nil:
		s.logger.Error("login failed", "error", err, "realm", rlm.String())
		writeInternalError(w, "login failed")
		return
	}

	ttl := time.Duration(s.secCfg.JWT.AccessTokenTTL) * time.Minute
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	token, err := auth.GenerateAccessToken(user, []byte(s.secCfg.JWT.Secret), ttl)
	if err != nil {
		s.logger.Error("token generation failed", "error", err)
		writeInternalError(w, "failed to generate token")
		return
	}

	if s.audit != nil {
		s.audit.Record(&audit.AuditLog{
			Action:     audit.ActionLogin,
			EntityType: "user",
			EntityID:   user.ID,
			UserID:     user.ID,
			Realm:      user.Realm,
			Details:    map[string]any{"ip": clientIP(r)},
		})
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(ttl.Seconds()),
		UserID:      user.ID,
		Realm:       user.Realm,
		Permissions: auth.PermissionsForRole(user.Role),
	})
}
