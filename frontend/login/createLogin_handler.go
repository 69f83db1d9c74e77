package login

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"stockoverflow/frontend/shared/respond"
	"stockoverflow/infrastructure/auth"
	"stockoverflow/infrastructure/rbac"
	"stockoverflow/infrastructure/sqlite"
	"stockoverflow/models"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	BadgeID  string `json:"badge_id"`
	UniqueID string `json:"unique_id"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	UniqueID  string    `json:"unique_id"`
}

// CreateLoginHandler authenticates username/password and issues a bearer token.
func CreateLoginHandler(db *sqlite.DB, issuer *auth.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := respond.DecodeForm(r, &req, 1<<20); err != nil {
			respond.Err(w, r, err)
			return
		}
		username := strings.TrimSpace(req.Username)
		if username == "" || req.Password == "" {
			respond.Error(w, http.StatusBadRequest, "username and password are required")
			return
		}
		user, err := authenticateUser(r.Context(), db, username, req.Password, time.Now())
		issueToken(w, r, issuer, user, false, err)
	}
}

// BadgeLoginHandler signs in by scanning a badge (unique_id). The token acts with
// rbac.BadgeRole, so elevated users still need a password for admin routes.
func BadgeLoginHandler(db *sqlite.DB, issuer *auth.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := respond.DecodeForm(r, &req, 1<<20); err != nil {
			respond.Err(w, r, err)
			return
		}
		badge := req.BadgeID
		if strings.TrimSpace(badge) == "" {
			badge = req.UniqueID
		}
		if strings.TrimSpace(badge) == "" {
			respond.Error(w, http.StatusBadRequest, "badge_id is required")
			return
		}
		user, err := authenticateBadge(r.Context(), db, badge, time.Now())
		issueToken(w, r, issuer, user, true, err)
	}
}

func issueToken(w http.ResponseWriter, r *http.Request, issuer *auth.Issuer, user models.User, badge bool, err error) {
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnknownBadge):
		respond.Error(w, http.StatusUnauthorized, err.Error())
		return
	case errors.Is(err, ErrInactive), errors.Is(err, ErrTempExpired):
		slog.Info("login refused", slog.String("username", user.Username), slog.String("reason", err.Error()))
		respond.Error(w, http.StatusForbidden, err.Error())
		return
	case err != nil:
		respond.Err(w, r, err)
		return
	}

	issue, role := issuer.Issue, user.Role
	if badge {
		issue, role = issuer.IssueBadge, rbac.BadgeRole(user.Role)
	}
	token, expiresAt, err := issue(user.ID, user.Username, role, user.TempExpiry)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    user.ID,
		Username:  user.Username,
		Role:      role,
		UniqueID:  user.UniqueID,
	})
}
