package login

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"stockoverflow/frontend/users"
	"stockoverflow/infrastructure/argon"
	"stockoverflow/infrastructure/sqlite"
	"stockoverflow/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnknownBadge       = errors.New("unknown badge")
	ErrInactive           = errors.New("user account is disabled")
	ErrTempExpired        = errors.New("temporary access has expired")
)

// authenticateUser checks a username/password pair.
func authenticateUser(ctx context.Context, db *sqlite.DB, username, password string, now time.Time) (models.User, error) {
	user, err := users.FindByUsername(ctx, db, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}
	if user.PasswordHash == "" {
		return models.User{}, ErrInvalidCredentials
	}
	ok, err := argon.Verify(password, user.PasswordHash)
	if err != nil {
		return models.User{}, err
	}
	if !ok {
		return models.User{}, ErrInvalidCredentials
	}
	return user, canSignIn(user, now)
}

// authenticateBadge resolves a scanned badge to its user. Badges carry no secret.
func authenticateBadge(ctx context.Context, db *sqlite.DB, badge string, now time.Time) (models.User, error) {
	badge = strings.TrimSpace(badge)
	if badge == "" {
		return models.User{}, ErrUnknownBadge
	}
	user, err := users.FindByUniqueID(ctx, db, badge)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUnknownBadge
	}
	if err != nil {
		return models.User{}, err
	}
	return user, canSignIn(user, now)
}

func canSignIn(user models.User, now time.Time) error {
	if !user.IsActive {
		return ErrInactive
	}
	if user.TempExpired(now) {
		return ErrTempExpired
	}
	return nil
}
