package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"stockoverflow/frontend/shared/respond"
	"stockoverflow/infrastructure/argon"
	"stockoverflow/infrastructure/rbac"
	"stockoverflow/infrastructure/sqlite"
	"stockoverflow/models"
)

var (
	ErrUsernameRequired   = errors.New("username is required")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidRole        = errors.New("invalid role")
	ErrSuperuserProtected = errors.New("superuser cannot be deleted or deactivated")
	ErrUniqueIDExhausted  = errors.New("could not allocate a free unique id")
	ErrAdminOnly          = errors.New("only admins can grant or change admin accounts")
)

const (
	uniqueIDLength   = 6
	uniqueIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

func notFound(id int64) *respond.NotFoundError {
	return respond.NotFound("detail", "No User matches id %d.", id)
}

// NewUniqueID returns a random 6 character badge code from A-Z and 0-9.
func NewUniqueID() string {
	var b strings.Builder
	for i := 0; i < uniqueIDLength; i++ {
		b.WriteByte(uniqueIDAlphabet[rand.Intn(len(uniqueIDAlphabet))])
	}
	return b.String()
}

// freeUniqueID draws codes until one is unused.
func freeUniqueID(ctx context.Context, tx bun.Tx) (string, error) {
	for attempt := 0; attempt < 64; attempt++ {
		code := NewUniqueID()
		taken, err := tx.NewSelect().Model((*models.User)(nil)).Where("unique_id = ?", code).Exists(ctx)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrUniqueIDExhausted
}

func ListUsers(ctx context.Context, db *sqlite.DB) ([]UserView, error) {
	var rows []models.User
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&rows).OrderExpr("id ASC").Scan(ctx)
	})
	views := make([]UserView, 0, len(rows))
	for _, u := range rows {
		views = append(views, toView(u))
	}
	return views, err
}

func GetUser(ctx context.Context, db *sqlite.DB, id int64) (UserView, error) {
	var user models.User
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = loadUser(ctx, tx, id)
		return err
	})
	return toView(user), err
}

func loadUser(ctx context.Context, tx bun.Tx, id int64) (models.User, error) {
	var user models.User
	err := tx.NewSelect().Model(&user).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return user, notFound(id)
	}
	return user, err
}

// FindByUsername matches case-insensitively. sql.ErrNoRows when absent.
func FindByUsername(ctx context.Context, db *sqlite.DB, username string) (models.User, error) {
	var user models.User
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&user).
			Where("LOWER(username) = ?", strings.ToLower(strings.TrimSpace(username))).
			Limit(1).Scan(ctx)
	})
	return user, err
}

// CheckGrant refuses a non-admin actor assigning the admin role or touching an admin
// account. targetID 0 means a new user.
func CheckGrant(ctx context.Context, db *sqlite.DB, actorRole string, targetID int64, role *string) error {
	if role != nil && !rbac.CanGrant(actorRole, strings.TrimSpace(*role)) {
		return ErrAdminOnly
	}
	if targetID == 0 {
		return nil
	}
	target, err := FindByID(ctx, db, targetID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if !rbac.CanGrant(actorRole, target.Role) {
		return ErrAdminOnly
	}
	return nil
}

// FindByID loads the current row for a token subject. sql.ErrNoRows when absent.
func FindByID(ctx context.Context, db *sqlite.DB, id int64) (models.User, error) {
	var user models.User
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&user).Where("id = ?", id).Limit(1).Scan(ctx)
	})
	return user, err
}

// FindByUniqueID resolves a badge code. sql.ErrNoRows when absent.
func FindByUniqueID(ctx context.Context, db *sqlite.DB, uniqueID string) (models.User, error) {
	var user models.User
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&user).Where("unique_id = ?", strings.TrimSpace(uniqueID)).Limit(1).Scan(ctx)
	})
	return user, err
}

func parseExpiry(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, respond.Invalid("temp_expiry", "Datetime has wrong format.")
}

func usernameTaken(ctx context.Context, tx bun.Tx, username string, exceptID int64) (bool, error) {
	q := tx.NewSelect().Model((*models.User)(nil)).Where("LOWER(username) = ?", strings.ToLower(username))
	if exceptID > 0 {
		q = q.Where("id <> ?", exceptID)
	}
	return q.Exists(ctx)
}

// CreateUser stores a user with a fresh badge code. The password is optional; when given it
// must pass the policy and is stored as an argon2id hash.
func CreateUser(ctx context.Context, db *sqlite.DB, req UserRequest) (UserView, error) {
	now := time.Now().UTC()
	user := models.User{IsActive: true, CreatedAt: now, UpdatedAt: now}
	user.Username = trimmed(req.Username)
	if user.Username == "" {
		return UserView{}, ErrUsernameRequired
	}
	user.Role = trimmed(req.Role)
	if !rbac.ValidRole(user.Role) {
		return UserView{}, ErrInvalidRole
	}
	user.FirstName = trimmed(req.FirstName)
	user.LastName = trimmed(req.LastName)
	if req.IsActive.Set {
		user.IsActive = req.IsActive.Value
	}
	if req.TempExpiry != nil {
		expiry, err := parseExpiry(*req.TempExpiry)
		if err != nil {
			return UserView{}, err
		}
		user.TempExpiry = expiry
	}
	if req.Password != nil && *req.Password != "" {
		pw := *req.Password
		if err := ValidatePasswordPolicy(pw); err != nil {
			return UserView{}, respond.Invalid("password", err.Error())
		}
		hash, err := argon.Hash(pw)
		if err != nil {
			return UserView{}, err
		}
		user.PasswordHash = hash
	}

	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		taken, err := usernameTaken(ctx, tx, user.Username, 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrUsernameExists
		}
		user.UniqueID, err = freeUniqueID(ctx, tx)
		if err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(&user).Exec(ctx); err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		return nil
	})
	return toView(user), err
}

// UpdateUser applies the set fields of req. unique_id is never changed here.
func UpdateUser(ctx context.Context, db *sqlite.DB, id int64, req UserRequest) (UserView, error) {
	var user models.User
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = loadUser(ctx, tx, id)
		if err != nil {
			return err
		}
		if req.Username != nil {
			name := strings.TrimSpace(*req.Username)
			if name == "" {
				return ErrUsernameRequired
			}
			taken, err := usernameTaken(ctx, tx, name, id)
			if err != nil {
				return err
			}
			if taken {
				return ErrUsernameExists
			}
			user.Username = name
		}
		if req.Role != nil {
			role := strings.TrimSpace(*req.Role)
			if !rbac.ValidRole(role) {
				return ErrInvalidRole
			}
			user.Role = role
		}
		if req.FirstName != nil {
			user.FirstName = strings.TrimSpace(*req.FirstName)
		}
		if req.LastName != nil {
			user.LastName = strings.TrimSpace(*req.LastName)
		}
		if req.IsActive.Set {
			if user.IsSuperuser && !req.IsActive.Value {
				return ErrSuperuserProtected
			}
			user.IsActive = req.IsActive.Value
		}
		if req.TempExpiry != nil {
			expiry, err := parseExpiry(*req.TempExpiry)
			if err != nil {
				return err
			}
			user.TempExpiry = expiry
		}
		if req.Password != nil && *req.Password != "" {
			pw := *req.Password
			if err := ValidatePasswordPolicy(pw); err != nil {
				return respond.Invalid("password", err.Error())
			}
			hash, err := argon.Hash(pw)
			if err != nil {
				return err
			}
			user.PasswordHash = hash
		}
		user.UpdatedAt = time.Now().UTC()
		_, err = tx.NewUpdate().Model(&user).WherePK().Exec(ctx)
		return err
	})
	return toView(user), err
}

func DeleteUser(ctx context.Context, db *sqlite.DB, id int64) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		user, err := loadUser(ctx, tx, id)
		if err != nil {
			return err
		}
		if user.IsSuperuser {
			return ErrSuperuserProtected
		}
		_, err = tx.NewDelete().Model((*models.User)(nil)).Where("id = ?", id).Exec(ctx)
		return err
	})
}

// EnsureSuperuser creates or refreshes an active admin superuser with the given password.
func EnsureSuperuser(ctx context.Context, db *sqlite.DB, username, password string) (models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.User{}, ErrUsernameRequired
	}
	if err := ValidatePasswordPolicy(password); err != nil {
		return models.User{}, err
	}
	hash, err := argon.Hash(password)
	if err != nil {
		return models.User{}, err
	}

	var user models.User
	err = db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now().UTC()
		err := tx.NewSelect().Model(&user).Where("LOWER(username) = ?", strings.ToLower(username)).Limit(1).Scan(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			code, err := freeUniqueID(ctx, tx)
			if err != nil {
				return err
			}
			user = models.User{
				Username:     username,
				PasswordHash: hash,
				Role:         rbac.RoleAdmin,
				UniqueID:     code,
				IsActive:     true,
				IsSuperuser:  true,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			_, err = tx.NewInsert().Model(&user).Exec(ctx)
			return err
		case err != nil:
			return err
		}
		user.PasswordHash = hash
		user.Role = rbac.RoleAdmin
		user.IsActive = true
		user.IsSuperuser = true
		user.UpdatedAt = now
		_, err = tx.NewUpdate().Model(&user).WherePK().Exec(ctx)
		return err
	})
	return user, err
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
