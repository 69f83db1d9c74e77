package users

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"

	sessioncontext "stockoverflow/frontend/shared/context"
	"stockoverflow/frontend/shared/respond"
	"stockoverflow/infrastructure/argon"
	"stockoverflow/infrastructure/sqlite"
)

func openUsersTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "users-test.db")
	db, err := sqlite.OpenDB(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller unavailable")
	}
	migrationsDir := filepath.Join(filepath.Dir(file), "..", "..", "infrastructure", "sqlite", "migrations")
	if err := sqlite.ApplyMigrations(context.Background(), db, migrationsDir); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func str(s string) *string { return &s }

var uniqueIDPattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

func TestCreateUser_HappyPathStoresHashAndUniqueID(t *testing.T) {
	db := openUsersTestDB(t)

	view, err := CreateUser(context.Background(), db, UserRequest{
		Username:  str("worker2"),
		FirstName: str("Ana"),
		LastName:  str("Lopez"),
		Password:  str("Worker123"),
		Role:      str("worker"),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if !uniqueIDPattern.MatchString(view.UniqueID) {
		t.Fatalf("unexpected unique id %q", view.UniqueID)
	}
	if view.FullName != "Ana Lopez" || !view.IsActive {
		t.Fatalf("unexpected view: %+v", view)
	}

	var passwordHash string
	err = db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT password_hash FROM users WHERE username = ?`, "worker2").Scan(ctx, &passwordHash)
	})
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	ok, err := argon.Verify("Worker123", passwordHash)
	if err != nil || !ok {
		t.Fatalf("expected stored hash to match password, ok=%v err=%v", ok, err)
	}
}

func TestCreateUser_DuplicateUsernameRejectedCaseInsensitive(t *testing.T) {
	db := openUsersTestDB(t)

	if _, err := CreateUser(context.Background(), db, UserRequest{Username: str("CaseUser"), Role: str("worker")}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	_, err := CreateUser(context.Background(), db, UserRequest{Username: str("caseuser"), Role: str("admin")})
	if !errors.Is(err, ErrUsernameExists) {
		t.Fatalf("expected ErrUsernameExists, got %v", err)
	}
}

func TestCreateUser_InvalidRoleAndWeakPasswordRejected(t *testing.T) {
	db := openUsersTestDB(t)

	_, err := CreateUser(context.Background(), db, UserRequest{Username: str("x"), Role: str("owner")})
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}

	_, err = CreateUser(context.Background(), db, UserRequest{Username: str("y"), Role: str("worker"), Password: str("short")})
	var verr *respond.ValidationError
	if !errors.As(err, &verr) || verr.Fields["password"] == "" {
		t.Fatalf("expected password validation error, got %v", err)
	}
}

func TestCreateUser_UniqueIDsDistinct(t *testing.T) {
	db := openUsersTestDB(t)
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		view, err := CreateUser(context.Background(), db, UserRequest{Username: str("u" + strconv.Itoa(i)), Role: str("temp")})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if seen[view.UniqueID] {
			t.Fatalf("duplicate unique id %s", view.UniqueID)
		}
		seen[view.UniqueID] = true
	}
}

func TestUpdateUser_PartialFieldsAndExpiry(t *testing.T) {
	db := openUsersTestDB(t)
	ctx := context.Background()
	created, err := CreateUser(ctx, db, UserRequest{Username: str("temp1"), Role: str("temp")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := UpdateUser(ctx, db, created.ID, UserRequest{
		LastName:   str("Smith"),
		TempExpiry: str("2026-01-02T10:00:00Z"),
		IsActive:   respond.FlexBool{Value: false, Set: true},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Username != "temp1" || updated.LastName != "Smith" || updated.IsActive {
		t.Fatalf("unexpected update: %+v", updated)
	}
	if updated.TempExpiry == nil || updated.TempExpiry.Format("2006-01-02") != "2026-01-02" {
		t.Fatalf("unexpected expiry %v", updated.TempExpiry)
	}
	if updated.UniqueID != created.UniqueID {
		t.Fatalf("unique id must not change")
	}

	_, err = UpdateUser(ctx, db, created.ID, UserRequest{TempExpiry: str("next tuesday")})
	var verr *respond.ValidationError
	if !errors.As(err, &verr) || verr.Fields["temp_expiry"] == "" {
		t.Fatalf("expected temp_expiry error, got %v", err)
	}

	_, err = UpdateUser(ctx, db, 9999, UserRequest{})
	var nf *respond.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSuperuserCannotBeDeletedOrDeactivated(t *testing.T) {
	db := openUsersTestDB(t)
	ctx := context.Background()
	admin, err := EnsureSuperuser(ctx, db, "admin", "Admin1234")
	if err != nil {
		t.Fatalf("ensure superuser: %v", err)
	}

	if err := DeleteUser(ctx, db, admin.ID); !errors.Is(err, ErrSuperuserProtected) {
		t.Fatalf("expected ErrSuperuserProtected, got %v", err)
	}
	_, err = UpdateUser(ctx, db, admin.ID, UserRequest{IsActive: respond.FlexBool{Value: false, Set: true}})
	if !errors.Is(err, ErrSuperuserProtected) {
		t.Fatalf("expected ErrSuperuserProtected on deactivate, got %v", err)
	}

	r := chi.NewRouter()
	r.Delete("/users/{id}", DeleteUserCommandHandler(db))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/users/"+strconv.FormatInt(admin.ID, 10), nil)
	req = req.WithContext(sessioncontext.NewContextWithActor(req.Context(), sessioncontext.Actor{Username: "root", Role: "admin"}))
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Superuser cannot be deleted.") {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestEnsureSuperuser_IsIdempotent(t *testing.T) {
	db := openUsersTestDB(t)
	ctx := context.Background()
	first, err := EnsureSuperuser(ctx, db, "admin", "Admin1234")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := EnsureSuperuser(ctx, db, "ADMIN", "Admin5678")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.ID != second.ID || first.UniqueID != second.UniqueID {
		t.Fatalf("expected same user, got %d/%d", first.ID, second.ID)
	}
	user, err := FindByUsername(ctx, db, "admin")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if ok, _ := argon.Verify("Admin5678", user.PasswordHash); !ok {
		t.Fatalf("expected refreshed password")
	}
	byBadge, err := FindByUniqueID(ctx, db, first.UniqueID)
	if err != nil || byBadge.ID != first.ID {
		t.Fatalf("find by unique id: %v", err)
	}
}

func TestDeleteUser_RemovesRow(t *testing.T) {
	db := openUsersTestDB(t)
	ctx := context.Background()
	created, err := CreateUser(ctx, db, UserRequest{Username: str("gone"), Role: str("worker")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := DeleteUser(ctx, db, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, err := ListUsers(ctx, db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %+v", list)
	}
}

func TestAdminAccountsNeedAnAdminActor(t *testing.T) {
	db := openUsersTestDB(t)
	ctx := context.Background()
	admin, err := CreateUser(ctx, db, UserRequest{Username: str("chief"), Role: str("admin")})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}

	r := chi.NewRouter()
	r.Post("/users", CreateUserCommandHandler(db))
	r.Patch("/users/{id}", UpdateUserCommandHandler(db))
	r.Delete("/users/{id}", DeleteUserCommandHandler(db))
	as := func(role, method, target, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req = req.WithContext(sessioncontext.NewContextWithActor(req.Context(), sessioncontext.Actor{Username: role + "1", Role: role}))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}
	adminPath := "/users/" + strconv.FormatInt(admin.ID, 10)

	if rec := as("manager", http.MethodPost, "/users", `{"username":"upstart","role":"admin"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("manager creating admin: expected 403, got %d %s", rec.Code, rec.Body.String())
	}
	if rec := as("manager", http.MethodPatch, adminPath, `{"first_name":"Changed"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("manager editing admin: expected 403, got %d", rec.Code)
	}
	if rec := as("manager", http.MethodDelete, adminPath, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("manager deleting admin: expected 403, got %d", rec.Code)
	}
	if rec := as("manager", http.MethodPost, "/users", `{"username":"helper","role":"worker"}`); rec.Code != http.StatusCreated {
		t.Fatalf("manager creating worker: expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	worker, err := FindByUsername(ctx, db, "helper")
	if err != nil {
		t.Fatalf("find worker: %v", err)
	}
	if rec := as("manager", http.MethodPatch, "/users/"+strconv.FormatInt(worker.ID, 10), `{"role":"admin"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("manager promoting to admin: expected 403, got %d", rec.Code)
	}
	if rec := as("admin", http.MethodPost, "/users", `{"username":"second","role":"admin"}`); rec.Code != http.StatusCreated {
		t.Fatalf("admin creating admin: expected 201, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestPasswordIsStoredVerbatim(t *testing.T) {
	db := openUsersTestDB(t)
	ctx := context.Background()
	if _, err := CreateUser(ctx, db, UserRequest{Username: str("spacey"), Role: str("worker"), Password: str(" Secret123 ")}); err != nil {
		t.Fatalf("create: %v", err)
	}
	user, err := FindByUsername(ctx, db, "spacey")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if ok, _ := argon.Verify(" Secret123 ", user.PasswordHash); !ok {
		t.Fatalf("expected the password to verify with its spaces")
	}
	if ok, _ := argon.Verify("Secret123", user.PasswordHash); ok {
		t.Fatalf("trimmed password must not verify")
	}
}
