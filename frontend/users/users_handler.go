package users

import (
	"errors"
	"net/http"

	sessioncontext "stockoverflow/frontend/shared/context"
	"stockoverflow/frontend/shared/respond"
	"stockoverflow/infrastructure/sqlite"
)

// userErr turns the package sentinels into field errors before the shared mapping.
func userErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrUsernameRequired):
		err = respond.Invalid("username", "This field is required.")
	case errors.Is(err, ErrUsernameExists):
		err = respond.Invalid("username", "A user with that username already exists.")
	case errors.Is(err, ErrInvalidRole):
		err = respond.Invalid("role", "Not a valid role.")
	case errors.Is(err, ErrSuperuserProtected):
		if r.Method == http.MethodDelete {
			respond.Error(w, http.StatusBadRequest, "Superuser cannot be deleted.")
			return
		}
		respond.Error(w, http.StatusBadRequest, "Superuser cannot be deactivated.")
		return
	case errors.Is(err, ErrAdminOnly):
		respond.Error(w, http.StatusForbidden, "Only admins can grant or change admin accounts.")
		return
	}
	respond.Err(w, r, err)
}

func actorRole(r *http.Request) string {
	actor, _ := sessioncontext.GetActorFromContext(r.Context())
	return actor.Role
}

func ListUsersQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := ListUsers(r.Context(), db)
		if err != nil {
			userErr(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, users)
	}
}

func GetUserQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.IDParam(r, "id")
		if err != nil {
			userErr(w, r, err)
			return
		}
		user, err := GetUser(r.Context(), db, id)
		if err != nil {
			userErr(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, user)
	}
}

func CreateUserCommandHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UserRequest
		if err := respond.DecodeForm(r, &req, 1<<20); err != nil {
			userErr(w, r, err)
			return
		}
		if err := CheckGrant(r.Context(), db, actorRole(r), 0, req.Role); err != nil {
			userErr(w, r, err)
			return
		}
		user, err := CreateUser(r.Context(), db, req)
		if err != nil {
			userErr(w, r, err)
			return
		}
		respond.JSON(w, http.StatusCreated, user)
	}
}

func UpdateUserCommandHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.IDParam(r, "id")
		if err != nil {
			userErr(w, r, err)
			return
		}
		var req UserRequest
		if err := respond.DecodeForm(r, &req, 1<<20); err != nil {
			userErr(w, r, err)
			return
		}
		if err := CheckGrant(r.Context(), db, actorRole(r), id, req.Role); err != nil {
			userErr(w, r, err)
			return
		}
		user, err := UpdateUser(r.Context(), db, id, req)
		if err != nil {
			userErr(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, user)
	}
}

func DeleteUserCommandHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.IDParam(r, "id")
		if err != nil {
			userErr(w, r, err)
			return
		}
		if err := CheckGrant(r.Context(), db, actorRole(r), id, nil); err != nil {
			userErr(w, r, err)
			return
		}
		if err := DeleteUser(r.Context(), db, id); err != nil {
			userErr(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
