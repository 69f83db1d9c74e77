package users

import (
	"time"

	"stockoverflow/frontend/shared/respond"
	"stockoverflow/models"
)

// UserRequest is the create/update payload. Password is write-only.
type UserRequest struct {
	Username   *string          `json:"username"`
	FirstName  *string          `json:"first_name"`
	LastName   *string          `json:"last_name"`
	Password   *string          `json:"password"`
	Role       *string          `json:"role"`
	IsActive   respond.FlexBool `json:"is_active"`
	TempExpiry *string          `json:"temp_expiry"`
}

type UserView struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	FullName    string     `json:"full_name"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"is_active"`
	IsSuperuser bool       `json:"is_superuser"`
	UniqueID    string     `json:"unique_id"`
	TempExpiry  *time.Time `json:"temp_expiry"`
}

func toView(u models.User) UserView {
	return UserView{
		ID:          u.ID,
		Username:    u.Username,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		FullName:    u.FullName(),
		Role:        u.Role,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
		UniqueID:    u.UniqueID,
		TempExpiry:  u.TempExpiry,
	}
}
