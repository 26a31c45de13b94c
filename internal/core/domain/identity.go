package domain

import "time"

// User mirrors the persisted representation in the users table.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	RoleID       string
	Role         Role
	IsConfirmed  bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserUpdate carries the mutable profile fields of a user. Nil fields are left unchanged.
type UserUpdate struct {
	Name        *string
	Email       *string
	RoleName    *string
	IsConfirmed *bool
	IsActive    *bool
}

// UserFilter narrows user listings.
type UserFilter struct {
	Limit  uint64
	Offset uint64
}
