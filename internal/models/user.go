package models

import (
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole validates a role string. An empty string maps to RoleUser.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case "", RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", ErrInvalidRole
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	ID                string
	Email             string
	PasswordHash      string
	Role              Role
	ResetTokenHash    *string    // SHA-256 of the outstanding reset token
	ResetExpires      *time.Time // set together with ResetTokenHash
	PasswordChangedAt *time.Time // sessions issued before this are rejected
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// UserSummary is the admin listing view of a user.
type UserSummary struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	ScanCount int64     `json:"scanCount"`
}
