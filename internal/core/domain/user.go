package domain

import "time"

// Role defines user permission levels
type Role string

const (
	// RoleAdmin can manage provider configuration and other users
	RoleAdmin Role = "admin"
	// RoleMember can link calendars and use the assistant
	RoleMember Role = "member"
)

// User represents an end user of the assistant
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"` // Never serialize
	Role         Role   `json:"role"`
	Active       bool   `json:"active"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// UserSummary provides a safe view of a user
type UserSummary struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	Active bool   `json:"active"`
}

// ToSummary converts User to UserSummary
func (u *User) ToSummary() *UserSummary {
	return &UserSummary{
		ID:     u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Role:   u.Role,
		Active: u.Active,
	}
}

// IsAdmin checks if the user has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
