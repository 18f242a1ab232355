package models

import "github.com/google/uuid"

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// The authenticated caller, as supplied by the identity provider.
type Identity struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
	Team   string    `json:"team,omitempty"`
	Name   string    `json:"name,omitempty"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin || i.Role == RoleSuperAdmin
}
