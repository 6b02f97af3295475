// Package domain contains core concepts of the society broadcaster.
// This file defines Identity and Connection identifiers.
// No runtime, network, or UI logic should be added here.
package domain

type ConnectionID string

type Role string

const (
	RoleResident  Role = "resident"
	RoleCommittee Role = "committee"
	RoleAdmin     Role = "admin"
	RoleSecurity  Role = "security"
)

// Identity is the resolved owner of a connection or a mutation request.
type Identity struct {
	UserID    string `json:"userId" validate:"required"`
	SocietyID string `json:"societyId" validate:"required"`
	Role      Role   `json:"role"`
}

// IsManager reports whether the identity administers its society.
func (i Identity) IsManager() bool {
	return i.Role == RoleAdmin || i.Role == RoleCommittee
}
