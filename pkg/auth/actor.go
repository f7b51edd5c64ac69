package auth

import (
	"slices"

	"github.com/google/uuid"

	"github.com/angelmondragon/pestguard-backend/pkg/enums"
)

// Actor is the authenticated caller handed to every booking operation.
type Actor struct {
	UserID uuid.UUID
	Roles  []enums.Role
}

// NewActor builds an Actor, dropping unknown and duplicate roles.
func NewActor(userID uuid.UUID, roles ...enums.Role) Actor {
	clean := make([]enums.Role, 0, len(roles))
	for _, r := range roles {
		if r.IsValid() && !slices.Contains(clean, r) {
			clean = append(clean, r)
		}
	}
	return Actor{UserID: userID, Roles: clean}
}

// IsZero reports whether no identity was resolved.
func (a Actor) IsZero() bool {
	return a.UserID == uuid.Nil
}

func (a Actor) HasRole(role enums.Role) bool {
	return slices.Contains(a.Roles, role)
}

func (a Actor) HasAnyRole(roles ...enums.Role) bool {
	for _, r := range roles {
		if a.HasRole(r) {
			return true
		}
	}
	return false
}

// IsStaff reports whether the actor may administer any booking.
func (a Actor) IsStaff() bool {
	return a.HasAnyRole(enums.RoleAdmin, enums.RoleSuperuser)
}

// RoleNames returns the roles as plain strings for logs and event payloads.
func (a Actor) RoleNames() []string {
	names := make([]string, 0, len(a.Roles))
	for _, r := range a.Roles {
		names = append(names, r.String())
	}
	return names
}
