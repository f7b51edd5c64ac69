package enums

import (
	"fmt"
	"strings"
)

// Role maps to the user_role enum in Postgres. A user may hold several.
type Role string

const (
	RoleCustomer  Role = "customer"
	RoleWorker    Role = "worker"
	RoleAdmin     Role = "admin"
	RoleSuperuser Role = "superuser"
)

var validRoles = []Role{
	RoleCustomer,
	RoleWorker,
	RoleAdmin,
	RoleSuperuser,
}

func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsStaff reports whether the role administers bookings.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleSuperuser
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validRoles {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
