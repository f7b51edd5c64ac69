package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pestguard-backend/pkg/enums"
)

// User is a registered customer or staff member.
type User struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	PublicID     uuid.UUID `gorm:"column:public_id;type:uuid;not null;uniqueIndex"`
	Email        string    `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	FirstName    string    `gorm:"column:first_name;not null"`
	LastName     string    `gorm:"column:last_name;not null"`
	Phone        *string   `gorm:"column:phone"`
	Address      *string   `gorm:"column:address"`
	CRMTag
	IsActive    bool       `gorm:"column:is_active;not null"`
	LastLoginAt *time.Time `gorm:"column:last_login_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	Roles []UserRole `gorm:"foreignKey:UserID;references:ID"`
}

// RoleSet flattens the preloaded role rows.
func (u *User) RoleSet() []enums.Role {
	roles := make([]enums.Role, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, r.Role)
	}
	return roles
}

// UserRole grants one role to one user.
type UserRole struct {
	UserID    int64      `gorm:"column:user_id;primaryKey"`
	Role      enums.Role `gorm:"column:role;type:user_role;primaryKey"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// CRMTag is the manual classification mirrored onto users and leads.
type CRMTag struct {
	Tag          *string    `gorm:"column:tag"`
	TagNote      *string    `gorm:"column:tag_note"`
	TagUpdatedBy *int64     `gorm:"column:tag_updated_by"`
	TagUpdatedAt *time.Time `gorm:"column:tag_updated_at"`
}
