package models

import (
	"time"

	"github.com/google/uuid"
)

// Lead is a prospective customer who has not registered yet.
type Lead struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	PublicID  uuid.UUID `gorm:"column:public_id;type:uuid;not null;uniqueIndex"`
	Email     string    `gorm:"column:email;type:text;not null;uniqueIndex"`
	FirstName *string   `gorm:"column:first_name"`
	LastName  *string   `gorm:"column:last_name"`
	Phone     *string   `gorm:"column:phone"`
	Address   *string   `gorm:"column:address"`
	CRMTag
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
