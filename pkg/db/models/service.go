package models

import (
	"time"

	"github.com/google/uuid"
)

// Service is a bookable offering from the catalogue.
type Service struct {
	ID              int64     `gorm:"column:id;primaryKey;autoIncrement"`
	PublicID        uuid.UUID `gorm:"column:public_id;type:uuid;not null;uniqueIndex"`
	Title           string    `gorm:"column:title;not null"`
	DurationMinutes int       `gorm:"column:duration_minutes;not null"`
	IsActive        bool      `gorm:"column:is_active;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}
