package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pestguard-backend/pkg/enums"
)

// Booking is a scheduled service visit owned by exactly one customer or lead.
type Booking struct {
	ID             int64               `gorm:"column:id;primaryKey;autoIncrement"`
	PublicID       uuid.UUID           `gorm:"column:public_id;type:uuid;not null;uniqueIndex"`
	CustomerUserID *int64              `gorm:"column:customer_user_id"`
	LeadID         *int64              `gorm:"column:lead_id"`
	ServiceID      int64               `gorm:"column:service_id;not null"`
	StartsAt       time.Time           `gorm:"column:starts_at;not null"`
	EndsAt         time.Time           `gorm:"column:ends_at;not null"`
	Address        string              `gorm:"column:address;not null"`
	Notes          *string             `gorm:"column:notes"`
	Status         enums.BookingStatus `gorm:"column:status;type:booking_status;not null"`
	AcceptedAt     *time.Time          `gorm:"column:accepted_at"`
	CompletedAt    *time.Time          `gorm:"column:completed_at"`
	CancelledAt    *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// OwnedBy reports whether the booking belongs to the registered user.
func (b *Booking) OwnedBy(userID int64) bool {
	return b.CustomerUserID != nil && *b.CustomerUserID == userID
}
