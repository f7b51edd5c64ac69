package models

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/pestguard-backend/pkg/enums"
)

// BookingEvent records an immutable state change on a booking.
type BookingEvent struct {
	ID          int64                  `gorm:"column:id;primaryKey;autoIncrement"`
	BookingID   int64                  `gorm:"column:booking_id;not null"`
	ActorUserID *int64                 `gorm:"column:actor_user_id"`
	EventType   enums.BookingEventType `gorm:"column:event_type;type:booking_event_type;not null"`
	Metadata    json.RawMessage        `gorm:"column:metadata;type:jsonb"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
}
