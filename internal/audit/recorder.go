package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pestguard-backend/pkg/db/models"
	"github.com/angelmondragon/pestguard-backend/pkg/enums"
)

// Entry is a stored event joined with the actor's public id.
type Entry struct {
	ID            int64
	Type          enums.BookingEventType
	ActorUserID   *int64
	ActorPublicID *uuid.UUID
	Metadata      json.RawMessage
	CreatedAt     time.Time
}

// Event decodes the stored metadata into its typed variant.
func (e Entry) Event() (Event, error) {
	return Decode(e.Type, e.Metadata)
}

// Recorder appends booking events. Stored rows are never updated or deleted.
type Recorder struct{}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record inserts one event inside tx. A nil actorID marks a system action.
func (r *Recorder) Record(ctx context.Context, tx *gorm.DB, bookingID int64, actorID *int64, event Event) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if event == nil || !event.Type().IsValid() {
		return errors.New("valid event required")
	}
	metadata, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event metadata: %w", err)
	}
	row := models.BookingEvent{
		BookingID:   bookingID,
		ActorUserID: actorID,
		EventType:   event.Type(),
		Metadata:    metadata,
	}
	return tx.WithContext(ctx).Create(&row).Error
}

// List returns the booking's events oldest first.
func (r *Recorder) List(ctx context.Context, db *gorm.DB, bookingID int64) ([]Entry, error) {
	var entries []Entry
	err := r.query(ctx, db, bookingID).Order("e.id ASC").Scan(&entries).Error
	return entries, err
}

// Latest answers questions like "who completed booking X and when". Returns
// gorm.ErrRecordNotFound when no such event exists.
func (r *Recorder) Latest(ctx context.Context, db *gorm.DB, bookingID int64, eventType enums.BookingEventType) (*Entry, error) {
	var entries []Entry
	err := r.query(ctx, db, bookingID).
		Where("e.event_type = ?", eventType).
		Order("e.id DESC").
		Limit(1).
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &entries[0], nil
}

func (r *Recorder) query(ctx context.Context, db *gorm.DB, bookingID int64) *gorm.DB {
	return db.WithContext(ctx).
		Table("booking_events AS e").
		Select("e.id, e.event_type AS type, e.actor_user_id, u.public_id AS actor_public_id, e.metadata, e.created_at").
		Joins("LEFT JOIN users u ON u.id = e.actor_user_id").
		Where("e.booking_id = ?", bookingID)
}
