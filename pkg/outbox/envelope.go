package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who produced the event. Nil for system actions.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Roles  []string  `json:"roles,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// BookingStatusChanged is the data block for booking.status_changed.
type BookingStatusChanged struct {
	BookingID  uuid.UUID `json:"bookingId"`
	FromStatus string    `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
}

// BookingCreated is the data block for booking.created.
type BookingCreated struct {
	BookingID uuid.UUID `json:"bookingId"`
	ServiceID uuid.UUID `json:"serviceId"`
	StartsAt  time.Time `json:"startsAt"`
	EndsAt    time.Time `json:"endsAt"`
	OwnerKind string    `json:"ownerKind"`
	OwnerID   uuid.UUID `json:"ownerId"`
}

// BookingAssigned is the data block for booking.assigned.
type BookingAssigned struct {
	BookingID        uuid.UUID  `json:"bookingId"`
	WorkerID         uuid.UUID  `json:"workerId"`
	PreviousWorkerID *uuid.UUID `json:"previousWorkerId,omitempty"`
}

// BookingUpdated is the data block for booking.updated.
type BookingUpdated struct {
	BookingID    uuid.UUID `json:"bookingId"`
	StartsAt     time.Time `json:"startsAt"`
	EndsAt       time.Time `json:"endsAt"`
	NotesChanged bool      `json:"notesChanged"`
}

// LeadPromoted is the data block for lead.promoted.
type LeadPromoted struct {
	LeadID        uuid.UUID `json:"leadId"`
	UserID        uuid.UUID `json:"userId"`
	BookingsMoved int64     `json:"bookingsMoved"`
}
