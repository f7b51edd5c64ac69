package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pestguard-backend/pkg/enums"
)

// Event is one variant of booking audit payload. Each variant fixes the
// metadata its event type may carry.
type Event interface {
	Type() enums.BookingEventType
}

type Created struct{}

// CreatedByAdmin records a staff member booking on behalf of a customer or lead.
type CreatedByAdmin struct {
	OwnerKind enums.CustomerTagKind `json:"owner_kind"`
	OwnerID   uuid.UUID             `json:"owner_id"`
}

type Accepted struct{}

type Assigned struct {
	WorkerID uuid.UUID `json:"worker_id"`
}

type Reassigned struct {
	WorkerID         uuid.UUID  `json:"worker_id"`
	PreviousWorkerID *uuid.UUID `json:"previous_worker_id,omitempty"`
}

type Completed struct{}

type Cancelled struct{}

// Expired is written by the system when a pending booking outlives its start.
type Expired struct {
	StartsAt time.Time `json:"starts_at"`
}

type Rescheduled struct {
	FromStartsAt time.Time `json:"from_starts_at"`
	FromEndsAt   time.Time `json:"from_ends_at"`
	ToStartsAt   time.Time `json:"to_starts_at"`
	ToEndsAt     time.Time `json:"to_ends_at"`
	NotesChanged bool      `json:"notes_changed,omitempty"`
}

type NotesUpdated struct{}

func (Created) Type() enums.BookingEventType        { return enums.BookingEventCreated }
func (CreatedByAdmin) Type() enums.BookingEventType { return enums.BookingEventCreatedByAdmin }
func (Accepted) Type() enums.BookingEventType       { return enums.BookingEventAccepted }
func (Assigned) Type() enums.BookingEventType       { return enums.BookingEventAssigned }
func (Reassigned) Type() enums.BookingEventType     { return enums.BookingEventReassigned }
func (Completed) Type() enums.BookingEventType      { return enums.BookingEventCompleted }
func (Cancelled) Type() enums.BookingEventType      { return enums.BookingEventCancelled }
func (Expired) Type() enums.BookingEventType        { return enums.BookingEventExpired }
func (Rescheduled) Type() enums.BookingEventType    { return enums.BookingEventRescheduled }
func (NotesUpdated) Type() enums.BookingEventType   { return enums.BookingEventNotesUpdated }

// Decode rebuilds the typed variant from a stored row.
func Decode(eventType enums.BookingEventType, metadata json.RawMessage) (Event, error) {
	switch eventType {
	case enums.BookingEventCreated:
		return Created{}, nil
	case enums.BookingEventAccepted:
		return Accepted{}, nil
	case enums.BookingEventCompleted:
		return Completed{}, nil
	case enums.BookingEventCancelled:
		return Cancelled{}, nil
	case enums.BookingEventNotesUpdated:
		return NotesUpdated{}, nil
	case enums.BookingEventCreatedByAdmin:
		return decodeAs[CreatedByAdmin](metadata)
	case enums.BookingEventAssigned:
		return decodeAs[Assigned](metadata)
	case enums.BookingEventReassigned:
		return decodeAs[Reassigned](metadata)
	case enums.BookingEventExpired:
		return decodeAs[Expired](metadata)
	case enums.BookingEventRescheduled:
		return decodeAs[Rescheduled](metadata)
	}
	return nil, fmt.Errorf("unknown booking event type %q", eventType)
}

func decodeAs[T Event](raw json.RawMessage) (Event, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s metadata: %w", v.Type(), err)
	}
	return v, nil
}
