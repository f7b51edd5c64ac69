package enums

import "fmt"

// BookingEventType maps to the booking_event_type enum in Postgres.
type BookingEventType string

const (
	BookingEventCreated        BookingEventType = "created"
	BookingEventCreatedByAdmin BookingEventType = "created_by_admin"
	BookingEventAccepted       BookingEventType = "accepted"
	BookingEventAssigned       BookingEventType = "assigned"
	BookingEventReassigned     BookingEventType = "reassigned"
	BookingEventCompleted      BookingEventType = "completed"
	BookingEventCancelled      BookingEventType = "cancelled"
	BookingEventExpired        BookingEventType = "expired"
	BookingEventRescheduled    BookingEventType = "rescheduled"
	BookingEventNotesUpdated   BookingEventType = "notes_updated"
)

var validBookingEventTypes = []BookingEventType{
	BookingEventCreated,
	BookingEventCreatedByAdmin,
	BookingEventAccepted,
	BookingEventAssigned,
	BookingEventReassigned,
	BookingEventCompleted,
	BookingEventCancelled,
	BookingEventExpired,
	BookingEventRescheduled,
	BookingEventNotesUpdated,
}

// IsValid reports whether the value is a known BookingEventType.
func (t BookingEventType) IsValid() bool {
	for _, candidate := range validBookingEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseBookingEventType converts raw input into a BookingEventType.
func ParseBookingEventType(value string) (BookingEventType, error) {
	for _, candidate := range validBookingEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid booking event type %q", value)
}
