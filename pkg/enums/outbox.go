package enums

import "fmt"

// OutboxAggregateType names the entity an outbox row describes.
type OutboxAggregateType string

const (
	AggregateBooking OutboxAggregateType = "booking"
	AggregateUser    OutboxAggregateType = "user"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateBooking,
	AggregateUser,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType is the routing key consumers subscribe to.
type OutboxEventType string

const (
	EventBookingCreated       OutboxEventType = "booking.created"
	EventBookingStatusChanged OutboxEventType = "booking.status_changed"
	EventBookingAssigned      OutboxEventType = "booking.assigned"
	EventBookingUpdated       OutboxEventType = "booking.updated"
	EventLeadPromoted         OutboxEventType = "lead.promoted"
)

var validOutboxEventTypes = []OutboxEventType{
	EventBookingCreated,
	EventBookingStatusChanged,
	EventBookingAssigned,
	EventBookingUpdated,
	EventLeadPromoted,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
