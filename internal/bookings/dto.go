package bookings

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pestguard-backend/internal/assignments"
	"github.com/angelmondragon/pestguard-backend/internal/audit"
	"github.com/angelmondragon/pestguard-backend/pkg/enums"
)

// BookingDTO is the booking summary returned by every operation.
type BookingDTO struct {
	ID          uuid.UUID           `json:"id"`
	Status      enums.BookingStatus `json:"status"`
	ServiceID   uuid.UUID           `json:"service_id"`
	Service     string              `json:"service_title"`
	CustomerID  *uuid.UUID          `json:"customer_id,omitempty"`
	LeadID      *uuid.UUID          `json:"lead_id,omitempty"`
	WorkerID    *uuid.UUID          `json:"worker_id,omitempty"`
	StartsAt    time.Time           `json:"starts_at"`
	EndsAt      time.Time           `json:"ends_at"`
	Address     string              `json:"address"`
	Notes       *string             `json:"notes,omitempty"`
	AcceptedAt  *time.Time          `json:"accepted_at,omitempty"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	CompletedBy *uuid.UUID          `json:"completed_by,omitempty"`
	CancelledAt *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

func toDTO(s *Summary) *BookingDTO {
	return &BookingDTO{
		ID:          s.PublicID,
		Status:      s.Status,
		ServiceID:   s.ServicePublicID,
		Service:     s.ServiceTitle,
		CustomerID:  s.CustomerPublicID,
		LeadID:      s.LeadPublicID,
		WorkerID:    s.WorkerPublicID,
		StartsAt:    s.StartsAt,
		EndsAt:      s.EndsAt,
		Address:     s.Address,
		Notes:       s.Notes,
		AcceptedAt:  s.AcceptedAt,
		CompletedAt: s.CompletedAt,
		CancelledAt: s.CancelledAt,
		CreatedAt:   s.CreatedAt,
	}
}

// EventDTO is one audit entry as exposed on the history endpoint.
type EventDTO struct {
	ID        int64                  `json:"id"`
	Type      enums.BookingEventType `json:"type"`
	ActorID   *uuid.UUID             `json:"actor_id"`
	Metadata  json.RawMessage        `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

func eventDTOs(entries []audit.Entry) []EventDTO {
	out := make([]EventDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, EventDTO{
			ID:        e.ID,
			Type:      e.Type,
			ActorID:   e.ActorPublicID,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

// AssignmentDTO is one row of a booking's assignment history.
type AssignmentDTO struct {
	WorkerID     uuid.UUID  `json:"worker_id"`
	AssignedBy   *uuid.UUID `json:"assigned_by,omitempty"`
	AssignedAt   time.Time  `json:"assigned_at"`
	UnassignedAt *time.Time `json:"unassigned_at,omitempty"`
	Current      bool       `json:"current"`
}

func assignmentDTOs(entries []assignments.HistoryEntry) []AssignmentDTO {
	out := make([]AssignmentDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, AssignmentDTO{
			WorkerID:     e.WorkerPublicID,
			AssignedBy:   e.AssignedByPublicID,
			AssignedAt:   e.AssignedAt,
			UnassignedAt: e.UnassignedAt,
			Current:      e.IsCurrent,
		})
	}
	return out
}

// CreateInput carries a new booking request. Owner left empty books for the actor.
type CreateInput struct {
	ServiceID uuid.UUID
	StartsAt  time.Time
	EndsAt    time.Time
	Address   *string
	Notes     *string
	Owner     OwnerSelector
}

// OwnerSelector lets staff book for an existing customer or for a lead.
type OwnerSelector struct {
	CustomerID *uuid.UUID
	Lead       *LeadInput
}

func (o OwnerSelector) IsSelf() bool {
	return o.CustomerID == nil && o.Lead == nil
}

// LeadInput identifies a prospective customer by email.
type LeadInput struct {
	Email     string
	FirstName *string
	LastName  *string
	Phone     *string
	Address   *string
}

// AssignInput accepts the single and list payload shapes; both must name one worker.
type AssignInput struct {
	WorkerID  *uuid.UUID
	WorkerIDs []uuid.UUID
}

// ListParams filters the caller's bookings. Assigned lists the worker's current jobs.
type ListParams struct {
	Status   *enums.BookingStatus
	Assigned bool
	Limit    int
	Cursor   string
}
