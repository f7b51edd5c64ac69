package bookings

import (
	"time"

	"github.com/google/uuid"

	bookingsvc "github.com/angelmondragon/pestguard-backend/internal/bookings"
)

type createRequest struct {
	ServiceID      uuid.UUID    `json:"service_id" validate:"required"`
	StartsAt       time.Time    `json:"starts_at" validate:"required"`
	EndsAt         time.Time    `json:"ends_at" validate:"required"`
	Address        *string      `json:"address,omitempty" validate:"omitempty,max=500"`
	Notes          *string      `json:"notes,omitempty"`
	CustomerUserID *uuid.UUID   `json:"customer_user_id,omitempty"`
	Lead           *leadRequest `json:"lead,omitempty"`
}

type leadRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,max=100"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Address   *string `json:"address,omitempty" validate:"omitempty,max=500"`
}

func (p createRequest) toInput() bookingsvc.CreateInput {
	input := bookingsvc.CreateInput{
		ServiceID: p.ServiceID,
		StartsAt:  p.StartsAt,
		EndsAt:    p.EndsAt,
		Address:   p.Address,
		Notes:     p.Notes,
		Owner:     bookingsvc.OwnerSelector{CustomerID: p.CustomerUserID},
	}
	if p.Lead != nil {
		input.Owner.Lead = &bookingsvc.LeadInput{
			Email:     p.Lead.Email,
			FirstName: p.Lead.FirstName,
			LastName:  p.Lead.LastName,
			Phone:     p.Lead.Phone,
			Address:   p.Lead.Address,
		}
	}
	return input
}

type patchRequest struct {
	StartsAt *time.Time `json:"starts_at,omitempty"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`
	Notes    *string    `json:"notes,omitempty"`
}

func (p patchRequest) toPatch() bookingsvc.BookingPatch {
	return bookingsvc.BookingPatch{StartsAt: p.StartsAt, EndsAt: p.EndsAt, Notes: p.Notes}
}

// assignRequest accepts both admin payload shapes.
type assignRequest struct {
	WorkerUserID  *uuid.UUID  `json:"workerUserId,omitempty"`
	WorkerUserIDs []uuid.UUID `json:"workerUserIds,omitempty"`
}

func (p assignRequest) toInput() bookingsvc.AssignInput {
	return bookingsvc.AssignInput{WorkerID: p.WorkerUserID, WorkerIDs: p.WorkerUserIDs}
}

type reassignRequest struct {
	WorkerUserID uuid.UUID `json:"workerUserId" validate:"required"`
}
