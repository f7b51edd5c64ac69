package bookings

import (
	"strings"
	"time"

	"github.com/angelmondragon/pestguard-backend/pkg/enums"
)

// Patch converts into the column set written by a single UPDATE.
type Patch interface {
	Columns() map[string]any
}

type statusPatch struct {
	Status      enums.BookingStatus
	AcceptedAt  *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
}

func (p statusPatch) Columns() map[string]any {
	cols := map[string]any{"status": p.Status}
	if p.AcceptedAt != nil {
		cols["accepted_at"] = *p.AcceptedAt
	}
	if p.CompletedAt != nil {
		cols["completed_at"] = *p.CompletedAt
	}
	if p.CancelledAt != nil {
		cols["cancelled_at"] = *p.CancelledAt
	}
	return cols
}

// BookingPatch is a customer edit. Nil fields are left unchanged; an empty
// Notes string clears the notes.
type BookingPatch struct {
	StartsAt *time.Time
	EndsAt   *time.Time
	Notes    *string
}

func (p BookingPatch) IsEmpty() bool {
	return p.StartsAt == nil && p.EndsAt == nil && p.Notes == nil
}

func (p BookingPatch) TouchesSchedule() bool {
	return p.StartsAt != nil || p.EndsAt != nil
}

func (p BookingPatch) Columns() map[string]any {
	cols := map[string]any{}
	if p.StartsAt != nil {
		cols["starts_at"] = p.StartsAt.UTC()
	}
	if p.EndsAt != nil {
		cols["ends_at"] = p.EndsAt.UTC()
	}
	if p.Notes != nil {
		cols["notes"] = normalizeNotes(p.Notes)
	}
	return cols
}

func normalizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
