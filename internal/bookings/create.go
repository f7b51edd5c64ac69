package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pestguard-backend/internal/audit"
	"github.com/angelmondragon/pestguard-backend/internal/catalog"
	"github.com/angelmondragon/pestguard-backend/internal/leads"
	"github.com/angelmondragon/pestguard-backend/internal/users"
	"github.com/angelmondragon/pestguard-backend/pkg/auth"
	"github.com/angelmondragon/pestguard-backend/pkg/db"
	"github.com/angelmondragon/pestguard-backend/pkg/db/models"
	"github.com/angelmondragon/pestguard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pestguard-backend/pkg/errors"
	"github.com/angelmondragon/pestguard-backend/pkg/outbox"
)

// owner is the resolved booking owner, exactly one of user or lead.
type owner struct {
	user *models.User
	lead *models.Lead
}

func (o owner) kind() enums.CustomerTagKind {
	if o.lead != nil {
		return enums.CustomerTagKindLead
	}
	return enums.CustomerTagKindRegistered
}

func (o owner) publicID() uuid.UUID {
	if o.lead != nil {
		return o.lead.PublicID
	}
	return o.user.PublicID
}

func (o owner) savedAddress() *string {
	if o.lead != nil {
		return o.lead.Address
	}
	return o.user.Address
}

func (s *service) Create(ctx context.Context, actor auth.Actor, input CreateInput) (*BookingDTO, error) {
	started := time.Now()
	if err := s.validateCreate(actor, input); err != nil {
		return nil, s.finish(ctx, "create", started, nil, err)
	}

	var out *BookingDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		usersRepo := s.users.WithTx(tx)
		actorUser, err := users.ResolveActor(ctx, usersRepo, actor)
		if err != nil {
			return err
		}
		svc, err := catalog.ResolveActive(ctx, s.catalog.WithTx(tx), input.ServiceID)
		if err != nil {
			return err
		}
		own, err := s.resolveOwner(ctx, tx, actorUser, input.Owner)
		if err != nil {
			return err
		}

		var leadAddress *string
		if input.Owner.Lead != nil {
			leadAddress = input.Owner.Lead.Address
		}
		address, ok := firstAddress(s.cfg.MinAddressLength, leadAddress, input.Address, own.savedAddress())
		if !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("address must be at least %d characters", s.cfg.MinAddressLength))
		}

		booking := &models.Booking{
			PublicID:  uuid.New(),
			ServiceID: svc.ID,
			StartsAt:  input.StartsAt.UTC(),
			EndsAt:    input.EndsAt.UTC(),
			Address:   address,
			Notes:     normalizeNotes(input.Notes),
			Status:    enums.BookingStatusPending,
		}
		if own.lead != nil {
			booking.LeadID = &own.lead.ID
		} else {
			booking.CustomerUserID = &own.user.ID
		}

		repo := s.bookings.WithTx(tx)
		if err := repo.Create(ctx, booking); err != nil {
			return mapWriteError(err, "create booking")
		}

		var event audit.Event = audit.Created{}
		if !input.Owner.IsSelf() {
			event = audit.CreatedByAdmin{OwnerKind: own.kind(), OwnerID: own.publicID()}
		}
		sc := &scope{tx: tx, bookings: repo, users: usersRepo, actor: actorUser, booking: booking}
		if err := s.record(ctx, sc, event); err != nil {
			return err
		}
		err = s.emit(ctx, tx, actorRef(actor), booking.PublicID, enums.EventBookingCreated, outbox.BookingCreated{
			BookingID: booking.PublicID,
			ServiceID: svc.PublicID,
			StartsAt:  booking.StartsAt,
			EndsAt:    booking.EndsAt,
			OwnerKind: string(own.kind()),
			OwnerID:   own.publicID(),
		})
		if err != nil {
			return err
		}

		summary, err := repo.FindSummary(ctx, booking.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload booking")
		}
		out = toDTO(summary)
		return nil
	})
	if err := s.finish(ctx, "create", started, out, err); err != nil {
		return nil, err
	}
	return out, nil
}

// validateCreate rejects malformed input and role mismatches before any store access.
func (s *service) validateCreate(actor auth.Actor, input CreateInput) error {
	if actor.IsZero() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if input.ServiceID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "service id required")
	}
	if input.StartsAt.IsZero() || input.EndsAt.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "starts_at and ends_at required")
	}
	if !input.EndsAt.After(input.StartsAt) {
		return pkgerrors.New(pkgerrors.CodeValidation, "ends_at must be after starts_at")
	}
	if err := s.checkNotes(input.Notes); err != nil {
		return err
	}
	if input.Owner.CustomerID != nil && input.Owner.Lead != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "choose either a customer or a lead, not both")
	}
	if lead := input.Owner.Lead; lead != nil {
		if err := s.validate.Var(strings.TrimSpace(lead.Email), "required,email"); err != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "lead email is invalid")
		}
	}
	if input.Owner.CustomerID != nil && *input.Owner.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}

	if input.Owner.IsSelf() {
		if !actor.HasRole(enums.RoleCustomer) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "customer role required to book")
		}
		return nil
	}
	if !actor.IsStaff() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only staff may book for another customer")
	}
	return nil
}

func (s *service) checkNotes(notes *string) error {
	if notes != nil && utf8.RuneCountInString(*notes) > s.cfg.MaxNotesLength {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("notes must be at most %d characters", s.cfg.MaxNotesLength))
	}
	return nil
}

func (s *service) resolveOwner(ctx context.Context, tx *gorm.DB, actorUser *models.User, sel OwnerSelector) (owner, error) {
	usersRepo := s.users.WithTx(tx)
	switch {
	case sel.CustomerID != nil:
		user, err := usersRepo.FindByPublicID(ctx, *sel.CustomerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return owner{}, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
			}
			return owner{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
		}
		if !user.IsActive || !hasRole(user, enums.RoleCustomer) {
			return owner{}, pkgerrors.New(pkgerrors.CodeValidation, "target user is not an active customer")
		}
		return owner{user: user}, nil

	case sel.Lead != nil:
		email := leads.NormalizeEmail(sel.Lead.Email)
		// Held until commit so a concurrent signup either sees this lead or
		// has already registered the email.
		if err := db.LockIdentity(ctx, tx, email); err != nil {
			return owner{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock lead email")
		}
		registered, err := usersRepo.EmailExists(ctx, email)
		if err != nil {
			return owner{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check lead email")
		}
		if registered {
			return owner{}, pkgerrors.New(pkgerrors.CodeConflict, "email belongs to a registered customer; book by customer id")
		}
		lead, err := s.leads.WithTx(tx).UpsertByEmail(ctx, leads.Contact{
			Email:     email,
			FirstName: sel.Lead.FirstName,
			LastName:  sel.Lead.LastName,
			Phone:     sel.Lead.Phone,
			Address:   trimmedOrNil(sel.Lead.Address),
		})
		if err != nil {
			return owner{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert lead")
		}
		return owner{lead: lead}, nil
	}
	return owner{user: actorUser}, nil
}

// firstAddress picks the first non-blank candidate and checks its length.
func firstAddress(minLen int, candidates ...*string) (string, bool) {
	for _, c := range candidates {
		if c == nil {
			continue
		}
		trimmed := strings.TrimSpace(*c)
		if trimmed == "" {
			continue
		}
		return trimmed, utf8.RuneCountInString(trimmed) >= minLen
	}
	return "", false
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func hasRole(u *models.User, role enums.Role) bool {
	for _, r := range u.Roles {
		if r.Role == role {
			return true
		}
	}
	return false
}
