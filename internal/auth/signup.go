package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/angelmondragon/pestguard-backend/internal/bookings"
	"github.com/angelmondragon/pestguard-backend/internal/leads"
	"github.com/angelmondragon/pestguard-backend/internal/tags"
	"github.com/angelmondragon/pestguard-backend/internal/users"
	"github.com/angelmondragon/pestguard-backend/pkg/config"
	"github.com/angelmondragon/pestguard-backend/pkg/db"
	"github.com/angelmondragon/pestguard-backend/pkg/db/models"
	"github.com/angelmondragon/pestguard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pestguard-backend/pkg/errors"
	"github.com/angelmondragon/pestguard-backend/pkg/logger"
	"github.com/angelmondragon/pestguard-backend/pkg/metrics"
	"github.com/angelmondragon/pestguard-backend/pkg/outbox"
	"github.com/angelmondragon/pestguard-backend/pkg/security"
)

const emailTakenMessage = "email already in use"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// leadBookings moves a lead's bookings onto the registered user.
type leadBookings interface {
	RepointLeadBookings(ctx context.Context, leadID, userID int64) (int64, error)
}

// SignupService registers customers, absorbing any lead with the same email.
type SignupService interface {
	Signup(ctx context.Context, req SignupRequest) (*users.UserDTO, error)
}

// SignupServiceParams packages the dependencies for the signup flow.
type SignupServiceParams struct {
	Tx             txRunner
	Users          users.Repository
	Leads          leads.Repository
	Tags           tags.Repository
	Bookings       func(tx *gorm.DB) leadBookings
	Outbox         outboxPublisher
	PasswordConfig config.PasswordConfig
	Metrics        *metrics.BookingMetrics
	Logger         *logger.Logger
}

type signupService struct {
	tx          txRunner
	users       users.Repository
	leads       leads.Repository
	tags        tags.Repository
	bookings    func(tx *gorm.DB) leadBookings
	outbox      outboxPublisher
	passwordCfg config.PasswordConfig
	metrics     *metrics.BookingMetrics
	logg        *logger.Logger
	validate    *validator.Validate
}

// NewSignupService builds a signup service with the provided dependencies.
func NewSignupService(params SignupServiceParams) (SignupService, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Users == nil:
		return nil, fmt.Errorf("users repository required")
	case params.Leads == nil:
		return nil, fmt.Errorf("leads repository required")
	case params.Tags == nil:
		return nil, fmt.Errorf("tags repository required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Bookings == nil {
		params.Bookings = func(tx *gorm.DB) leadBookings { return bookings.NewRepository(tx) }
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return &signupService{
		tx:          params.Tx,
		users:       params.Users,
		leads:       params.Leads,
		tags:        params.Tags,
		bookings:    params.Bookings,
		outbox:      params.Outbox,
		passwordCfg: params.PasswordConfig,
		metrics:     params.Metrics,
		logg:        params.Logger,
		validate:    validator.New(),
	}, nil
}

// Signup creates the customer. When a lead holds the email, the lead's
// bookings and tag move to the new user and the lead is deleted, all in the
// same transaction as the insert.
func (s *signupService) Signup(ctx context.Context, req SignupRequest) (*users.UserDTO, error) {
	req.Email = leads.NormalizeEmail(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if err := s.validate.Struct(req); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid signup payload")
	}
	if msg := security.CheckPasswordPolicy(req.Password); msg != "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password "+msg)
	}
	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var (
		out      *users.UserDTO
		promoted *models.Lead
		moved    int64
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		usersRepo := s.users.WithTx(tx)
		leadsRepo := s.leads.WithTx(tx)

		if err := db.LockIdentity(ctx, tx, req.Email); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock signup email")
		}

		taken, err := usersRepo.EmailExists(ctx, req.Email)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check user email")
		}
		if taken {
			return pkgerrors.New(pkgerrors.CodeConflict, emailTakenMessage)
		}

		lead, err := leadsRepo.LockByEmail(ctx, req.Email)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock lead")
		}
		if err != nil {
			lead = nil
		}

		user, err := usersRepo.Create(ctx, newUserFrom(req, passwordHash, lead))
		if err != nil {
			if db.IsUniqueViolation(err, "users_email_key") {
				return pkgerrors.New(pkgerrors.CodeConflict, emailTakenMessage)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
		}

		if lead != nil {
			if moved, err = s.absorbLead(ctx, tx, lead, user); err != nil {
				return err
			}
			promoted = lead
		}

		reloaded, err := usersRepo.FindByID(ctx, user.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload user")
		}
		out = users.FromModel(reloaded)
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "signup")
		}
		return nil, err
	}

	s.metrics.IncSignup(promoted != nil)
	fields := map[string]any{"user_id": out.ID.String()}
	if promoted != nil {
		fields["lead_id"] = promoted.PublicID.String()
		fields["bookings_moved"] = moved
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), "customer signed up")
	return out, nil
}

func (s *signupService) absorbLead(ctx context.Context, tx *gorm.DB, lead *models.Lead, user *models.User) (int64, error) {
	moved, err := s.bookings(tx).RepointLeadBookings(ctx, lead.ID, user.ID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "repoint lead bookings")
	}

	tagsRepo := s.tags.WithTx(tx)
	tagMoved, err := tags.MoveLeadTag(ctx, tagsRepo, lead.ID, user.ID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "move lead tag")
	}
	if tagMoved {
		row, err := tagsRepo.Find(ctx, enums.CustomerTagKindRegistered, user.ID)
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load moved tag")
		}
		if err := s.users.WithTx(tx).UpdateTag(ctx, user.ID, tags.MirrorOf(*row)); err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mirror tag")
		}
	}

	if err := s.leads.WithTx(tx).Delete(ctx, lead.ID); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete lead")
	}

	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventLeadPromoted,
		AggregateType: enums.AggregateUser,
		AggregateID:   user.PublicID,
		Actor:         &outbox.ActorRef{UserID: user.PublicID, Roles: []string{enums.RoleCustomer.String()}},
		Data: outbox.LeadPromoted{
			LeadID:        lead.PublicID,
			UserID:        user.PublicID,
			BookingsMoved: moved,
		},
	})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit lead promoted")
	}
	return moved, nil
}

// newUserFrom applies the signup payload, letting lead contact details fill
// whatever the user left blank. The lead's tag carries over as-is.
func newUserFrom(req SignupRequest, passwordHash string, lead *models.Lead) users.CreateUserDTO {
	dto := users.CreateUserDTO{
		Email:        req.Email,
		PasswordHash: passwordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        nonBlank(req.Phone),
		Address:      nonBlank(req.Address),
		Roles:        []enums.Role{enums.RoleCustomer},
	}
	if lead == nil {
		return dto
	}
	if dto.FirstName == "" && lead.FirstName != nil {
		dto.FirstName = *lead.FirstName
	}
	if dto.LastName == "" && lead.LastName != nil {
		dto.LastName = *lead.LastName
	}
	if dto.Phone == nil {
		dto.Phone = nonBlank(lead.Phone)
	}
	if dto.Address == nil {
		dto.Address = nonBlank(lead.Address)
	}
	dto.Tag = lead.CRMTag
	return dto
}

func nonBlank(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
