package tags

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pestguard-backend/internal/leads"
	"github.com/angelmondragon/pestguard-backend/internal/users"
	"github.com/angelmondragon/pestguard-backend/pkg/auth"
	"github.com/angelmondragon/pestguard-backend/pkg/db/models"
	"github.com/angelmondragon/pestguard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pestguard-backend/pkg/errors"
	"github.com/angelmondragon/pestguard-backend/pkg/logger"
)

const (
	maxTagLength  = 64
	maxNoteLength = 500
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SetInput targets one user or lead by public id. A blank Tag clears the classification.
type SetInput struct {
	Kind     enums.CustomerTagKind
	EntityID uuid.UUID
	Tag      string
	Note     *string
}

// TagDTO is the stored classification as returned to staff.
type TagDTO struct {
	Kind      enums.CustomerTagKind `json:"kind"`
	EntityID  uuid.UUID             `json:"entity_id"`
	Tag       *string               `json:"tag"`
	Note      *string               `json:"note,omitempty"`
	UpdatedAt *time.Time            `json:"updated_at,omitempty"`
}

// Service manages CRM classifications for customers and leads.
type Service interface {
	Set(ctx context.Context, actor auth.Actor, input SetInput) (*TagDTO, error)
}

type service struct {
	repo  Repository
	users users.Repository
	leads leads.Repository
	tx    txRunner
	logg  *logger.Logger
	now   func() time.Time
}

func NewService(repo Repository, usersRepo users.Repository, leadsRepo leads.Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil || usersRepo == nil || leadsRepo == nil {
		return nil, fmt.Errorf("tag repositories required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:  repo,
		users: usersRepo,
		leads: leadsRepo,
		tx:    tx,
		logg:  logg,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Set(ctx context.Context, actor auth.Actor, input SetInput) (*TagDTO, error) {
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "kind must be registered or lead")
	}
	if input.EntityID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entity id required")
	}
	tag := strings.TrimSpace(input.Tag)
	if utf8.RuneCountInString(tag) > maxTagLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("tag must be at most %d characters", maxTagLength))
	}
	if input.Note != nil && utf8.RuneCountInString(*input.Note) > maxNoteLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("note must be at most %d characters", maxNoteLength))
	}
	if !actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff role required")
	}

	out := &TagDTO{Kind: input.Kind, EntityID: input.EntityID}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		usersRepo := s.users.WithTx(tx)
		staff, err := users.ResolveActor(ctx, usersRepo, actor)
		if err != nil {
			return err
		}

		entityID, err := s.resolveEntity(ctx, tx, input.Kind, input.EntityID)
		if err != nil {
			return err
		}

		repo := s.repo.WithTx(tx)
		mirror := models.CRMTag{}
		if tag == "" {
			if err := repo.Delete(ctx, input.Kind, entityID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear customer tag")
			}
		} else {
			now := s.now()
			row := models.CustomerTag{
				Kind:      input.Kind,
				EntityID:  entityID,
				Tag:       tag,
				Note:      input.Note,
				UpdatedBy: &staff.ID,
				UpdatedAt: now,
			}
			if err := repo.Upsert(ctx, row); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store customer tag")
			}
			mirror = MirrorOf(row)
			out.Tag, out.Note, out.UpdatedAt = mirror.Tag, mirror.TagNote, mirror.TagUpdatedAt
		}

		if err := s.writeMirror(ctx, tx, input.Kind, entityID, mirror); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mirror customer tag")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"kind":      input.Kind,
		"entity_id": input.EntityID.String(),
		"cleared":   tag == "",
	})
	s.logg.Info(logCtx, "customer tag set")
	return out, nil
}

func (s *service) resolveEntity(ctx context.Context, tx *gorm.DB, kind enums.CustomerTagKind, publicID uuid.UUID) (int64, error) {
	var id int64
	var err error
	switch kind {
	case enums.CustomerTagKindRegistered:
		var user *models.User
		if user, err = s.users.WithTx(tx).FindByPublicID(ctx, publicID); err == nil {
			id = user.ID
		}
	case enums.CustomerTagKindLead:
		var lead *models.Lead
		if lead, err = s.leads.WithTx(tx).FindByPublicID(ctx, publicID); err == nil {
			id = lead.ID
		}
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, string(kind)+" customer not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tagged entity")
	}
	return id, nil
}

func (s *service) writeMirror(ctx context.Context, tx *gorm.DB, kind enums.CustomerTagKind, id int64, mirror models.CRMTag) error {
	if kind == enums.CustomerTagKindLead {
		return s.leads.WithTx(tx).UpdateTag(ctx, id, mirror)
	}
	return s.users.WithTx(tx).UpdateTag(ctx, id, mirror)
}

// MirrorOf converts a customer_tags row into the columns mirrored on users and leads.
func MirrorOf(row models.CustomerTag) models.CRMTag {
	tag := row.Tag
	at := row.UpdatedAt
	return models.CRMTag{
		Tag:          &tag,
		TagNote:      row.Note,
		TagUpdatedBy: row.UpdatedBy,
		TagUpdatedAt: &at,
	}
}

// MoveLeadTag re-keys a lead's tag row to the registered user, overwriting any
// tag the user already had, and removes the lead row. It reports whether a tag moved.
func MoveLeadTag(ctx context.Context, repo Repository, leadID, userID int64) (bool, error) {
	tag, err := repo.Find(ctx, enums.CustomerTagKindLead, leadID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	moved := *tag
	moved.Kind = enums.CustomerTagKindRegistered
	moved.EntityID = userID
	if err := repo.Upsert(ctx, moved); err != nil {
		return false, err
	}
	if err := repo.Delete(ctx, enums.CustomerTagKindLead, leadID); err != nil {
		return false, err
	}
	return true, nil
}
