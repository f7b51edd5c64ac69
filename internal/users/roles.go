package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pestguard-backend/pkg/auth"
	"github.com/angelmondragon/pestguard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pestguard-backend/pkg/errors"
	"github.com/angelmondragon/pestguard-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RoleService performs administrative role changes.
type RoleService interface {
	Grant(ctx context.Context, actor auth.Actor, userID uuid.UUID, role enums.Role) (*UserDTO, error)
}

type roleService struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
}

// NewRoleService wires the role grant workflow.
func NewRoleService(repo Repository, tx txRunner, logg *logger.Logger) (RoleService, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &roleService{repo: repo, tx: tx, logg: logg}, nil
}

// Grant gives a worker or admin role to an existing user. Only superusers may grant.
func (s *roleService) Grant(ctx context.Context, actor auth.Actor, userID uuid.UUID, role enums.Role) (*UserDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if role != enums.RoleWorker && role != enums.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "only worker or admin may be granted")
	}
	if !actor.HasRole(enums.RoleSuperuser) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "superuser role required")
	}

	var out *UserDTO
	var granted bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := ResolveActor(ctx, repo, actor); err != nil {
			return err
		}
		target, err := repo.FindByPublicID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
		}
		granted, err = repo.GrantRole(ctx, target.ID, role)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "grant role")
		}
		reloaded, err := repo.FindByID(ctx, target.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload user")
		}
		out = FromModel(reloaded)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if granted {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"target_user_id": userID.String(),
			"role":           role.String(),
		})
		s.logg.Info(logCtx, "role granted")
	}
	return out, nil
}
