package users

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/pestguard-backend/pkg/auth"
	"github.com/angelmondragon/pestguard-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/pestguard-backend/pkg/errors"
)

// ResolveActor loads the actor's user row through repo. Callers bind repo to
// their transaction so the lookup sees the same snapshot as the mutation.
func ResolveActor(ctx context.Context, repo Repository, actor auth.Actor) (*models.User, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	user, err := repo.FindByPublicID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor no longer exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load actor")
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor is inactive")
	}
	return user, nil
}
