package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pestguard-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/pestguard-backend/pkg/errors"
)

// ServiceDTO is the public catalogue entry.
type ServiceDTO struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	DurationMinutes int       `json:"duration_minutes"`
}

func FromModel(m models.Service) ServiceDTO {
	return ServiceDTO{ID: m.PublicID, Title: m.Title, DurationMinutes: m.DurationMinutes}
}

// Service exposes the bookable catalogue.
type Service interface {
	ListActive(ctx context.Context) ([]ServiceDTO, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListActive(ctx context.Context) ([]ServiceDTO, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list services")
	}
	out := make([]ServiceDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out, nil
}

// ResolveActive maps a public id to an active service row, translating a miss into NOT_FOUND.
func ResolveActive(ctx context.Context, repo Repository, publicID uuid.UUID) (*models.Service, error) {
	svc, err := repo.FindActiveByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "service not found or inactive")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load service")
	}
	return svc, nil
}
