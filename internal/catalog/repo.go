package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pestguard-backend/pkg/db/models"
)

// Repository reads the service catalogue.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListActive(ctx context.Context) ([]models.Service, error)
	FindActiveByPublicID(ctx context.Context, publicID uuid.UUID) (*models.Service, error)
	FindByID(ctx context.Context, id int64) (*models.Service, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListActive(ctx context.Context) ([]models.Service, error) {
	var rows []models.Service
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("title ASC").
		Find(&rows).Error
	return rows, err
}

// FindActiveByPublicID returns gorm.ErrRecordNotFound for unknown and inactive services alike.
func (r *repository) FindActiveByPublicID(ctx context.Context, publicID uuid.UUID) (*models.Service, error) {
	var svc models.Service
	err := r.db.WithContext(ctx).
		Where("public_id = ? AND is_active = ?", publicID, true).
		First(&svc).Error
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.Service, error) {
	var svc models.Service
	if err := r.db.WithContext(ctx).First(&svc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &svc, nil
}
