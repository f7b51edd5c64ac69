package tags

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/pestguard-backend/pkg/db/models"
	"github.com/angelmondragon/pestguard-backend/pkg/enums"
)

// Repository persists customer_tags rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, tag models.CustomerTag) error
	Find(ctx context.Context, kind enums.CustomerTagKind, entityID int64) (*models.CustomerTag, error)
	Delete(ctx context.Context, kind enums.CustomerTagKind, entityID int64) error
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

// Upsert writes the tag; on (kind, entity_id) conflict the last write wins.
func (r *repository) Upsert(ctx context.Context, tag models.CustomerTag) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}, {Name: "entity_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"tag", "note", "updated_by", "updated_at"}),
		}).
		Create(&tag).Error
}

func (r *repository) Find(ctx context.Context, kind enums.CustomerTagKind, entityID int64) (*models.CustomerTag, error) {
	var tag models.CustomerTag
	err := r.db.WithContext(ctx).
		Where("kind = ? AND entity_id = ?", kind, entityID).
		First(&tag).Error
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *repository) Delete(ctx context.Context, kind enums.CustomerTagKind, entityID int64) error {
	return r.db.WithContext(ctx).
		Where("kind = ? AND entity_id = ?", kind, entityID).
		Delete(&models.CustomerTag{}).Error
}
