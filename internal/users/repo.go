package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/pestguard-backend/pkg/db/models"
	"github.com/angelmondragon/pestguard-backend/pkg/enums"
)

// Repository exposes user and role persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, dto CreateUserDTO) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByPublicID(ctx context.Context, publicID uuid.UUID) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	GrantRole(ctx context.Context, userID int64, role enums.Role) (bool, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	UpdateTag(ctx context.Context, id int64, tag models.CRMTag) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts a new user together with its initial roles.
func (r *repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Omit("Roles").Create(user).Error; err != nil {
		return nil, err
	}
	for _, role := range dto.Roles {
		if _, err := r.GrantRole(ctx, user.ID, role); err != nil {
			return nil, err
		}
		user.Roles = append(user.Roles, models.UserRole{UserID: user.ID, Role: role})
	}
	return user, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *repository) FindByPublicID(ctx context.Context, publicID uuid.UUID) (*models.User, error) {
	return r.first(ctx, "public_id = ?", publicID)
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) first(ctx context.Context, query string, args ...any) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Preload("Roles", func(db *gorm.DB) *gorm.DB { return db.Order("role ASC") }).
		Where(query, args...).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// GrantRole adds role to the user. It reports false when the role was already held.
func (r *repository) GrantRole(ctx context.Context, userID int64, role enums.Role) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.UserRole{UserID: userID, Role: role})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// UpdateTag overwrites the CRM tag columns mirrored from customer_tags.
func (r *repository) UpdateTag(ctx context.Context, id int64, tag models.CRMTag) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]any{
		"tag":            tag.Tag,
		"tag_note":       tag.TagNote,
		"tag_updated_by": tag.TagUpdatedBy,
		"tag_updated_at": tag.TagUpdatedAt,
	}).Error
}
