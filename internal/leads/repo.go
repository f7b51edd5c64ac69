package leads

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/pestguard-backend/pkg/db/models"
)

// Contact carries the optional fields captured for a lead. Nil fields never
// overwrite existing values.
type Contact struct {
	Email     string
	FirstName *string
	LastName  *string
	Phone     *string
	Address   *string
}

// Repository persists leads.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	UpsertByEmail(ctx context.Context, contact Contact) (*models.Lead, error)
	LockByEmail(ctx context.Context, email string) (*models.Lead, error)
	FindByPublicID(ctx context.Context, publicID uuid.UUID) (*models.Lead, error)
	UpdateTag(ctx context.Context, id int64, tag models.CRMTag) error
	Delete(ctx context.Context, id int64) error
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

// UpsertByEmail inserts the lead or, on email conflict, fills in the non-nil
// contact fields and returns the stored row.
func (r *repository) UpsertByEmail(ctx context.Context, contact Contact) (*models.Lead, error) {
	email := NormalizeEmail(contact.Email)
	lead := &models.Lead{
		PublicID:  uuid.New(),
		Email:     email,
		FirstName: contact.FirstName,
		LastName:  contact.LastName,
		Phone:     contact.Phone,
		Address:   contact.Address,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "email"}},
			DoUpdates: clause.Set{
				coalesce("first_name"),
				coalesce("last_name"),
				coalesce("phone"),
				coalesce("address"),
				{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
			},
		}).
		Create(lead).Error
	if err != nil {
		return nil, err
	}

	var stored models.Lead
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func coalesce(column string) clause.Assignment {
	return clause.Assignment{
		Column: clause.Column{Name: column},
		Value:  gorm.Expr("COALESCE(excluded." + column + ", leads." + column + ")"),
	}
}

// LockByEmail selects the lead FOR UPDATE. Returns gorm.ErrRecordNotFound when absent.
func (r *repository) LockByEmail(ctx context.Context, email string) (*models.Lead, error) {
	var lead models.Lead
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("email = ?", NormalizeEmail(email)).
		First(&lead).Error
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *repository) FindByPublicID(ctx context.Context, publicID uuid.UUID) (*models.Lead, error) {
	var lead models.Lead
	if err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&lead).Error; err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *repository) UpdateTag(ctx context.Context, id int64, tag models.CRMTag) error {
	return r.db.WithContext(ctx).Model(&models.Lead{}).Where("id = ?", id).Updates(map[string]any{
		"tag":            tag.Tag,
		"tag_note":       tag.TagNote,
		"tag_updated_by": tag.TagUpdatedBy,
		"tag_updated_at": tag.TagUpdatedAt,
	}).Error
}

// Delete removes the lead row. It fails on the foreign key while bookings still reference it.
func (r *repository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Lead{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
