package bookings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/pestguard-backend/pkg/db/models"
	"github.com/angelmondragon/pestguard-backend/pkg/enums"
	"github.com/angelmondragon/pestguard-backend/pkg/pagination"
)

// OverlapConstraint is the exclusion constraint preventing double-booking a service.
const OverlapConstraint = "bookings_no_overlap"

// Summary is a booking joined with the public ids of its references.
type Summary struct {
	models.Booking   `gorm:"embedded"`
	ServicePublicID  uuid.UUID
	ServiceTitle     string
	CustomerPublicID *uuid.UUID
	LeadPublicID     *uuid.UUID
	WorkerPublicID   *uuid.UUID
}

type listQuery struct {
	CustomerUserID *int64
	WorkerUserID   *int64
	Status         *enums.BookingStatus
	Cursor         *pagination.Cursor
	Limit          int
}

// Repository persists bookings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, booking *models.Booking) error
	LockByPublicID(ctx context.Context, publicID uuid.UUID) (*models.Booking, error)
	FindSummary(ctx context.Context, id int64) (*Summary, error)
	FindSummaryByPublicID(ctx context.Context, publicID uuid.UUID) (*Summary, error)
	List(ctx context.Context, q listQuery) ([]Summary, error)
	Apply(ctx context.Context, id int64, patch Patch) error
	RepointLeadBookings(ctx context.Context, leadID, userID int64) (int64, error)
	FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
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

func (r *repository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.PublicID == uuid.Nil {
		booking.PublicID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(booking).Error
}

// LockByPublicID selects the booking FOR UPDATE.
func (r *repository) LockByPublicID(ctx context.Context, publicID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("public_id = ?", publicID).
		First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repository) FindSummary(ctx context.Context, id int64) (*Summary, error) {
	return r.findSummary(ctx, "b.id = ?", id)
}

func (r *repository) FindSummaryByPublicID(ctx context.Context, publicID uuid.UUID) (*Summary, error) {
	return r.findSummary(ctx, "b.public_id = ?", publicID)
}

func (r *repository) findSummary(ctx context.Context, where string, arg any) (*Summary, error) {
	var rows []Summary
	if err := r.summaries(ctx).Where(where, arg).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

// List pages bookings newest first.
func (r *repository) List(ctx context.Context, q listQuery) ([]Summary, error) {
	query := r.summaries(ctx)
	if q.CustomerUserID != nil {
		query = query.Where("b.customer_user_id = ?", *q.CustomerUserID)
	}
	if q.WorkerUserID != nil {
		query = query.Where("a.worker_user_id = ?", *q.WorkerUserID)
	}
	if q.Status != nil {
		query = query.Where("b.status = ?", *q.Status)
	}
	if q.Cursor != nil {
		query = query.Where("(b.created_at < ? OR (b.created_at = ? AND b.public_id < ?))",
			q.Cursor.CreatedAt, q.Cursor.CreatedAt, q.Cursor.ID)
	}
	var rows []Summary
	err := query.
		Order("b.created_at DESC, b.public_id DESC").
		Limit(pagination.LimitWithBuffer(q.Limit)).
		Scan(&rows).Error
	return rows, err
}

func (r *repository) summaries(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("bookings AS b").
		Select(`b.*,
			s.public_id AS service_public_id,
			s.title AS service_title,
			u.public_id AS customer_public_id,
			l.public_id AS lead_public_id,
			w.public_id AS worker_public_id`).
		Joins("JOIN services s ON s.id = b.service_id").
		Joins("LEFT JOIN users u ON u.id = b.customer_user_id").
		Joins("LEFT JOIN leads l ON l.id = b.lead_id").
		Joins("LEFT JOIN booking_assignments a ON a.booking_id = b.id AND a.is_current = ?", true).
		Joins("LEFT JOIN users w ON w.id = a.worker_user_id")
}

// Apply writes the patch's columns in one UPDATE.
func (r *repository) Apply(ctx context.Context, id int64, patch Patch) error {
	cols := patch.Columns()
	if len(cols) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", id).
		Updates(cols).Error
}

// RepointLeadBookings moves every booking owned by the lead onto the user.
func (r *repository) RepointLeadBookings(ctx context.Context, leadID, userID int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("lead_id = ?", leadID).
		Updates(map[string]any{
			"customer_user_id": userID,
			"lead_id":          nil,
		})
	return res.RowsAffected, res.Error
}

// FindExpiredPending lists pending bookings that started before cutoff.
func (r *repository) FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("status = ? AND starts_at < ?", enums.BookingStatusPending, cutoff).
		Order("starts_at ASC").
		Limit(limit).
		Pluck("public_id", &ids).Error
	return ids, err
}
