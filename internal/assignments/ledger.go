package assignments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pestguard-backend/pkg/db/models"
)

// Mode selects how a new worker replaces the current assignment.
type Mode int

const (
	// ModeUpsert overwrites the current row in place.
	ModeUpsert Mode = iota
	// ModeAppend retires the current row and inserts a new one, keeping history.
	ModeAppend
)

// Result describes the ledger state after Assign.
type Result struct {
	Current  models.BookingAssignment
	Previous *int64
	Changed  bool
}

// Ledger tracks which worker is responsible for a booking.
type Ledger struct {
	db  *gorm.DB
	now func() time.Time
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Assign makes workerID the current assignee. Assigning the worker who already
// holds the booking changes nothing. The caller must hold the booking row lock.
func (l *Ledger) Assign(ctx context.Context, tx *gorm.DB, bookingID, workerID int64, assignedBy *int64, mode Mode) (Result, error) {
	if tx == nil {
		return Result{}, errors.New("transaction required")
	}
	db := tx.WithContext(ctx)

	current, err := l.current(db, bookingID)
	if err != nil {
		return Result{}, err
	}
	if current != nil && current.WorkerUserID == workerID {
		return Result{Current: *current}, nil
	}

	now := l.now()
	var previous *int64
	if current != nil {
		prevWorker := current.WorkerUserID
		previous = &prevWorker
	}

	if current != nil && mode == ModeUpsert {
		err := db.Model(&models.BookingAssignment{}).
			Where("id = ?", current.ID).
			Updates(map[string]any{
				"worker_user_id":      workerID,
				"assigned_by_user_id": assignedBy,
				"assigned_at":         now,
			}).Error
		if err != nil {
			return Result{}, err
		}
		current.WorkerUserID = workerID
		current.AssignedByUserID = assignedBy
		current.AssignedAt = now
		return Result{Current: *current, Previous: previous, Changed: true}, nil
	}

	if current != nil {
		err := db.Model(&models.BookingAssignment{}).
			Where("id = ?", current.ID).
			Updates(map[string]any{"is_current": false, "unassigned_at": now}).Error
		if err != nil {
			return Result{}, err
		}
	}

	row := models.BookingAssignment{
		BookingID:        bookingID,
		WorkerUserID:     workerID,
		AssignedByUserID: assignedBy,
		AssignedAt:       now,
		IsCurrent:        true,
	}
	if err := db.Create(&row).Error; err != nil {
		return Result{}, err
	}
	return Result{Current: row, Previous: previous, Changed: true}, nil
}

// CurrentAssignee returns the worker id holding the booking, or nil.
func (l *Ledger) CurrentAssignee(ctx context.Context, tx *gorm.DB, bookingID int64) (*int64, error) {
	db := tx
	if db == nil {
		db = l.db
	}
	row, err := l.current(db.WithContext(ctx), bookingID)
	if err != nil || row == nil {
		return nil, err
	}
	return &row.WorkerUserID, nil
}

// HistoryEntry is one assignment row with the worker and assigner public ids.
type HistoryEntry struct {
	ID                 int64
	BookingID          int64
	WorkerUserID       int64
	WorkerPublicID     uuid.UUID
	AssignedByUserID   *int64
	AssignedByPublicID *uuid.UUID
	AssignedAt         time.Time
	UnassignedAt       *time.Time
	IsCurrent          bool
}

// History lists every assignment for the booking, oldest first.
func (l *Ledger) History(ctx context.Context, tx *gorm.DB, bookingID int64) ([]HistoryEntry, error) {
	db := tx
	if db == nil {
		db = l.db
	}
	var rows []HistoryEntry
	err := db.WithContext(ctx).
		Table("booking_assignments AS a").
		Select(`a.id, a.booking_id, a.worker_user_id, w.public_id AS worker_public_id,
			a.assigned_by_user_id, b.public_id AS assigned_by_public_id,
			a.assigned_at, a.unassigned_at, a.is_current`).
		Joins("JOIN users w ON w.id = a.worker_user_id").
		Joins("LEFT JOIN users b ON b.id = a.assigned_by_user_id").
		Where("a.booking_id = ?", bookingID).
		Order("a.assigned_at ASC, a.id ASC").
		Scan(&rows).Error
	return rows, err
}

func (l *Ledger) current(db *gorm.DB, bookingID int64) (*models.BookingAssignment, error) {
	var rows []models.BookingAssignment
	err := db.Where("booking_id = ? AND is_current = ?", bookingID, true).
		Order("assigned_at DESC, id DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
