package models

import "time"

// BookingAssignment captures worker assignment history for a booking. At most
// one row per booking has IsCurrent set.
type BookingAssignment struct {
	ID               int64      `gorm:"column:id;primaryKey;autoIncrement"`
	BookingID        int64      `gorm:"column:booking_id;not null"`
	WorkerUserID     int64      `gorm:"column:worker_user_id;not null"`
	AssignedByUserID *int64     `gorm:"column:assigned_by_user_id"`
	AssignedAt       time.Time  `gorm:"column:assigned_at;not null"`
	UnassignedAt     *time.Time `gorm:"column:unassigned_at"`
	IsCurrent        bool       `gorm:"column:is_current;not null"`
}
