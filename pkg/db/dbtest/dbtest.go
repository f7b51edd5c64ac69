// Package dbtest opens throwaway SQLite databases carrying the booking schema.
// Row locks are ignored by the SQLite dialect and the overlap exclusion
// constraint is Postgres-only; everything else mirrors the goose migrations.
package dbtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/pestguard-backend/pkg/db/models"
	"github.com/angelmondragon/pestguard-backend/pkg/enums"
)

var schema = []string{
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		public_id TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		phone TEXT,
		address TEXT,
		tag TEXT,
		tag_note TEXT,
		tag_updated_by INTEGER,
		tag_updated_at DATETIME,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		last_login_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE user_roles (
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		created_at DATETIME,
		PRIMARY KEY (user_id, role)
	)`,
	`CREATE TABLE leads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		public_id TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		first_name TEXT,
		last_name TEXT,
		phone TEXT,
		address TEXT,
		tag TEXT,
		tag_note TEXT,
		tag_updated_by INTEGER,
		tag_updated_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE services (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		public_id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME
	)`,
	`CREATE TABLE bookings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		public_id TEXT NOT NULL UNIQUE,
		customer_user_id INTEGER REFERENCES users(id),
		lead_id INTEGER REFERENCES leads(id),
		service_id INTEGER NOT NULL REFERENCES services(id),
		starts_at DATETIME NOT NULL,
		ends_at DATETIME NOT NULL,
		address TEXT NOT NULL,
		notes TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		accepted_at DATETIME,
		completed_at DATETIME,
		cancelled_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT bookings_single_owner CHECK ((customer_user_id IS NULL) <> (lead_id IS NULL))
	)`,
	`CREATE TABLE booking_assignments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		booking_id INTEGER NOT NULL REFERENCES bookings(id),
		worker_user_id INTEGER NOT NULL REFERENCES users(id),
		assigned_by_user_id INTEGER REFERENCES users(id),
		assigned_at DATETIME NOT NULL,
		unassigned_at DATETIME,
		is_current BOOLEAN NOT NULL DEFAULT 1
	)`,
	`CREATE UNIQUE INDEX idx_booking_assignments_current ON booking_assignments (booking_id) WHERE is_current`,
	`CREATE TABLE booking_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		booking_id INTEGER NOT NULL REFERENCES bookings(id),
		actor_user_id INTEGER REFERENCES users(id),
		event_type TEXT NOT NULL,
		metadata TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE customer_tags (
		kind TEXT NOT NULL,
		entity_id INTEGER NOT NULL,
		tag TEXT NOT NULL,
		note TEXT,
		updated_by INTEGER,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (kind, entity_id)
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
}

// Open returns an isolated in-memory database with the schema applied.
// A single connection keeps SQLite's shared cache from reporting table locks.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_foreign_keys=on", name, uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

// MustCreateService inserts a catalogue row.
func MustCreateService(t *testing.T, db *gorm.DB, title string, active bool) *models.Service {
	t.Helper()
	svc := &models.Service{
		PublicID:        uuid.New(),
		Title:           title,
		DurationMinutes: 60,
		IsActive:        active,
	}
	require.NoError(t, db.Create(svc).Error)
	return svc
}

// MustCreateUser inserts an active user holding roles.
func MustCreateUser(t *testing.T, db *gorm.DB, email string, roles ...enums.Role) *models.User {
	t.Helper()
	address := "42 Wallaby Way"
	user := &models.User{
		PublicID:     uuid.New(),
		Email:        email,
		PasswordHash: "hash",
		FirstName:    "Test",
		LastName:     "User",
		Address:      &address,
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)
	for _, role := range roles {
		row := models.UserRole{UserID: user.ID, Role: role}
		require.NoError(t, db.Create(&row).Error)
		user.Roles = append(user.Roles, row)
	}
	return user
}

// MustCreateLead inserts a lead row.
func MustCreateLead(t *testing.T, db *gorm.DB, email, address string) *models.Lead {
	t.Helper()
	lead := &models.Lead{
		PublicID: uuid.New(),
		Email:    email,
		Address:  &address,
	}
	require.NoError(t, db.Create(lead).Error)
	return lead
}

// Count returns the number of rows in table matching the optional condition.
func Count(t *testing.T, db *gorm.DB, table string, where string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Table(table)
	if where != "" {
		q = q.Where(where, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
