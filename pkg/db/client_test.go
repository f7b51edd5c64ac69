package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&testModel{}))
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := FromGorm(db, nil)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}))

	var count int64
	require.NoError(t, db.Model(&testModel{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")

	require.NoError(t, db.Model(&testModel{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	db := newTestDB(t)
	client := FromGorm(db, nil)

	require.Panics(t, func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&testModel{Name: "panicked"}).Error; err != nil {
				return err
			}
			panic("kaboom")
		})
	})

	var count int64
	require.NoError(t, db.Model(&testModel{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestPing(t *testing.T) {
	client := FromGorm(newTestDB(t), nil)
	require.NoError(t, client.Ping(context.Background()))
}

func TestConstraintClassifiers(t *testing.T) {
	overlap := fmt.Errorf("insert booking: %w", &pgconn.PgError{Code: "23P01", ConstraintName: "bookings_no_overlap"})
	require.True(t, IsExclusionViolation(overlap, ""))
	require.True(t, IsExclusionViolation(overlap, "bookings_no_overlap"))
	require.False(t, IsExclusionViolation(overlap, "other"))
	require.False(t, IsUniqueViolation(overlap, ""))

	dup := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
	require.True(t, IsUniqueViolation(dup, "users_email_key"))
	require.False(t, IsExclusionViolation(dup, ""))

	require.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: users.email"), ""))
	require.True(t, IsCheckViolation(&pgconn.PgError{Code: "23514"}, ""))
	require.True(t, IsStatementTimeout(&pgconn.PgError{Code: "57014"}))
	require.False(t, IsExclusionViolation(nil, ""))
}

func TestLockIdentity(t *testing.T) {
	client := FromGorm(newTestDB(t), nil)
	ctx := context.Background()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return LockIdentity(ctx, tx, " Pat@Example.com ")
	})
	require.NoError(t, err)

	require.Error(t, LockIdentity(ctx, nil, "pat@example.com"))
	require.Error(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return LockIdentity(ctx, tx, "  ")
	}))
}
