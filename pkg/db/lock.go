package db

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

const identityLockPrefix = "identity:"

// LockIdentity serialises every transaction that claims or consumes the given
// email, whether the row lives in users or leads. The lock is held until the
// transaction ends. SQLite runs a single writer, so the call is a no-op there.
func LockIdentity(ctx context.Context, tx *gorm.DB, email string) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return errors.New("email required")
	}
	if tx.Dialector == nil || tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", identityLockPrefix+email).Error
}
