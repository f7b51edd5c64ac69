package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	sqlStateUniqueViolation    = "23505"
	sqlStateExclusionViolation = "23P01"
	sqlStateCheckViolation     = "23514"
	sqlStateQueryCanceled      = "57014"
)

// IsUniqueViolation reports whether err is a unique-constraint failure. When
// constraintName is set the violated constraint must match it.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if pgErr, ok := asPgError(err); ok {
		return pgErr.Code == sqlStateUniqueViolation && matchesConstraint(pgErr, constraintName)
	}
	msg := err.Error()
	if constraintName != "" && !strings.Contains(msg, constraintName) {
		return false
	}
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}

// IsExclusionViolation reports whether err comes from an EXCLUDE constraint,
// which is how overlapping booking windows are rejected.
func IsExclusionViolation(err error, constraintName string) bool {
	pgErr, ok := asPgError(err)
	if !ok {
		return err != nil && strings.Contains(err.Error(), "violates exclusion constraint")
	}
	return pgErr.Code == sqlStateExclusionViolation && matchesConstraint(pgErr, constraintName)
}

// IsCheckViolation reports whether err comes from a CHECK constraint.
func IsCheckViolation(err error, constraintName string) bool {
	pgErr, ok := asPgError(err)
	if !ok {
		return err != nil && strings.Contains(err.Error(), "CHECK constraint failed")
	}
	return pgErr.Code == sqlStateCheckViolation && matchesConstraint(pgErr, constraintName)
}

// IsStatementTimeout reports whether the statement was cancelled by statement_timeout.
func IsStatementTimeout(err error) bool {
	pgErr, ok := asPgError(err)
	return ok && pgErr.Code == sqlStateQueryCanceled
}

func asPgError(err error) (*pgconn.PgError, bool) {
	if err == nil {
		return nil, false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func matchesConstraint(pgErr *pgconn.PgError, name string) bool {
	return name == "" || pgErr.ConstraintName == name
}
