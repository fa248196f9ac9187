// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/taibuivan/whiphelmets/internal/platform/apperr"
)

var (
	// ErrNotFound is a standard error returned when a queried row doesn't exist.
	ErrNotFound = apperr.NotFound("Resource")
)

// Wrap inspects a database error and wraps it into a meaningful [apperr.AppError].
// It hides internal database details from the client while classifying the error type.
func Wrap(err error, action string) error {
	if err == nil {
		return nil
	}

	// 1. Already classified by a lower layer
	if apperr.IsAppError(err) {
		return err
	}

	// 2. Not Found mapping
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	// 3. Constraint violations the client can fix
	if IsUniqueViolation(err) {
		ae := apperr.Conflict("Resource already exists")
		ae.Cause = err
		return ae
	}

	// 4. Unknown query errors become Internal Server Errors
	ae := apperr.Internal(err)
	ae.Message = "An unexpected error occurred while " + action
	return ae
}

// IsUniqueViolation reports whether err is a Postgres 23505 unique_violation.
func IsUniqueViolation(err error) bool {
	return sqlState(err) == pgerrcode.UniqueViolation
}

// IsSerializationFailure reports whether err is a 40001 or 40P01 error, i.e.
// a transaction that can be retried as a whole.
func IsSerializationFailure(err error) bool {
	code := sqlState(err)
	return code == pgerrcode.SerializationFailure || code == pgerrcode.DeadlockDetected
}

// ConstraintName returns the violated constraint, or "" when err is not a
// Postgres constraint error.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
