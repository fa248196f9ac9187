// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/whiphelmets/internal/platform/dberr"
)

// Querier is the subset of pgx shared by [*pgxpool.Pool] and [pgx.Tx].
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, batch *pgx.Batch) pgx.BatchResults
}

// TxBeginner starts transactions. Satisfied by [*pgxpool.Pool].
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// maxTxAttempts bounds retries of a transaction aborted by a serialization
// failure or deadlock.
const maxTxAttempts = 3

// WithTx runs fn inside a transaction and commits when fn returns nil. Any
// error rolls the whole unit of work back. Serialization failures and
// deadlocks are retried with a fresh transaction.
func WithTx(context context.Context, db TxBeginner, fn func(tx pgx.Tx) error) error {
	var lastErr error

	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		lastErr = runTx(context, db, fn)
		if lastErr == nil || !dberr.IsSerializationFailure(lastErr) {
			return lastErr
		}
		if context.Err() != nil {
			return context.Err()
		}
	}

	return fmt.Errorf("postgres: transaction retries exhausted: %w", lastErr)
}

func runTx(context context.Context, db TxBeginner, fn func(tx pgx.Tx) error) error {
	transaction, err := db.Begin(context)
	if err != nil {
		return fmt.Errorf("postgres: begin failed: %w", err)
	}
	// Rollback after a successful Commit is a no-op.
	defer transaction.Rollback(context)

	if err := fn(transaction); err != nil {
		return err
	}

	if err := transaction.Commit(context); err != nil {
		return fmt.Errorf("postgres: commit failed: %w", err)
	}
	return nil
}
