package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

type TxOptions struct {
	IsolationLevel sql.IsolationLevel
	ReadOnly       bool
	MaxRetries     int
	// BaseBackoff is doubled after every failed attempt; jitter adds up to a quarter.
	BaseBackoff time.Duration
}

func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		MaxRetries:     3,
		BaseBackoff:    50 * time.Millisecond,
	}
}

// WithTransaction runs fn in a single transaction. Any error from fn rolls the
// whole transaction back and is returned unchanged.
func WithTransaction(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error) error {
	return runOnce(ctx, db, opts, fn)
}

// WithRetry is WithTransaction that re-runs fn from scratch when the failure is
// a serialization conflict, deadlock or lock timeout.
func WithRetry(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error) error {
	backoff := opts.BaseBackoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := runOnce(ctx, db, opts, fn)
		if err == nil {
			return nil
		}

		class := ClassifyError(err)
		if class == ErrorClassPermanent {
			return err
		}
		if attempt >= opts.MaxRetries {
			return fmt.Errorf("max retries (%d) exceeded: %w", opts.MaxRetries, err)
		}

		slog.WarnContext(ctx, "retrying transaction",
			"attempt", attempt+1,
			"class", class.String(),
			"error", err,
		)

		sleep := backoff + time.Duration(rand.Int63n(int64(backoff/4)+1))
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
}

func runOnce(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{
		Isolation: opts.IsolationLevel,
		ReadOnly:  opts.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
