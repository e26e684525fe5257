package db

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/jmoiron/sqlx"
)

// DefaultMaxRetries is how many times a busy transaction is retried before ErrBusy is returned.
const DefaultMaxRetries = 5

// RetryOnBusy runs f until it succeeds, fails with something other than a busy
// error, or maxRetries retries have been spent. Delays back off exponentially
// from 50ms up to 500ms with jitter.
func RetryOnBusy(ctx context.Context, maxRetries int, f func() error) error {
	const baseDelay = 50 * time.Millisecond
	const maxDelay = 500 * time.Millisecond

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = f()
		if err == nil {
			return nil
		}
		if !IsBusy(err) || attempt == maxRetries {
			return err
		}
		delay := baseDelay << uint(attempt)
		if delay > maxDelay {
			delay = maxDelay
		}
		jitter := time.Duration(rand.IntN(int(delay / 2)))
		delay = delay - delay/4 + jitter

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

// InTx runs fn inside a write transaction and commits it. The whole transaction is
// retried while the write lock is held elsewhere. Errors are classified under op.
func InTx(ctx context.Context, db *sqlx.DB, maxRetries int, op string, fn func(tx *sqlx.Tx) error) error {
	return RetryOnBusy(ctx, maxRetries, func() error {
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return Classify(op, err)
		}
		defer tx.Rollback()

		if err := fn(tx); err != nil {
			return Classify(op, err)
		}
		if err := tx.Commit(); err != nil {
			return Classify(op, err)
		}
		return nil
	})
}
