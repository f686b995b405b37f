package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// RetryPolicy bounds retries of writes that hit a locked database.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryPolicy is used when a zero policy is supplied.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Backoff: 50 * time.Millisecond}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultRetryPolicy.Attempts
	}
	if p.Backoff <= 0 {
		p.Backoff = DefaultRetryPolicy.Backoff
	}
	return p
}

// TransactionWithRetry runs fn in a transaction, retrying the whole
// transaction while SQLite reports the database busy.
func (db *DB) TransactionWithRetry(ctx context.Context, policy RetryPolicy, fn func(*sql.Tx) error) error {
	return withRetry(ctx, policy, func() error {
		return db.Transaction(ctx, fn)
	})
}

// withRetry calls fn until it succeeds, fails with a non-busy error, or the
// policy's attempts are spent. Backoff doubles after each busy failure.
func withRetry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	policy = policy.normalized()
	backoff := policy.Backoff

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil || !isBusyError(err) || attempt >= policy.Attempts {
			return err
		}

		if err := sleepWithContext(ctx, backoff); err != nil {
			return err
		}
		backoff *= 2
	}
}

func isBusyError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	message := strings.ToLower(err.Error())
	for _, marker := range []string{"database is locked", "database is busy", "sqlite_busy", "(5)"} {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
