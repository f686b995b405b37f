package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var fastRetry = RetryPolicy{Attempts: 3, Backoff: time.Millisecond}

// failing returns fn errors in order, then nil, and counts calls.
func failing(calls *int, errs ...error) func() error {
	return func() error {
		*calls++
		if *calls <= len(errs) {
			return errs[*calls-1]
		}
		return nil
	}
}

func TestWithRetry(t *testing.T) {
	busy := errors.New("database is locked")

	tests := []struct {
		name      string
		policy    RetryPolicy
		errs      []error
		wantCalls int
		wantErr   bool
	}{
		{name: "first try", policy: fastRetry, wantCalls: 1},
		{name: "busy then ok", policy: fastRetry, errs: []error{busy, errors.New("SQLITE_BUSY")}, wantCalls: 3},
		{name: "not busy", policy: fastRetry, errs: []error{errors.New("constraint failed")}, wantCalls: 1, wantErr: true},
		{
			name:      "attempts spent",
			policy:    RetryPolicy{Attempts: 2, Backoff: time.Millisecond},
			errs:      []error{busy, busy, busy},
			wantCalls: 2,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := withRetry(context.Background(), tt.policy, failing(&calls, tt.errs...))
			require.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestWithRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := withRetry(ctx, fastRetry, failing(&calls))
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, calls)
}

func TestIsBusyError(t *testing.T) {
	require.True(t, isBusyError(errors.New("database is busy")))
	require.True(t, isBusyError(errors.New("sqlite: step: (5)")))
	require.False(t, isBusyError(nil))
	require.False(t, isBusyError(context.DeadlineExceeded))
	require.False(t, isBusyError(errors.New("no such table: drafts")))
}

func TestTransactionWithRetryCommitsOnce(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	attempts := 0
	err := db.TransactionWithRetry(ctx, fastRetry, func(tx *sql.Tx) error {
		attempts++
		if _, err := tx.Exec(`INSERT INTO drafts (thread_id, text, updated_at) VALUES ('t1', 'x', '2026-01-01T00:00:00.000000000Z')`); err != nil {
			return err
		}
		if attempts < 2 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM drafts`).Scan(&n))
	require.Equal(t, 1, n, "first attempt must be rolled back")
}
