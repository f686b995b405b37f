package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andertben/skillspot-chat/internal/models"
)

// ErrDraftNotFound is returned when a thread has no saved draft.
var ErrDraftNotFound = errors.New("draft not found")

// draftTimeLayout is fixed-width so stored timestamps sort lexically.
const draftTimeLayout = "2006-01-02T15:04:05.000000000Z"

// DraftRepository persists composer drafts per thread.
type DraftRepository struct {
	db    *DB
	now   func() time.Time
	retry RetryPolicy
}

// NewDraftRepository creates a new DraftRepository.
func NewDraftRepository(db *DB) *DraftRepository {
	return &DraftRepository{db: db, now: time.Now, retry: DefaultRetryPolicy}
}

// Get returns the draft for threadID.
func (r *DraftRepository) Get(ctx context.Context, threadID string) (*models.Draft, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT thread_id, text, updated_at FROM drafts WHERE thread_id = ?
	`, threadID)

	var draft models.Draft
	var updatedAt string
	if err := row.Scan(&draft.ThreadID, &draft.Text, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDraftNotFound
		}
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	if ts, err := time.Parse(draftTimeLayout, updatedAt); err == nil {
		draft.UpdatedAt = ts
	}
	return &draft, nil
}

// Save stores text as the draft for threadID. Whitespace-only text deletes
// the draft instead.
func (r *DraftRepository) Save(ctx context.Context, threadID, text string) error {
	if threadID == "" {
		return fmt.Errorf("thread id is required")
	}
	if strings.TrimSpace(text) == "" {
		return r.Delete(ctx, threadID)
	}

	now := r.now().UTC().Format(draftTimeLayout)
	return withRetry(ctx, r.retry, func() error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO drafts (thread_id, text, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(thread_id) DO UPDATE SET text = excluded.text, updated_at = excluded.updated_at
		`, threadID, text, now)
		if err != nil {
			return fmt.Errorf("failed to save draft: %w", err)
		}
		return nil
	})
}

// Delete removes the draft for threadID. Deleting a missing draft is not an
// error.
func (r *DraftRepository) Delete(ctx context.Context, threadID string) error {
	return withRetry(ctx, r.retry, func() error {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM drafts WHERE thread_id = ?`, threadID); err != nil {
			return fmt.Errorf("failed to delete draft: %w", err)
		}
		return nil
	})
}

// List returns all drafts, most recently edited first.
func (r *DraftRepository) List(ctx context.Context) ([]*models.Draft, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT thread_id, text, updated_at FROM drafts ORDER BY updated_at DESC, thread_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	defer rows.Close()

	var out []*models.Draft
	for rows.Next() {
		var draft models.Draft
		var updatedAt string
		if err := rows.Scan(&draft.ThreadID, &draft.Text, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		if ts, err := time.Parse(draftTimeLayout, updatedAt); err == nil {
			draft.UpdatedAt = ts
		}
		out = append(out, &draft)
	}
	return out, rows.Err()
}

// Prune deletes drafts not edited within maxAge and returns how many were
// removed.
func (r *DraftRepository) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := r.now().UTC().Add(-maxAge).Format(draftTimeLayout)
	var removed int64
	err := r.db.TransactionWithRetry(ctx, r.retry, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM drafts WHERE updated_at < ?`, cutoff)
		if err != nil {
			return fmt.Errorf("failed to prune drafts: %w", err)
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}
