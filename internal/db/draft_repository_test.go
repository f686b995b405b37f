package db

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDraftRepository_SaveGetDelete(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewDraftRepository(db)
	ctx := context.Background()

	if _, err := repo.Get(ctx, "t1"); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("expected ErrDraftNotFound, got %v", err)
	}

	if err := repo.Save(ctx, "t1", "Hallo"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := repo.Save(ctx, "t1", "Hallo Welt"); err != nil {
		t.Fatalf("Save overwrite failed: %v", err)
	}

	draft, err := repo.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if draft.Text != "Hallo Welt" {
		t.Fatalf("draft text = %q", draft.Text)
	}
	if draft.UpdatedAt.IsZero() {
		t.Fatal("expected UpdatedAt to be set")
	}

	if err := repo.Delete(ctx, "t1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := repo.Delete(ctx, "t1"); err != nil {
		t.Fatalf("second Delete should not fail: %v", err)
	}
	if _, err := repo.Get(ctx, "t1"); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("expected ErrDraftNotFound after delete, got %v", err)
	}
}

func TestDraftRepository_BlankSaveDeletes(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewDraftRepository(db)
	ctx := context.Background()

	if err := repo.Save(ctx, "t1", "text"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := repo.Save(ctx, "t1", "   "); err != nil {
		t.Fatalf("blank Save failed: %v", err)
	}
	if _, err := repo.Get(ctx, "t1"); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("expected blank save to delete draft, got %v", err)
	}
	if err := repo.Save(ctx, "", "text"); err == nil {
		t.Fatal("expected error for empty thread id")
	}
}

func TestDraftRepository_ListAndPrune(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewDraftRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	repo.now = func() time.Time { return clock }

	if err := repo.Save(ctx, "old", "a"); err != nil {
		t.Fatalf("Save old failed: %v", err)
	}
	clock = base.Add(48 * time.Hour)
	if err := repo.Save(ctx, "new", "b"); err != nil {
		t.Fatalf("Save new failed: %v", err)
	}

	drafts, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(drafts) != 2 || drafts[0].ThreadID != "new" {
		t.Fatalf("unexpected list order: %+v", drafts)
	}

	removed, err := repo.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := repo.Get(ctx, "old"); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("expected old draft pruned, got %v", err)
	}
}
