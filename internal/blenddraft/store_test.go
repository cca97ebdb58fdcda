package blenddraft

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/rtwroastery/roastery-backend/pkg/db/dbtest"
	"github.com/rtwroastery/roastery-backend/pkg/db/models"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(dbtest.Open(t, &models.DeviceDraft{}))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	got, err := store.Load(ctx)
	if err != nil || got != nil {
		t.Fatalf("expected empty store, got %+v err=%v", got, err)
	}

	draft := NewDraft()
	draft.Name = "Evening"
	draft.Step = StepRoastLevel
	if err := store.Save(ctx, Stored{Draft: draft}); err != nil {
		t.Fatalf("save: %v", err)
	}

	id := uuid.New()
	draft.SavedBlendID = &id
	if err := store.Save(ctx, Stored{Draft: draft, DeferredSave: true}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil || got.Draft.Name != "Evening" || !got.DeferredSave {
		t.Fatalf("unexpected stored draft %+v", got)
	}
	if got.Draft.SavedBlendID == nil || *got.Draft.SavedBlendID != id {
		t.Fatalf("expected saved blend id to round trip, got %v", got.Draft.SavedBlendID)
	}

	var rows int64
	store.db.Model(&models.DeviceDraft{}).Count(&rows)
	if rows != 1 {
		t.Fatalf("expected a single draft slot, got %d rows", rows)
	}

	if err := store.Purge(ctx); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if got, _ := store.Load(ctx); got != nil {
		t.Fatalf("expected purged store, got %+v", got)
	}
}
