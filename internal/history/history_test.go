package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/researchpilot/config"
)

func seed(t *testing.T, s Store) {
	t.Helper()
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	recs := []Record{
		Begin("a", "solid state batteries", "", base).Complete("Electrolyte advances dominate.", base.Add(time.Minute)),
		Begin("b", "coral reef bleaching", "", base.Add(time.Hour)).Fail("search quota exhausted", base.Add(2*time.Hour)),
		Begin("c", "battery recycling economics", "notes.pdf", base.Add(2*time.Hour)),
	}
	for _, rec := range recs {
		if err := s.Save(context.Background(), rec); err != nil {
			t.Fatalf("save %s: %v", rec.ID, err)
		}
	}
}

func TestRecordLifecycle(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := Begin("m1", "topic", "", start)
	if rec.Status != StatusProcessing || rec.FinishedAt != nil {
		t.Fatalf("unexpected fresh record: %+v", rec)
	}
	done := rec.Complete("report", start.Add(90*time.Second))
	if done.Status != StatusCompleted || done.Duration != 90*time.Second || done.FinishedAt == nil {
		t.Fatalf("unexpected completed record: %+v", done)
	}
	failed := rec.Fail("boom", start.Add(time.Second))
	if failed.Status != StatusFailed || failed.Error != "boom" {
		t.Fatalf("unexpected failed record: %+v", failed)
	}
}

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s)

	list, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].ID != "c" || list[2].ID != "a" {
		t.Fatalf("expected newest first, got %+v", list)
	}
	if limited, _ := s.List(ctx, 2); len(limited) != 2 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}

	rec, err := s.Get(ctx, "b")
	if err != nil || rec.Status != StatusFailed {
		t.Fatalf("get b: %+v %v", rec, err)
	}
	if err := s.Delete(ctx, "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSearchFallsBackToSubstring(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s)

	got, err := Search(context.Background(), s, "BATTER", 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 battery missions, got %+v", got)
	}
}

func TestIndexedSearch(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryStore()
	seed(t, base)

	ix, err := NewIndexed(ctx, base)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	defer ix.Close()

	got, err := Search(ctx, ix, "electrolyte", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected mission a, got %+v", got)
	}

	if err := ix.Save(ctx, Begin("d", "reef restoration funding", "", time.Now())); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _ = ix.Search(ctx, "reef", 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 reef missions, got %+v", got)
	}

	if err := ix.Delete(ctx, "d"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ = ix.Search(ctx, "restoration", 10)
	if len(got) != 0 {
		t.Fatalf("expected deleted mission to leave the index, got %+v", got)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	store, err := New(context.Background(), config.HistoryConfig{Backend: "memory", Search: true}, zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer store.Close()
	if _, ok := store.(Searcher); !ok {
		t.Fatalf("expected an indexed store, got %T", store)
	}

	if _, err := New(context.Background(), config.HistoryConfig{Backend: "redis"}, nil); err == nil {
		t.Fatalf("expected redis without host to fail validation")
	}
}
