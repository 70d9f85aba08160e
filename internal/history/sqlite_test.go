package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/virtuaplant-core/internal/control"
	"github.com/nerrad567/virtuaplant-core/internal/infrastructure/database"
	"github.com/nerrad567/virtuaplant-core/internal/register"
	"github.com/nerrad567/virtuaplant-core/migrations"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "history.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	repo := NewSQLiteRepository(db.DB)
	repo.now = func() time.Time { return t0.Add(time.Hour) }
	return repo
}

func TestRecordTags_RoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	snapshots := []control.Tags{
		{Run: true, Motor: true},
		{Run: true, Contact: true, Nozzle: true},
		{Run: true, Contact: true, Level: true, Motor: true, Mode: register.ModeForceFill},
	}
	for i, tags := range snapshots {
		if err := repo.RecordTags(ctx, t0.Add(time.Duration(i)*time.Second), tags); err != nil {
			t.Fatalf("RecordTags(%d) error = %v", i, err)
		}
	}

	got, err := repo.TagHistory(ctx, 0)
	if err != nil {
		t.Fatalf("TagHistory() error = %v", err)
	}
	if len(got) != len(snapshots) {
		t.Fatalf("TagHistory() len = %d, want %d", len(got), len(snapshots))
	}
	for i, rec := range got {
		want := snapshots[len(snapshots)-1-i]
		if rec.Tags != want {
			t.Errorf("record %d tags = %+v, want %+v", i, rec.Tags, want)
		}
		if !rec.RecordedAt.Equal(t0.Add(time.Duration(len(snapshots)-1-i) * time.Second)) {
			t.Errorf("record %d time = %v", i, rec.RecordedAt)
		}
	}

	limited, err := repo.TagHistory(ctx, 2)
	if err != nil {
		t.Fatalf("TagHistory(2) error = %v", err)
	}
	if len(limited) != 2 || limited[0].Tags.Mode != register.ModeForceFill {
		t.Errorf("TagHistory(2) = %+v", limited)
	}
}

func TestRecordTags_Validation(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.RecordTags(context.Background(), time.Time{}, control.Tags{}); err == nil {
		t.Error("RecordTags() with zero time should fail")
	}
}

func TestRecordFill(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := NewFillRecord("fill-1", control.FillEvent{TriggerID: 1, Started: t0, Completed: t0.Add(1500 * time.Millisecond)})
	second := NewFillRecord("fill-2", control.FillEvent{TriggerID: 2, Started: t0.Add(3 * time.Second), Completed: t0.Add(4500 * time.Millisecond)})

	if first.DurationMS != 1500 {
		t.Errorf("DurationMS = %d, want 1500", first.DurationMS)
	}

	for _, rec := range []FillRecord{first, second} {
		if err := repo.RecordFill(ctx, rec); err != nil {
			t.Fatalf("RecordFill(%s) error = %v", rec.ID, err)
		}
	}

	got, err := repo.Fills(ctx, 10)
	if err != nil {
		t.Fatalf("Fills() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Fills() len = %d, want 2", len(got))
	}
	if got[0].ID != "fill-2" || got[1].ID != "fill-1" {
		t.Errorf("order = %s, %s; want newest first", got[0].ID, got[1].ID)
	}
	if got[1].TriggerID != 1 || !got[1].StartedAt.Equal(t0) || got[1].DurationMS != 1500 {
		t.Errorf("fill-1 = %+v", got[1])
	}

	// IDs are unique.
	if err := repo.RecordFill(ctx, first); err == nil {
		t.Error("RecordFill() with duplicate id should fail")
	}
}

func TestRecordFill_Validation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tests := []struct {
		name string
		rec  FillRecord
	}{
		{"missing id", FillRecord{StartedAt: t0, CompletedAt: t0}},
		{"completed before start", FillRecord{ID: "x", StartedAt: t0, CompletedAt: t0.Add(-time.Second)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.RecordFill(ctx, tt.rec); err == nil {
				t.Error("RecordFill() should fail")
			}
		})
	}
}

func TestPrune(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// now is t0+1h; keep the last 30 minutes.
	old := t0.Add(10 * time.Minute)
	recent := t0.Add(50 * time.Minute)

	for _, at := range []time.Time{old, recent} {
		if err := repo.RecordTags(ctx, at, control.Tags{Run: true}); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.RecordFill(ctx, FillRecord{ID: "old", StartedAt: old, CompletedAt: old}); err != nil {
		t.Fatal(err)
	}
	if err := repo.RecordFill(ctx, FillRecord{ID: "recent", StartedAt: recent, CompletedAt: recent}); err != nil {
		t.Fatal(err)
	}

	n, err := repo.Prune(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Prune() deleted %d, want 2", n)
	}

	tags, _ := repo.TagHistory(ctx, 0)
	fills, _ := repo.Fills(ctx, 0)
	if len(tags) != 1 || !tags[0].RecordedAt.Equal(recent) {
		t.Errorf("remaining tags = %+v", tags)
	}
	if len(fills) != 1 || fills[0].ID != "recent" {
		t.Errorf("remaining fills = %+v", fills)
	}

	if _, err := repo.Prune(ctx, 0); err == nil {
		t.Error("Prune(0) should fail")
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, defaultLimit},
		{-5, defaultLimit},
		{10, 10},
		{maxLimit + 1, maxLimit},
	}
	for _, tt := range tests {
		if got := clampLimit(tt.in); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
