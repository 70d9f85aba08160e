package history

import (
	"context"
	"time"

	"github.com/nerrad567/virtuaplant-core/internal/control"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// TagRecord is one persisted PLC tag snapshot.
type TagRecord struct {
	ID         int64        `json:"id"`
	RecordedAt time.Time    `json:"recorded_at"`
	Tags       control.Tags `json:"tags"`
}

// FillRecord is one completed fill cycle.
type FillRecord struct {
	ID          string    `json:"id"`
	TriggerID   uint64    `json:"trigger_id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMS  int64     `json:"duration_ms"`
}

// NewFillRecord builds a record for a fill event under the given ID.
func NewFillRecord(id string, ev control.FillEvent) FillRecord {
	return FillRecord{
		ID:          id,
		TriggerID:   ev.TriggerID,
		StartedAt:   ev.Started,
		CompletedAt: ev.Completed,
		DurationMS:  ev.Duration().Milliseconds(),
	}
}

// Repository stores and queries plant history.
type Repository interface {
	RecordTags(ctx context.Context, at time.Time, tags control.Tags) error
	RecordFill(ctx context.Context, rec FillRecord) error

	// TagHistory and Fills return newest first.
	TagHistory(ctx context.Context, limit int) ([]TagRecord, error)
	Fills(ctx context.Context, limit int) ([]FillRecord, error)

	// Prune deletes entries older than now-olderThan and returns how many went.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// clampLimit applies the default and maximum page sizes.
func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return min(limit, maxLimit)
}
