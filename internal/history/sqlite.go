package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/virtuaplant-core/internal/control"
	"github.com/nerrad567/virtuaplant-core/internal/register"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Ensure SQLiteRepository implements Repository.
var _ Repository = (*SQLiteRepository)(nil)

// SQLiteRepository implements Repository on the tag_history and fill_cycles tables.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository over an open, migrated database.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteRepository: Repository instance ready for use
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// RecordTags inserts one tag snapshot.
func (r *SQLiteRepository) RecordTags(ctx context.Context, at time.Time, tags control.Tags) error {
	if at.IsZero() {
		return fmt.Errorf("recorded time is required")
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tag_history (recorded_at, run, level, contact, motor, nozzle, never_stop)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		formatTime(at),
		register.Bool(tags.Run),
		register.Bool(tags.Level),
		register.Bool(tags.Contact),
		register.Bool(tags.Motor),
		register.Bool(tags.Nozzle),
		uint16(tags.Mode),
	)
	if err != nil {
		return fmt.Errorf("inserting tag history: %w", err)
	}
	return nil
}

// RecordFill inserts one completed fill cycle. IDs are unique.
func (r *SQLiteRepository) RecordFill(ctx context.Context, rec FillRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("fill id is required")
	}
	if rec.CompletedAt.Before(rec.StartedAt) {
		return fmt.Errorf("fill %s completed before it started", rec.ID)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO fill_cycles (id, trigger_id, started_at, completed_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.ID,
		int64(rec.TriggerID), //nolint:gosec // trigger ids stay far below 2^63
		formatTime(rec.StartedAt),
		formatTime(rec.CompletedAt),
		rec.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("inserting fill cycle: %w", err)
	}
	return nil
}

// TagHistory returns recent tag snapshots, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - limit: Maximum entries to return (default 50, max 1000)
func (r *SQLiteRepository) TagHistory(ctx context.Context, limit int) ([]TagRecord, error) {
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, recorded_at, run, level, contact, motor, nozzle, never_stop
		 FROM tag_history
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying tag history: %w", err)
	}
	defer rows.Close()

	records := make([]TagRecord, 0, limit)
	for rows.Next() {
		var (
			rec        TagRecord
			recordedAt string
			run        int64
			level      int64
			contact    int64
			motor      int64
			nozzle     int64
			neverStop  int64
		)
		if err := rows.Scan(&rec.ID, &recordedAt, &run, &level, &contact, &motor, &nozzle, &neverStop); err != nil {
			return nil, fmt.Errorf("scanning tag history: %w", err)
		}
		if rec.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		rec.Tags = control.Tags{
			Run:     run != 0,
			Level:   level != 0,
			Contact: contact != 0,
			Motor:   motor != 0,
			Nozzle:  nozzle != 0,
			Mode:    register.Mode(neverStop), //nolint:gosec // written from a uint16
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tag history: %w", err)
	}
	return records, nil
}

// Fills returns recent fill cycles, newest first.
func (r *SQLiteRepository) Fills(ctx context.Context, limit int) ([]FillRecord, error) {
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, trigger_id, started_at, completed_at, duration_ms
		 FROM fill_cycles
		 ORDER BY completed_at DESC, trigger_id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying fill cycles: %w", err)
	}
	defer rows.Close()

	records := make([]FillRecord, 0, limit)
	for rows.Next() {
		var (
			rec                  FillRecord
			triggerID            int64
			startedAt, completed string
		)
		if err := rows.Scan(&rec.ID, &triggerID, &startedAt, &completed, &rec.DurationMS); err != nil {
			return nil, fmt.Errorf("scanning fill cycle: %w", err)
		}
		rec.TriggerID = uint64(triggerID) //nolint:gosec // stored from a uint64
		if rec.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		if rec.CompletedAt, err = parseTime(completed); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fill cycles: %w", err)
	}
	return records, nil
}

// Prune deletes tag snapshots and fill cycles older than now-olderThan.
//
// Returns:
//   - int64: Number of rows deleted across both tables
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}
	cutoff := formatTime(r.now().Add(-olderThan))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting prune: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var total int64
	for _, q := range []string{
		"DELETE FROM tag_history WHERE recorded_at < ?",
		"DELETE FROM fill_cycles WHERE completed_at < ?",
	} {
		res, err := tx.ExecContext(ctx, q, cutoff)
		if err != nil {
			return 0, fmt.Errorf("pruning history: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("checking rows affected: %w", err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing prune: %w", err)
	}
	return total, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("history timestamp is empty")
	}
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing history timestamp: %w", err)
	}
	return t, nil
}
