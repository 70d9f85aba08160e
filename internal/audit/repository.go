// Package audit records tag writes made through the plant's own interfaces.
//
// Writes arriving over the HTTP API or MQTT commands are stored in the
// tag_writes table. Raw Modbus writes never pass through here, so a running
// attack shows up in the tag history without a matching audit entry.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Write sources.
const (
	SourceAPI  = "api"
	SourceMQTT = "mqtt"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one audited tag write.
type Entry struct {
	ID        string         `json:"id"`
	Tag       string         `json:"tag"`
	Value     uint16         `json:"value"`
	Source    string         `json:"source"`
	Remote    string         `json:"remote,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	Tag    string // optional
	Source string // optional: api or mqtt
	Limit  int    // default 50, max 200
	Offset int
}

// ListResult is one page of entries, newest first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository stores and lists audited writes.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// Ensure SQLiteRepository implements Repository.
var _ Repository = (*SQLiteRepository)(nil)

// SQLiteRepository implements Repository on the tag_writes table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository over an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Create inserts an entry. ID and CreatedAt are filled in when empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.Tag == "" {
		return fmt.Errorf("tag is required")
	}
	if e.Source == "" {
		return fmt.Errorf("source is required")
	}
	if e.ID == "" {
		e.ID = "wr-" + uuid.NewString()[:8]
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}

	var details *string
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshalling write details: %w", err)
		}
		s := string(b)
		details = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tag_writes (id, tag, value, source, remote, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Tag, int64(e.Value), e.Source,
		nullableString(e.Remote), details,
		e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting tag write: %w", err)
	}
	return nil
}

// nullableString maps "" to NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	filter.Limit = min(filter.Limit, maxLimit)
	filter.Offset = max(filter.Offset, 0)

	var conditions []string
	var args []any
	if filter.Tag != "" {
		conditions = append(conditions, "tag = ?")
		args = append(args, filter.Tag)
	}
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM tag_writes " + where //nolint:gosec // WHERE built from fixed, parameterised conditions
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting tag writes: %w", err)
	}

	query := "SELECT id, tag, value, source, remote, details, created_at FROM tag_writes " + //nolint:gosec // as above
		where + " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tag writes: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e         Entry
			value     int64
			remote    sql.NullString
			details   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Tag, &value, &e.Source, &remote, &details, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning tag write: %w", err)
		}
		e.Value = uint16(value) //nolint:gosec // stored from a uint16
		e.Remote = remote.String
		if details.Valid && details.String != "" {
			var m map[string]any
			if json.Unmarshal([]byte(details.String), &m) == nil {
				e.Details = m
			}
		}
		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing tag write timestamp %q: %w", createdAt, err)
		}
		e.CreatedAt = t
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tag writes: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
