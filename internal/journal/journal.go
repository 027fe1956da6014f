// Package journal persists the sink's connection lifecycle events to
// SQLite so outages can be inspected after the fact.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/seplos-sink/internal/sink"
)

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000Z"

// List limits.
const (
	defaultLimit = 50
	maxLimit     = 500
)

// Entry is one stored lifecycle event.
type Entry struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Backend    string    `json:"backend"`
	Attempt    int       `json:"attempt"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	Kind  string // optional
	Limit int    // default 50, max 500
}

// Repository defines the journal operations.
type Repository interface {
	Record(ctx context.Context, e sink.Event) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// SQLiteRepository stores events in the sink_events table.
type SQLiteRepository struct {
	db      *sql.DB
	backend string
}

// NewSQLiteRepository creates a journal tagging every event with backend.
func NewSQLiteRepository(db *sql.DB, backend string) *SQLiteRepository {
	return &SQLiteRepository{db: db, backend: backend}
}

// Record inserts e. It satisfies sink.EventRecorder.
func (r *SQLiteRepository) Record(ctx context.Context, e sink.Event) error {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sink_events (id, kind, backend, attempt, detail, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		"evt-"+uuid.NewString()[:8],
		string(e.Kind), r.backend, e.Attempt,
		nullableString(e.Detail),
		at.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting sink event: %w", err)
	}
	return nil
}

// nullableString returns nil for empty strings so they are stored as NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]Entry, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}

	query := "SELECT id, kind, backend, attempt, detail, occurred_at FROM sink_events"
	var args []any
	if filter.Kind != "" {
		query += " WHERE kind = ?"
		args = append(args, filter.Kind)
	}
	query += " ORDER BY occurred_at DESC, rowid DESC LIMIT ?"
	args = append(args, filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sink events: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var detail sql.NullString
		var occurredAt string
		if err := rows.Scan(&e.ID, &e.Kind, &e.Backend, &e.Attempt, &detail, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning sink event: %w", err)
		}
		e.Detail = detail.String
		t, err := time.Parse(timeLayout, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parsing sink event timestamp %q: %w", occurredAt, err)
		}
		e.OccurredAt = t
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sink events: %w", err)
	}
	return entries, nil
}

// Prune deletes entries older than before and returns how many went.
func (r *SQLiteRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM sink_events WHERE occurred_at < ?",
		before.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning sink events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning sink events: %w", err)
	}
	return n, nil
}
