package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/askdesk/internal/db"
)

// execer is implemented by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store provides persistence for audit entries.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: time.Now}
}

// Log inserts a new audit entry. If entry.ID is empty a UUID is generated.
func (s *Store) Log(ctx context.Context, entry Entry) error {
	return s.insert(ctx, s.db, entry)
}

// LogTx inserts entry inside tx, so it commits or rolls back with the change
// it describes.
func (s *Store) LogTx(ctx context.Context, tx *sql.Tx, entry Entry) error {
	return s.insert(ctx, tx, entry)
}

func (s *Store) insert(ctx context.Context, exec execer, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	// Stored as text; UTC keeps range queries ordered.
	entry.Timestamp = entry.Timestamp.UTC()
	if entry.ActorType == "" {
		entry.ActorType, entry.ActorID = SystemActor.Type, SystemActor.ID
	}

	_, err := exec.ExecContext(ctx, `
		INSERT INTO audit_entries (id, timestamp, actor_type, actor_id, action, session_id, handoff_id, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Timestamp,
		string(entry.ActorType),
		entry.ActorID,
		string(entry.Action),
		entry.SessionID,
		entry.HandoffID,
		entry.Summary,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// QueryFilter controls which audit entries are returned by Query.
type QueryFilter struct {
	ActorID   string
	Action    Action
	SessionID string
	HandoffID string
	Since     *time.Time
	Limit     int
}

// Query returns audit entries matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.ActorID != "" {
		clauses = append(clauses, "actor_id = ?")
		args = append(args, filter.ActorID)
	}
	if filter.Action != "" {
		clauses = append(clauses, "action = ?")
		args = append(args, string(filter.Action))
	}
	if filter.SessionID != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.HandoffID != "" {
		clauses = append(clauses, "handoff_id = ?")
		args = append(args, filter.HandoffID)
	}
	if filter.Since != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, filter.Since.UTC())
	}

	query := "SELECT id, timestamp, actor_type, actor_id, action, session_id, handoff_id, summary FROM audit_entries"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY timestamp DESC, rowid DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.ActorType, &e.ActorID, &e.Action,
			&e.SessionID, &e.HandoffID, &e.Summary); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteBefore removes all audit entries older than the given time.
// Returns the number of deleted rows.
func (s *Store) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM audit_entries WHERE timestamp < ?", before.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting old audit entries: %w", err)
	}
	return res.RowsAffected()
}
