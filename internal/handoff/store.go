// Package handoff persists requests for a human to take over a conversation.
package handoff

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/askdesk/internal/audit"
	"github.com/ziadkadry99/askdesk/internal/db"
)

// ErrNotFound is returned when a request id does not exist.
var ErrNotFound = errors.New("handoff request not found")

// Store manages persistence of handoff requests.
type Store struct {
	db    *db.DB
	trail *audit.Store
	now   func() time.Time
}

// NewStore creates a new handoff store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: time.Now}
}

// WithAudit makes every create and resolve also write an audit entry,
// attributed to the actor carried by the context.
func (s *Store) WithAudit(trail *audit.Store) *Store {
	s.trail = trail
	return s
}

// Audit returns the trail set by WithAudit, or nil.
func (s *Store) Audit() *audit.Store {
	return s.trail
}

// record writes an audit entry inside tx when a trail is configured.
func (s *Store) record(ctx context.Context, tx *sql.Tx, action audit.Action, req *Request, summary string) error {
	if s.trail == nil {
		return nil
	}
	actor := audit.ActorFrom(ctx)
	return s.trail.LogTx(ctx, tx, audit.Entry{
		Timestamp: s.now().UTC(),
		ActorType: actor.Type,
		ActorID:   actor.ID,
		Action:    action,
		SessionID: req.SessionID,
		HandoffID: req.ID,
		Summary:   summary,
	})
}

// Create records a new open request.
func (s *Store) Create(ctx context.Context, req Request) (*Request, error) {
	if req.SessionID == "" {
		return nil, errors.New("session id is required")
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Source == "" {
		req.Source = SourceManual
	}
	req.Status = StatusOpen
	req.CreatedAt = s.now().UTC()
	req.ResolvedAt = nil

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO handoff_requests (id, session_id, conversation_id, source, reason, question, reply, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.SessionID, req.ConversationID, req.Source, req.Reason, req.Question, req.Reply, req.Status, req.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting handoff request: %w", err)
	}

	summary := fmt.Sprintf("%s handoff requested", req.Source)
	if req.Reason != "" {
		summary += ": " + req.Reason
	}
	if err := s.record(ctx, tx, audit.ActionHandoffRequested, &req, summary); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing handoff request: %w", err)
	}
	return &req, nil
}

const selectColumns = `SELECT id, session_id, conversation_id, source, reason, question, reply, status, created_at, resolved_at
	FROM handoff_requests`

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (*Request, error) {
	var r Request
	var resolvedAt sql.NullTime
	if err := row.Scan(&r.ID, &r.SessionID, &r.ConversationID, &r.Source, &r.Reason, &r.Question, &r.Reply,
		&r.Status, &r.CreatedAt, &resolvedAt); err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		r.ResolvedAt = &t
	}
	return &r, nil
}

// Get retrieves a request by id.
func (s *Store) Get(ctx context.Context, id string) (*Request, error) {
	r, err := scanRequest(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting handoff request: %w", err)
	}
	return r, nil
}

// List returns requests matching the filter, oldest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Request, error) {
	query := selectColumns + ` WHERE 1=1`
	args := []any{}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, filter.SessionID)
	}

	query += " ORDER BY created_at ASC, id ASC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing handoff requests: %w", err)
	}
	defer rows.Close()

	requests := []Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning handoff request: %w", err)
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

// Resolve marks an open request as handled. Resolving twice is a no-op.
func (s *Store) Resolve(ctx context.Context, id string) (*Request, error) {
	now := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var sessionID string
	err = tx.QueryRowContext(ctx,
		`UPDATE handoff_requests SET status = ?, resolved_at = ? WHERE id = ? AND status = ? RETURNING session_id`,
		StatusResolved, now, id, StatusOpen,
	).Scan(&sessionID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Already resolved or unknown; Get below tells them apart.
	case err != nil:
		return nil, fmt.Errorf("resolving handoff request: %w", err)
	default:
		req := &Request{ID: id, SessionID: sessionID}
		if err := s.record(ctx, tx, audit.ActionHandoffResolved, req, "handoff resolved"); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing handoff resolution: %w", err)
	}
	// Unknown ids surface as ErrNotFound here.
	return s.Get(ctx, id)
}

// OpenCount returns the number of open requests.
func (s *Store) OpenCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM handoff_requests WHERE status = ?`, StatusOpen,
	).Scan(&count)
	return count, err
}
