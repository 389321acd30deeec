// Package session keeps bounded per-conversation message history in memory.
package session

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IDPrefix is prepended to generated session ids.
const IDPrefix = "sess-"

type entry struct {
	session  *Session
	lastSeen time.Time
	element  *list.Element
}

// Store owns all sessions of the process. It is safe for concurrent use.
// Sessions are created lazily by Resolve and evicted only as the configured
// Policy allows.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	order    *list.List // session ids, least recently resolved at front
	policy   Policy
	logger   *slog.Logger
	now      func() time.Time

	done    chan struct{}
	started bool
	closed  bool
}

// NewStore creates an empty store governed by policy.
func NewStore(policy Policy, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*entry),
		order:    list.New(),
		policy:   policy,
		logger:   logger.With("component", "session"),
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Resolve returns the session for id, creating it when id is unknown. An
// empty id gets a fresh unguessable one. Known sessions are returned as-is.
func (s *Store) Resolve(id string) (string, *Session) {
	if id == "" {
		id = IDPrefix + uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.sessions[id]; ok {
		if !s.policy.expired(now, e.lastSeen) {
			e.lastSeen = now
			s.order.MoveToBack(e.element)
			return id, e.session
		}
		s.removeLocked(id, e)
	}

	if s.policy.MaxSessions > 0 {
		for len(s.sessions) >= s.policy.MaxSessions {
			s.evictOldestLocked()
		}
	}

	sess := newSession(id, uuid.New().String(), now)
	s.sessions[id] = &entry{
		session:  sess,
		lastSeen: now,
		element:  s.order.PushBack(id),
	}
	return id, sess
}

// Get returns a known session without creating or touching it.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Len returns the number of retained sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Append adds a user turn then an assistant turn to sess.
func (s *Store) Append(sess *Session, userText, assistantText string) {
	now := s.now()
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.messages = append(sess.messages,
		Turn{Role: RoleUser, Text: userText, At: now},
		Turn{Role: RoleAssistant, Text: assistantText, At: now},
	)
}

// Trim drops the oldest turns of sess beyond 2*maxTurns.
func (s *Store) Trim(sess *Session, maxTurns int) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.messages = Trim(sess.messages, maxTurns)
}

// Record appends one completed exchange and trims, as a single update
// relative to other readers of sess.
func (s *Store) Record(sess *Session, userText, assistantText string, maxTurns int) {
	now := s.now()
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.messages = append(sess.messages,
		Turn{Role: RoleUser, Text: userText, At: now},
		Turn{Role: RoleAssistant, Text: assistantText, At: now},
	)
	sess.messages = Trim(sess.messages, maxTurns)
}

// EvictExpired drops sessions idle longer than the policy's IdleTTL and
// returns how many were removed.
func (s *Store) EvictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.policy.IdleTTL <= 0 {
		return 0
	}
	now := s.now()
	removed := 0
	for id, e := range s.sessions {
		if s.policy.expired(now, e.lastSeen) {
			s.removeLocked(id, e)
			removed++
		}
	}
	return removed
}

// Start runs EvictExpired every interval until ctx is done or Close is
// called. It is a no-op when the policy has no IdleTTL or the store was
// already started.
func (s *Store) Start(ctx context.Context, interval time.Duration) {
	s.mu.Lock()
	if s.started || s.closed || s.policy.IdleTTL <= 0 || interval <= 0 {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := s.EvictExpired(); n > 0 {
					s.logger.Debug("evicted idle sessions", "count", n)
				}
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
	}()
}

// Close stops the cleanup goroutine. It is safe to call multiple times.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.done)
		s.closed = true
	}
}

// evictOldestLocked removes the least recently resolved session. Must be
// called with mu held.
func (s *Store) evictOldestLocked() {
	front := s.order.Front()
	if front == nil {
		return
	}
	id, _ := front.Value.(string)
	s.order.Remove(front)
	delete(s.sessions, id)
	s.logger.Debug("evicted session", "session_id", id, "reason", "capacity")
}

func (s *Store) removeLocked(id string, e *entry) {
	s.order.Remove(e.element)
	delete(s.sessions, id)
}
