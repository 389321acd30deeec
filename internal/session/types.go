package session

import (
	"context"
	"sync"
	"time"
)

// Role identifies who authored a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation. Turns are never modified after
// they are appended.
type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Session is the per-conversation history owned by a Store.
type Session struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`

	mu       sync.RWMutex
	messages []Turn

	// turn serializes whole exchanges on this session; capacity 1.
	turn chan struct{}
}

func newSession(id, conversationID string, now time.Time) *Session {
	return &Session{
		ID:             id,
		ConversationID: conversationID,
		CreatedAt:      now,
		messages:       []Turn{},
		turn:           make(chan struct{}, 1),
	}
}

// Messages returns a copy of the session history in order.
func (s *Session) Messages() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of stored turns.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Acquire blocks until the caller holds the session's exchange lock or ctx
// is done. The returned release func is safe to call more than once.
func (s *Session) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case s.turn <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-s.turn }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Trim returns the most recent 2*maxTurns entries of messages in their
// original order. The input is never modified; a negative maxTurns is
// treated as zero.
func Trim(messages []Turn, maxTurns int) []Turn {
	if maxTurns < 0 {
		maxTurns = 0
	}
	maxMessages := maxTurns * 2
	if len(messages) <= maxMessages {
		return messages
	}
	kept := make([]Turn, maxMessages)
	copy(kept, messages[len(messages)-maxMessages:])
	return kept
}
