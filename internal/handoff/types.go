package handoff

import "time"

// Status represents where a handoff request is in its lifecycle.
type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
)

// Source records who asked for the human.
type Source string

const (
	// SourceAutomatic requests are raised by the confidence gate.
	SourceAutomatic Source = "automatic"
	// SourceManual requests come from an operator or the client app.
	SourceManual Source = "manual"
)

// Request is a conversation waiting for a human to take over.
type Request struct {
	ID             string     `json:"id"`
	SessionID      string     `json:"session_id"`
	ConversationID string     `json:"conversation_id,omitempty"`
	Source         Source     `json:"source"`
	Reason         string     `json:"reason"`
	Question       string     `json:"question,omitempty"`
	Reply          string     `json:"reply,omitempty"`
	Status         Status     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// ListFilter controls which requests to return.
type ListFilter struct {
	Status    Status
	SessionID string
	Limit     int
}
