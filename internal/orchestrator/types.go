package orchestrator

import (
	"errors"
	"time"

	"github.com/ziadkadry99/askdesk/internal/config"
	"github.com/ziadkadry99/askdesk/internal/gate"
	"github.com/ziadkadry99/askdesk/internal/retrieval"
)

// Failed Chat calls wrap exactly one of these.
var (
	// ErrInvalidInput means the caller sent no message. Nothing was changed.
	ErrInvalidInput = errors.New("message required")
	// ErrUpstreamUnavailable means generation failed or timed out. The
	// exchange was not recorded.
	ErrUpstreamUnavailable = errors.New("LLM proxy failed")
	// ErrInternal covers anything unanticipated, including recovered panics.
	ErrInternal = errors.New("internal server error")
)

// Request is one inbound chat turn.
type Request struct {
	Message   string `json:"message"`
	Lang      string `json:"lang,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// UsedChunk identifies a retrieval hit that grounded the reply.
type UsedChunk struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Result is the outcome of a successful Chat.
type Result struct {
	ReplyText      string         `json:"reply_text"`
	NeedsHuman     bool           `json:"needsHuman"`
	ContactInfo    *string        `json:"contactInfo"`
	ConversationID string         `json:"conversationId"`
	UsedChunks     []UsedChunk    `json:"usedChunks"`
	Meta           retrieval.Meta `json:"meta"`
	SessionID      string         `json:"sessionId"`

	// Reasons explains NeedsHuman; HandoffID is set when a handoff request
	// was recorded. Neither is part of the wire format.
	Reasons   []gate.Reason `json:"-"`
	HandoffID string        `json:"-"`
}

// Config holds the orchestrator's tunables.
type Config struct {
	TopK              int
	RetrievalTimeout  time.Duration
	GenerationTimeout time.Duration
	MaxTurns          int
	Contact           string
	DefaultLang       string
	RecordHandoffs    bool
	HandoffTimeout    time.Duration

	Model       string
	MaxTokens   int
	Temperature float64
}

// ConfigFrom maps the application config onto orchestrator settings.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		TopK:              cfg.Retrieval.TopK,
		RetrievalTimeout:  cfg.Retrieval.Timeout,
		GenerationTimeout: cfg.Generation.Timeout,
		MaxTurns:          cfg.Session.MaxTurns,
		Contact:           cfg.Handoff.Contact,
		DefaultLang:       cfg.Language.Default,
		RecordHandoffs:    cfg.Handoff.RecordAutomatic,
		Model:             cfg.Generation.Model,
		MaxTokens:         cfg.Generation.MaxTokens,
		Temperature:       cfg.Generation.Temperature,
	}
}
