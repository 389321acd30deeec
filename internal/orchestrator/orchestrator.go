// Package orchestrator runs one chat exchange end to end: retrieval, prompt
// assembly, generation, the confidence gate and the history update.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/ziadkadry99/askdesk/internal/gate"
	"github.com/ziadkadry99/askdesk/internal/grounding"
	"github.com/ziadkadry99/askdesk/internal/handoff"
	"github.com/ziadkadry99/askdesk/internal/llm"
	"github.com/ziadkadry99/askdesk/internal/retrieval"
	"github.com/ziadkadry99/askdesk/internal/session"
)

const defaultHandoffTimeout = 5 * time.Second

// Escalator records that a conversation needs a human. *handoff.Store
// satisfies it.
type Escalator interface {
	Create(ctx context.Context, req handoff.Request) (*handoff.Request, error)
}

// Deps are the collaborators an Orchestrator drives. Escalator and Logger
// are optional.
type Deps struct {
	Sessions  *session.Store
	Retriever retrieval.Retriever
	Generator llm.Provider
	Gate      *gate.Gate
	Meta      *retrieval.MetaCache
	Escalator Escalator
	Logger    *slog.Logger
}

// Orchestrator is safe for concurrent use. Exchanges on the same session
// are serialized.
type Orchestrator struct {
	cfg       Config
	sessions  *session.Store
	retriever retrieval.Retriever
	generator llm.Provider
	gate      *gate.Gate
	meta      *retrieval.MetaCache
	escalator Escalator
	logger    *slog.Logger
}

// New creates an orchestrator. Sessions, Retriever, Generator and Gate are
// required.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Sessions == nil || deps.Retriever == nil || deps.Generator == nil || deps.Gate == nil {
		return nil, errors.New("orchestrator: sessions, retriever, generator and gate are required")
	}
	if deps.Meta == nil {
		deps.Meta = retrieval.NewMetaCache()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.DefaultLang == "" {
		cfg.DefaultLang = grounding.DefaultLanguage
	}
	if cfg.HandoffTimeout <= 0 {
		cfg.HandoffTimeout = defaultHandoffTimeout
	}
	return &Orchestrator{
		cfg:       cfg,
		sessions:  deps.Sessions,
		retriever: deps.Retriever,
		generator: deps.Generator,
		gate:      deps.Gate,
		meta:      deps.Meta,
		escalator: deps.Escalator,
		logger:    deps.Logger.With("component", "orchestrator"),
	}, nil
}

// Sessions returns the store the orchestrator records history in.
func (o *Orchestrator) Sessions() *session.Store {
	return o.sessions
}

// Meta returns the cache of the latest retrieval metadata.
func (o *Orchestrator) Meta() *retrieval.MetaCache {
	return o.meta
}

// Chat answers one user message. Errors wrap ErrInvalidInput,
// ErrUpstreamUnavailable or ErrInternal; on error the session history is
// left as it was.
func (o *Orchestrator) Chat(ctx context.Context, req Request) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("chat panicked", "panic", r, "stack", string(debug.Stack()))
			res, err = nil, fmt.Errorf("%w: %v", ErrInternal, r)
		}
	}()

	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrInvalidInput
	}
	lang := req.Lang
	if lang == "" {
		lang = o.cfg.DefaultLang
	}

	sid, sess := o.sessions.Resolve(req.SessionID)
	logger := o.logger.With("session_id", sid)

	release, err := sess.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: waiting for session: %w", ErrInternal, err)
	}
	defer release()

	hits := o.retrieve(ctx, logger, req.Message)
	decision := o.gate.Provisional(hits)

	instruction := grounding.BuildSystemInstruction(grounding.BuildGroundingBlock(hits), lang)
	messages := grounding.BuildMessages(instruction, sess.Messages(), req.Message)

	reply, err := o.generate(ctx, messages)
	if err != nil {
		logger.Error("LLM proxy error", "backend", o.generator.Name(), "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	decision = o.gate.Finalize(decision, reply)

	res = &Result{
		ReplyText:      reply,
		NeedsHuman:     decision.NeedsHuman,
		ConversationID: sess.ConversationID,
		UsedChunks:     usedChunks(hits),
		Meta:           o.meta.Load(),
		SessionID:      sid,
		Reasons:        decision.Reasons,
	}
	if decision.NeedsHuman {
		contact := o.cfg.Contact
		res.ContactInfo = &contact
		res.HandoffID = o.escalate(ctx, logger, sess, req.Message, reply, decision)
	}

	// Nothing that can fail runs after the history write.
	o.sessions.Record(sess, req.Message, reply, o.cfg.MaxTurns)

	logger.Debug("chat answered",
		"hits", len(hits),
		"needs_human", res.NeedsHuman,
		"history", sess.Len(),
	)
	return res, nil
}

// retrieve never fails: errors degrade to an empty hit set.
func (o *Orchestrator) retrieve(ctx context.Context, logger *slog.Logger, query string) []retrieval.Hit {
	rctx, cancel := withTimeout(ctx, o.cfg.RetrievalTimeout)
	defer cancel()

	resp, err := o.retriever.Retrieve(rctx, query, o.cfg.TopK)
	if err != nil {
		logger.Warn("retriever call failed", "error", err)
		return nil
	}
	if resp == nil {
		return nil
	}
	o.meta.Update(resp.Meta)
	return resp.Results
}

func (o *Orchestrator) generate(ctx context.Context, messages []llm.Message) (string, error) {
	gctx, cancel := withTimeout(ctx, o.cfg.GenerationTimeout)
	defer cancel()

	resp, err := o.generator.Complete(gctx, llm.CompletionRequest{
		Model:       o.cfg.Model,
		Messages:    messages,
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", errors.New("empty reply")
	}
	return resp.Content, nil
}

// escalate records an automatic handoff request. Failures, including a
// panicking escalator, are logged only.
func (o *Orchestrator) escalate(ctx context.Context, logger *slog.Logger, sess *session.Session, question, reply string, decision gate.Decision) (id string) {
	if !o.cfg.RecordHandoffs || o.escalator == nil {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("recording handoff panicked", "panic", r)
			id = ""
		}
	}()

	reasons := make([]string, len(decision.Reasons))
	for i, r := range decision.Reasons {
		reasons[i] = string(r)
	}

	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.HandoffTimeout)
	defer cancel()

	created, err := o.escalator.Create(hctx, handoff.Request{
		SessionID:      sess.ID,
		ConversationID: sess.ConversationID,
		Source:         handoff.SourceAutomatic,
		Reason:         strings.Join(reasons, ","),
		Question:       question,
		Reply:          reply,
	})
	if err != nil {
		logger.Warn("recording handoff failed", "error", err)
		return ""
	}
	if created == nil {
		logger.Warn("recording handoff returned no request")
		return ""
	}
	logger.Info("handoff requested", "handoff_id", created.ID, "reason", created.Reason)
	return created.ID
}

func usedChunks(hits []retrieval.Hit) []UsedChunk {
	chunks := make([]UsedChunk, len(hits))
	for i, h := range hits {
		chunks[i] = UsedChunk{ID: h.ID, Score: h.Score}
	}
	return chunks
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
