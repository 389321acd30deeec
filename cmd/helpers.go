package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ziadkadry99/askdesk/internal/audit"
	"github.com/ziadkadry99/askdesk/internal/config"
	"github.com/ziadkadry99/askdesk/internal/db"
	"github.com/ziadkadry99/askdesk/internal/gate"
	"github.com/ziadkadry99/askdesk/internal/handoff"
	"github.com/ziadkadry99/askdesk/internal/llm"
	"github.com/ziadkadry99/askdesk/internal/orchestrator"
	"github.com/ziadkadry99/askdesk/internal/retrieval"
	"github.com/ziadkadry99/askdesk/internal/session"
)

// app is the set of components every command assembles from config.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	sessions  *session.Store
	retriever *retrieval.Client
	handoffs  *handoff.Store
	orch      *orchestrator.Orchestrator
	database  *db.DB
}

type appOptions struct {
	// withHandoffs opens the handoff database and records automatic tickets.
	withHandoffs bool
}

// newApp wires config into a ready orchestrator. The session cleanup loop
// runs until ctx is done or Close is called.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (*app, error) {
	httpClient := &http.Client{}

	sessions := session.NewStore(session.Policy{
		IdleTTL:     cfg.Session.IdleTTL,
		MaxSessions: cfg.Session.MaxSessions,
	}, logger)
	sessions.Start(ctx, cfg.Session.CleanupInterval)

	retriever := retrieval.NewClient(cfg.Retrieval.BaseURL, cfg.Retrieval.Path, httpClient)

	generator, err := llm.NewProvider(cfg.Generation, httpClient)
	if err != nil {
		sessions.Close()
		return nil, fmt.Errorf("creating generation provider: %w", err)
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		sessions:  sessions,
		retriever: retriever,
	}

	orchCfg := orchestrator.ConfigFrom(cfg)
	deps := orchestrator.Deps{
		Sessions:  sessions,
		Retriever: retriever,
		Generator: generator,
		Gate:      gate.New(cfg.Retrieval.Threshold, cfg.Gate.UncertaintyPhrases),
		Meta:      retrieval.NewMetaCache(),
		Logger:    logger,
	}

	if opts.withHandoffs {
		database, err := db.Open(cfg.Handoff.DBPath)
		if err != nil {
			sessions.Close()
			return nil, fmt.Errorf("opening handoff database: %w", err)
		}
		a.database = database
		a.handoffs = handoff.NewStore(database).WithAudit(audit.NewStore(database))
		deps.Escalator = a.handoffs
	} else {
		orchCfg.RecordHandoffs = false
	}

	a.orch, err = orchestrator.New(orchCfg, deps)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}
	return a, nil
}

// Close stops background work and releases the database.
func (a *app) Close() {
	a.sessions.Close()
	if a.database != nil {
		if err := a.database.Close(); err != nil {
			a.logger.Warn("closing handoff database", "error", err)
		}
	}
}
