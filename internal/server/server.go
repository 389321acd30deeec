// Package server exposes the orchestrator over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ziadkadry99/askdesk/internal/handoff"
	"github.com/ziadkadry99/askdesk/internal/orchestrator"
	"github.com/ziadkadry99/askdesk/internal/retrieval"
	"github.com/ziadkadry99/askdesk/internal/transcript"
)

// Config holds server configuration.
type Config struct {
	Port          int
	AllowAll      bool // allow all CORS and WebSocket origins
	StatusTimeout time.Duration

	// AdminToken guards /admin. Admin routes are not mounted when it is empty.
	AdminToken string
}

// Deps are the components the server exposes. Handoffs is optional.
type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Retriever    retrieval.Retriever
	Handoffs     *handoff.Store
	Transcripts  *transcript.Renderer
	Logger       *slog.Logger
}

// Server is the askdesk HTTP front end.
type Server struct {
	cfg        Config
	orch       *orchestrator.Orchestrator
	retriever  retrieval.Retriever
	handoffs   *handoff.Store
	renderer   *transcript.Renderer
	logger     *slog.Logger
	started    time.Time
	router     chi.Router
	httpServer *http.Server
}

// New creates a server and builds its routes.
func New(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = 5 * time.Second
	}
	s := &Server{
		cfg:       cfg,
		orch:      deps.Orchestrator,
		retriever: deps.Retriever,
		handoffs:  deps.Handoffs,
		renderer:  deps.Transcripts,
		logger:    logger.With("component", "server"),
		started:   time.Now(),
	}
	s.router = s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", adminTokenHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
		corsOpts.AllowCredentials = false
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/chat", s.handleChat)
	r.Get("/ws/chat", s.handleWebSocket)

	if s.cfg.AdminToken != "" {
		r.Route("/admin", s.registerAdminRoutes)
	}

	return r
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port. It returns
// http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.logger.Info("askdesk listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server. It is safe to call before or
// concurrently with Start.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
