package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/askdesk/internal/server"
	"github.com/ziadkadry99/askdesk/internal/transcript"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat server",
	Long:  `Starts the askdesk HTTP server with the /chat endpoint, the /ws/chat WebSocket, and the token-guarded /admin routes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}
		logger := newLogger(cfg)

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger, appOptions{withHandoffs: true})
		if err != nil {
			return err
		}
		defer a.Close()

		renderer, err := transcript.NewRenderer()
		if err != nil {
			return err
		}

		srv := server.New(server.Config{
			Port:          cfg.Server.Port,
			AllowAll:      cfg.Server.AllowAllOrigins,
			StatusTimeout: cfg.Retrieval.StatusTimeout,
			AdminToken:    cfg.Admin.Token,
		}, server.Deps{
			Orchestrator: a.orch,
			Retriever:    a.retriever,
			Handoffs:     a.handoffs,
			Transcripts:  renderer,
			Logger:       logger,
		})

		go func() {
			<-ctx.Done()
			logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("shutdown failed", "error", err)
			}
		}()

		logger.Info("askdesk server starting",
			"version", Version,
			"port", cfg.Server.Port,
			"retrieval", a.retriever.URL(),
			"generation", cfg.Generation.Backend,
			"handoff_db", cfg.Handoff.DBPath,
			"admin", cfg.Admin.Token != "",
		)

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 3000, "HTTP port (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
