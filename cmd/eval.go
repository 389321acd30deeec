package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/askdesk/internal/eval"
	"github.com/ziadkadry99/askdesk/internal/progress"
)

var evalCmd = &cobra.Command{
	Use:   "eval <glob>...",
	Short: "Run evaluation suites against the assistant",
	Long: `Loads YAML evaluation suites matching the given patterns (** is supported)
and runs every case through the assistant, checking replies, handoff
decisions and the passages used. Exits non-zero when any case fails.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		suites, err := eval.LoadSuites(args)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		runner := eval.NewRunner(a.orch, progress.NewReporter(os.Stderr, "Evaluating"), logger)
		report, err := runner.Run(ctx, suites)
		report.WriteSummary(os.Stdout)
		if err != nil {
			return err
		}
		if report.Failed() > 0 {
			return fmt.Errorf("%d of %d cases failed", report.Failed(), len(report.Results))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(evalCmd)
}
