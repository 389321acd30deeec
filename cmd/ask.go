package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/askdesk/internal/orchestrator"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question from the command line",
	Long:  `Runs one chat exchange in-process against the configured retrieval and generation services and prints the grounded reply.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().String("session", "", "session id to continue")
	askCmd.Flags().String("lang", "", "language hint for the reply, e.g. hi-IN")
	askCmd.Flags().Bool("json", false, "output the result as JSON")
	askCmd.Flags().Bool("record", false, "record automatic handoff requests in the handoff database")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	sessionID, _ := cmd.Flags().GetString("session")
	lang, _ := cmd.Flags().GetString("lang")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	record, _ := cmd.Flags().GetBool("record")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	a, err := newApp(ctx, cfg, logger, appOptions{withHandoffs: record})
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.orch.Chat(ctx, orchestrator.Request{
		Message:   args[0],
		Lang:      lang,
		SessionID: sessionID,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Println(res.ReplyText)
	fmt.Println()

	dim := color.New(color.Faint)
	dim.Printf("session %s\n", res.SessionID)
	if len(res.UsedChunks) > 0 {
		ids := make([]string, len(res.UsedChunks))
		for i, c := range res.UsedChunks {
			ids[i] = fmt.Sprintf("%s (%.2f)", c.ID, c.Score)
		}
		dim.Printf("sources: %s\n", strings.Join(ids, ", "))
	}
	if res.NeedsHuman {
		contact := ""
		if res.ContactInfo != nil {
			contact = *res.ContactInfo
		}
		color.New(color.FgYellow, color.Bold).Printf("A human should follow up: %s\n", contact)
	}
	return nil
}
