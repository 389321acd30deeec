package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/askdesk/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize askdesk configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure the retrieval and generation services, the confidence threshold and the handoff contact, and writes a .askdesk.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
