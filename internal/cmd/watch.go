package cmd

import (
	"github.com/spf13/cobra"

	"github.com/noorall/fmtgate/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a formatting session live",
	Long: `Watch renders the status channel in the terminal, updating as the
session progresses, and exits once it reaches a terminal state.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Close()

	root, err := projectRoot(cmd.Context(), cmd, logger)
	if err != nil {
		return err
	}

	return tui.Watch(statusChannel(cfg, root, logger), cfg.Timeouts.PollInterval())
}
