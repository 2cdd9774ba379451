package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noorall/fmtgate/internal/statusfile"
	"github.com/noorall/fmtgate/internal/vcs"
)

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait briefly for an in-flight formatting session",
	Long: `Wait is the commit-hook side of the handshake. It polls the status
channel until the session finishes, no initiator shows up within the
startup grace, progress stalls, or the wall-clock budget runs out.

On success the formatted files are re-staged so the formatter's edits land
in the commit. Wait always exits zero: formatting is best-effort and must
never block a commit.`,
	RunE: runWait,
}

func init() {
	rootCmd.AddCommand(waitCmd)
	waitCmd.Flags().Bool("no-restage", false, "report the outcome but do not re-stage formatted files")
}

func runWait(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx := cmd.Context()
	root, err := projectRoot(ctx, cmd, logger)
	if err != nil {
		return err
	}

	if !cfg.Enabled {
		fmt.Println("fmtgate is disabled, proceeding")
		return nil
	}

	waiter := statusfile.NewWaiter(statusChannel(cfg, root, logger), statusfile.WaiterConfig{
		Budget:         cfg.Timeouts.SessionBudget(),
		PollInterval:   cfg.Timeouts.PollInterval(),
		PollTimeout:    cfg.Timeouts.WaitPollTimeout(),
		StartupGrace:   cfg.Timeouts.StartupGrace(),
		StallThreshold: cfg.Timeouts.StallThreshold(),
	}, logger)

	res := waiter.Wait(ctx)
	fmt.Printf("%s (%s)\n", res.Outcome, res.Reason)

	if res.Outcome != statusfile.OutcomeReStageAndProceed || len(res.Files) == 0 {
		return nil
	}
	if noRestage, _ := cmd.Flags().GetBool("no-restage"); noRestage {
		return nil
	}

	if err := vcs.NewGit(root, logger).ReStage(ctx, res.Files); err != nil {
		// Re-staging is best-effort too: the commit proceeds either way.
		logger.Warn("re-stage failed", "error", err)
		fmt.Printf("warning: could not re-stage formatted files: %v\n", err)
		return nil
	}
	fmt.Printf("Re-staged %d formatted file(s)\n", len(res.Files))
	return nil
}
