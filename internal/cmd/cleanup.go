package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove stale status and lock files",
	Long: `Cleanup removes the status and lock files left behind by a crashed
initiator. It refuses to touch a lock younger than the staleness threshold
unless --force is given.`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().Bool("force", false, "remove the channel files even if the lock is fresh")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Close()

	root, err := projectRoot(cmd.Context(), cmd, logger)
	if err != nil {
		return err
	}
	ch := statusChannel(cfg, root, logger)

	force, _ := cmd.Flags().GetBool("force")
	if lock, err := ch.ReadLock(); err == nil && !lock.IsStale(time.Now()) && !force {
		return fmt.Errorf("lock is held by session %s (pid %d) and not stale; use --force to remove anyway",
			lock.SessionID, lock.PID)
	}

	ch.Cleanup()
	fmt.Println("Status channel cleaned up")
	return nil
}
