package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/noorall/fmtgate/internal/errors"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current formatting session status",
	Long:  `Display the status and lock records of the shared status channel.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	rec, err := ch.ReadStatus()
	if errors.Is(err, errors.ErrNoStatus) {
		fmt.Println("No formatting session")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read status: %w", err)
	}

	fmt.Printf("State:    %s\n", rec.State)
	fmt.Printf("Message:  %s\n", rec.Message)
	fmt.Printf("Progress: %.0f%%\n", rec.Progress*100)
	fmt.Printf("Session:  %s\n", rec.SessionID)
	fmt.Printf("Updated:  %s\n", rec.Timestamp.Format("2006-01-02 15:04:05"))
	if len(rec.Files) > 0 {
		fmt.Printf("Files:    %d\n", len(rec.Files))
	}

	if lock, err := ch.ReadLock(); err == nil {
		age := time.Since(lock.Timestamp).Round(time.Second)
		fmt.Printf("Lock:     session %s, pid %d, age %s", lock.SessionID, lock.PID, age)
		if lock.IsStale(time.Now()) {
			fmt.Print(" (stale)")
		}
		fmt.Println()
	}
	return nil
}
