package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/noorall/fmtgate/internal/coordinator"
	"github.com/noorall/fmtgate/internal/engine"
	"github.com/noorall/fmtgate/internal/errors"
	"github.com/noorall/fmtgate/internal/vcs"
)

var formatCmd = &cobra.Command{
	Use:   "format [files...]",
	Short: "Run a formatting session over changed files",
	Long: `Format runs one formatting session over the given files, or over the
currently staged files when none are given. Progress and the final outcome
are published on the status channel so a concurrent "fmtgate wait" can
observe them.

With --async the session runs in a background process and the command
returns immediately.`,
	RunE: runFormat,
}

func init() {
	rootCmd.AddCommand(formatCmd)
	formatCmd.Flags().Bool("async", false, "start the session in a background process and return immediately")
	formatCmd.Flags().Bool("unstaged", false, "format modified-but-unstaged files instead of staged ones")
}

func runFormat(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Close()

	if !cfg.Enabled {
		fmt.Println("fmtgate is disabled (set enabled: true in the config to activate)")
		return nil
	}

	ctx := cmd.Context()
	root, err := projectRoot(ctx, cmd, logger)
	if err != nil {
		return err
	}

	files := args
	if len(files) == 0 {
		git := vcs.NewGit(root, logger)
		unstaged, _ := cmd.Flags().GetBool("unstaged")
		if unstaged {
			files, err = git.ModifiedFiles(ctx)
		} else {
			files, err = git.StagedFiles(ctx)
		}
		if err != nil {
			return fmt.Errorf("failed to list changed files: %w", err)
		}
	}
	if len(files) == 0 {
		fmt.Println("No changed files, nothing to format")
		return nil
	}

	if async, _ := cmd.Flags().GetBool("async"); async {
		return detachSession(viper.GetString("config"), root, files)
	}

	coord := coordinator.New(cfg, root, nil, logger)
	defer coord.Shutdown()

	summary, err := coord.Run(ctx, files)
	switch {
	case errors.Is(err, errors.ErrSessionActive):
		fmt.Println("A formatting session is already running")
		return nil
	case errors.Is(err, errors.ErrRecentlyProcessed):
		fmt.Println("These files were formatted moments ago, skipping")
		return nil
	case errors.Is(err, errors.ErrLockHeld):
		fmt.Println("Another fmtgate process holds the session lock")
		return nil
	case err != nil:
		return err
	}

	printSummary(summary)
	if !summary.OverallSuccess {
		return fmt.Errorf("formatting failed")
	}
	return nil
}

// detachSession re-executes fmtgate in a released background process so the
// caller returns immediately while the session keeps publishing status.
func detachSession(cfgFile, root string, files []string) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve own executable: %w", err)
	}

	child := exec.Command(self, detachArgs(cfgFile, root, files)...)
	child.Stdout = nil
	child.Stderr = nil
	if err := child.Start(); err != nil {
		return fmt.Errorf("failed to start background session: %w", err)
	}
	if err := child.Process.Release(); err != nil {
		return fmt.Errorf("failed to release background session: %w", err)
	}

	fmt.Printf("Formatting %d file(s) in the background (pid %d)\n", len(files), child.Process.Pid)
	return nil
}

// detachArgs rebuilds the child's command line, carrying the explicit config
// file over so the background session runs under the same configuration.
func detachArgs(cfgFile, root string, files []string) []string {
	args := []string{"format"}
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	args = append(args, "--root", root)
	return append(args, files...)
}

func printSummary(summary *engine.Summary) {
	for _, r := range summary.Results {
		name := r.Module.RelPath
		if r.Module.IsRoot {
			name = "(root)"
		}
		switch {
		case r.Success:
			fmt.Printf("  ok      %-30s %s\n", name, r.Duration.Round(time.Millisecond))
		case r.TimedOut:
			fmt.Printf("  timeout %-30s %s\n", name, r.Duration.Round(time.Millisecond))
		case r.Cancelled:
			fmt.Printf("  cancel  %-30s\n", name)
		default:
			fmt.Printf("  FAIL    %-30s %v\n", name, r.Err)
		}
	}
	fmt.Printf("Formatted %d module(s) in %s\n",
		len(summary.Results), summary.TotalDuration.Round(time.Millisecond))
}
