package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/noorall/fmtgate/internal/config"
	"github.com/noorall/fmtgate/internal/logging"
	"github.com/noorall/fmtgate/internal/statusfile"
	"github.com/noorall/fmtgate/internal/vcs"
)

var rootCmd = &cobra.Command{
	Use:   "fmtgate",
	Short: "Asynchronous code formatting coordinator",
	Long: `Fmtgate runs slow formatting tools in the background while you keep
working, and lets the commit hook wait briefly for an in-flight session
instead of re-running the formatter itself. The two sides coordinate
through status and lock files under the shared status directory.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command under ctx so an interrupt cancels
// in-flight sessions and waits cleanly.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/fmtgate/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	rootCmd.PersistentFlags().String("root", "", "project root (default: git top-level, else current directory)")
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/fmtgate")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("FMTGATE")
	// Replace dots with underscores for nested keys in env vars
	// e.g., FMTGATE_TIMEOUTS_PROCESS_TIMEOUT_SECONDS for timeouts.process_timeout_seconds
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// loadConfig unmarshals and validates the configuration, then builds the
// logger it specifies. Out-of-range timeout values are clamped with a
// logged warning rather than rejected.
func loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	cfg.ClampTimeouts(logger)
	return cfg, logger, nil
}

// projectRoot resolves the project root: the --root flag if given, else the
// enclosing git top-level, else the current directory.
func projectRoot(ctx context.Context, cmd *cobra.Command, logger *logging.Logger) (string, error) {
	if root, _ := cmd.Flags().GetString("root"); root != "" {
		return filepath.Abs(root)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	if top, err := vcs.NewGit(cwd, logger).RootDir(ctx); err == nil {
		return top, nil
	}
	return cwd, nil
}

// statusChannel opens the shared status channel for the given project root,
// honoring an absolute configured status directory.
func statusChannel(cfg *config.Config, root string, logger *logging.Logger) *statusfile.Channel {
	dir := cfg.Status.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	return statusfile.NewChannel(dir, logger)
}
