package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete fmtgate configuration
type Config struct {
	Enabled   bool            `mapstructure:"enabled"`
	Command   CommandConfig   `mapstructure:"command"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Timeouts  TimeoutConfig   `mapstructure:"timeouts"`
	Status    StatusConfig    `mapstructure:"status"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// CommandConfig describes the external formatting command invocation
type CommandConfig struct {
	// Path is the formatting tool executable (default: "./gradlew")
	Path string `mapstructure:"path"`
	// Subcommand is the fixed formatting task to invoke (default: "spotlessApply")
	Subcommand string `mapstructure:"subcommand"`
	// DescriptorFlag passes the module descriptor file for module-scoped runs
	// (default: "-f"); omitted entirely for the project-root legacy scope
	DescriptorFlag string `mapstructure:"descriptor_flag"`
	// FilesParam is the parameter name carrying the comma-joined file filter
	// (default: "-PspotlessFiles")
	FilesParam string `mapstructure:"files_param"`
	// VerboseArg is appended to every invocation when non-empty (default: "--console=plain")
	VerboseArg string `mapstructure:"verbose_arg"`
	// TailLines is how many trailing output lines to keep for diagnostics (default: 50)
	TailLines int `mapstructure:"tail_lines"`
}

// DiscoveryConfig controls module discovery
type DiscoveryConfig struct {
	// Descriptors are the file names that mark a directory as a module root
	// (default: build.gradle, build.gradle.kts)
	Descriptors []string `mapstructure:"descriptors"`
	// IgnoreDirs are directory names pruned before recursion, in addition
	// to hidden directories (default: build, out, target, node_modules, vendor)
	IgnoreDirs []string `mapstructure:"ignore_dirs"`
	// MaxDepth bounds the recursion depth (default: 10)
	MaxDepth int `mapstructure:"max_depth"`
}

// TimeoutConfig holds the three independent timeout layers.
//
// SessionBudgetSeconds and WaitPollTimeoutSeconds are the waiter-side values
// of the handshake protocol; each is clamped to a documented [min,max] range
// at load time, with a warning logged when the configured value falls outside it.
type TimeoutConfig struct {
	// ProcessTimeoutSeconds is the per-process elapsed-time limit (default: 300)
	ProcessTimeoutSeconds int `mapstructure:"process_timeout_seconds"`
	// SessionBudgetSeconds is the waiter's overall wall-clock budget
	// (default: 300, clamped to [10, 1800])
	SessionBudgetSeconds int `mapstructure:"session_budget_seconds"`
	// WaitPollTimeoutSeconds is the waiter's per-wait budget
	// (default: 30, clamped to [1, 300])
	WaitPollTimeoutSeconds int `mapstructure:"wait_poll_timeout_seconds"`
	// PollIntervalMs is the waiter's fixed polling interval (default: 500)
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	// StartupGraceSeconds is how long the waiter tolerates a missing status
	// file before concluding no initiator is present (default: 10)
	StartupGraceSeconds int `mapstructure:"startup_grace_seconds"`
	// StallThresholdSeconds is how long an unchanged progress value is
	// tolerated before the waiter treats it as an implicit failure (default: 120)
	StallThresholdSeconds int `mapstructure:"stall_threshold_seconds"`
}

// StatusConfig controls the shared-file status channel
type StatusConfig struct {
	// Dir is the shared directory holding the status and lock files,
	// relative to the project root (default: ".git/fmtgate")
	Dir string `mapstructure:"dir"`
	// LingerSeconds is how long a terminal status record is left in place
	// before cleanup, so the waiter can observe it once more (default: 3)
	LingerSeconds int `mapstructure:"linger_seconds"`
	// SessionWindowSeconds is the dedupe window during which a change set
	// that was already formatted is not formatted again (default: 60)
	SessionWindowSeconds int `mapstructure:"session_window_seconds"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Level is the log level: debug, info, warn, error (default: info)
	Level string `mapstructure:"level"`
	// Dir is the log directory; empty means stderr (default: "")
	Dir string `mapstructure:"dir"`
}

// Clamp ranges for waiter-side timeouts, documented in TimeoutConfig.
const (
	MinSessionBudgetSeconds = 10
	MaxSessionBudgetSeconds = 1800
	MinWaitPollSeconds      = 1
	MaxWaitPollSeconds      = 300
)

// ProcessTimeout returns the per-process timeout as a duration.
func (t *TimeoutConfig) ProcessTimeout() time.Duration {
	return time.Duration(t.ProcessTimeoutSeconds) * time.Second
}

// SessionBudget returns the waiter's overall budget as a duration.
func (t *TimeoutConfig) SessionBudget() time.Duration {
	return time.Duration(t.SessionBudgetSeconds) * time.Second
}

// WaitPollTimeout returns the waiter's per-wait budget as a duration.
func (t *TimeoutConfig) WaitPollTimeout() time.Duration {
	return time.Duration(t.WaitPollTimeoutSeconds) * time.Second
}

// PollInterval returns the waiter's polling interval as a duration.
func (t *TimeoutConfig) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalMs) * time.Millisecond
}

// StartupGrace returns the waiter's startup grace as a duration.
func (t *TimeoutConfig) StartupGrace() time.Duration {
	return time.Duration(t.StartupGraceSeconds) * time.Second
}

// StallThreshold returns the waiter's stall threshold as a duration.
func (t *TimeoutConfig) StallThreshold() time.Duration {
	return time.Duration(t.StallThresholdSeconds) * time.Second
}

// Linger returns the terminal-record linger window as a duration.
func (s *StatusConfig) Linger() time.Duration {
	return time.Duration(s.LingerSeconds) * time.Second
}

// SessionWindow returns the session dedupe window as a duration.
func (s *StatusConfig) SessionWindow() time.Duration {
	return time.Duration(s.SessionWindowSeconds) * time.Second
}

// Default returns a Config populated with default values
func Default() *Config {
	return &Config{
		Enabled: true,
		Command: CommandConfig{
			Path:           "./gradlew",
			Subcommand:     "spotlessApply",
			DescriptorFlag: "-f",
			FilesParam:     "-PspotlessFiles",
			VerboseArg:     "--console=plain",
			TailLines:      50,
		},
		Discovery: DiscoveryConfig{
			Descriptors: []string{"build.gradle", "build.gradle.kts"},
			IgnoreDirs:  []string{"build", "out", "target", "node_modules", "vendor"},
			MaxDepth:    10,
		},
		Timeouts: TimeoutConfig{
			ProcessTimeoutSeconds:  300,
			SessionBudgetSeconds:   300,
			WaitPollTimeoutSeconds: 30,
			PollIntervalMs:         500,
			StartupGraceSeconds:    10,
			StallThresholdSeconds:  120,
		},
		Status: StatusConfig{
			Dir:                  filepath.Join(".git", "fmtgate"),
			LingerSeconds:        3,
			SessionWindowSeconds: 60,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "",
		},
	}
}

// SetDefaults registers default values with viper so they're available
// even without a config file
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("enabled", defaults.Enabled)

	// Command defaults
	viper.SetDefault("command.path", defaults.Command.Path)
	viper.SetDefault("command.subcommand", defaults.Command.Subcommand)
	viper.SetDefault("command.descriptor_flag", defaults.Command.DescriptorFlag)
	viper.SetDefault("command.files_param", defaults.Command.FilesParam)
	viper.SetDefault("command.verbose_arg", defaults.Command.VerboseArg)
	viper.SetDefault("command.tail_lines", defaults.Command.TailLines)

	// Discovery defaults
	viper.SetDefault("discovery.descriptors", defaults.Discovery.Descriptors)
	viper.SetDefault("discovery.ignore_dirs", defaults.Discovery.IgnoreDirs)
	viper.SetDefault("discovery.max_depth", defaults.Discovery.MaxDepth)

	// Timeout defaults
	viper.SetDefault("timeouts.process_timeout_seconds", defaults.Timeouts.ProcessTimeoutSeconds)
	viper.SetDefault("timeouts.session_budget_seconds", defaults.Timeouts.SessionBudgetSeconds)
	viper.SetDefault("timeouts.wait_poll_timeout_seconds", defaults.Timeouts.WaitPollTimeoutSeconds)
	viper.SetDefault("timeouts.poll_interval_ms", defaults.Timeouts.PollIntervalMs)
	viper.SetDefault("timeouts.startup_grace_seconds", defaults.Timeouts.StartupGraceSeconds)
	viper.SetDefault("timeouts.stall_threshold_seconds", defaults.Timeouts.StallThresholdSeconds)

	// Status defaults
	viper.SetDefault("status.dir", defaults.Status.Dir)
	viper.SetDefault("status.linger_seconds", defaults.Status.LingerSeconds)
	viper.SetDefault("status.session_window_seconds", defaults.Status.SessionWindowSeconds)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load reads the configuration from viper into a Config struct
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the directory where the fmtgate config file lives
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "fmtgate")
}
