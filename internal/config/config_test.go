package config

import (
	"testing"

	"github.com/noorall/fmtgate/internal/logging"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if !cfg.Enabled {
		t.Error("expected Enabled to default to true")
	}
	if cfg.Command.Subcommand != "spotlessApply" {
		t.Errorf("Command.Subcommand = %q, want %q", cfg.Command.Subcommand, "spotlessApply")
	}
	if len(cfg.Discovery.Descriptors) == 0 {
		t.Error("expected at least one default descriptor")
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("default config should validate cleanly, got: %v", ValidationErrors(errs))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantField string
	}{
		{
			name:      "empty command path",
			mutate:    func(c *Config) { c.Command.Path = "" },
			wantField: "command.path",
		},
		{
			name:      "empty subcommand",
			mutate:    func(c *Config) { c.Command.Subcommand = "" },
			wantField: "command.subcommand",
		},
		{
			name:      "no descriptors",
			mutate:    func(c *Config) { c.Discovery.Descriptors = nil },
			wantField: "discovery.descriptors",
		},
		{
			name:      "zero max depth",
			mutate:    func(c *Config) { c.Discovery.MaxDepth = 0 },
			wantField: "discovery.max_depth",
		},
		{
			name:      "poll interval too small",
			mutate:    func(c *Config) { c.Timeouts.PollIntervalMs = 10 },
			wantField: "timeouts.poll_interval_ms",
		},
		{
			name:      "empty status dir",
			mutate:    func(c *Config) { c.Status.Dir = "" },
			wantField: "status.dir",
		},
		{
			name:      "bad log level",
			mutate:    func(c *Config) { c.Logging.Level = "verbose" },
			wantField: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			errs := cfg.Validate()
			if len(errs) == 0 {
				t.Fatal("expected validation errors, got none")
			}

			found := false
			for _, e := range errs {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error for field %q, got: %v", tt.wantField, ValidationErrors(errs))
			}
		})
	}
}

func TestClampTimeouts(t *testing.T) {
	tests := []struct {
		name        string
		budget      int
		poll        int
		wantBudget  int
		wantPoll    int
	}{
		{
			name:       "in range untouched",
			budget:     300,
			poll:       30,
			wantBudget: 300,
			wantPoll:   30,
		},
		{
			name:       "below minimum raised",
			budget:     1,
			poll:       0,
			wantBudget: MinSessionBudgetSeconds,
			wantPoll:   MinWaitPollSeconds,
		},
		{
			name:       "above maximum lowered",
			budget:     999999,
			poll:       10000,
			wantBudget: MaxSessionBudgetSeconds,
			wantPoll:   MaxWaitPollSeconds,
		},
		{
			name:       "boundary values kept",
			budget:     MinSessionBudgetSeconds,
			poll:       MaxWaitPollSeconds,
			wantBudget: MinSessionBudgetSeconds,
			wantPoll:   MaxWaitPollSeconds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Timeouts.SessionBudgetSeconds = tt.budget
			cfg.Timeouts.WaitPollTimeoutSeconds = tt.poll

			cfg.ClampTimeouts(logging.NopLogger())

			if cfg.Timeouts.SessionBudgetSeconds != tt.wantBudget {
				t.Errorf("SessionBudgetSeconds = %d, want %d",
					cfg.Timeouts.SessionBudgetSeconds, tt.wantBudget)
			}
			if cfg.Timeouts.WaitPollTimeoutSeconds != tt.wantPoll {
				t.Errorf("WaitPollTimeoutSeconds = %d, want %d",
					cfg.Timeouts.WaitPollTimeoutSeconds, tt.wantPoll)
			}
		})
	}
}

func TestClampTimeoutsNilLogger(t *testing.T) {
	cfg := Default()
	cfg.Timeouts.SessionBudgetSeconds = 0

	// Must not panic without a logger.
	cfg.ClampTimeouts(nil)

	if cfg.Timeouts.SessionBudgetSeconds != MinSessionBudgetSeconds {
		t.Errorf("SessionBudgetSeconds = %d, want %d",
			cfg.Timeouts.SessionBudgetSeconds, MinSessionBudgetSeconds)
	}
}
