// Package vcs shells out to git for the two things the formatting flow
// needs: listing changed files and re-staging formatter edits.
package vcs

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/noorall/fmtgate/internal/logging"
)

// Git runs git commands rooted at a working tree.
type Git struct {
	workDir string
	logger  *logging.Logger
}

// NewGit creates a Git client for the given working tree. A nil logger
// disables logging.
func NewGit(workDir string, logger *logging.Logger) *Git {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Git{workDir: workDir, logger: logger}
}

// StagedFiles returns the paths of files currently staged for commit,
// relative to the repository root.
func (g *Git) StagedFiles(ctx context.Context) ([]string, error) {
	return g.nameOnly(ctx, "diff", "--name-only", "--cached")
}

// ModifiedFiles returns the paths of tracked files with unstaged
// modifications, relative to the repository root.
func (g *Git) ModifiedFiles(ctx context.Context) ([]string, error) {
	return g.nameOnly(ctx, "diff", "--name-only")
}

// ReStage adds the given files back to the index so formatter edits land in
// the same commit. Missing files are tolerated: the formatter may have
// deleted or renamed them.
func (g *Git) ReStage(ctx context.Context, files []string) error {
	if len(files) == 0 {
		return nil
	}

	args := append([]string{"add", "--ignore-errors", "--"}, files...)
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.workDir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to re-stage %d file(s): %w\n%s",
			len(files), err, string(output))
	}

	g.logger.Debug("re-staged formatted files", "files", len(files))
	return nil
}

// RootDir returns the absolute path of the repository's top-level directory.
func (g *Git) RootDir(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--show-toplevel")
	cmd.Dir = g.workDir

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to resolve repository root: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

func (g *Git) nameOnly(ctx context.Context, args ...string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.workDir

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s failed: %w", strings.Join(args, " "), err)
	}

	trimmed := strings.TrimSpace(string(output))
	if trimmed == "" {
		return nil, nil
	}
	return strings.Split(trimmed, "\n"), nil
}
