package project

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/noorall/fmtgate/internal/errors"
	"github.com/noorall/fmtgate/internal/logging"
)

// Analyzer maps changed files onto discovered modules.
type Analyzer struct {
	logger *logging.Logger
}

// NewAnalyzer creates an Analyzer. A nil logger disables logging.
func NewAnalyzer(logger *logging.Logger) *Analyzer {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Analyzer{logger: logger}
}

// AnalyzeAffected builds the execution plan for the given changed files.
//
// If any file path contains no path separator it lives directly under the
// project root; in that case the whole plan collapses immediately to the root
// module alone (or to an empty plan when no root module exists), and all
// other files are discarded.
//
// Otherwise each file is assigned to the deepest module whose relative path
// is a strict path-prefix of the file. Files matching no module are skipped
// with a logged warning. The resulting plan is the deduplicated, path-sorted
// set of matched modules.
func (a *Analyzer) AnalyzeAffected(changedFiles []string, modules []Module) Plan {
	for _, f := range changedFiles {
		if !strings.ContainsRune(normalize(f), '/') {
			if root, ok := rootModule(modules); ok {
				a.logger.Debug("root-level change detected, collapsing plan to root", "file", f)
				return Plan{Modules: []Module{root}, RootOnly: true}
			}
			a.logger.Warn("root-level change but no root module exists", "file", f)
			return Plan{}
		}
	}

	// Deepest module first so the most specific subtree wins.
	byDepth := make([]Module, len(modules))
	copy(byDepth, modules)
	sort.SliceStable(byDepth, func(i, j int) bool {
		return byDepth[i].Depth() > byDepth[j].Depth()
	})

	matched := make(map[string]Module)
	for _, f := range changedFiles {
		file := normalize(f)
		found := false
		for _, m := range byDepth {
			if m.Contains(file) {
				matched[m.RelPath] = m
				found = true
				break
			}
		}
		if !found {
			a.logger.Warn("changed file matches no module, skipping", "file", f)
		}
	}

	plan := Plan{Modules: make([]Module, 0, len(matched))}
	for _, m := range matched {
		plan.Modules = append(plan.Modules, m)
	}
	sort.Slice(plan.Modules, func(i, j int) bool {
		return plan.Modules[i].RelPath < plan.Modules[j].RelPath
	})
	return plan
}

// Validate checks that a module's descriptor file exists and is readable.
func (a *Analyzer) Validate(m Module) error {
	f, err := os.Open(m.Descriptor)
	if err != nil {
		return errors.NewModuleError("descriptor unreadable", err).WithModule(m.RelPath)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close descriptor: %w", err)
	}
	return nil
}

// FilterValid drops invalid modules from the plan, logging each one.
// Invalid modules never fail the overall call.
func (a *Analyzer) FilterValid(plan Plan) Plan {
	valid := make([]Module, 0, len(plan.Modules))
	for _, m := range plan.Modules {
		if err := a.Validate(m); err != nil {
			a.logger.Warn("dropping invalid module from plan",
				"module", m.RelPath,
				"error", err,
			)
			continue
		}
		valid = append(valid, m)
	}
	return Plan{Modules: valid, RootOnly: plan.RootOnly && len(valid) == 1}
}

// rootModule returns the root module from the list, if present.
func rootModule(modules []Module) (Module, bool) {
	for _, m := range modules {
		if m.IsRoot {
			return m, true
		}
	}
	return Module{}, false
}
