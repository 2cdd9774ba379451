package project

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/noorall/fmtgate/internal/logging"
)

// Discoverer walks a project tree looking for module descriptor files.
type Discoverer struct {
	descriptors []string
	ignoreDirs  []string
	maxDepth    int
	logger      *logging.Logger
}

// NewDiscoverer creates a Discoverer that treats directories containing one
// of the given descriptor file names as modules. Directories whose name is in
// ignoreDirs, or that start with a dot, are pruned before recursion.
func NewDiscoverer(descriptors, ignoreDirs []string, maxDepth int, logger *logging.Logger) *Discoverer {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Discoverer{
		descriptors: descriptors,
		ignoreDirs:  ignoreDirs,
		maxDepth:    maxDepth,
		logger:      logger,
	}
}

// Discover recursively descends the tree rooted at rootDir and returns every
// module found, sorted by path depth ascending (root module first). Finding
// zero modules is not an error.
func (d *Discoverer) Discover(rootDir string) ([]Module, error) {
	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, fmt.Errorf("stat project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", rootDir)
	}

	var modules []Module
	d.walk(rootDir, rootDir, 0, &modules)

	sort.SliceStable(modules, func(i, j int) bool {
		if di, dj := modules[i].Depth(), modules[j].Depth(); di != dj {
			return di < dj
		}
		return modules[i].RelPath < modules[j].RelPath
	})

	d.logger.Debug("module discovery complete",
		"root", rootDir,
		"modules", len(modules),
	)
	return modules, nil
}

// walk visits dir, records it as a module if it directly contains a
// descriptor, and recurses into non-pruned subdirectories.
func (d *Discoverer) walk(rootDir, dir string, depth int, modules *[]Module) {
	if depth > d.maxDepth {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		// Unreadable directories are skipped, not fatal.
		d.logger.Warn("skipping unreadable directory", "dir", dir, "error", err)
		return
	}

	for _, name := range d.descriptors {
		descriptor := filepath.Join(dir, name)
		if info, err := os.Stat(descriptor); err == nil && !info.IsDir() {
			rel := relPath(rootDir, dir)
			*modules = append(*modules, Module{
				RelPath:    rel,
				Descriptor: descriptor,
				IsRoot:     rel == "",
			})
			break
		}
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if d.pruned(entry.Name()) {
			continue
		}
		d.walk(rootDir, filepath.Join(dir, entry.Name()), depth+1, modules)
	}
}

// pruned reports whether a directory name is excluded from recursion.
func (d *Discoverer) pruned(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	return slices.Contains(d.ignoreDirs, name)
}

// relPath converts dir to a slash-separated path relative to rootDir.
// Returns "" for the root itself.
func relPath(rootDir, dir string) string {
	rel, err := filepath.Rel(rootDir, dir)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}
