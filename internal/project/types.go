// Package project discovers build-module boundaries under a project root and
// maps changed files to the modules they belong to. A module is any directory
// that directly contains a build descriptor file; the project root itself is
// the root module when it carries a descriptor.
package project

import (
	"path"
	"strings"
)

// Module is one formatting-scope subtree, identified by its own descriptor file.
type Module struct {
	// RelPath is the module directory relative to the project root, using
	// forward slashes. Empty for the root module.
	RelPath string

	// Descriptor is the absolute path of the build descriptor file that
	// marks this directory as a module.
	Descriptor string

	// IsRoot reports whether this is the project-root module. Exactly one
	// module may be the root, identified by an empty RelPath.
	IsRoot bool
}

// Depth returns the number of path segments in the module's relative path.
// The root module has depth zero.
func (m Module) Depth() int {
	if m.RelPath == "" {
		return 0
	}
	return strings.Count(m.RelPath, "/") + 1
}

// Contains reports whether the given project-relative file path falls inside
// this module's subtree. The root module contains every file.
func (m Module) Contains(file string) bool {
	if m.IsRoot {
		return true
	}
	return strings.HasPrefix(file, m.RelPath+"/")
}

// Plan is the set of modules a formatting session must cover.
type Plan struct {
	// Modules is the deduplicated, path-sorted set of affected modules.
	Modules []Module

	// RootOnly indicates the plan collapsed to the root module alone.
	// When set, Modules contains exactly the root module.
	RootOnly bool
}

// IsEmpty reports whether the plan covers no modules at all.
func (p Plan) IsEmpty() bool {
	return len(p.Modules) == 0
}

// normalize converts a file path to the slash-separated form used throughout
// this package.
func normalize(file string) string {
	return path.Clean(strings.ReplaceAll(file, "\\", "/"))
}
