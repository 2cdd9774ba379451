package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/noorall/fmtgate/internal/logging"
)

func modulesFixture(relPaths ...string) []Module {
	mods := make([]Module, 0, len(relPaths))
	for _, p := range relPaths {
		mods = append(mods, Module{RelPath: p, IsRoot: p == ""})
	}
	return mods
}

func planPaths(p Plan) []string {
	paths := make([]string, 0, len(p.Modules))
	for _, m := range p.Modules {
		paths = append(paths, m.RelPath)
	}
	return paths
}

func TestAnalyzeAffected(t *testing.T) {
	tests := []struct {
		name         string
		changedFiles []string
		modules      []Module
		wantPaths    []string
		wantRootOnly bool
	}{
		{
			name:         "root-level file collapses plan to root",
			changedFiles: []string{"root.java", "modA/X.java", "modB/Y.java"},
			modules:      modulesFixture("", "modA", "modB"),
			wantPaths:    []string{""},
			wantRootOnly: true,
		},
		{
			name:         "root-level file without root module yields empty plan",
			changedFiles: []string{"root.java", "modA/X.java"},
			modules:      modulesFixture("modA"),
			wantPaths:    []string{},
		},
		{
			name:         "deepest module wins",
			changedFiles: []string{"a/b/Foo.java"},
			modules:      modulesFixture("", "a", "a/b"),
			wantPaths:    []string{"a/b"},
		},
		{
			name:         "files spread across modules, deduplicated and sorted",
			changedFiles: []string{"modB/Y.java", "modA/X.java", "modA/sub/Z.java"},
			modules:      modulesFixture("modA", "modB"),
			wantPaths:    []string{"modA", "modB"},
		},
		{
			name:         "unmatched file skipped",
			changedFiles: []string{"elsewhere/W.java", "modA/X.java"},
			modules:      modulesFixture("modA"),
			wantPaths:    []string{"modA"},
		},
		{
			name:         "root module catches otherwise unmatched files",
			changedFiles: []string{"docs/readme/Intro.java"},
			modules:      modulesFixture("", "modA"),
			wantPaths:    []string{""},
		},
		{
			name:         "no files yields empty plan",
			changedFiles: nil,
			modules:      modulesFixture("", "modA"),
			wantPaths:    []string{},
		},
		{
			name:         "prefix must be a path boundary",
			changedFiles: []string{"modAextra/X.java"},
			modules:      modulesFixture("modA"),
			wantPaths:    []string{},
		},
	}

	analyzer := NewAnalyzer(logging.NopLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := analyzer.AnalyzeAffected(tt.changedFiles, tt.modules)

			got := planPaths(plan)
			if len(got) != len(tt.wantPaths) {
				t.Fatalf("plan modules = %v, want %v", got, tt.wantPaths)
			}
			for i := range got {
				if got[i] != tt.wantPaths[i] {
					t.Errorf("plan modules = %v, want %v", got, tt.wantPaths)
					break
				}
			}
			if plan.RootOnly != tt.wantRootOnly {
				t.Errorf("RootOnly = %v, want %v", plan.RootOnly, tt.wantRootOnly)
			}
		})
	}
}

func TestAnalyzeAffectedRootOnlyInvariant(t *testing.T) {
	analyzer := NewAnalyzer(logging.NopLogger())
	plan := analyzer.AnalyzeAffected(
		[]string{"settings.gradle"},
		modulesFixture("", "a", "a/b"),
	)

	if !plan.RootOnly {
		t.Fatal("expected RootOnly plan")
	}
	if len(plan.Modules) != 1 || !plan.Modules[0].IsRoot {
		t.Errorf("RootOnly plan must contain exactly the root module, got %+v", plan.Modules)
	}
}

func TestValidate(t *testing.T) {
	root := t.TempDir()
	descriptor := filepath.Join(root, "build.gradle")
	if err := os.WriteFile(descriptor, []byte("// build\n"), 0644); err != nil {
		t.Fatalf("write descriptor: %v", err)
	}

	analyzer := NewAnalyzer(logging.NopLogger())

	t.Run("readable descriptor is valid", func(t *testing.T) {
		m := Module{RelPath: "", Descriptor: descriptor, IsRoot: true}
		if err := analyzer.Validate(m); err != nil {
			t.Errorf("Validate failed for readable descriptor: %v", err)
		}
	})

	t.Run("missing descriptor is invalid", func(t *testing.T) {
		m := Module{RelPath: "gone", Descriptor: filepath.Join(root, "gone", "build.gradle")}
		if err := analyzer.Validate(m); err == nil {
			t.Error("expected error for missing descriptor")
		}
	})
}

func TestFilterValid(t *testing.T) {
	root := t.TempDir()
	good := filepath.Join(root, "modA", "build.gradle")
	if err := os.MkdirAll(filepath.Dir(good), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(good, []byte("// build\n"), 0644); err != nil {
		t.Fatalf("write descriptor: %v", err)
	}

	analyzer := NewAnalyzer(logging.NopLogger())
	plan := Plan{Modules: []Module{
		{RelPath: "modA", Descriptor: good},
		{RelPath: "modB", Descriptor: filepath.Join(root, "modB", "build.gradle")},
	}}

	filtered := analyzer.FilterValid(plan)

	if len(filtered.Modules) != 1 {
		t.Fatalf("got %d valid modules, want 1", len(filtered.Modules))
	}
	if filtered.Modules[0].RelPath != "modA" {
		t.Errorf("surviving module = %q, want modA", filtered.Modules[0].RelPath)
	}
}
