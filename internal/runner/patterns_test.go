package runner

import (
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantClass LineClass
		wantCount int
	}{
		{
			name:      "explicit success marker",
			line:      "BUILD SUCCESSFUL in 12s",
			wantClass: ClassSuccess,
		},
		{
			name:      "explicit failure marker",
			line:      "BUILD FAILED in 3s",
			wantClass: ClassFailure,
		},
		{
			name:      "failure prefix form",
			line:      "FAILURE: Build failed with an exception.",
			wantClass: ClassFailure,
		},
		{
			name:      "file count raises expected total",
			line:      "Need to format 12 files",
			wantClass: ClassFileCount,
			wantCount: 12,
		},
		{
			name:      "single file count",
			line:      "checking 1 file",
			wantClass: ClassFileCount,
			wantCount: 1,
		},
		{
			name:      "formatted marker",
			line:      "core/src/A.java formatted",
			wantClass: ClassProcessed,
		},
		{
			name:      "already formatted marker",
			line:      "core/src/B.java already formatted",
			wantClass: ClassProcessed,
		},
		{
			name:      "up-to-date marker",
			line:      "Task :core:spotlessJava is up-to-date",
			wantClass: ClassProcessed,
		},
		{
			name:      "applying marker",
			line:      "applying formatter step to C.java",
			wantClass: ClassProcessed,
		},
		{
			name:      "unrecognized line",
			line:      "Starting a Gradle Daemon",
			wantClass: ClassNone,
		},
		{
			name:      "explicit marker wins over heuristics",
			line:      "BUILD SUCCESSFUL: 3 files formatted",
			wantClass: ClassSuccess,
		},
		{
			name:      "empty line",
			line:      "",
			wantClass: ClassNone,
		},
	}

	var c Classifier
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, count := c.Classify(tt.line)
			if class != tt.wantClass {
				t.Errorf("Classify(%q) class = %v, want %v", tt.line, class, tt.wantClass)
			}
			if count != tt.wantCount {
				t.Errorf("Classify(%q) count = %d, want %d", tt.line, count, tt.wantCount)
			}
		})
	}
}

func TestProgressTracker(t *testing.T) {
	var p progressTracker

	if f := p.fraction(); f != 0 {
		t.Errorf("initial fraction = %v, want 0", f)
	}

	// Without an announced total, the denominator keeps one open slot so
	// progress never reaches 1.0 early.
	p.observe(ClassProcessed, 0)
	if f := p.fraction(); f >= 1.0 {
		t.Errorf("fraction = %v, must stay below 1.0 without a known total", f)
	}

	p.observe(ClassFileCount, 4)
	p.observe(ClassProcessed, 0)
	if f := p.fraction(); f != 0.5 {
		t.Errorf("fraction = %v, want 0.5 after 2 of 4 files", f)
	}

	// Processing more files than announced re-opens the denominator, so
	// the fraction approaches but never reaches 1.0.
	for i := 0; i < 10; i++ {
		p.observe(ClassProcessed, 0)
	}
	if f := p.fraction(); f >= 1.0 || f < 0.9 {
		t.Errorf("fraction = %v, want just below 1.0 after overshooting the announced total", f)
	}
}

func TestProgressTrackerLowerCountIgnored(t *testing.T) {
	var p progressTracker
	p.observe(ClassFileCount, 10)
	p.observe(ClassFileCount, 3)

	if p.expected != 10 {
		t.Errorf("expected = %d, a lower announced count must not shrink the estimate", p.expected)
	}
}
