package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"treesweep/internal/exitcodes"
	"treesweep/internal/pipeline"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitcodes.Success},
		{"missing root", fmt.Errorf("reference root /x: %w", pipeline.ErrMissingRoot), exitcodes.SetupError},
		{"not a directory", fmt.Errorf("target root /x: %w", pipeline.ErrNotDirectory), exitcodes.SetupError},
		{"same root", pipeline.ErrSameRoot, exitcodes.SetupError},
		{"nested roots", pipeline.ErrNestedRoots, exitcodes.SetupError},
		{"unsafe root", fmt.Errorf("/: %w", pipeline.ErrUnsafeRoot), exitcodes.SafetyViolation},
		{"usage error", errors.New("accepts 2 arg(s), received 1"), exitcodes.SetupError},
		{"runtime failure", &runFailure{context.Canceled}, exitcodes.RuntimeError},
		{"wrapped runtime failure", fmt.Errorf("run: %w", &runFailure{errors.New("boom")}), exitcodes.RuntimeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, expected %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, expected %q", tt.in, got, tt.want)
		}
	}
}

type countingLogger struct {
	calls int
}

func (l *countingLogger) Printf(format string, args ...interface{}) {
	l.calls++
}

func TestProgressHeartbeat(t *testing.T) {
	logger := &countingLogger{}
	p := newProgress(logger, false)

	for i := 0; i < 250; i++ {
		p.FileVisited(fmt.Sprintf("file_%d.txt", i))
	}

	// Heartbeats at 100 and 200 visits
	if logger.calls != 2 {
		t.Errorf("Expected 2 heartbeat logs, got %d", logger.calls)
	}
}

func TestProgressVerbose(t *testing.T) {
	logger := &countingLogger{}
	p := newProgress(logger, true)

	for i := 0; i < 3; i++ {
		p.FileVisited(fmt.Sprintf("file_%d.txt", i))
	}

	if logger.calls != 3 {
		t.Errorf("Expected a log per visit, got %d", logger.calls)
	}
}
