package models

import (
	"testing"
	"time"
)

// TestRunFinish tests run completion bookkeeping
func TestRunFinish(t *testing.T) {
	run := &AnnotationRun{
		ID:        "run-1",
		Status:    RunStatusRunning,
		Libraries: []string{"cello_library.xml"},
		StartedAt: time.Now().Add(-2 * time.Second),
	}

	if run.IsTerminal() {
		t.Fatal("Expected running run to be non-terminal")
	}

	run.Finish(RunStatusFailed, "library not found")

	if run.Status != RunStatusFailed {
		t.Errorf("Expected status %s, got %s", RunStatusFailed, run.Status)
	}
	if run.CompletedAt == nil {
		t.Fatal("Expected CompletedAt to be set")
	}
	if run.DurationMs < 2000 {
		t.Errorf("Expected duration of at least 2000ms, got %d", run.DurationMs)
	}
	if run.ErrorMessage != "library not found" {
		t.Errorf("Expected error message to be recorded, got %q", run.ErrorMessage)
	}
	if !run.IsTerminal() {
		t.Error("Expected finished run to be terminal")
	}
}
