package project

import (
	"testing"

	"github.com/padverb/vizor/internal/engine"
	"github.com/padverb/vizor/internal/param"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	state := engine.ProjectState{
		BPM:       128,
		StepCount: 32,
		RampSteps: 4,
		Patterns: map[string]engine.Pattern{
			"warm": {
				"brightness": param.Number(1.2),
				"pattern":    param.Text("nebula"),
			},
		},
		Assignments: make([]string, 32),
	}
	state.Assignments[0] = "warm"

	if err := Save("live-set", state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load("live-set")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.BPM != 128 || got.StepCount != 32 || got.RampSteps != 4 {
		t.Fatalf("transport fields lost: %+v", got)
	}
	if got.Assignments[0] != "warm" {
		t.Fatalf("assignment lost: %q", got.Assignments[0])
	}
	p, ok := got.Patterns["warm"]
	if !ok {
		t.Fatalf("pattern missing after round trip")
	}
	if !p["brightness"].Equal(param.Number(1.2)) {
		t.Fatalf("pattern value mismatch: %+v", p["brightness"])
	}

	names, err := List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 1 || names[0] != "live-set" {
		t.Fatalf("List = %v", names)
	}

	if err := Delete("live-set"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	names, _ = List()
	if len(names) != 0 {
		t.Fatalf("project still listed after delete: %v", names)
	}
}

func TestRejectsPathTraversalNames(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := Save("../escape", engine.ProjectState{BPM: 120, StepCount: 16}); err == nil {
		t.Fatalf("expected error for name with path separator")
	}
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty name")
	}
}
