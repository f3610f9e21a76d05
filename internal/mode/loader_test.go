package mode

import (
	"os"
	"path/filepath"
	"testing"
)

const validModeYAML = `
id: quick-review
name: Quick Review
description: Two-phase review mode.
goal_reminder:
  frequency: 5
  template: "Stay on {goal}."
phases:
  - id: review
    name: Review
    order: 0
    max_messages: 10
    auto_transition: true
  - id: verdict
    name: Verdict
    order: 1
    max_messages: 5
research:
  max_requests: 3
  required_before_synthesis: 1
loop_detection:
  enabled: true
  max_similar_messages: 3
  window_size: 10
  min_hash_length: 20
success_criteria:
  min_consensus_points: 1
  required_outputs: [verdict]
`

func writeMode(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadPolicy(t *testing.T) {
	dir := t.TempDir()
	writeMode(t, dir, "quick.yaml", validModeYAML)

	p, err := LoadPolicy(filepath.Join(dir, "quick.yaml"))
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if p.ID != "quick-review" {
		t.Errorf("expected id quick-review, got %s", p.ID)
	}
	if len(p.Phases) != 2 {
		t.Fatalf("expected 2 phases, got %d", len(p.Phases))
	}
	if p.FirstPhase().ID != "review" {
		t.Errorf("expected first phase review, got %s", p.FirstPhase().ID)
	}
	if !p.LoopDetection.Enabled || p.LoopDetection.MaxSimilarMessages != 3 {
		t.Errorf("loop detection not parsed: %+v", p.LoopDetection)
	}
}

func TestLoadPolicy_InvalidRejected(t *testing.T) {
	dir := t.TempDir()
	writeMode(t, dir, "nophases.yaml", "id: empty\nname: Empty\nphases: []\n")
	if _, err := LoadPolicy(filepath.Join(dir, "nophases.yaml")); err == nil {
		t.Error("policy without phases must be rejected")
	}

	writeMode(t, dir, "dup.yaml", `
id: dup
name: Dup
phases:
  - {id: a, name: A, order: 0, max_messages: 5}
  - {id: a, name: A again, order: 1, max_messages: 5}
`)
	if _, err := LoadPolicy(filepath.Join(dir, "dup.yaml")); err == nil {
		t.Error("duplicate phase ids must be rejected")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeMode(t, dir, "quick.yaml", validModeYAML)
	writeMode(t, dir, "broken.yaml", "id: broken\nphases: [") // skipped, not fatal
	writeMode(t, dir, "notes.txt", "not a mode file")

	reg, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if _, ok := reg.Get("quick-review"); !ok {
		t.Error("expected quick-review to be loaded")
	}
	if _, ok := reg.Get(DefaultPolicy().ID); !ok {
		t.Error("built-in default mode must always be present")
	}
	if _, ok := reg.Get("broken"); ok {
		t.Error("broken file must be skipped")
	}
}

func TestLoadDir_MissingDirectory(t *testing.T) {
	reg, err := LoadDir(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("missing dir should not fail: %v", err)
	}
	if len(reg.List()) != 1 {
		t.Errorf("expected only the built-in mode, got %d", len(reg.List()))
	}
}

func TestRegistry_PutReplaces(t *testing.T) {
	reg := NewRegistry()
	p := DefaultPolicy()
	p.Name = "Renamed"
	reg.Put(p)

	got, ok := reg.Get(p.ID)
	if !ok || got.Name != "Renamed" {
		t.Errorf("Put should replace by id, got %+v", got)
	}
}

func TestDefaultPolicy_Valid(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Errorf("built-in mode must validate: %v", err)
	}
}
