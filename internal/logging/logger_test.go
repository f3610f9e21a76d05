package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitialize_DisabledIsNoOp(t *testing.T) {
	if err := Initialize("", false, "info"); err != nil {
		t.Fatalf("disabled init must not fail: %v", err)
	}
	defer Shutdown()

	// Nothing should panic or write anywhere.
	Rules("rules message %d", 1)
	Get(CategoryStore).Error("store error")
	StartTimer(CategoryRules, "op").Stop()
}

func TestInitialize_WritesCategoryFiles(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, true, "debug"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer Shutdown()

	Rules("transition to %s", "debate")
	Consensus("tally complete")
	Shutdown()

	data, err := os.ReadFile(filepath.Join(dir, "rules.log"))
	if err != nil {
		t.Fatalf("rules log missing: %v", err)
	}
	if !strings.Contains(string(data), "transition to debate") {
		t.Errorf("rules log missing entry: %s", data)
	}
	if _, err := os.Stat(filepath.Join(dir, "consensus.log")); err != nil {
		t.Errorf("consensus log missing: %v", err)
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, true, "warn"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer Shutdown()

	l := Get(CategorySession)
	l.Debug("debug entry")
	l.Info("info entry")
	l.Warn("warn entry")
	Shutdown()

	data, _ := os.ReadFile(filepath.Join(dir, "session.log"))
	if strings.Contains(string(data), "info entry") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(string(data), "warn entry") {
		t.Errorf("warn entry missing: %s", data)
	}
}
