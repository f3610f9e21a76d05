package mode

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"parley/internal/types"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	policy := DefaultPolicy()
	e := NewEngine(policy)

	e.ProcessMessage(msg("ada", types.MsgProposal, "[PROPOSAL] lead with the outcome headline"), nil)
	e.ProcessMessage(msg("lin", types.MsgAgreement, "that framing works well for the audience"), nil)
	e.ProcessMessage(msg("max", types.MsgResearchRequest, "[research: pricing] what do competitors charge"), nil)
	e.ProcessMessage(msg("ada", types.MsgArgument, "## Hero\nShip copy twice as fast"), nil)

	data, err := e.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	restored := NewEngine(policy)
	if err := restored.FromJSON(data); err != nil {
		t.Fatalf("FromJSON: %v", err)
	}

	if diff := cmp.Diff(e.Snapshot(), restored.Snapshot()); diff != "" {
		t.Errorf("snapshot mismatch after round trip (-want +got):\n%s", diff)
	}

	// The restored engine must behave identically, not just report the same
	// numbers: the next message sees the same counters.
	before := e.GetProgress()
	after := restored.GetProgress()
	if before.TotalMessages != after.TotalMessages || before.CurrentPhaseID != after.CurrentPhaseID {
		t.Errorf("restored progress diverged: %+v vs %+v", before, after)
	}
}

func TestSnapshot_TopicOrderIsDeterministic(t *testing.T) {
	e := NewEngine(testPolicy())
	e.ProcessMessage(msg("ada", types.MsgResearchRequest, "[research: zebra] look this up"), nil)
	e.ProcessMessage(msg("lin", types.MsgResearchRequest, "[research: apple] and this too"), nil)

	s := e.Snapshot()
	if len(s.ResearchByTopic) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(s.ResearchByTopic))
	}
	if s.ResearchByTopic[0].Topic != "apple" || s.ResearchByTopic[1].Topic != "zebra" {
		t.Errorf("topics must be sorted, got %v", s.ResearchByTopic)
	}
}

func TestSnapshot_FingerprintsBounded(t *testing.T) {
	e := NewEngine(testPolicy())
	for i := 0; i < persistedFingerprints+15; i++ {
		e.ProcessMessage(msg("ada", types.MsgArgument, "filler discussion message number"), nil)
	}
	s := e.Snapshot()
	if len(s.Fingerprints) != persistedFingerprints {
		t.Errorf("expected %d persisted fingerprints, got %d", persistedFingerprints, len(s.Fingerprints))
	}
}

func TestRestore_EmptyPhaseDefaultsToFirst(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	e.Restore(Snapshot{TotalMessages: 12})

	p := e.GetProgress()
	if p.CurrentPhaseID != "exploration" {
		t.Errorf("empty phase should default to the first phase, got %s", p.CurrentPhaseID)
	}
	if p.TotalMessages != 12 {
		t.Errorf("expected TotalMessages 12, got %d", p.TotalMessages)
	}
	if p.ResearchByTopic == nil || p.OutputsProduced == nil {
		t.Error("restore must leave maps usable")
	}
}

func TestFromJSON_PartialData(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	if err := e.FromJSON([]byte(`{"current_phase_id":"debate","total_messages":9}`)); err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	p := e.GetProgress()
	if p.CurrentPhaseID != "debate" || p.TotalMessages != 9 {
		t.Errorf("unexpected progress: %+v", p)
	}
	if p.ResearchRequests != 0 || p.LoopDetected {
		t.Errorf("missing fields must default to zero: %+v", p)
	}

	// Resumed engine keeps processing from where it left off.
	e.ProcessMessage(msg("ada", types.MsgArgument, "resuming the discussion now"), nil)
	if got := e.GetProgress().TotalMessages; got != 10 {
		t.Errorf("expected TotalMessages 10 after resume, got %d", got)
	}
}
