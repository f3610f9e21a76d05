package consensus

import (
	"fmt"
	"strings"
	"testing"

	"parley/internal/types"
)

func roster(ids ...string) []types.Participant {
	out := make([]types.Participant, 0, len(ids))
	for _, id := range ids {
		out = append(out, types.Participant{ID: id, DisplayName: id})
	}
	return out
}

var msgSeq int

func tmsg(author, content string) types.Message {
	msgSeq++
	return types.Message{
		ID:       fmt.Sprintf("msg-%04d", msgSeq),
		AuthorID: author,
		Type:     types.MsgArgument,
		Content:  content,
	}
}

func TestTracker_FallbackReadiness(t *testing.T) {
	tr := NewTracker(roster("ada", "lin", "max"))
	authors := []string{"ada", "lin", "max"}

	// Neutral contributions: no tags, no cues, so consensus stays at zero and
	// readiness can only come from the extended-discussion fallback at 4n.
	contents := []string{
		"the audience skews toward technical founders",
		"churn concentrates in the first thirty days",
		"competitor copy leans heavily on fear",
		"our trial conversion beats the category median",
		"the pricing page gets half the traffic",
		"most signups come from the comparison article",
	}
	for i := 0; i < 11; i++ {
		tr.RecordMessage(authors[i%3], tmsg(authors[i%3], contents[i%len(contents)]))
		if report := tr.Status(); report.Ready {
			t.Fatalf("ready too early at %d contributions: %s", i+1, report.Recommendation)
		}
	}

	tr.RecordMessage("max", tmsg("max", contents[0]))
	report := tr.Status()
	if !report.Ready {
		t.Fatalf("expected fallback readiness at 4n contributions: %s", report.Recommendation)
	}
	if !strings.Contains(report.Recommendation, "long enough") {
		t.Errorf("recommendation should explain the fallback, got %q", report.Recommendation)
	}
	if report.ConsensusPoints != 0 {
		t.Errorf("no consensus should have been recorded, got %d", report.ConsensusPoints)
	}
}

func TestTracker_MissingSpeakerBlocks(t *testing.T) {
	tr := NewTracker(roster("ada", "lin", "max"))
	for i := 0; i < 20; i++ {
		tr.RecordMessage("ada", tmsg("ada", "more context on the funnel numbers"))
		tr.RecordMessage("lin", tmsg("lin", "further notes on tone and voice"))
	}

	report := tr.Status()
	if report.Ready {
		t.Fatal("readiness must be blocked while a participant is silent")
	}
	if report.AllParticipantsSpoke {
		t.Error("AllParticipantsSpoke should be false")
	}
	if !strings.Contains(report.Recommendation, "max") {
		t.Errorf("recommendation should name the silent participant, got %q", report.Recommendation)
	}
}

func TestTracker_ProposalAgreementConsensus(t *testing.T) {
	tr := NewTracker(roster("ada", "lin", "max"))

	tr.RecordMessage("ada", tmsg("ada", "[PROPOSAL] open with the customer quote"))
	tr.RecordMessage("lin", tmsg("lin", "[AGREEMENT] the quote carries the page"))

	// 2 of 3 supporters: 0.67 clears the 0.6 consensus threshold.
	report := tr.Status()
	if report.ConsensusPoints != 1 {
		t.Fatalf("expected 1 consensus point, got %d", report.ConsensusPoints)
	}

	insights := tr.Insights()
	if len(insights) != 1 {
		t.Fatalf("expected 1 insight, got %d", len(insights))
	}
	for _, insight := range insights {
		if !insight.Supporters["ada"] || !insight.Supporters["lin"] {
			t.Errorf("expected ada and lin as supporters, got %v", insight.Supporters)
		}
		if len(insight.Opposers) != 0 {
			t.Errorf("expected no opposers, got %v", insight.Opposers)
		}
	}
}

func TestTracker_ConflictBlocksThenConsensusOutweighs(t *testing.T) {
	tr := NewTracker(roster("ada", "lin"))

	tr.RecordMessage("ada", tmsg("ada", "[PROPOSAL] cut the feature grid entirely"))
	tr.RecordMessage("lin", tmsg("lin", "[DISAGREEMENT] buyers scan that grid first"))
	tr.RecordMessage("ada", tmsg("ada", "the grid takes a third of the page"))
	tr.RecordMessage("lin", tmsg("lin", "scan data says otherwise for this segment"))

	report := tr.Status()
	// 1 of 2 opposers on the proposal: 0.5 clears the 0.4 conflict threshold.
	if report.ConflictPoints != 1 {
		t.Fatalf("expected 1 conflict point, got %d", report.ConflictPoints)
	}
	if report.Ready {
		t.Fatalf("conflict must block readiness: %s", report.Recommendation)
	}

	// An agreement on a later point ties the score; conflict no longer
	// strictly outweighs consensus, and consensus is nonzero, so ready.
	tr.RecordMessage("lin", tmsg("lin", "[AGREEMENT] fair, the scan data settles it"))
	report = tr.Status()
	if report.ConsensusPoints != 1 {
		t.Fatalf("expected 1 consensus point, got %d", report.ConsensusPoints)
	}
	if !report.Ready {
		t.Errorf("tie between conflict and consensus should not block: %s", report.Recommendation)
	}
}

func TestTracker_HumanVoteWeighsDouble(t *testing.T) {
	tr := NewTracker(roster("ada", "lin"))

	tr.RecordMessage("ada", tmsg("ada", "[PROPOSAL] lead with the integration story"))
	tr.RecordMessage(types.AuthorHuman, tmsg(types.AuthorHuman, "[AGREEMENT] that is the strongest angle"))

	// Total weight is 2 agents + 2 for the human. Plain count would be
	// 2/4 = 0.5 and miss the threshold; the doubled human vote makes it
	// 3/4 = 0.75.
	report := tr.Status()
	if report.ConsensusPoints != 1 {
		t.Errorf("expected human-weighted consensus point, got %d", report.ConsensusPoints)
	}
}

func TestTracker_PendingResearchBlocks(t *testing.T) {
	tr := NewTracker(roster("ada", "lin"))
	tr.RecordMessage("ada", tmsg("ada", "[PROPOSAL] anchor on the time savings"))
	tr.RecordMessage("lin", tmsg("lin", "[AGREEMENT] the demo numbers back it"))
	tr.RecordMessage("ada", tmsg("ada", "we can cite the onboarding study"))
	tr.RecordMessage("lin", tmsg("lin", "the study covers our exact segment"))

	if report := tr.Status(); !report.Ready {
		t.Fatalf("precondition: should be ready before research: %s", report.Recommendation)
	}

	tr.AddPendingResearch()
	report := tr.Status()
	if report.Ready {
		t.Fatal("outstanding research must block readiness")
	}
	if !strings.Contains(report.Recommendation, "research") {
		t.Errorf("recommendation should mention research, got %q", report.Recommendation)
	}

	tr.ResolvePendingResearch()
	if report := tr.Status(); !report.Ready {
		t.Errorf("resolved research should unblock: %s", report.Recommendation)
	}
}

func TestTracker_PositionFlip(t *testing.T) {
	tr := NewTracker(roster("ada", "lin"))

	tr.RecordMessage("ada", tmsg("ada", "[PROPOSAL] a single long-form page"))
	tr.RecordMessage("lin", tmsg("lin", "[DISAGREEMENT] too much scroll for mobile"))
	// The back-search skips lin's own message and lands on the proposal
	// again; the flip moves lin from opposers to supporters.
	tr.RecordMessage("lin", tmsg("lin", "[AGREEMENT] the sticky nav fixes the scroll"))

	insights := tr.Insights()
	if len(insights) != 1 {
		t.Fatalf("expected 1 insight, got %d", len(insights))
	}
	for _, insight := range insights {
		if !insight.Supporters["lin"] {
			t.Errorf("lin should have flipped to supporter, got %v", insight.Supporters)
		}
		if insight.Opposers["lin"] {
			t.Errorf("lin must be removed from opposers, got %v", insight.Opposers)
		}
	}
}

func TestTracker_AgreementWithoutReferent(t *testing.T) {
	tr := NewTracker(roster("ada", "lin"))
	// Nothing to refer to yet: the position is dropped, not invented.
	tr.RecordMessage("ada", tmsg("ada", "[AGREEMENT] sounds good"))

	if got := len(tr.Insights()); got != 0 {
		t.Errorf("expected no insights, got %d", got)
	}
	if report := tr.Status(); report.ConsensusPoints != 0 {
		t.Errorf("expected 0 consensus points, got %d", report.ConsensusPoints)
	}
}

func TestTracker_SystemMessagesNotReferents(t *testing.T) {
	tr := NewTracker(roster("ada", "lin"))
	tr.RecordMessage("ada", tmsg("ada", "[PROPOSAL] benefits before features"))
	sys := tmsg(types.AuthorSystem, "=== Phase: Debate ===")
	tr.RecordMessage(types.AuthorSystem, sys)
	tr.RecordMessage("lin", tmsg("lin", "[AGREEMENT] benefits first reads better"))

	// The agreement must skip the system message and attach to the proposal.
	found := false
	for _, insight := range tr.Insights() {
		if insight.Supporters["ada"] && insight.Supporters["lin"] {
			found = true
		}
	}
	if !found {
		t.Errorf("agreement should attach to the proposal past the system message, got %v", tr.Insights())
	}
}
