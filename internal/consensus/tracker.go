// Package consensus tracks participant contributions and agreement signals
// for one deliberation session. It answers one question: is this group
// ready to move on?
package consensus

import (
	"fmt"
	"sort"
	"strings"

	"parley/internal/logging"
	"parley/internal/types"
)

// Fixed thresholds and weights. An insight needs 60% effective support to
// count as consensus; 40% effective opposition counts as conflict; a human
// vote weighs double an agent's.
const (
	consensusThreshold = 0.6
	conflictThreshold  = 0.4
	humanVoteWeight    = 2
)

// backSearchWindow bounds how far back we look for the message an
// agreement or disagreement refers to.
const backSearchWindow = 5

// Insight is a tracked point of discussion with recorded supporters and
// opposers.
type Insight struct {
	Content    string          `json:"content"`
	Supporters map[string]bool `json:"supporters"`
	Opposers   map[string]bool `json:"opposers"`
}

// Report is the tracker's readiness answer.
type Report struct {
	Ready                bool           `json:"ready"`
	AllParticipantsSpoke bool           `json:"all_participants_spoke"`
	Contributions        map[string]int `json:"contributions"`
	ConsensusPoints      int            `json:"consensus_points"`
	ConflictPoints       int            `json:"conflict_points"`
	Recommendation       string         `json:"recommendation"`
}

// Tracker owns the per-session consensus bookkeeping. Not safe for
// concurrent use; the session serializes calls.
type Tracker struct {
	participants  []types.Participant
	contributions map[string]int
	insights      map[string]*Insight

	// Recent recorded messages, newest last, for agreement back-search.
	recent []types.Message

	// Research requests awaiting results block readiness.
	pendingResearch int
}

// NewTracker creates a tracker for the enabled participant roster.
func NewTracker(participants []types.Participant) *Tracker {
	return &Tracker{
		participants:  participants,
		contributions: make(map[string]int),
		insights:      make(map[string]*Insight),
	}
}

// AddPendingResearch marks a research request as outstanding.
func (t *Tracker) AddPendingResearch() { t.pendingResearch++ }

// ResolvePendingResearch marks a research result as received.
func (t *Tracker) ResolvePendingResearch() {
	if t.pendingResearch > 0 {
		t.pendingResearch--
	}
}

// RecordMessage registers one non-system contribution.
func (t *Tracker) RecordMessage(agentID string, msg types.Message) {
	t.contributions[agentID]++

	switch classify(msg) {
	case ResponseAgreement:
		t.recordPosition(agentID, true)
	case ResponseDisagreement:
		t.recordPosition(agentID, false)
	case ResponseProposal, ResponseSynthesis:
		key := insightKey(agentID, msg.ShortID())
		t.insights[key] = &Insight{
			Content:    summarize(msg.Content),
			Supporters: map[string]bool{agentID: true},
			Opposers:   map[string]bool{},
		}
		logging.ConsensusDebug("New insight %s from %s", key, agentID)
	}

	t.recent = append(t.recent, msg)
	if len(t.recent) > backSearchWindow*4 {
		t.recent = t.recent[len(t.recent)-backSearchWindow*4:]
	}
}

// recordPosition attributes an agreement/disagreement to the most recent
// prior message from a different non-system author.
func (t *Tracker) recordPosition(agentID string, agrees bool) {
	target := t.findReferent(agentID)
	if target == nil {
		logging.ConsensusDebug("No referent found for %s position", agentID)
		return
	}

	key := insightKey(target.AuthorID, target.ShortID())
	insight, ok := t.insights[key]
	if !ok {
		// First reference creates the insight, seeded with the original
		// author's support.
		insight = &Insight{
			Content:    summarize(target.Content),
			Supporters: map[string]bool{target.AuthorID: true},
			Opposers:   map[string]bool{},
		}
		t.insights[key] = insight
	}

	if agrees {
		insight.Supporters[agentID] = true
		delete(insight.Opposers, agentID)
	} else {
		insight.Opposers[agentID] = true
		delete(insight.Supporters, agentID)
	}
	logging.ConsensusDebug("Position recorded: %s %s %s", agentID, positionWord(agrees), key)
}

func positionWord(agrees bool) string {
	if agrees {
		return "supports"
	}
	return "opposes"
}

// findReferent searches back through the last few recorded messages for one
// from a different non-system author.
func (t *Tracker) findReferent(agentID string) *types.Message {
	start := len(t.recent) - 1
	for i := start; i >= 0 && i > start-backSearchWindow; i-- {
		m := &t.recent[i]
		if m.IsSystem() || m.AuthorID == agentID {
			continue
		}
		return m
	}
	return nil
}

func insightKey(authorID, shortID string) string {
	return authorID + ":" + shortID
}

func summarize(content string) string {
	content = strings.TrimSpace(content)
	if len(content) > 120 {
		return content[:120]
	}
	return content
}

// Status computes the readiness report.
func (t *Tracker) Status() Report {
	report := Report{
		Contributions: make(map[string]int, len(t.contributions)),
	}
	for id, n := range t.contributions {
		report.Contributions[id] = n
	}

	var missing []string
	for _, p := range t.participants {
		if t.contributions[p.ID] == 0 {
			missing = append(missing, p.DisplayName)
		}
	}
	sort.Strings(missing)
	report.AllParticipantsSpoke = len(missing) == 0

	report.ConsensusPoints, report.ConflictPoints = t.tallyInsights()
	report.Ready, report.Recommendation = t.readiness(report, missing)
	return report
}

// tallyInsights computes weighted consensus/conflict points. An insight may
// count toward both.
func (t *Tracker) tallyInsights() (consensusPoints, conflictPoints int) {
	totalWeight := float64(len(t.participants))
	if t.contributions[types.AuthorHuman] > 0 {
		totalWeight += humanVoteWeight
	}
	if totalWeight == 0 {
		return 0, 0
	}

	for _, insight := range t.insights {
		support := float64(len(insight.Supporters))
		if insight.Supporters[types.AuthorHuman] {
			support += humanVoteWeight - 1
		}
		oppose := float64(len(insight.Opposers))
		if insight.Opposers[types.AuthorHuman] {
			oppose += humanVoteWeight - 1
		}

		if support/totalWeight >= consensusThreshold {
			consensusPoints++
		}
		if oppose/totalWeight >= conflictThreshold {
			conflictPoints++
		}
	}
	return consensusPoints, conflictPoints
}

// readiness applies the precedence chain: pending research, missing
// speakers, contribution floor, conflict dominance, then either explicit
// consensus or the extended-discussion fallback.
func (t *Tracker) readiness(report Report, missing []string) (bool, string) {
	n := len(t.participants)
	total := 0
	for _, c := range t.contributions {
		total += c
	}

	switch {
	case t.pendingResearch > 0:
		return false, fmt.Sprintf("Waiting on %d outstanding research request(s).", t.pendingResearch)
	case len(missing) > 0:
		return false, fmt.Sprintf("Not everyone has spoken yet: %s.", strings.Join(missing, ", "))
	case total < 2*n:
		return false, fmt.Sprintf("Discussion too thin (%d contributions, need %d).", total, 2*n)
	case report.ConflictPoints > report.ConsensusPoints:
		return false, fmt.Sprintf("Unresolved conflicts outweigh agreements (%d vs %d).",
			report.ConflictPoints, report.ConsensusPoints)
	case report.ConsensusPoints == 0 && total < 4*n:
		return false, "No explicit consensus yet; keep discussing or tag positions."
	case report.ConsensusPoints == 0:
		return true, "No explicit consensus tags, but discussion has run long enough to proceed."
	default:
		return true, fmt.Sprintf("Ready: %d consensus point(s) recorded.", report.ConsensusPoints)
	}
}

// Insights returns a copy of the tracked insights keyed by insight key,
// used when building phase handoff briefs.
func (t *Tracker) Insights() map[string]Insight {
	out := make(map[string]Insight, len(t.insights))
	for key, insight := range t.insights {
		copied := Insight{
			Content:    insight.Content,
			Supporters: make(map[string]bool, len(insight.Supporters)),
			Opposers:   make(map[string]bool, len(insight.Opposers)),
		}
		for id := range insight.Supporters {
			copied.Supporters[id] = true
		}
		for id := range insight.Opposers {
			copied.Opposers[id] = true
		}
		out[key] = copied
	}
	return out
}
