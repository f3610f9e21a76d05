package mode

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"parley/internal/logging"
	"parley/internal/types"
)

// Progress is the per-session mutable state owned exclusively by the Engine.
type Progress struct {
	CurrentPhaseID   string
	MessagesInPhase  int
	TotalMessages    int
	ResearchRequests int
	ResearchByTopic  map[string]int
	ConsensusPoints  int
	ProposalsCount   int
	// Message index of the most recent proposal/agreement.
	LastProgressAt int
	// Sticky: set once, never cleared within a session.
	LoopDetected    bool
	OutputsProduced map[string]bool
}

func newProgress(policy *Policy) Progress {
	p := Progress{
		ResearchByTopic: make(map[string]int),
		OutputsProduced: make(map[string]bool),
	}
	if first := policy.FirstPhase(); first != nil {
		p.CurrentPhaseID = first.ID
	}
	return p
}

// Outputs returns the produced output labels, sorted.
func (p *Progress) Outputs() []string {
	out := make([]string, 0, len(p.OutputsProduced))
	for label := range p.OutputsProduced {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// Engine enforces a mode policy over one session's message stream. It is not
// safe for concurrent use; the session serializes calls.
type Engine struct {
	policy   *Policy
	progress Progress

	// Rolling similarity fingerprints, full history for the session. Only
	// the last WindowSize entries are compared and only the last
	// persistedFingerprints survive a save/restore.
	fingerprints []string
}

// persistedFingerprints bounds the fingerprint history kept in snapshots.
const persistedFingerprints = 20

// NewEngine creates an engine for the given policy.
func NewEngine(policy *Policy) *Engine {
	return &Engine{
		policy:   policy,
		progress: newProgress(policy),
	}
}

// Policy returns the active mode policy.
func (e *Engine) Policy() *Policy { return e.policy }

// GetProgress returns a copy of the current progress.
func (e *Engine) GetProgress() Progress {
	p := e.progress
	p.ResearchByTopic = make(map[string]int, len(e.progress.ResearchByTopic))
	for k, v := range e.progress.ResearchByTopic {
		p.ResearchByTopic[k] = v
	}
	p.OutputsProduced = make(map[string]bool, len(e.progress.OutputsProduced))
	for k := range e.progress.OutputsProduced {
		p.OutputsProduced[k] = true
	}
	return p
}

// SetMode replaces the policy and resets all per-session progress,
// including the similarity history.
func (e *Engine) SetMode(policy *Policy) {
	logging.Rules("Mode changed: %s -> %s", e.policy.ID, policy.ID)
	e.policy = policy
	e.progress = newProgress(policy)
	e.fingerprints = nil
}

// ProcessMessage consumes one message in arrival order and returns zero or
// more interventions. The full history is accepted for future extensibility;
// loop detection uses the internally retained fingerprint history.
func (e *Engine) ProcessMessage(msg types.Message, history []types.Message) []types.Intervention {
	_ = history
	timer := logging.StartTimer(logging.CategoryRules, "ProcessMessage")
	defer timer.Stop()

	var interventions []types.Intervention

	// 1. Counters.
	e.progress.TotalMessages++
	e.progress.MessagesInPhase++

	// 2. Similarity fingerprint.
	e.fingerprints = append(e.fingerprints, fingerprint(msg.Content))

	// 3. Research tracking and limits.
	if iv := e.trackResearch(msg); iv != nil {
		interventions = append(interventions, *iv)
	}

	// 4-5. Progress markers.
	switch msg.Type {
	case types.MsgProposal:
		e.progress.ProposalsCount++
		e.progress.LastProgressAt = e.progress.TotalMessages
	case types.MsgAgreement, types.MsgConsensus:
		e.progress.ConsensusPoints++
		e.progress.LastProgressAt = e.progress.TotalMessages
	}

	// 6. Output label scan (monotonic).
	e.scanOutputs(msg.Content)

	// 7. Goal reminder.
	freq := e.policy.GoalReminder.Frequency
	if freq > 0 && e.progress.TotalMessages > 0 && e.progress.TotalMessages%freq == 0 {
		interventions = append(interventions, types.Intervention{
			Type:     types.InterventionGoalReminder,
			Message:  e.policy.GoalReminder.Template,
			Priority: types.PriorityMedium,
			Action:   types.ActionInjectMessage,
		})
	}

	// 8. Loop detection.
	if iv := e.detectLoop(); iv != nil {
		interventions = append(interventions, *iv)
	}

	// 9. Phase transition.
	if iv := e.checkPhaseTransition(); iv != nil {
		interventions = append(interventions, *iv)
	}

	// 10. Forced synthesis.
	sc := e.policy.SuccessCriteria
	if sc.MaxMessages > 0 && e.progress.TotalMessages >= sc.MaxMessages &&
		e.progress.CurrentPhaseID != "synthesis" {
		interventions = append(interventions, types.Intervention{
			Type:     types.InterventionForceSynthesis,
			Message:  "Message budget exhausted. Stop debating and produce the final synthesis now.",
			Priority: types.PriorityHigh,
			Action:   types.ActionInjectMessage,
		})
	}

	// 11. Success check. Deliberately re-fires on every message once the
	// criteria hold; callers wanting a latch must deduplicate themselves.
	if e.CheckSuccessCriteria() {
		interventions = append(interventions, types.Intervention{
			Type:     types.InterventionSuccessCheck,
			Message:  "Success criteria met: consensus and all required outputs are in place. Consider concluding the session.",
			Priority: types.PriorityHigh,
			Action:   types.ActionPause,
		})
	}

	if len(interventions) > 0 {
		logging.RulesDebug("Message %d produced %d intervention(s)", e.progress.TotalMessages, len(interventions))
	}
	return interventions
}

// fingerprint builds a normalized keyword summary of content: lowercase,
// words longer than 4 characters, sorted, at most 10, joined.
func fingerprint(content string) string {
	words := strings.Fields(strings.ToLower(content))
	keep := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) > 4 {
			keep = append(keep, w)
		}
	}
	sort.Strings(keep)
	if len(keep) > 10 {
		keep = keep[:10]
	}
	return strings.Join(keep, "|")
}

// Research request markers: an explicit type tag, one of the fixed research
// @mentions, or a bracketed [research: topic] tag.
var researchMentions = []string{
	"@research-bot",
	"@market-scout",
	"@fact-checker",
	"@data-analyst",
	"@trend-watcher",
}

var (
	mentionTopicRe = regexp.MustCompile(`@([a-z]+-[a-z]+)`)
	bracketTopicRe = regexp.MustCompile(`(?i)\[research:\s*([a-z0-9_-]+)`)
)

func isResearchRequest(msg types.Message) bool {
	if msg.Type == types.MsgResearchRequest {
		return true
	}
	lower := strings.ToLower(msg.Content)
	for _, mention := range researchMentions {
		if strings.Contains(lower, mention) {
			return true
		}
	}
	return strings.Contains(lower, "[research:")
}

func extractTopic(content string) string {
	if m := bracketTopicRe.FindStringSubmatch(content); m != nil {
		return strings.ToLower(m[1])
	}
	if m := mentionTopicRe.FindStringSubmatch(strings.ToLower(content)); m != nil {
		return m[1]
	}
	return "general"
}

func (e *Engine) trackResearch(msg types.Message) *types.Intervention {
	if !isResearchRequest(msg) {
		return nil
	}

	e.progress.ResearchRequests++
	topic := extractTopic(msg.Content)
	e.progress.ResearchByTopic[topic]++
	logging.RulesDebug("Research request %d recorded, topic=%s (count=%d)",
		e.progress.ResearchRequests, topic, e.progress.ResearchByTopic[topic])

	r := e.policy.Research
	if r.MaxRequests > 0 && e.progress.ResearchRequests >= r.MaxRequests {
		return &types.Intervention{
			Type:     types.InterventionResearchLimit,
			Message:  fmt.Sprintf("Research budget reached (%d requests). Stop researching and start producing output.", e.progress.ResearchRequests),
			Priority: types.PriorityHigh,
			Action:   types.ActionInjectMessage,
		}
	}
	if r.MaxPerTopic > 0 && e.progress.ResearchByTopic[topic] >= r.MaxPerTopic {
		return &types.Intervention{
			Type:     types.InterventionResearchLimit,
			Message:  fmt.Sprintf("Topic %q has been researched enough (%d requests). Move to a different angle or start synthesizing.", topic, e.progress.ResearchByTopic[topic]),
			Priority: types.PriorityMedium,
			Action:   types.ActionInjectMessage,
		}
	}
	return nil
}

// outputPattern maps content cues to an output label. The label set only
// grows over a session.
type outputPattern struct {
	label    string
	patterns []string
}

var outputPatterns = []outputPattern{
	{"hero", []string{"# hero", "## hero", "hero section", "headline:"}},
	{"value_proposition", []string{"value proposition", "# benefits", "## benefits", "key benefits"}},
	{"cta", []string{"call to action", "call-to-action", "cta:"}},
	{"verdict", []string{"final verdict", "verdict:", "final decision"}},
	{"next_steps", []string{"next steps", "follow-up actions"}},
}

func (e *Engine) scanOutputs(content string) {
	lower := strings.ToLower(content)
	for _, op := range outputPatterns {
		if e.progress.OutputsProduced[op.label] {
			continue
		}
		for _, pat := range op.patterns {
			if strings.Contains(lower, pat) {
				e.progress.OutputsProduced[op.label] = true
				logging.RulesDebug("Output produced: %s", op.label)
				break
			}
		}
	}
}

// detectLoop checks similarity repetition first, then progress stall. At
// most one loop intervention is emitted per message even if both fire.
func (e *Engine) detectLoop() *types.Intervention {
	ld := e.policy.LoopDetection
	if !ld.Enabled {
		return nil
	}

	window := e.fingerprints
	if ld.WindowSize > 0 && len(window) > ld.WindowSize {
		window = window[len(window)-ld.WindowSize:]
	}

	counts := make(map[string]int, len(window))
	for _, fp := range window {
		if len(fp) > ld.MinHashLength {
			counts[fp]++
		}
	}
	similar := false
	for _, n := range counts {
		if ld.MaxSimilarMessages > 0 && n >= ld.MaxSimilarMessages {
			similar = true
			break
		}
	}

	stalled := ld.MaxRoundsWithoutProgress > 0 && ld.MessagesPerRound > 0 &&
		e.progress.TotalMessages-e.progress.LastProgressAt >= ld.MaxRoundsWithoutProgress*ld.MessagesPerRound

	if !similar && !stalled {
		return nil
	}

	if similar {
		logging.Rules("Loop detected at message %d (similar content)", e.progress.TotalMessages)
	} else {
		logging.Rules("Loop detected at message %d (no progress since %d)",
			e.progress.TotalMessages, e.progress.LastProgressAt)
	}
	e.progress.LoopDetected = true
	return &types.Intervention{
		Type:     types.InterventionLoopDetected,
		Message:  ld.InterventionText,
		Priority: types.PriorityHigh,
		Action:   types.ActionInjectMessage,
	}
}

// Synthesis-like phase names gate on the research requirement before the
// engine will enter them.
var synthesisNames = []string{"synthesis", "synthesize", "verdict", "conclude", "drafting", "executive-summary"}

func isSynthesisPhase(id string) bool {
	lower := strings.ToLower(id)
	for _, name := range synthesisNames {
		if strings.Contains(lower, name) {
			return true
		}
	}
	return false
}

func (e *Engine) exitCriteriaMet(criteria *ExitCriteria) bool {
	if criteria == nil {
		return false
	}
	if e.progress.ProposalsCount < criteria.MinProposals {
		return false
	}
	if e.progress.ConsensusPoints < criteria.MinConsensusPoints {
		return false
	}
	if e.progress.ResearchRequests < criteria.MinResearchRequests {
		return false
	}
	for _, label := range criteria.RequiredOutputs {
		if !e.progress.OutputsProduced[label] {
			return false
		}
	}
	return true
}

func (e *Engine) checkPhaseTransition() *types.Intervention {
	current := e.policy.PhaseByID(e.progress.CurrentPhaseID)
	if current == nil || !current.AutoTransition {
		return nil
	}

	criteriaMet := e.exitCriteriaMet(current.ExitCriteria)
	budgetReached := current.MaxMessages > 0 && e.progress.MessagesInPhase >= current.MaxMessages
	if !criteriaMet && !budgetReached {
		return nil
	}

	target := e.policy.PhaseByOrder(current.Order + 1)
	if target == nil {
		// Terminal phase.
		return nil
	}

	// Synthesis-like phases require the research quota first. The phase does
	// not advance; the same condition is re-evaluated on later messages.
	if isSynthesisPhase(target.ID) && !e.CheckRequiredResearch() {
		logging.Rules("Transition to %s blocked: research required (%d/%d)",
			target.ID, e.progress.ResearchRequests, e.policy.Research.RequiredBeforeSynthesis)
		return &types.Intervention{
			Type:     types.InterventionResearchLimit,
			Message:  fmt.Sprintf("Cannot enter %s yet: at least %d research request(s) must be made first. Ask a research question before synthesizing.", target.Name, e.policy.Research.RequiredBeforeSynthesis),
			Priority: types.PriorityHigh,
			Action:   types.ActionInjectMessage,
		}
	}

	reason := "message budget reached"
	if criteriaMet {
		reason = "exit criteria met"
	}
	logging.Rules("Phase transition: %s -> %s (%s)", current.ID, target.ID, reason)

	e.progress.CurrentPhaseID = target.ID
	e.progress.MessagesInPhase = 0
	return &types.Intervention{
		Type:     types.InterventionPhaseTransition,
		Message:  fmt.Sprintf("Entering phase %q (%s). Focus: %s", target.Name, reason, target.AgentFocus),
		Priority: types.PriorityHigh,
		Action:   types.ActionTransitionPhase,
	}
}

// TransitionToPhase bypasses all checks and jumps to the named phase. It
// validates only that the phase exists.
func (e *Engine) TransitionToPhase(phaseID string) error {
	if e.policy.PhaseByID(phaseID) == nil {
		return fmt.Errorf("unknown phase %q in mode %s", phaseID, e.policy.ID)
	}
	logging.Rules("Manual phase transition: %s -> %s", e.progress.CurrentPhaseID, phaseID)
	e.progress.CurrentPhaseID = phaseID
	e.progress.MessagesInPhase = 0
	return nil
}

// CheckRequiredResearch reports whether the research-before-synthesis quota
// is satisfied.
func (e *Engine) CheckRequiredResearch() bool {
	return e.progress.ResearchRequests >= e.policy.Research.RequiredBeforeSynthesis
}

// CheckSuccessCriteria reports whether the session satisfies the mode's
// success criteria.
func (e *Engine) CheckSuccessCriteria() bool {
	sc := e.policy.SuccessCriteria
	if sc.MinConsensusPoints <= 0 && len(sc.RequiredOutputs) == 0 {
		return false
	}
	if e.progress.ConsensusPoints < sc.MinConsensusPoints {
		return false
	}
	for _, label := range sc.RequiredOutputs {
		if !e.progress.OutputsProduced[label] {
			return false
		}
	}
	return true
}
