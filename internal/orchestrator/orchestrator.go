// Package orchestrator drives a deliberation session through its top-level
// stages, consulting the consensus tracker and the wireframe cycle to decide
// when to advance and falling back to hard message-count ceilings so a
// session can never wedge.
package orchestrator

import (
	"fmt"

	"parley/internal/consensus"
	"parley/internal/logging"
	"parley/internal/types"
	"parley/internal/wireframe"
)

// Stage is a top-level deliberation stage.
type Stage string

const (
	StageInitialization Stage = "initialization"
	StageBrainstorming  Stage = "brainstorming"
	StageArgumentation  Stage = "argumentation"
	StageSynthesis      Stage = "synthesis"
	StageDrafting       Stage = "drafting"
	StageFinalization   Stage = "finalization"
)

// Fixed ceilings and thresholds, in non-system messages since stage start.
const (
	brainstormCeiling = 36
	argumentNudgeAt   = 15
	argumentForceAt   = 25
	synthesisCeiling  = 15
	draftingCeiling   = 20
)

var stageFocus = map[Stage]string{
	StageBrainstorming: "Open exploration: surface angles, propose structure, ask research questions.",
	StageArgumentation: "Take positions: defend or challenge the collected proposals explicitly.",
	StageSynthesis:     "Merge: reconcile agreed points into one coherent direction.",
	StageDrafting:      "Produce: write the agreed output sections, one at a time.",
	StageFinalization:  "Wrap up: confirm the final output and record open items.",
}

// Update carries the directives and force-speak requests a stage step wants
// the session to act on.
type Update struct {
	Directives []string
	ForceSpeak []string
	Events     []string
}

func (u *Update) merge(other wireframe.Update) {
	u.Directives = append(u.Directives, other.Directives...)
	u.ForceSpeak = append(u.ForceSpeak, other.ForceSpeak...)
	if other.Event != "" {
		u.Events = append(u.Events, other.Event)
	}
}

// Orchestrator owns the top-level stage machine for one session. Not safe
// for concurrent use; the session serializes calls.
type Orchestrator struct {
	participants []types.Participant
	tracker      *consensus.Tracker
	cycle        *wireframe.Cycle
	outputs      *OutputTracker

	stage           Stage
	messagesInStage int
	nudged          bool
	speakersInStage map[string]bool
	cycleStarted    bool

	recent []types.Message
}

// recentWindow bounds the message tail kept for handoff briefs.
const recentWindow = 6

// New creates an orchestrator in the initialization stage.
func New(participants []types.Participant, tracker *consensus.Tracker, cycle *wireframe.Cycle, outputs *OutputTracker) *Orchestrator {
	if outputs == nil {
		outputs = NewOutputTracker(nil)
	}
	return &Orchestrator{
		participants:    participants,
		tracker:         tracker,
		cycle:           cycle,
		outputs:         outputs,
		stage:           StageInitialization,
		speakersInStage: make(map[string]bool),
	}
}

// Stage returns the current top-level stage.
func (o *Orchestrator) Stage() Stage { return o.stage }

// Outputs returns the drafting output tracker.
func (o *Orchestrator) Outputs() *OutputTracker { return o.outputs }

// Observe processes one message and returns the resulting directives.
func (o *Orchestrator) Observe(msg types.Message) Update {
	var update Update

	if o.stage == StageInitialization {
		update.Directives = append(update.Directives, o.transitionTo(StageBrainstorming))
	}

	if !msg.IsSystem() {
		o.messagesInStage++
		if !msg.IsHuman() {
			o.speakersInStage[msg.AuthorID] = true
		}
		o.recent = append(o.recent, msg)
		if len(o.recent) > recentWindow {
			o.recent = o.recent[len(o.recent)-recentWindow:]
		}
	}

	if o.stage == StageBrainstorming {
		o.driveWireframe(msg, &update)
	}

	o.evaluate(&update)
	return update
}

// Tick re-evaluates stage advancement without a new message (periodic
// housekeeping from the session owner).
func (o *Orchestrator) Tick() Update {
	var update Update
	o.evaluate(&update)
	return update
}

// driveWireframe starts the voting cycle once everyone has spoken and feeds
// it subsequent messages. The cycle runs at most once per session.
func (o *Orchestrator) driveWireframe(msg types.Message, update *Update) {
	if !o.cycleStarted && o.cycle.Phase() == wireframe.PhaseIdle &&
		o.tracker.Status().AllParticipantsSpoke {
		o.cycleStarted = true
		update.merge(o.cycle.Begin())
	}
	update.merge(o.cycle.Observe(msg))
	if o.cycle.Phase() == wireframe.PhaseConverged && len(o.cycle.Result()) > 0 && o.outputs.Empty() {
		o.outputs.SetSections(o.cycle.Result())
	}
}

func (o *Orchestrator) evaluate(update *Update) {
	switch o.stage {
	case StageBrainstorming:
		o.evaluateBrainstorming(update)
	case StageArgumentation:
		o.evaluateArgumentation(update)
	case StageSynthesis:
		o.evaluateSynthesis(update)
	case StageDrafting:
		o.evaluateDrafting(update)
	}
}

func (o *Orchestrator) evaluateBrainstorming(update *Update) {
	status := o.tracker.Status()
	n := len(o.participants)
	total := 0
	for _, c := range status.Contributions {
		total += c
	}

	cycleSettled := o.cycle.Phase() == wireframe.PhaseConverged || o.cycle.Phase() == wireframe.PhaseIdle
	// A cycle stuck mid-round stops blocking once contributions double again.
	stuckButTalked := !cycleSettled && total >= 4*n

	ready := status.AllParticipantsSpoke && total >= 2*n && (cycleSettled || stuckButTalked)
	if ready || o.messagesInStage >= brainstormCeiling {
		update.Directives = append(update.Directives, o.transitionTo(StageArgumentation))
	}
}

func (o *Orchestrator) evaluateArgumentation(update *Update) {
	status := o.tracker.Status()
	switch {
	case status.Ready:
		update.Directives = append(update.Directives, o.transitionTo(StageSynthesis))
	case o.messagesInStage >= argumentForceAt:
		logging.Orchestrator("Forcing synthesis: argumentation hit %d messages", o.messagesInStage)
		update.Directives = append(update.Directives, o.transitionTo(StageSynthesis))
	case o.messagesInStage >= argumentNudgeAt && !o.nudged:
		o.nudged = true
		update.Directives = append(update.Directives, fmt.Sprintf(
			"Argumentation check-in: %d consensus point(s), %d conflict(s) so far. State your final position on the open proposals so the group can move to synthesis.",
			status.ConsensusPoints, status.ConflictPoints))
		update.Events = append(update.Events, "argumentation_nudge")
	}
}

func (o *Orchestrator) evaluateSynthesis(update *Update) {
	quorum := synthesisQuorum(len(o.participants))
	if len(o.speakersInStage) >= quorum || o.messagesInStage >= synthesisCeiling {
		update.Directives = append(update.Directives, o.transitionTo(StageDrafting))
	}
}

func (o *Orchestrator) evaluateDrafting(update *Update) {
	if o.outputs.AllComplete() || o.messagesInStage >= draftingCeiling {
		update.Directives = append(update.Directives, o.transitionTo(StageFinalization))
	}
}

// synthesisQuorum is the number of distinct agent speakers needed to leave
// synthesis: max(2, floor(0.6 * participants)).
func synthesisQuorum(n int) int {
	q := int(0.6 * float64(n))
	if q < 2 {
		q = 2
	}
	return q
}

// transitionTo advances the stage and returns the user-visible directive
// with the handoff brief.
func (o *Orchestrator) transitionTo(next Stage) string {
	prev := o.stage
	o.stage = next
	o.messagesInStage = 0
	o.nudged = false
	o.speakersInStage = make(map[string]bool)
	logging.Orchestrator("Stage transition: %s -> %s", prev, next)

	return fmt.Sprintf("=== Phase: %s ===\nFocus: %s\n\n%s",
		next, stageFocus[next], o.handoffBrief())
}
