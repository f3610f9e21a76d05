// Package session wires one deliberation together: every arriving message
// is dispatched to the mode rules engine, the consensus tracker, and the
// phase orchestrator (which drives the wireframe cycle), and the directives
// they produce are broadcast back into the conversation. Sessions are fully
// independent of each other.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"parley/internal/consensus"
	"parley/internal/logging"
	"parley/internal/mode"
	"parley/internal/orchestrator"
	"parley/internal/structure"
	"parley/internal/types"
	"parley/internal/wireframe"
)

// Broadcaster injects a system/directive message into the conversation.
type Broadcaster interface {
	Broadcast(msg types.Message) error
}

// Speaker forces a named participant to produce its next message.
type Speaker interface {
	ForceSpeak(participantID string) error
}

// Options configures a new session.
type Options struct {
	Goal         string
	Policy       *mode.Policy
	Participants []types.Participant
	Broadcaster  Broadcaster
	Speaker      Speaker
	Parser       *structure.Parser
}

// Session owns all per-deliberation state. All methods must be called from
// one goroutine; the transport serializes message arrival.
type Session struct {
	ID     string
	goal   string
	roster *Roster

	engine  *mode.Engine
	tracker *consensus.Tracker
	cycle   *wireframe.Cycle
	orch    *orchestrator.Orchestrator

	broadcaster Broadcaster
	speaker     Speaker

	history []types.Message
}

// New creates a session. Policy and at least one participant are required.
func New(opts Options) (*Session, error) {
	if opts.Policy == nil {
		return nil, fmt.Errorf("session requires a mode policy")
	}
	if len(opts.Participants) == 0 {
		return nil, fmt.Errorf("session requires at least one participant")
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mode policy: %w", err)
	}

	parser := opts.Parser
	if parser == nil {
		parser = structure.NewParser(0)
	}

	roster := NewRoster(opts.Participants)
	tracker := consensus.NewTracker(roster.Participants())
	cycle := wireframe.NewCycle(roster.Participants(), parser)
	outputs := orchestrator.NewOutputTracker(opts.Policy.SuccessCriteria.RequiredOutputs)

	s := &Session{
		ID:          uuid.New().String(),
		goal:        opts.Goal,
		roster:      roster,
		engine:      mode.NewEngine(opts.Policy),
		tracker:     tracker,
		cycle:       cycle,
		orch:        orchestrator.New(roster.Participants(), tracker, cycle, outputs),
		broadcaster: opts.Broadcaster,
		speaker:     opts.Speaker,
	}
	logging.Session("Session %s started: mode=%s participants=%d goal=%q",
		s.ID, opts.Policy.ID, roster.Len(), opts.Goal)
	return s, nil
}

// Handle dispatches one message, in arrival order, to every logic component
// and broadcasts whatever directives they request. It never fails the
// session for content reasons; only broadcast errors surface.
func (s *Session) Handle(msg types.Message) error {
	s.history = append(s.history, msg)

	// Mode rules engine sees every message.
	interventions := s.engine.ProcessMessage(msg, s.history)

	// Consensus tracking only applies to participant contributions.
	if !msg.IsSystem() {
		s.tracker.RecordMessage(msg.AuthorID, msg)
	}
	if msg.Type == types.MsgResearchRequest {
		s.tracker.AddPendingResearch()
	}
	if msg.Type == types.MsgResearchResult {
		s.tracker.ResolvePendingResearch()
	}

	// Orchestrator (and through it, the wireframe cycle).
	update := s.orch.Observe(msg)

	// Drafted output labels feed the drafting-completion tracker.
	progress := s.engine.GetProgress()
	for _, label := range progress.Outputs() {
		s.orch.Outputs().MarkComplete(label)
	}

	if err := s.applyInterventions(interventions); err != nil {
		return err
	}
	return s.applyUpdate(update)
}

// Tick runs periodic housekeeping (stage re-evaluation without a message).
func (s *Session) Tick() error {
	return s.applyUpdate(s.orch.Tick())
}

func (s *Session) applyInterventions(interventions []types.Intervention) error {
	for _, iv := range interventions {
		text := types.ExpandGoal(iv.Message, s.goal)
		logging.SessionDebug("Intervention %s (%s): %s", iv.Type, iv.Priority, text)
		if err := s.broadcast(text); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) applyUpdate(update orchestrator.Update) error {
	for _, directive := range update.Directives {
		if err := s.broadcast(directive); err != nil {
			return err
		}
	}
	for _, id := range update.ForceSpeak {
		if _, err := s.roster.Lookup(id); err != nil {
			logging.Get(logging.CategorySession).Warn("Force-speak skipped: %v", err)
			continue
		}
		if s.speaker == nil {
			continue
		}
		if err := s.speaker.ForceSpeak(id); err != nil {
			return fmt.Errorf("force speak %s: %w", id, err)
		}
	}
	return nil
}

func (s *Session) broadcast(text string) error {
	if s.broadcaster == nil {
		return nil
	}
	msg := types.Message{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		AuthorID:  types.AuthorSystem,
		Type:      types.MsgSystem,
		Content:   text,
	}
	if err := s.broadcaster.Broadcast(msg); err != nil {
		return fmt.Errorf("broadcast directive: %w", err)
	}
	return nil
}

// Roster returns the session's participant roster.
func (s *Session) Roster() *Roster { return s.roster }

// Engine exposes the mode rules engine (progress queries, manual phase
// transitions, save/restore).
func (s *Session) Engine() *mode.Engine { return s.engine }

// Tracker exposes the consensus tracker's readiness query.
func (s *Session) Tracker() *consensus.Tracker { return s.tracker }

// Stage returns the orchestrator's current top-level stage.
func (s *Session) Stage() orchestrator.Stage { return s.orch.Stage() }

// WireframePhase returns the voting cycle phase, for observability.
func (s *Session) WireframePhase() wireframe.Phase { return s.cycle.Phase() }

// WireframeProposals returns the collected proposals, for observability.
func (s *Session) WireframeProposals() map[string]wireframe.Proposal {
	return s.cycle.Proposals()
}

// SetMode swaps the mode policy mid-session. All rules-engine progress and
// similarity history reset; consensus and orchestrator state are kept.
func (s *Session) SetMode(policy *mode.Policy) error {
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("invalid mode policy: %w", err)
	}
	s.engine.SetMode(policy)
	return nil
}
