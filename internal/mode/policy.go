// Package mode implements the per-session rules engine for a deliberation:
// a static Policy describing the mode (phases, budgets, templates) and an
// Engine that consumes messages one at a time, tracks progress, and emits
// interventions (goal reminders, research limits, loop warnings, phase
// transitions, forced synthesis, success checks).
package mode

import (
	"fmt"
	"sort"
)

// GoalReminder configures periodic goal reinjection. The template keeps its
// {goal} placeholder verbatim; the caller substitutes the session goal.
type GoalReminder struct {
	Frequency int    `yaml:"frequency" json:"frequency"`
	Template  string `yaml:"template" json:"template"`
}

// ExitCriteria are optional per-phase gates. Every specified field must hold
// simultaneously; a zero value is trivially satisfied (not enforced).
type ExitCriteria struct {
	MinProposals        int      `yaml:"min_proposals" json:"min_proposals"`
	MinConsensusPoints  int      `yaml:"min_consensus_points" json:"min_consensus_points"`
	MinResearchRequests int      `yaml:"min_research_requests" json:"min_research_requests"`
	RequiredOutputs     []string `yaml:"required_outputs" json:"required_outputs,omitempty"`
}

// PhaseConfig describes one ordered phase of the mode.
type PhaseConfig struct {
	ID             string        `yaml:"id" json:"id"`
	Name           string        `yaml:"name" json:"name"`
	Order          int           `yaml:"order" json:"order"`
	MaxMessages    int           `yaml:"max_messages" json:"max_messages"`
	AutoTransition bool          `yaml:"auto_transition" json:"auto_transition"`
	ExitCriteria   *ExitCriteria `yaml:"exit_criteria" json:"exit_criteria,omitempty"`
	AgentFocus     string        `yaml:"agent_focus" json:"agent_focus"`
}

// ResearchPolicy bounds research activity within a session.
type ResearchPolicy struct {
	MaxRequests             int `yaml:"max_requests" json:"max_requests"`
	MaxPerTopic             int `yaml:"max_per_topic" json:"max_per_topic"`
	RequiredBeforeSynthesis int `yaml:"required_before_synthesis" json:"required_before_synthesis"`
}

// LoopDetection configures similarity-based stall detection.
type LoopDetection struct {
	Enabled                  bool   `yaml:"enabled" json:"enabled"`
	MaxSimilarMessages       int    `yaml:"max_similar_messages" json:"max_similar_messages"`
	MaxRoundsWithoutProgress int    `yaml:"max_rounds_without_progress" json:"max_rounds_without_progress"`
	WindowSize               int    `yaml:"window_size" json:"window_size"`
	MinHashLength            int    `yaml:"min_hash_length" json:"min_hash_length"`
	MessagesPerRound         int    `yaml:"messages_per_round" json:"messages_per_round"`
	InterventionText         string `yaml:"intervention_text" json:"intervention_text"`
}

// SuccessCriteria define when a session has converged.
type SuccessCriteria struct {
	MinConsensusPoints int      `yaml:"min_consensus_points" json:"min_consensus_points"`
	RequiredOutputs    []string `yaml:"required_outputs" json:"required_outputs"`
	MaxMessages        int      `yaml:"max_messages" json:"max_messages"`
}

// Policy is the immutable description of a deliberation style. It is loaded
// once per session and never mutated by the engine.
type Policy struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Icon        string `yaml:"icon" json:"icon"`
	Description string `yaml:"description" json:"description"`

	GoalReminder    GoalReminder    `yaml:"goal_reminder" json:"goal_reminder"`
	Phases          []PhaseConfig   `yaml:"phases" json:"phases"`
	Research        ResearchPolicy  `yaml:"research" json:"research"`
	LoopDetection   LoopDetection   `yaml:"loop_detection" json:"loop_detection"`
	SuccessCriteria SuccessCriteria `yaml:"success_criteria" json:"success_criteria"`

	// Free text passed through to participants, never interpreted here.
	AgentInstructions string `yaml:"agent_instructions" json:"agent_instructions"`
}

// Validate checks structural soundness: at least one phase, unique IDs,
// unique orders.
func (p *Policy) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("policy id required")
	}
	if len(p.Phases) == 0 {
		return fmt.Errorf("policy %s has no phases", p.ID)
	}
	ids := make(map[string]bool, len(p.Phases))
	orders := make(map[int]bool, len(p.Phases))
	for _, ph := range p.Phases {
		if ph.ID == "" {
			return fmt.Errorf("policy %s has a phase with no id", p.ID)
		}
		if ids[ph.ID] {
			return fmt.Errorf("policy %s has duplicate phase id %s", p.ID, ph.ID)
		}
		if orders[ph.Order] {
			return fmt.Errorf("policy %s has duplicate phase order %d", p.ID, ph.Order)
		}
		ids[ph.ID] = true
		orders[ph.Order] = true
	}
	return nil
}

// PhaseByID returns the phase with the given id, or nil.
func (p *Policy) PhaseByID(id string) *PhaseConfig {
	for i := range p.Phases {
		if p.Phases[i].ID == id {
			return &p.Phases[i]
		}
	}
	return nil
}

// PhaseByOrder returns the phase with the exact order, or nil.
func (p *Policy) PhaseByOrder(order int) *PhaseConfig {
	for i := range p.Phases {
		if p.Phases[i].Order == order {
			return &p.Phases[i]
		}
	}
	return nil
}

// FirstPhase returns the phase with the lowest order.
func (p *Policy) FirstPhase() *PhaseConfig {
	if len(p.Phases) == 0 {
		return nil
	}
	first := &p.Phases[0]
	for i := range p.Phases {
		if p.Phases[i].Order < first.Order {
			first = &p.Phases[i]
		}
	}
	return first
}

// OrderedPhases returns the phases sorted by order.
func (p *Policy) OrderedPhases() []PhaseConfig {
	out := make([]PhaseConfig, len(p.Phases))
	copy(out, p.Phases)
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// DefaultPolicy returns the built-in copywriting deliberation mode.
func DefaultPolicy() *Policy {
	return &Policy{
		ID:          "copy-studio",
		Name:        "Copy Studio",
		Icon:        "✍️",
		Description: "Structured deliberation for producing a piece of marketing copy.",
		GoalReminder: GoalReminder{
			Frequency: 10,
			Template:  "Reminder: the goal of this session is {goal}. Keep contributions focused on it.",
		},
		Phases: []PhaseConfig{
			{
				ID:             "exploration",
				Name:           "Exploration",
				Order:          0,
				MaxMessages:    20,
				AutoTransition: true,
				AgentFocus:     "Generate distinct angles and raw ideas. Quantity over polish.",
			},
			{
				ID:             "debate",
				Name:           "Debate",
				Order:          1,
				MaxMessages:    25,
				AutoTransition: true,
				ExitCriteria: &ExitCriteria{
					MinProposals:       2,
					MinConsensusPoints: 2,
				},
				AgentFocus: "Challenge and defend the strongest ideas. Take explicit positions.",
			},
			{
				ID:             "synthesis",
				Name:           "Synthesis",
				Order:          2,
				MaxMessages:    15,
				AutoTransition: true,
				AgentFocus:     "Merge agreed points into a single direction. Resolve open conflicts.",
			},
			{
				ID:             "drafting",
				Name:           "Drafting",
				Order:          3,
				MaxMessages:    20,
				AutoTransition: false,
				AgentFocus:     "Produce the final copy, section by section.",
			},
		},
		Research: ResearchPolicy{
			MaxRequests:             5,
			MaxPerTopic:             2,
			RequiredBeforeSynthesis: 1,
		},
		LoopDetection: LoopDetection{
			Enabled:                  true,
			MaxSimilarMessages:       3,
			MaxRoundsWithoutProgress: 3,
			WindowSize:               10,
			MinHashLength:            20,
			MessagesPerRound:         4,
			InterventionText:         "The discussion is repeating itself. Each participant should contribute a new angle or explicitly agree or disagree with a prior point.",
		},
		SuccessCriteria: SuccessCriteria{
			MinConsensusPoints: 3,
			RequiredOutputs:    []string{"hero", "value_proposition", "cta"},
			MaxMessages:        80,
		},
		AgentInstructions: "Speak in short focused turns. Tag proposals with [PROPOSAL] and explicit positions with [AGREEMENT] or [DISAGREEMENT].",
	}
}
