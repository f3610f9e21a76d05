// Package types defines the shared data model for parley deliberation
// sessions: messages, participants, and the interventions the rules engine
// asks to be injected into a conversation.
package types

import (
	"strings"
	"time"
)

// Reserved author IDs. Anything else is an agent ID from the roster.
const (
	AuthorSystem = "system"
	AuthorHuman  = "human"
)

// MessageType tags a message with its conversational role.
type MessageType string

const (
	MsgArgument        MessageType = "argument"
	MsgQuestion        MessageType = "question"
	MsgProposal        MessageType = "proposal"
	MsgAgreement       MessageType = "agreement"
	MsgDisagreement    MessageType = "disagreement"
	MsgConsensus       MessageType = "consensus"
	MsgResearchRequest MessageType = "research_request"
	MsgResearchResult  MessageType = "research_result"
	MsgHumanInput      MessageType = "human_input"
	MsgSystem          MessageType = "system"
	MsgSynthesis       MessageType = "synthesis"
)

// Message is a single conversation entry. Messages are owned by the
// transport and read-only to the engine.
type Message struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	AuthorID  string            `json:"author_id"`
	Type      MessageType       `json:"type"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// IsSystem reports whether the message is a system directive rather than a
// participant contribution.
func (m *Message) IsSystem() bool {
	return m.AuthorID == AuthorSystem || m.Type == MsgSystem
}

// IsHuman reports whether the message came from the human participant.
func (m *Message) IsHuman() bool {
	return m.AuthorID == AuthorHuman || m.Type == MsgHumanInput
}

// ShortID returns a bounded prefix of the message ID, used when building
// insight keys.
func (m *Message) ShortID() string {
	if len(m.ID) <= 8 {
		return m.ID
	}
	return m.ID[:8]
}

// Participant is the capability set a deliberation needs from an actor:
// a stable ID and a display name. Everything else (persona, model, prompt)
// belongs to the agent runner.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// InterventionType classifies a directive the engine wants injected.
type InterventionType string

const (
	InterventionGoalReminder    InterventionType = "goal_reminder"
	InterventionLoopDetected    InterventionType = "loop_detected"
	InterventionPhaseTransition InterventionType = "phase_transition"
	InterventionResearchLimit   InterventionType = "research_limit"
	InterventionForceSynthesis  InterventionType = "force_synthesis"
	InterventionSuccessCheck    InterventionType = "success_check"
)

// Priority ranks interventions for the transport layer.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// InterventionAction is an optional follow-up the caller should take.
type InterventionAction string

const (
	ActionInjectMessage   InterventionAction = "inject_message"
	ActionTransitionPhase InterventionAction = "transition_phase"
	ActionPause           InterventionAction = "pause"
)

// Intervention is a directive the rules engine asks the caller to append to
// the conversation. Interventions are advisory; they never halt a session.
type Intervention struct {
	Type     InterventionType   `json:"type"`
	Message  string             `json:"message"`
	Priority Priority           `json:"priority"`
	Action   InterventionAction `json:"action,omitempty"`
}

// GoalPlaceholder is left verbatim in reminder templates; the engine does
// not know the session goal, the caller substitutes it.
const GoalPlaceholder = "{goal}"

// ExpandGoal substitutes the goal placeholder in an intervention message.
func ExpandGoal(message, goal string) string {
	return strings.ReplaceAll(message, GoalPlaceholder, goal)
}
