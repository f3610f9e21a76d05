// Package wireframe implements the nested voting cycle participants use to
// converge on a shared structural proposal before deeper argumentation. The
// cycle runs once per session: every participant proposes a section tree,
// critiques the collected proposals with a fixed tag grammar, and a strict
// majority tally picks the final section set.
package wireframe

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"parley/internal/logging"
	"parley/internal/structure"
	"parley/internal/types"
)

// Phase of the voting cycle. Monotonic within a main-phase lifetime.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseProposing  Phase = "proposing"
	PhaseCritiquing Phase = "critiquing"
	PhaseConverged  Phase = "converged"
)

// Escape hatch multipliers, in units of participant count: abandon the
// proposal round after 3x messages with zero proposals, proceed with a
// partial set after 4x, and force convergence after 2x critique messages.
const (
	abandonFactor  = 3
	proceedFactor  = 4
	critiqueFactor = 2
)

// Proposal is one participant's parsed structural proposal.
type Proposal struct {
	AgentID      string          `json:"agent_id"`
	AgentName    string          `json:"agent_name"`
	Tree         *structure.Tree `json:"tree"`
	Timestamp    time.Time       `json:"timestamp"`
	MessageIndex int             `json:"message_index"`
}

// CritiqueAction is what a critique asks to do with a section.
type CritiqueAction string

const (
	CritiqueKeep   CritiqueAction = "KEEP"
	CritiqueRemove CritiqueAction = "REMOVE"
	CritiqueModify CritiqueAction = "MODIFY"
)

// Critique is one parsed critique tag.
type Critique struct {
	Action CritiqueAction `json:"action"`
	Target string         `json:"target"`
	Reason string         `json:"reason"`
}

// Update is what the cycle wants done after observing a message: directives
// to broadcast, participants to force-speak, and an event label for
// observers.
type Update struct {
	Directives []string
	ForceSpeak []string
	Event      string
}

// Cycle is the per-session voting state machine. Not safe for concurrent
// use; the session serializes calls.
type Cycle struct {
	participants []types.Participant
	parser       *structure.Parser

	phase     Phase
	proposals map[string]Proposal
	critiques map[string][]Critique

	// Per-round message counters (non-system) for the escape hatches.
	proposingMessages int
	critiqueMessages  int
	critiquedSince    map[string]bool

	messageIndex int
	result       []string
}

// NewCycle creates an idle cycle for the roster.
func NewCycle(participants []types.Participant, parser *structure.Parser) *Cycle {
	return &Cycle{
		participants:   participants,
		parser:         parser,
		phase:          PhaseIdle,
		proposals:      make(map[string]Proposal),
		critiques:      make(map[string][]Critique),
		critiquedSince: make(map[string]bool),
	}
}

// Phase returns the current cycle phase.
func (c *Cycle) Phase() Phase { return c.phase }

// Proposals returns the collected proposals keyed by agent id.
func (c *Cycle) Proposals() map[string]Proposal {
	out := make(map[string]Proposal, len(c.proposals))
	for id, p := range c.proposals {
		out[id] = p
	}
	return out
}

// Result returns the final consensus section keys once converged.
func (c *Cycle) Result() []string {
	return append([]string(nil), c.result...)
}

// Begin starts the proposal round. It asks every participant for a
// structural proposal and lists who should be forced to speak (the caller
// staggers them).
func (c *Cycle) Begin() Update {
	if c.phase != PhaseIdle {
		return Update{}
	}
	c.phase = PhaseProposing
	logging.Wireframe("Proposal round started with %d participants", len(c.participants))

	force := make([]string, 0, len(c.participants))
	for _, p := range c.participants {
		force = append(force, p.ID)
	}
	return Update{
		Directives: []string{
			"Wireframe round: each participant, post one structural proposal for the deliverable as a heading/bullet outline. One proposal per participant; your latest replaces earlier ones.",
		},
		ForceSpeak: force,
		Event:      "wireframe_proposing",
	}
}

// Observe feeds one message into the cycle.
func (c *Cycle) Observe(msg types.Message) Update {
	if msg.IsSystem() {
		return Update{}
	}
	c.messageIndex++

	switch c.phase {
	case PhaseProposing:
		return c.observeProposing(msg)
	case PhaseCritiquing:
		return c.observeCritiquing(msg)
	default:
		return Update{}
	}
}

func (c *Cycle) observeProposing(msg types.Message) Update {
	c.proposingMessages++

	var update Update
	if tree := c.parser.Parse(msg.Content); tree != nil {
		name := msg.AuthorID
		for _, p := range c.participants {
			if p.ID == msg.AuthorID {
				name = p.DisplayName
				break
			}
		}
		// Last proposal per participant wins.
		c.proposals[msg.AuthorID] = Proposal{
			AgentID:      msg.AuthorID,
			AgentName:    name,
			Tree:         tree,
			Timestamp:    msg.Timestamp,
			MessageIndex: c.messageIndex,
		}
		update.Event = "wireframe_proposal_collected"
		logging.Wireframe("Proposal collected from %s (%d/%d)", msg.AuthorID, len(c.proposals), len(c.participants))
	}

	n := len(c.participants)
	switch {
	case len(c.proposals) == n:
		return c.startCritique(update)
	case len(c.proposals) == 0 && c.proposingMessages >= abandonFactor*n:
		// Nobody produced a parseable block; give up this round.
		c.phase = PhaseIdle
		c.proposingMessages = 0
		logging.Wireframe("Proposal round abandoned: no parseable proposals")
		update.Event = "wireframe_abandoned"
		update.Directives = append(update.Directives,
			"Wireframe round abandoned: no structural proposals were produced. Continuing without a shared outline.")
		return update
	case len(c.proposals) >= 1 && c.proposingMessages >= proceedFactor*n:
		logging.Wireframe("Proceeding to critique with partial set (%d/%d)", len(c.proposals), n)
		return c.startCritique(update)
	}
	return update
}

func (c *Cycle) startCritique(update Update) Update {
	c.phase = PhaseCritiquing
	c.critiqueMessages = 0
	c.critiquedSince = make(map[string]bool)
	update.Directives = append(update.Directives, c.critiqueBrief())
	if update.Event == "" {
		update.Event = "wireframe_critiquing"
	}
	logging.Wireframe("Critique round started over %d proposals", len(c.proposals))
	return update
}

// critiqueBrief summarizes every proposal down to its leaf sections and
// explains the critique grammar.
func (c *Cycle) critiqueBrief() string {
	var sb strings.Builder
	sb.WriteString("Wireframe critique round. Collected proposals:\n")
	for _, id := range c.sortedProposalIDs() {
		p := c.proposals[id]
		sb.WriteString(fmt.Sprintf("- %s: %s\n", p.AgentName, strings.Join(structure.LeafSections(p.Tree), ", ")))
	}
	sb.WriteString("Critique with tags of the form [CANVAS_CRITIQUE:KEEP] Section - reason, ")
	sb.WriteString("using KEEP, REMOVE, or MODIFY. At least one tag per participant.")
	return sb.String()
}

var critiqueRe = regexp.MustCompile(`(?i)\[CANVAS_CRITIQUE:(KEEP|REMOVE|MODIFY)\]\s*([^-\n]+?)\s*-\s*([^\n]+)`)

// ParseCritiques extracts all critique tags from text. Unmatched syntax is
// ignored.
func ParseCritiques(text string) []Critique {
	matches := critiqueRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]Critique, 0, len(matches))
	for _, m := range matches {
		out = append(out, Critique{
			Action: CritiqueAction(strings.ToUpper(m[1])),
			Target: strings.TrimSpace(m[2]),
			Reason: strings.TrimSpace(m[3]),
		})
	}
	return out
}

func (c *Cycle) observeCritiquing(msg types.Message) Update {
	c.critiqueMessages++

	var update Update
	if critiques := ParseCritiques(msg.Content); len(critiques) > 0 {
		// Latest critique list per author wins.
		c.critiques[msg.AuthorID] = critiques
		c.critiquedSince[msg.AuthorID] = true
		update.Event = "wireframe_critique_collected"
		logging.WireframeDebug("%d critique(s) from %s", len(critiques), msg.AuthorID)
	}

	everyone := true
	for _, p := range c.participants {
		if !c.critiquedSince[p.ID] {
			everyone = false
			break
		}
	}
	if everyone || c.critiqueMessages >= critiqueFactor*len(c.participants) {
		return c.converge(update)
	}
	return update
}

// converge tallies votes and finishes the cycle. Terminal for the session.
func (c *Cycle) converge(update Update) Update {
	c.phase = PhaseConverged
	c.result = c.tally()
	logging.Wireframe("Converged on %d section(s): %s", len(c.result), strings.Join(c.result, ", "))

	update.Event = "wireframe_converged"
	if len(c.result) == 0 {
		update.Directives = append(update.Directives,
			"Wireframe vote complete: no section reached a majority. Proceed without a fixed outline.")
	} else {
		update.Directives = append(update.Directives,
			fmt.Sprintf("Wireframe vote complete. Agreed sections: %s. Structure all further output around these.",
				strings.Join(c.result, ", ")))
	}
	return update
}

// tally counts one vote per distinct proposal containing each normalized
// leaf key, applies critique adjustments (KEEP +1, REMOVE -1 floored at
// zero, MODIFY recorded but neutral), and keeps keys whose tally is
// strictly greater than half the proposal count.
func (c *Cycle) tally() []string {
	votes := make(map[string]int)
	for _, p := range c.proposals {
		seen := make(map[string]bool)
		for _, leaf := range structure.LeafSections(p.Tree) {
			key := structure.NormalizeLabel(leaf)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			votes[key]++
		}
	}

	for _, list := range c.critiques {
		for _, critique := range list {
			key := structure.NormalizeLabel(critique.Target)
			if _, known := votes[key]; !known {
				continue
			}
			switch critique.Action {
			case CritiqueKeep:
				votes[key]++
			case CritiqueRemove:
				if votes[key] > 0 {
					votes[key]--
				}
			case CritiqueModify:
				// Recorded, no tally change.
			}
		}
	}

	majority := float64(len(c.proposals)) * 0.5
	keys := make([]string, 0, len(votes))
	for key, tally := range votes {
		if float64(tally) > majority {
			keys = append(keys, key)
		}
	}
	// Highest tally first, label as tiebreak, for a stable final list.
	sort.Slice(keys, func(i, j int) bool {
		if votes[keys[i]] != votes[keys[j]] {
			return votes[keys[i]] > votes[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

func (c *Cycle) sortedProposalIDs() []string {
	ids := make([]string, 0, len(c.proposals))
	for id := range c.proposals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
