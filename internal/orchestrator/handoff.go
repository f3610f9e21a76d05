package orchestrator

import (
	"fmt"
	"sort"
	"strings"
)

// OutputTracker tracks which agreed output sections have been drafted.
type OutputTracker struct {
	sections []string
	complete map[string]bool
}

// NewOutputTracker creates a tracker over the given section labels.
func NewOutputTracker(sections []string) *OutputTracker {
	return &OutputTracker{
		sections: append([]string(nil), sections...),
		complete: make(map[string]bool),
	}
}

// Empty reports whether any sections are tracked yet.
func (ot *OutputTracker) Empty() bool { return len(ot.sections) == 0 }

// SetSections replaces the tracked section list, keeping completion marks
// for labels that survive.
func (ot *OutputTracker) SetSections(sections []string) {
	ot.sections = append([]string(nil), sections...)
}

// MarkComplete records a section as drafted. Unknown labels are ignored.
func (ot *OutputTracker) MarkComplete(label string) {
	for _, s := range ot.sections {
		if s == label {
			ot.complete[label] = true
			return
		}
	}
}

// AllComplete reports whether every tracked section is drafted. An empty
// tracker is never complete; the drafting ceiling covers that case.
func (ot *OutputTracker) AllComplete() bool {
	if len(ot.sections) == 0 {
		return false
	}
	for _, s := range ot.sections {
		if !ot.complete[s] {
			return false
		}
	}
	return true
}

// Remaining returns the sections not yet drafted.
func (ot *OutputTracker) Remaining() []string {
	var out []string
	for _, s := range ot.sections {
		if !ot.complete[s] {
			out = append(out, s)
		}
	}
	return out
}

// handoffBrief builds the structured context carried across a stage
// boundary: recent discussion, decisions, active proposals with tallies,
// per-agent snapshot, and the consensus/conflict counts.
func (o *Orchestrator) handoffBrief() string {
	status := o.tracker.Status()
	var sb strings.Builder

	if len(o.recent) > 0 {
		sb.WriteString("Recent discussion:\n")
		for _, m := range o.recent {
			content := strings.TrimSpace(m.Content)
			if len(content) > 100 {
				content = content[:100] + "..."
			}
			sb.WriteString(fmt.Sprintf("- %s: %s\n", m.AuthorID, content))
		}
	}

	if result := o.cycle.Result(); len(result) > 0 {
		sb.WriteString(fmt.Sprintf("Agreed structure: %s\n", strings.Join(result, ", ")))
	}

	insights := o.tracker.Insights()
	if len(insights) > 0 {
		keys := make([]string, 0, len(insights))
		for k := range insights {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("Active proposals:\n")
		for _, k := range keys {
			in := insights[k]
			sb.WriteString(fmt.Sprintf("- %q (support %d, oppose %d)\n",
				in.Content, len(in.Supporters), len(in.Opposers)))
		}
	}

	if len(status.Contributions) > 0 {
		ids := make([]string, 0, len(status.Contributions))
		for id := range status.Contributions {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		sb.WriteString("Participation:\n")
		for _, id := range ids {
			sb.WriteString(fmt.Sprintf("- %s: %d message(s)\n", id, status.Contributions[id]))
		}
	}

	sb.WriteString(fmt.Sprintf("Consensus: %d point(s), conflicts: %d.",
		status.ConsensusPoints, status.ConflictPoints))

	if remaining := o.outputs.Remaining(); len(remaining) > 0 {
		sb.WriteString(fmt.Sprintf(" Outstanding sections: %s.", strings.Join(remaining, ", ")))
	}
	return sb.String()
}
