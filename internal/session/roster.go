package session

import (
	"fmt"

	"parley/internal/types"
)

// ErrUnknownParticipant is returned when a roster lookup misses. Callers
// get a typed failure instead of a silently defaulted participant.
type ErrUnknownParticipant struct {
	ID string
}

func (e *ErrUnknownParticipant) Error() string {
	return fmt.Sprintf("unknown participant %q", e.ID)
}

// Roster is the fixed set of enabled agent participants for a session. The
// human is implicit and not listed.
type Roster struct {
	participants []types.Participant
	byID         map[string]types.Participant
}

// NewRoster builds a roster; duplicate IDs keep the first entry.
func NewRoster(participants []types.Participant) *Roster {
	r := &Roster{byID: make(map[string]types.Participant, len(participants))}
	for _, p := range participants {
		if _, ok := r.byID[p.ID]; ok {
			continue
		}
		r.byID[p.ID] = p
		r.participants = append(r.participants, p)
	}
	return r
}

// Participants returns the enabled participants in roster order.
func (r *Roster) Participants() []types.Participant {
	return append([]types.Participant(nil), r.participants...)
}

// Len returns the participant count.
func (r *Roster) Len() int { return len(r.participants) }

// Lookup resolves a participant by id.
func (r *Roster) Lookup(id string) (types.Participant, error) {
	p, ok := r.byID[id]
	if !ok {
		return types.Participant{}, &ErrUnknownParticipant{ID: id}
	}
	return p, nil
}
