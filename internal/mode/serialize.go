package mode

import (
	"encoding/json"
	"sort"
)

// TopicCount is the ordered-pair form of the research topic map.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// Snapshot is the flat save/resume layout: mode id, progress fields with
// maps/sets as ordered pairs and plain lists, and a bounded fingerprint
// history.
type Snapshot struct {
	ModeID           string       `json:"mode_id"`
	CurrentPhaseID   string       `json:"current_phase_id"`
	MessagesInPhase  int          `json:"messages_in_phase"`
	TotalMessages    int          `json:"total_messages"`
	ResearchRequests int          `json:"research_requests"`
	ResearchByTopic  []TopicCount `json:"research_by_topic"`
	ConsensusPoints  int          `json:"consensus_points"`
	ProposalsCount   int          `json:"proposals_count"`
	LastProgressAt   int          `json:"last_progress_at"`
	LoopDetected     bool         `json:"loop_detected"`
	OutputsProduced  []string     `json:"outputs_produced"`
	Fingerprints     []string     `json:"fingerprints"`
}

// Snapshot captures the engine state. Only the most recent fingerprints are
// persisted; ordering of map/set fields is deterministic.
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		ModeID:           e.policy.ID,
		CurrentPhaseID:   e.progress.CurrentPhaseID,
		MessagesInPhase:  e.progress.MessagesInPhase,
		TotalMessages:    e.progress.TotalMessages,
		ResearchRequests: e.progress.ResearchRequests,
		ConsensusPoints:  e.progress.ConsensusPoints,
		ProposalsCount:   e.progress.ProposalsCount,
		LastProgressAt:   e.progress.LastProgressAt,
		LoopDetected:     e.progress.LoopDetected,
		OutputsProduced:  e.progress.Outputs(),
	}

	topics := make([]string, 0, len(e.progress.ResearchByTopic))
	for t := range e.progress.ResearchByTopic {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	s.ResearchByTopic = make([]TopicCount, 0, len(topics))
	for _, t := range topics {
		s.ResearchByTopic = append(s.ResearchByTopic, TopicCount{Topic: t, Count: e.progress.ResearchByTopic[t]})
	}

	fps := e.fingerprints
	if len(fps) > persistedFingerprints {
		fps = fps[len(fps)-persistedFingerprints:]
	}
	s.Fingerprints = append([]string(nil), fps...)
	return s
}

// Restore replaces the engine state with a snapshot. Missing or partial
// data defaults to zero values rather than failing; the active policy is
// kept (the snapshot's mode id is informational for the caller).
func (e *Engine) Restore(s Snapshot) {
	e.progress = Progress{
		CurrentPhaseID:   s.CurrentPhaseID,
		MessagesInPhase:  s.MessagesInPhase,
		TotalMessages:    s.TotalMessages,
		ResearchRequests: s.ResearchRequests,
		ConsensusPoints:  s.ConsensusPoints,
		ProposalsCount:   s.ProposalsCount,
		LastProgressAt:   s.LastProgressAt,
		LoopDetected:     s.LoopDetected,
		ResearchByTopic:  make(map[string]int, len(s.ResearchByTopic)),
		OutputsProduced:  make(map[string]bool, len(s.OutputsProduced)),
	}
	if e.progress.CurrentPhaseID == "" {
		if first := e.policy.FirstPhase(); first != nil {
			e.progress.CurrentPhaseID = first.ID
		}
	}
	for _, tc := range s.ResearchByTopic {
		e.progress.ResearchByTopic[tc.Topic] = tc.Count
	}
	for _, label := range s.OutputsProduced {
		e.progress.OutputsProduced[label] = true
	}
	e.fingerprints = append([]string(nil), s.Fingerprints...)
}

// ToJSON serializes the engine state.
func (e *Engine) ToJSON() ([]byte, error) {
	return json.Marshal(e.Snapshot())
}

// FromJSON restores engine state from serialized form. Unknown or missing
// fields degrade to zero values.
func (e *Engine) FromJSON(data []byte) error {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	e.Restore(s)
	return nil
}
