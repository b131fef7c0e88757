// Package episode owns one incident-response episode end to end: its
// evidence store, attacker state, containment record, and the
// reset/step orchestration that ties the attacker state machine, the
// attacker policy, and the scoring oracle together.
package episode

import "github.com/opensec-sim/irsim/src/defender"

// Observation is returned by both Reset and Step: the full
// defender-visible view of the episode after whichever action just ran.
type Observation struct {
	ScenarioID          string                    `json:"scenario_id"`
	StepIndex           int                       `json:"step_index"`
	AttackerState       string                    `json:"attacker_state"`
	Containment         defender.ContainmentState `json:"containment"`
	NewEmails           []string                  `json:"new_emails"`
	NewAlerts           []string                  `json:"new_alerts"`
	EvidenceSeenIDs     []string                  `json:"evidence_seen_ids"`
	EvidenceContentIDs  []string                  `json:"evidence_content_ids"`
	LastActionResult    defender.ActionResult     `json:"last_action_result"`
	Hint                string                    `json:"hint,omitempty"`
	Done                bool                      `json:"done"`
	Reward              *float64                  `json:"reward"`
	Metadata            map[string]any            `json:"metadata"`
}

// State is the episode's bookkeeping snapshot, returned standalone by
// GET /state.
type State struct {
	EpisodeID  string `json:"episode_id"`
	ScenarioID string `json:"scenario_id"`
	StepCount  int    `json:"step_count"`
	MaxSteps   int    `json:"max_steps"`
	Terminated bool   `json:"terminated"`
	Truncated  bool   `json:"truncated"`
}

// StepResult is the full return value of Reset and Step.
type StepResult struct {
	Observation Observation    `json:"observation"`
	Reward      float64        `json:"reward"`
	Done        bool           `json:"done"`
	Info        map[string]any `json:"info"`
	State       State          `json:"state"`
}
