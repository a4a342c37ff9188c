package models

import "time"

// JobPhase is one step of a job's ordered lifecycle:
// triggered -> rendering -> sending -> done, or failed at any point, or
// skipped when the idempotency check finds a completed run for the period.
type JobPhase string

const (
	PhaseTriggered JobPhase = "triggered"
	PhaseRendering JobPhase = "rendering"
	PhaseSending   JobPhase = "sending"
	PhaseDone      JobPhase = "done"
	PhaseFailed    JobPhase = "failed"
	PhaseSkipped   JobPhase = "skipped"
)

// JobEvent is one append-only record of the job event log. A job writes a
// new record per phase, all sharing JobID; records are never mutated.
// Recipients are masked before the record is written.
type JobEvent struct {
	JobID      string    `json:"job_id"`
	Kind       string    `json:"kind"`
	PeriodKey  string    `json:"period_key,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Phase      JobPhase  `json:"phase"`
	Status     string    `json:"status"`
	Recipients []string  `json:"recipients,omitempty"`
	Message    string    `json:"message,omitempty"`
	Artifacts  []string  `json:"artifacts,omitempty"`
}
