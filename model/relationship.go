package model

import (
	"time"

	"github.com/google/uuid"
)

// Candidate is one parsed line of a model reply before validation.
// An empty TargetIDs slice is an explicit "no relationship".
type Candidate struct {
	SourceID  string   `json:"source_id"`
	TargetIDs []string `json:"target_ids"`
	Rationale string   `json:"rationale,omitempty"`
}

// Relationship is a validated (source, target) pair.
type Relationship struct {
	ID         uuid.UUID `json:"id"`
	RunID      uuid.UUID `json:"run_id"`
	SourceID   string    `json:"source_id"`
	TargetID   string    `json:"target_id"`
	Rationale  string    `json:"rationale,omitempty"`
	BatchIndex int       `json:"batch_index"`
	Metadata   Metadata  `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ValidationReport counts what validation kept and dropped.
type ValidationReport struct {
	Candidates      int `json:"candidates"`
	Accepted        int `json:"accepted"`
	RejectedSources int `json:"rejected_sources"`
	RejectedTargets int `json:"rejected_targets"`
	Duplicates      int `json:"duplicates"`
}

// Add accumulates another report into r.
func (r *ValidationReport) Add(other ValidationReport) {
	r.Candidates += other.Candidates
	r.Accepted += other.Accepted
	r.RejectedSources += other.RejectedSources
	r.RejectedTargets += other.RejectedTargets
	r.Duplicates += other.Duplicates
}

// Rejected returns the number of dropped source candidates and target ids.
func (r ValidationReport) Rejected() int {
	return r.RejectedSources + r.RejectedTargets
}
