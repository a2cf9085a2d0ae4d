package model

import (
	"time"

	"github.com/google/uuid"
)

// RunState is the lifecycle state of a mapping run.
type RunState string

const (
	RunStateIdle      RunState = "idle"
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStatePartial   RunState = "partial" // completed, but at least one batch failed
	RunStateCancelled RunState = "cancelled"
)

// Done reports whether the state is terminal.
func (s RunState) Done() bool {
	return s == RunStateCompleted || s == RunStatePartial || s == RunStateCancelled
}

// BatchFailure describes one batch (or split half of a batch) whose generation call failed.
type BatchFailure struct {
	Index         int      `json:"index"`
	FirstSourceID string   `json:"first_source_id"`
	LastSourceID  string   `json:"last_source_id"`
	SourceIDs     []string `json:"source_ids"`
	Err           error    `json:"-"`
	Message       string   `json:"error"`
}

// NewBatchFailure builds the failure record for batch.
func NewBatchFailure(batch Batch, err error) BatchFailure {
	failure := BatchFailure{
		Index:         batch.Index,
		FirstSourceID: batch.FirstID(),
		LastSourceID:  batch.LastID(),
		SourceIDs:     batch.SourceIDs(),
		Err:           err,
	}
	if err != nil {
		failure.Message = err.Error()
	}
	return failure
}

// Progress is reported to the sink after every batch.
type Progress struct {
	RunID            uuid.UUID       `json:"run_id"`
	BatchesCompleted int             `json:"batches_completed"`
	TotalBatches     int             `json:"total_batches"`
	Fraction         float64         `json:"fraction"`
	Relationships    []*Relationship `json:"relationships"`
}

// NewProgress computes the completed fraction, an empty plan counts as done.
func NewProgress(runID uuid.UUID, completed int, total int, relationships []*Relationship) Progress {
	fraction := 1.0
	if total > 0 {
		fraction = float64(completed) / float64(total)
	}
	return Progress{
		RunID:            runID,
		BatchesCompleted: completed,
		TotalBatches:     total,
		Fraction:         fraction,
		Relationships:    relationships,
	}
}

// MappingResult is the outcome of one run.
type MappingResult struct {
	RunID         uuid.UUID        `json:"run_id"`
	State         RunState         `json:"state"`
	TotalBatches  int              `json:"total_batches"`
	Relationships []*Relationship  `json:"relationships"`
	SourceIDs     []string         `json:"source_ids"` // sources with a stored entry, mapped or not
	Failures      []BatchFailure   `json:"failures,omitempty"`
	Unmapped      []string         `json:"unmapped,omitempty"`
	Report        ValidationReport `json:"report"`
	StartedAt     time.Time        `json:"started_at"`
	FinishedAt    time.Time        `json:"finished_at"`
}

// Summary holds the aggregate numbers shown after a run.
type Summary struct {
	TotalMappings   int `json:"total_mappings"`
	UniqueTargets   int `json:"unique_targets"`
	MappedSources   int `json:"mapped_sources"`
	FailedBatches   int `json:"failed_batches"`
	UnmappedSources int `json:"unmapped_sources"`
}

// Summary aggregates the relationships of the result.
func (r *MappingResult) Summary() Summary {
	return Summarize(r.Relationships, r.Failures, r.Unmapped)
}

// Summarize computes the summary numbers for a set of relationships.
func Summarize(relationships []*Relationship, failures []BatchFailure, unmapped []string) Summary {
	sources := map[string]struct{}{}
	targets := map[string]struct{}{}
	for _, rel := range relationships {
		sources[rel.SourceID] = struct{}{}
		targets[rel.TargetID] = struct{}{}
	}
	return Summary{
		TotalMappings:   len(relationships),
		UniqueTargets:   len(targets),
		MappedSources:   len(sources),
		FailedBatches:   len(failures),
		UnmappedSources: len(unmapped),
	}
}

// Duration returns how long the run took.
func (r *MappingResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
