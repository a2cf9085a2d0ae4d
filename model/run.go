package model

import (
	"time"

	"github.com/google/uuid"
)

// Run is the persisted record of a mapping run.
type Run struct {
	ID            int64     `json:"id"`
	RID           uuid.UUID `json:"rid"`
	SourceCatalog string    `json:"source_catalog"`
	TargetCatalog string    `json:"target_catalog"`
	State         RunState  `json:"state"`
	TotalBatches  int       `json:"total_batches"`
	FailedBatches int       `json:"failed_batches"`
	Config        Metadata  `json:"config"`
	Unmapped      []string  `json:"unmapped"` // sources a retry has to map again
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewRun builds the run record for a result.
func NewRun(result *MappingResult, source string, target string, config MappingConfig) *Run {
	return &Run{
		RID:           result.RunID,
		SourceCatalog: source,
		TargetCatalog: target,
		State:         result.State,
		TotalBatches:  result.TotalBatches,
		FailedBatches: len(result.Failures),
		Unmapped:      result.Unmapped,
		Config: Metadata{
			"batch_size":       config.BatchSize,
			"concurrency":      config.Concurrency,
			"duplicate_policy": string(config.DuplicatePolicy),
			"shortlist_size":   config.ShortlistSize,
			"extra_context":    config.ExtraContext,
		},
	}
}
