package model

// BatchState is the processing state of a single batch.
type BatchState string

const (
	BatchStatePending   BatchState = "pending"
	BatchStateRunning   BatchState = "running"
	BatchStateSucceeded BatchState = "succeeded"
	BatchStateFailed    BatchState = "failed"
)

// Batch is a contiguous slice of the source catalog sent in one generation call.
type Batch struct {
	Index    int      `json:"index"`
	Entities []Entity `json:"entities"`
}

// SourceIDs returns the ids of the batch in order.
func (b Batch) SourceIDs() []string {
	ids := make([]string, 0, len(b.Entities))
	for _, e := range b.Entities {
		ids = append(ids, e.ID)
	}
	return ids
}

// FirstID returns the id of the first entity or an empty string.
func (b Batch) FirstID() string {
	if len(b.Entities) == 0 {
		return ""
	}
	return b.Entities[0].ID
}

// LastID returns the id of the last entity or an empty string.
func (b Batch) LastID() string {
	if len(b.Entities) == 0 {
		return ""
	}
	return b.Entities[len(b.Entities)-1].ID
}

// Split halves the batch, both halves keep the batch index.
func (b Batch) Split() (Batch, Batch) {
	mid := len(b.Entities) / 2
	return Batch{Index: b.Index, Entities: b.Entities[:mid]},
		Batch{Index: b.Index, Entities: b.Entities[mid:]}
}
