package pipeline

import (
	"github.com/siherrmann/mapper/model"
)

// Plan partitions entities into consecutive batches of batchSize, the last batch may be smaller.
// The concatenation of all batches equals the input in order.
func Plan(entities []model.Entity, batchSize int) ([]model.Batch, error) {
	if batchSize <= 0 {
		return nil, model.NewInputError("batch size must be a positive integer, got %d", batchSize)
	}

	batches := make([]model.Batch, 0, (len(entities)+batchSize-1)/batchSize)
	for start := 0; start < len(entities); start += batchSize {
		end := min(start+batchSize, len(entities))
		batches = append(batches, model.Batch{
			Index:    len(batches),
			Entities: entities[start:end],
		})
	}

	return batches, nil
}
