package mapper

import (
	"context"
	"fmt"
	"math"

	"github.com/siherrmann/mapper/core/pipeline"
	"github.com/siherrmann/mapper/database"
	"github.com/siherrmann/mapper/model"
)

// NewVectorShortlister returns a ShortlistFunc backed by the target entity index.
// Every batch source asks the index for its k nearest targets of catalog; a target
// scores with its best similarity over the batch. The shortlist keeps catalog order.
func NewVectorShortlister(entities database.EntitiesDBHandlerFunctions, catalog string, embed pipeline.EmbedFunc) pipeline.ShortlistFunc {
	return func(ctx context.Context, batch model.Batch, targets []model.Entity, k int) ([]model.Entity, error) {
		if k <= 0 || k >= len(targets) {
			return targets, nil
		}

		best := map[string]float64{}
		for _, e := range batch.Entities {
			embedding, err := embed(pipeline.EntityText(e))
			if err != nil {
				return nil, fmt.Errorf("embed source %s: %w", e.ID, err)
			}

			nearest, err := entities.SelectEntitiesBySimilarity(ctx, catalog, embedding, k)
			if err != nil {
				return nil, fmt.Errorf("search targets for %s: %w", e.ID, err)
			}

			for _, n := range nearest {
				if score, ok := best[n.EntityID]; !ok || n.Similarity > score {
					best[n.EntityID] = n.Similarity
				}
			}
		}

		scores := make([]float64, len(targets))
		for i, target := range targets {
			score, ok := best[target.ID]
			if !ok {
				score = math.Inf(-1)
			}
			scores[i] = score
		}

		return pipeline.TopKEntities(targets, scores, k), nil
	}
}
