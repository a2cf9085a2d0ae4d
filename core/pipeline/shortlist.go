package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/siherrmann/mapper/model"
)

// NewEmbeddingShortlister returns a ShortlistFunc that keeps the k targets most similar
// to any source of the batch. Target embeddings are computed once and cached by id and text.
// The shortlist keeps catalog order so prompts stay stable between batches.
func NewEmbeddingShortlister(embed EmbedFunc) ShortlistFunc {
	var mu sync.Mutex
	cache := map[string][]float32{}

	embedCached := func(e model.Entity) ([]float32, error) {
		key := e.ID + "\x00" + e.Text
		mu.Lock()
		vector, ok := cache[key]
		mu.Unlock()
		if ok {
			return vector, nil
		}

		vector, err := embed(EntityText(e))
		if err != nil {
			return nil, fmt.Errorf("embed target %s: %w", e.ID, err)
		}

		mu.Lock()
		cache[key] = vector
		mu.Unlock()
		return vector, nil
	}

	return func(ctx context.Context, batch model.Batch, targets []model.Entity, k int) ([]model.Entity, error) {
		if k <= 0 || k >= len(targets) {
			return targets, nil
		}

		sources := make([][]float32, 0, len(batch.Entities))
		for _, e := range batch.Entities {
			vector, err := embed(EntityText(e))
			if err != nil {
				return nil, fmt.Errorf("embed source %s: %w", e.ID, err)
			}
			sources = append(sources, vector)
		}

		scores := make([]float64, len(targets))
		for i, target := range targets {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			vector, err := embedCached(target)
			if err != nil {
				return nil, err
			}

			best := math.Inf(-1)
			for _, source := range sources {
				if score := CosineSimilarity(source, vector); score > best {
					best = score
				}
			}
			scores[i] = best
		}

		return TopKEntities(targets, scores, k), nil
	}
}

// TopKEntities keeps the k entities with the highest score in their original order.
func TopKEntities(entities []model.Entity, scores []float64, k int) []model.Entity {
	if k >= len(entities) {
		return entities
	}

	order := make([]int, len(entities))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	keep := order[:k]
	sort.Ints(keep)

	result := make([]model.Entity, 0, k)
	for _, i := range keep {
		result = append(result, entities[i])
	}
	return result
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Vectors of different length or zero magnitude score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, aMagnitude, bMagnitude float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		aMagnitude += float64(a[i]) * float64(a[i])
		bMagnitude += float64(b[i]) * float64(b[i])
	}

	if aMagnitude == 0 || bMagnitude == 0 {
		return 0
	}
	return dot / (math.Sqrt(aMagnitude) * math.Sqrt(bMagnitude))
}

// EntityText is the text embedded for e, entities without text fall back to their id.
func EntityText(e model.Entity) string {
	if strings.TrimSpace(e.Text) == "" {
		return e.ID
	}
	return e.Text
}
