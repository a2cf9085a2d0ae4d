package pipeline

import (
	"context"
	"testing"

	"github.com/siherrmann/mapper/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEmbedder(t *testing.T) {
	// Note: DefaultEmbedder uses hugot which requires downloading models
	// These tests may take longer on first run
	if testing.Short() {
		t.Skip("Skipping DefaultEmbedder test in short mode (requires model download)")
	}

	embedder, err := DefaultEmbedder()
	require.NoError(t, err)
	require.NotNil(t, embedder)

	t.Run("Generate embedding for text", func(t *testing.T) {
		embedding, err := embedder("Customers cannot track their orders")

		require.NoError(t, err)
		assert.Len(t, embedding, DefaultEmbeddingDim)
	})

	t.Run("Same text produces same embedding", func(t *testing.T) {
		embedding1, err1 := embedder("Deterministic embedding test")
		require.NoError(t, err1)
		embedding2, err2 := embedder("Deterministic embedding test")
		require.NoError(t, err2)

		for i := range embedding1 {
			assert.InDelta(t, embedding1[i], embedding2[i], 0.0001, "Same text should produce same embedding")
		}
	})

	t.Run("Similar texts have similar embeddings", func(t *testing.T) {
		invoice, err := embedder("Invoices are sent late to customers")
		require.NoError(t, err)
		billing, err := embedder("Billing and invoicing")
		require.NoError(t, err)
		warehouse, err := embedder("Forklift maintenance in the warehouse")
		require.NoError(t, err)

		assert.Greater(t, CosineSimilarity(invoice, billing), CosineSimilarity(invoice, warehouse),
			"Semantically similar texts should have higher similarity")
	})

	t.Run("Shortlists capabilities for a pain point", func(t *testing.T) {
		shortlister := NewEmbeddingShortlister(embedder)
		targets := []model.Entity{
			{ID: "C1", Text: "Billing and invoicing"},
			{ID: "C2", Text: "Warehouse management"},
			{ID: "C3", Text: "Recruiting and onboarding"},
		}
		batch := model.Batch{Entities: []model.Entity{{ID: "P1", Text: "Invoices are sent late to customers"}}}

		result, err := shortlister(context.Background(), batch, targets, 1)

		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, "C1", result[0].ID)
	})
}
