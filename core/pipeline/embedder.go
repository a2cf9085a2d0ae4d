package pipeline

import (
	"fmt"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/siherrmann/mapper/helper"
)

const (
	DefaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultEmbeddingDim   = 384
)

// DefaultEmbedder loads DefaultEmbeddingModel, see NewHugotEmbedder.
func DefaultEmbedder() (EmbedFunc, error) {
	return NewHugotEmbedder(DefaultEmbeddingModel, "")
}

// NewHugotEmbedder creates a local feature extraction embedder for a hugging face model.
// The model is downloaded into helper.ModelDir on first use.
// The returned EmbedFunc may be shared by concurrent batches, calls are serialized.
func NewHugotEmbedder(modelName string, onnxFilePath string) (EmbedFunc, error) {
	modelPath, err := helper.PrepareModel(modelName, onnxFilePath)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	extraction, err := hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "shortlist-embedder",
	})
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create feature extraction pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create feature extraction pipeline: %w", err)
	}

	var mu sync.Mutex
	return func(text string) ([]float32, error) {
		mu.Lock()
		result, err := extraction.RunPipeline([]string{text})
		mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("failed to embed %q: %w", text, err)
		}
		if len(result.Embeddings) == 0 {
			return nil, fmt.Errorf("no embedding for %q", text)
		}
		return result.Embeddings[0], nil
	}, nil
}
