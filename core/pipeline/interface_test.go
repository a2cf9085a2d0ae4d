package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/siherrmann/mapper/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock GenerateFunc returning a fixed reply
func mockGenerateFunc(reply string) GenerateFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		return reply, nil
	}
}

// Mock GenerateFunc that returns an error
func mockGenerateFuncError(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("service unavailable")
}

func entities(ids ...string) []model.Entity {
	result := make([]model.Entity, 0, len(ids))
	for i, id := range ids {
		result = append(result, model.Entity{ID: id, Text: "Text of " + id, Row: i + 1})
	}
	return result
}

func idSet(ids ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func TestNewPipeline(t *testing.T) {
	t.Run("Create new pipeline with defaults", func(t *testing.T) {
		pipeline := NewPipeline(mockGenerateFunc(""))

		require.NotNil(t, pipeline)
		assert.NotNil(t, pipeline.Prompter)
		assert.NotNil(t, pipeline.Generator)
		assert.NotNil(t, pipeline.Parser)
		assert.NotNil(t, pipeline.Validator)
		assert.Nil(t, pipeline.Shortlister, "Shortlister should be optional")
	})

	t.Run("Setters replace steps", func(t *testing.T) {
		pipeline := NewPipeline(mockGenerateFunc(""))

		pipeline.SetPrompter(func(batch model.Batch, targets []model.Entity, extraContext string) string {
			return "custom"
		})
		pipeline.SetShortlister(func(ctx context.Context, batch model.Batch, targets []model.Entity, k int) ([]model.Entity, error) {
			return targets[:1], nil
		})

		assert.Equal(t, "custom", pipeline.Prompter(model.Batch{}, nil, ""))
		assert.NotNil(t, pipeline.Shortlister)
	})
}

func TestProcessBatch(t *testing.T) {
	sources := entities("S1", "S2")
	targets := entities("C1", "C2", "C3")
	input := BatchInput{
		Batch:        model.Batch{Index: 3, Entities: sources},
		Targets:      targets,
		KnownSources: idSet("S1", "S2"),
		KnownTargets: idSet("C1", "C2", "C3"),
		ExtraContext: "retail",
	}

	t.Run("Produces validated relationships", func(t *testing.T) {
		var captured string
		pipeline := NewPipeline(func(ctx context.Context, prompt string) (string, error) {
			captured = prompt
			return "S1 -> C1, C9\nS2 -> NONE\nX -> C2", nil
		})

		result, err := pipeline.ProcessBatch(context.Background(), input)
		require.NoError(t, err)

		assert.Contains(t, captured, "- S1: Text of S1")
		assert.Contains(t, captured, "Additional Context: retail")
		require.Len(t, result.Candidates, 3)
		require.Len(t, result.Relationships, 1)
		assert.Equal(t, "C1", result.Relationships[0].TargetID)
		assert.Equal(t, 3, result.Relationships[0].BatchIndex)
		assert.Equal(t, 1, result.Report.RejectedSources)
		assert.Equal(t, 1, result.Report.RejectedTargets)
	})

	t.Run("Unset steps fall back to the defaults", func(t *testing.T) {
		var captured string
		pipeline := &Pipeline{Generator: func(ctx context.Context, prompt string) (string, error) {
			captured = prompt
			return "S1 -> C2 | shared process", nil
		}}

		result, err := pipeline.ProcessBatch(context.Background(), input)
		require.NoError(t, err)

		assert.Contains(t, captured, "- S1: Text of S1")
		require.Len(t, result.Relationships, 1)
		assert.Equal(t, "C2", result.Relationships[0].TargetID)
		assert.Equal(t, "shared process", result.Relationships[0].Rationale)
	})

	t.Run("Missing generator is an input error", func(t *testing.T) {
		_, err := (&Pipeline{}).ProcessBatch(context.Background(), input)
		assert.ErrorIs(t, err, model.ErrInput)
	})

	t.Run("Generation errors are service errors", func(t *testing.T) {
		pipeline := NewPipeline(mockGenerateFuncError)

		result, err := pipeline.ProcessBatch(context.Background(), input)

		require.Error(t, err)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, model.ErrService)
	})

	t.Run("Shortlist limits the prompt targets", func(t *testing.T) {
		var captured string
		pipeline := NewPipeline(func(ctx context.Context, prompt string) (string, error) {
			captured = prompt
			return "S1 -> C3", nil
		})
		pipeline.SetShortlister(func(ctx context.Context, batch model.Batch, targets []model.Entity, k int) ([]model.Entity, error) {
			return targets[len(targets)-k:], nil
		})

		shortlisted := input
		shortlisted.Shortlist = 1
		result, err := pipeline.ProcessBatch(context.Background(), shortlisted)
		require.NoError(t, err)

		assert.NotContains(t, captured, "- C1:")
		assert.True(t, strings.Contains(captured, "- C3:"))
		require.Len(t, result.Relationships, 1)
	})

	t.Run("Shortlist errors are service errors", func(t *testing.T) {
		pipeline := NewPipeline(mockGenerateFunc(""))
		pipeline.SetShortlister(func(ctx context.Context, batch model.Batch, targets []model.Entity, k int) ([]model.Entity, error) {
			return nil, errors.New("embedding failed")
		})

		shortlisted := input
		shortlisted.Shortlist = 2
		_, err := pipeline.ProcessBatch(context.Background(), shortlisted)

		assert.ErrorIs(t, err, model.ErrService)
	})

	t.Run("Shortlist is skipped when it would keep every target", func(t *testing.T) {
		called := false
		pipeline := NewPipeline(mockGenerateFunc("S1 -> C1"))
		pipeline.SetShortlister(func(ctx context.Context, batch model.Batch, targets []model.Entity, k int) ([]model.Entity, error) {
			called = true
			return targets, nil
		})

		shortlisted := input
		shortlisted.Shortlist = 3
		_, err := pipeline.ProcessBatch(context.Background(), shortlisted)

		require.NoError(t, err)
		assert.False(t, called)
	})
}
