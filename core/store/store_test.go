package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/siherrmann/mapper/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rel(source string, target string) *model.Relationship {
	return &model.Relationship{SourceID: source, TargetID: target}
}

func targets(relationships []*model.Relationship) []string {
	result := []string{}
	for _, r := range relationships {
		result = append(result, r.TargetID)
	}
	return result
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Remapping replaces earlier relationships", func(t *testing.T) {
		s := NewMemoryStore()

		require.NoError(t, s.Replace(ctx, "S1", []*model.Relationship{rel("S1", "T1"), rel("S1", "T2")}))
		require.NoError(t, s.Replace(ctx, "S1", []*model.Relationship{rel("S1", "T3")}))

		got, err := s.Get(ctx, "S1")
		require.NoError(t, err)
		assert.Equal(t, []string{"T3"}, targets(got))

		all, err := s.All(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("Different sources are additive", func(t *testing.T) {
		s := NewMemoryStore()

		require.NoError(t, s.Replace(ctx, "S1", []*model.Relationship{rel("S1", "T1")}))
		require.NoError(t, s.Replace(ctx, "S2", []*model.Relationship{rel("S2", "T2")}))

		all, err := s.All(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"T1", "T2"}, targets(all))
	})

	t.Run("Empty replace records the source without relationships", func(t *testing.T) {
		s := NewMemoryStore()

		require.NoError(t, s.Replace(ctx, "S1", []*model.Relationship{rel("S1", "T1")}))
		require.NoError(t, s.Replace(ctx, "S1", nil))

		got, err := s.Get(ctx, "S1")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)

		ids, err := s.SourceIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"S1"}, ids)
	})

	t.Run("Unknown source returns nil", func(t *testing.T) {
		got, err := NewMemoryStore().Get(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Sources keep the position of their first write", func(t *testing.T) {
		s := NewMemoryStore()

		require.NoError(t, s.Replace(ctx, "S1", nil))
		require.NoError(t, s.Replace(ctx, "S2", nil))
		require.NoError(t, s.Replace(ctx, "S1", []*model.Relationship{rel("S1", "T1")}))

		ids, err := s.SourceIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"S1", "S2"}, ids)
	})

	t.Run("Returned slices are copies", func(t *testing.T) {
		s := NewMemoryStore()
		input := []*model.Relationship{rel("S1", "T1")}
		require.NoError(t, s.Replace(ctx, "S1", input))

		input[0] = rel("S1", "changed")
		got, err := s.Get(ctx, "S1")
		require.NoError(t, err)
		assert.Equal(t, "T1", got[0].TargetID)
	})

	t.Run("Clear empties the store", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.Replace(ctx, "S1", []*model.Relationship{rel("S1", "T1")}))

		require.NoError(t, s.Clear(ctx))

		assert.Equal(t, 0, s.Len())
		all, err := s.All(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("Concurrent replaces are safe", func(t *testing.T) {
		s := NewMemoryStore()
		var wg sync.WaitGroup

		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				source := fmt.Sprintf("S%d", i%10)
				_ = s.Replace(ctx, source, []*model.Relationship{rel(source, fmt.Sprintf("T%d", i))})
				_, _ = s.All(ctx)
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 10, s.Len())
		all, err := s.All(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 10, "Each source should hold exactly its last write")
	})
	t.Run("ReplaceAll writes every entry in order", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.Replace(ctx, "S2", []*model.Relationship{rel("S2", "T9")}))

		err := s.ReplaceAll(ctx, []Entry{
			{SourceID: "S1", Relationships: []*model.Relationship{rel("S1", "T1")}},
			{SourceID: "S2", Relationships: []*model.Relationship{rel("S2", "T2")}},
			{SourceID: "S3"},
		})
		require.NoError(t, err)

		ids, err := s.SourceIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"S2", "S1", "S3"}, ids)

		all, err := s.All(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"T2", "T1"}, targets(all))
	})

	t.Run("ReplaceAll writes nothing if one entry is invalid", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.Replace(ctx, "S1", []*model.Relationship{rel("S1", "T1")}))

		err := s.ReplaceAll(ctx, []Entry{
			{SourceID: "S1", Relationships: []*model.Relationship{rel("S1", "T2")}},
			{SourceID: "S2", Relationships: []*model.Relationship{rel("S1", "T3")}},
		})
		require.Error(t, err)

		got, err := s.Get(ctx, "S1")
		require.NoError(t, err)
		assert.Equal(t, []string{"T1"}, targets(got), "Expected the earlier entry to stay untouched")
		assert.Equal(t, 1, s.Len())
	})
}
