package pipeline

import (
	"fmt"
	"testing"

	"github.com/siherrmann/mapper/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan(t *testing.T) {
	t.Run("Partitions with a smaller last batch", func(t *testing.T) {
		batches, err := Plan(entities("a", "b", "c", "d", "e"), 2)
		require.NoError(t, err)

		require.Len(t, batches, 3)
		assert.Equal(t, []string{"a", "b"}, batches[0].SourceIDs())
		assert.Equal(t, []string{"c", "d"}, batches[1].SourceIDs())
		assert.Equal(t, []string{"e"}, batches[2].SourceIDs())
		for i, batch := range batches {
			assert.Equal(t, i, batch.Index)
		}
	})

	t.Run("Concatenation equals input for many sizes", func(t *testing.T) {
		for n := 0; n <= 23; n++ {
			ids := make([]string, n)
			for i := range ids {
				ids[i] = fmt.Sprintf("E%02d", i)
			}
			input := entities(ids...)

			for size := 1; size <= 7; size++ {
				batches, err := Plan(input, size)
				require.NoError(t, err)

				assert.Len(t, batches, (n+size-1)/size, "n=%d size=%d", n, size)
				var flattened []model.Entity
				for _, batch := range batches {
					assert.NotEmpty(t, batch.Entities)
					assert.LessOrEqual(t, len(batch.Entities), size)
					flattened = append(flattened, batch.Entities...)
				}
				assert.Equal(t, len(input), len(flattened))
				for i := range flattened {
					assert.Equal(t, input[i].ID, flattened[i].ID)
				}
			}
		}
	})

	t.Run("Empty input gives no batches", func(t *testing.T) {
		batches, err := Plan(nil, 10)
		require.NoError(t, err)
		assert.Empty(t, batches)
	})

	t.Run("Non positive batch size is an input error", func(t *testing.T) {
		_, err := Plan(entities("a"), 0)
		assert.ErrorIs(t, err, model.ErrInput)

		_, err = Plan(entities("a"), -1)
		assert.ErrorIs(t, err, model.ErrInput)
	})
}
