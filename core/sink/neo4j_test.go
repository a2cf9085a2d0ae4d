package sink

import (
	"context"
	"testing"

	"github.com/siherrmann/mapper/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphParams(t *testing.T) {
	t.Run("Builds parameters for all sources and relationships", func(t *testing.T) {
		result := testResult()

		params := graphParams(result, "applications", "data_entities")

		assert.Equal(t, "applications", params["source_catalog"])
		assert.Equal(t, "data_entities", params["target_catalog"])
		assert.Equal(t, []any{"S1", "S2", "S3"}, params["sources"], "Sources without relationships are cleared too")

		rels, ok := params["rels"].([]map[string]any)
		require.True(t, ok)
		require.Len(t, rels, 3)
		assert.Equal(t, "S2", rels[2]["source_id"])
		assert.Equal(t, int64(1), rels[2]["batch_index"])
		assert.Equal(t, result.RunID.String(), rels[0]["run_id"])
		assert.NotEmpty(t, params["synced_at"])
	})
}

func TestNeo4jConfig(t *testing.T) {
	t.Run("Reads environment with defaults", func(t *testing.T) {
		t.Setenv("NEO4J_URI", "bolt://localhost:7687")
		t.Setenv("NEO4J_USER", "")
		t.Setenv("NEO4J_PASSWORD", "secret")

		config := NewNeo4jConfigFromEnv()

		assert.Equal(t, "bolt://localhost:7687", config.URI)
		assert.Equal(t, "neo4j", config.Username)
		assert.Equal(t, "secret", config.Password)
	})

	t.Run("Missing uri is an input error", func(t *testing.T) {
		_, err := NewNeo4jSink(context.Background(), Neo4jConfig{}, "a", "b", nil)
		assert.ErrorIs(t, err, model.ErrInput)
	})

	t.Run("Nothing to write without processed sources", func(t *testing.T) {
		s := &Neo4jSink{}
		assert.NoError(t, s.Completed(context.Background(), &model.MappingResult{}))
	})
}
