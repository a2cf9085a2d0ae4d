package database

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/siherrmann/mapper/core/store"
	"github.com/siherrmann/mapper/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ store.Store = (*RelationshipStore)(nil)

func relationship(sourceID string, targetID string) *model.Relationship {
	return &model.Relationship{
		ID:       uuid.New(),
		SourceID: sourceID,
		TargetID: targetID,
	}
}

func TestRelationshipsNewRelationshipsDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewRelationshipsDBHandler", func(t *testing.T) {
		relationshipsDbHandler, err := NewRelationshipsDBHandler(database, true)
		assert.NoError(t, err)
		require.NotNil(t, relationshipsDbHandler)
	})

	t.Run("Invalid call NewRelationshipsDBHandler with nil database", func(t *testing.T) {
		_, err := NewRelationshipsDBHandler(nil, false)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "database connection is nil")
	})
}

func TestRelationshipsReplace(t *testing.T) {
	database := initDB(t)
	ctx := context.Background()

	relationshipsDbHandler, err := NewRelationshipsDBHandler(database, true)
	require.NoError(t, err)

	mappingKey := MappingKey("strategies", "capabilities")
	t.Cleanup(func() { relationshipsDbHandler.DeleteRelationshipsByMapping(ctx, mappingKey) })

	runID := uuid.New()

	t.Run("Replace stores relationships of a source", func(t *testing.T) {
		first := relationship("S1", "C1")
		first.RunID = runID
		first.Rationale = "supports growth"
		first.Metadata = model.Metadata{"model": "test"}
		second := relationship("S1", "C2")
		second.RunID = runID

		err := relationshipsDbHandler.ReplaceRelationships(ctx, mappingKey, "S1", []*model.Relationship{first, second})
		require.NoError(t, err)
		assert.False(t, first.CreatedAt.IsZero())

		selected, err := relationshipsDbHandler.SelectRelationshipsBySource(ctx, mappingKey, "S1")
		require.NoError(t, err)
		require.Len(t, selected, 2)
		assert.Equal(t, first.ID, selected[0].ID)
		assert.Equal(t, "C1", selected[0].TargetID)
		assert.Equal(t, "supports growth", selected[0].Rationale)
		assert.Equal(t, runID, selected[0].RunID)
		assert.Equal(t, "test", selected[0].Metadata.String("model"))
		assert.Equal(t, "C2", selected[1].TargetID)
	})

	t.Run("Replace drops earlier relationships of the source", func(t *testing.T) {
		err := relationshipsDbHandler.ReplaceRelationships(ctx, mappingKey, "S1", []*model.Relationship{relationship("S1", "C3")})
		require.NoError(t, err)

		selected, err := relationshipsDbHandler.SelectRelationshipsBySource(ctx, mappingKey, "S1")
		require.NoError(t, err)
		require.Len(t, selected, 1)
		assert.Equal(t, "C3", selected[0].TargetID)
	})

	t.Run("Replace rejects relationships of another source and keeps the old ones", func(t *testing.T) {
		err := relationshipsDbHandler.ReplaceRelationships(ctx, mappingKey, "S1", []*model.Relationship{relationship("S2", "C1")})
		assert.Error(t, err)

		selected, err := relationshipsDbHandler.SelectRelationshipsBySource(ctx, mappingKey, "S1")
		require.NoError(t, err)
		require.Len(t, selected, 1)
		assert.Equal(t, "C3", selected[0].TargetID)
	})

	t.Run("ReplaceAll stores every entry in one transaction", func(t *testing.T) {
		err := relationshipsDbHandler.ReplaceAllRelationships(ctx, mappingKey, []store.Entry{
			{SourceID: "S3", Relationships: []*model.Relationship{relationship("S3", "C1")}},
			{SourceID: "S4"},
		})
		require.NoError(t, err)

		sourceIDs, err := relationshipsDbHandler.SelectMappedSources(ctx, mappingKey)
		require.NoError(t, err)
		assert.Equal(t, []string{"S1", "S3", "S4"}, sourceIDs)
	})

	t.Run("ReplaceAll writes nothing if a later entry fails", func(t *testing.T) {
		first := relationship("S5", "C1")
		clash := relationship("S6", "C2")
		clash.ID = first.ID

		err := relationshipsDbHandler.ReplaceAllRelationships(ctx, mappingKey, []store.Entry{
			{SourceID: "S5", Relationships: []*model.Relationship{first}},
			{SourceID: "S6", Relationships: []*model.Relationship{clash}},
		})
		require.Error(t, err, "Expected the duplicate rid to fail the insert")

		sourceIDs, err := relationshipsDbHandler.SelectMappedSources(ctx, mappingKey)
		require.NoError(t, err)
		assert.NotContains(t, sourceIDs, "S5", "Expected the first entry to be rolled back")
		assert.NotContains(t, sourceIDs, "S6")

		selected, err := relationshipsDbHandler.SelectRelationshipsBySource(ctx, mappingKey, "S5")
		require.NoError(t, err)
		assert.Empty(t, selected)
	})

	t.Run("Select by run only returns relationships still stored", func(t *testing.T) {
		selected, err := relationshipsDbHandler.SelectRelationshipsByRun(ctx, runID)
		require.NoError(t, err)
		assert.Empty(t, selected)
	})
}

func TestRelationshipStore(t *testing.T) {
	database := initDB(t)
	ctx := context.Background()

	relationshipsDbHandler, err := NewRelationshipsDBHandler(database, true)
	require.NoError(t, err)

	relationshipStore := NewRelationshipStore(relationshipsDbHandler, MappingKey("pain_points", "capabilities"))
	other := NewRelationshipStore(relationshipsDbHandler, MappingKey("applications", "capabilities"))
	t.Cleanup(func() {
		relationshipStore.Clear(ctx)
		other.Clear(ctx)
	})

	t.Run("Mapping key joins the catalog names", func(t *testing.T) {
		assert.Equal(t, "pain_points->capabilities", relationshipStore.MappingKey())
	})

	t.Run("Get of an unknown source returns nil", func(t *testing.T) {
		relationships, err := relationshipStore.Get(ctx, "P9")
		require.NoError(t, err)
		assert.Nil(t, relationships)
	})

	t.Run("Sources keep the position of their first write", func(t *testing.T) {
		require.NoError(t, relationshipStore.Replace(ctx, "P2", []*model.Relationship{relationship("P2", "C1")}))
		require.NoError(t, relationshipStore.Replace(ctx, "P1", []*model.Relationship{relationship("P1", "C2"), relationship("P1", "C3")}))
		require.NoError(t, relationshipStore.Replace(ctx, "P2", []*model.Relationship{relationship("P2", "C4")}))

		sourceIDs, err := relationshipStore.SourceIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"P2", "P1"}, sourceIDs)

		all, err := relationshipStore.All(ctx)
		require.NoError(t, err)
		targets := []string{}
		for _, r := range all {
			targets = append(targets, r.TargetID)
		}
		assert.Equal(t, []string{"C4", "C2", "C3"}, targets)
	})

	t.Run("An empty replace records the source without relationships", func(t *testing.T) {
		require.NoError(t, relationshipStore.Replace(ctx, "P3", nil))

		relationships, err := relationshipStore.Get(ctx, "P3")
		require.NoError(t, err)
		assert.NotNil(t, relationships)
		assert.Empty(t, relationships)

		sourceIDs, err := relationshipStore.SourceIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"P2", "P1", "P3"}, sourceIDs)
	})

	t.Run("Stores with different mapping keys are isolated", func(t *testing.T) {
		require.NoError(t, other.Replace(ctx, "P1", []*model.Relationship{relationship("P1", "C9")}))

		relationships, err := relationshipStore.Get(ctx, "P1")
		require.NoError(t, err)
		assert.Len(t, relationships, 2)

		relationships, err = other.Get(ctx, "P1")
		require.NoError(t, err)
		require.Len(t, relationships, 1)
		assert.Equal(t, "C9", relationships[0].TargetID)
	})

	t.Run("Clear removes every source of the mapping", func(t *testing.T) {
		require.NoError(t, relationshipStore.Clear(ctx))

		all, err := relationshipStore.All(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		sourceIDs, err := relationshipStore.SourceIDs(ctx)
		require.NoError(t, err)
		assert.Empty(t, sourceIDs)

		otherIDs, err := other.SourceIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"P1"}, otherIDs)
	})
}
