package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/mapper/helper"
	"github.com/siherrmann/mapper/model"
	"github.com/siherrmann/mapper/sql"
)

// EntitiesDBHandlerFunctions defines the interface for target entity database operations.
type EntitiesDBHandlerFunctions interface {
	UpsertEntity(ctx context.Context, entity *model.EntityEmbedding) error
	SelectEntity(ctx context.Context, catalog string, entityID string) (*model.EntityEmbedding, error)
	SelectEntitiesByCatalog(ctx context.Context, catalog string) ([]*model.EntityEmbedding, error)
	SelectEntitiesBySimilarity(ctx context.Context, catalog string, embedding []float32, limit int) ([]*model.EntityEmbedding, error)
	DeleteEntitiesByCatalog(ctx context.Context, catalog string) (int, error)
}

// EntitiesDBHandler stores target entities with their embeddings.
type EntitiesDBHandler struct {
	db *helper.Database
}

// NewEntitiesDBHandler creates a new entities database handler.
// It loads the entity SQL functions and creates the table with vectors of embeddingDim.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEntitiesDBHandler(db *helper.Database, embeddingDim int, force bool) (*EntitiesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim))
	}

	entitiesDbHandler := &EntitiesDBHandler{
		db: db,
	}

	err := sql.LoadEntitiesSql(entitiesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load entities sql", err)
	}

	err = entitiesDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EntitiesDBHandler")

	return entitiesDbHandler, nil
}

// CreateTable creates the 'target_entities' table and its indexes if missing.
func (h *EntitiesDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_entities($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing target_entities table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table target_entities")

	return nil
}

// UpsertEntity inserts the entity or replaces text and embedding of an existing one.
func (h *EntitiesDBHandler) UpsertEntity(ctx context.Context, entity *model.EntityEmbedding) error {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM upsert_entity($1, $2, $3, $4)`,
		entity.Catalog,
		entity.EntityID,
		entity.Text,
		pgvector.NewVector(entity.Embedding),
	)

	_, err := scanEntity(row, entity, false)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectEntity returns one entity of catalog.
func (h *EntitiesDBHandler) SelectEntity(ctx context.Context, catalog string, entityID string) (*model.EntityEmbedding, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_entity($1, $2)`,
		catalog,
		entityID,
	)

	entity, err := scanEntity(row, &model.EntityEmbedding{}, false)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entity, nil
}

// SelectEntitiesByCatalog returns all entities of catalog in insertion order.
func (h *EntitiesDBHandler) SelectEntitiesByCatalog(ctx context.Context, catalog string) ([]*model.EntityEmbedding, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_entities_by_catalog($1)`,
		catalog,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var entities []*model.EntityEmbedding
	for rows.Next() {
		entity, err := scanEntity(rows, &model.EntityEmbedding{}, false)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entities, nil
}

// SelectEntitiesBySimilarity returns the limit entities of catalog closest to embedding
// by cosine distance, most similar first.
func (h *EntitiesDBHandler) SelectEntitiesBySimilarity(ctx context.Context, catalog string, embedding []float32, limit int) ([]*model.EntityEmbedding, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_entities_by_similarity($1, $2, $3)`,
		catalog,
		pgvector.NewVector(embedding),
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var entities []*model.EntityEmbedding
	for rows.Next() {
		entity, err := scanEntity(rows, &model.EntityEmbedding{}, true)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entities, nil
}

// DeleteEntitiesByCatalog removes every entity of catalog and returns the number removed.
func (h *EntitiesDBHandler) DeleteEntitiesByCatalog(ctx context.Context, catalog string) (int, error) {
	var deleted int
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT delete_entities_by_catalog($1)`,
		catalog,
	).Scan(&deleted)
	if err != nil {
		return 0, helper.NewError("delete", err)
	}

	return deleted, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner, entity *model.EntityEmbedding, withSimilarity bool) (*model.EntityEmbedding, error) {
	var embedding pgvector.Vector
	dest := []any{
		&entity.ID,
		&entity.Catalog,
		&entity.EntityID,
		&entity.Text,
		&embedding,
		&entity.CreatedAt,
	}
	if withSimilarity {
		dest = append(dest, &entity.Similarity)
	}

	err := row.Scan(dest...)
	if err != nil {
		return nil, err
	}
	entity.Embedding = embedding.Slice()

	return entity, nil
}
