package database

import (
	"context"
	"fmt"
	"time"

	"github.com/siherrmann/mapper/helper"
)

// IndexType is a pgvector index method for the target embeddings.
type IndexType string

const (
	IndexTypeHNSW    IndexType = "hnsw"
	IndexTypeIVFFlat IndexType = "ivfflat"
)

// IndexParams tunes the vector index. Zero values fall back to the pgvector defaults.
//   - HNSW: M (default 16), EfConstruction (default 64)
//   - IVFFlat: Lists (default 100)
type IndexParams struct {
	M              int
	EfConstruction int
	Lists          int
}

// ChangeIndexType rebuilds the embedding index of target_entities with the given method.
func (h *EntitiesDBHandler) ChangeIndexType(ctx context.Context, indexType IndexType, params IndexParams) error {
	createIndexSQL, err := indexStatement(indexType, params)
	if err != nil {
		return helper.NewError("change index type", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	_, err = h.db.Instance.ExecContext(ctx, `DROP INDEX IF EXISTS idx_target_entities_embedding;`)
	if err != nil {
		return helper.NewError("drop index", err)
	}

	h.db.Logger.Info("Dropped existing vector index")

	_, err = h.db.Instance.ExecContext(ctx, createIndexSQL)
	if err != nil {
		return helper.NewError("create index", err)
	}

	h.db.Logger.Info("Created vector index", "type", indexType, "params", params)

	return nil
}

func indexStatement(indexType IndexType, params IndexParams) (string, error) {
	switch indexType {
	case IndexTypeHNSW:
		m, efConstruction := 16, 64
		if params.M > 0 {
			m = params.M
		}
		if params.EfConstruction > 0 {
			efConstruction = params.EfConstruction
		}
		return fmt.Sprintf(
			`CREATE INDEX idx_target_entities_embedding ON target_entities USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d);`,
			m, efConstruction,
		), nil
	case IndexTypeIVFFlat:
		lists := 100
		if params.Lists > 0 {
			lists = params.Lists
		}
		return fmt.Sprintf(
			`CREATE INDEX idx_target_entities_embedding ON target_entities USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);`,
			lists,
		), nil
	default:
		return "", fmt.Errorf("unsupported index type: %s (use 'hnsw' or 'ivfflat')", indexType)
	}
}
