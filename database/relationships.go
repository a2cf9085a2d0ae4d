package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/mapper/core/store"
	"github.com/siherrmann/mapper/helper"
	"github.com/siherrmann/mapper/model"
	"github.com/siherrmann/mapper/sql"
)

// RelationshipsDBHandlerFunctions defines the interface for relationship database operations.
type RelationshipsDBHandlerFunctions interface {
	ReplaceRelationships(ctx context.Context, mappingKey string, sourceID string, relationships []*model.Relationship) error
	ReplaceAllRelationships(ctx context.Context, mappingKey string, entries []store.Entry) error
	SelectRelationshipsBySource(ctx context.Context, mappingKey string, sourceID string) ([]*model.Relationship, error)
	SelectRelationshipsByMapping(ctx context.Context, mappingKey string) ([]*model.Relationship, error)
	SelectRelationshipsByRun(ctx context.Context, runRID uuid.UUID) ([]*model.Relationship, error)
	SelectMappedSources(ctx context.Context, mappingKey string) ([]string, error)
	DeleteRelationshipsByMapping(ctx context.Context, mappingKey string) error
}

// RelationshipsDBHandler handles mapped relationships. Relationships are grouped by a
// mapping key (one source catalog mapped onto one target catalog) and a source id.
type RelationshipsDBHandler struct {
	db *helper.Database
}

// NewRelationshipsDBHandler creates a new relationships database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewRelationshipsDBHandler(db *helper.Database, force bool) (*RelationshipsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	relationshipsDbHandler := &RelationshipsDBHandler{
		db: db,
	}

	err := sql.LoadRelationshipsSql(relationshipsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load relationships sql", err)
	}

	err = relationshipsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized RelationshipsDBHandler")

	return relationshipsDbHandler, nil
}

// CreateTable creates the 'mapped_sources' and 'relationships' tables if missing.
func (h *RelationshipsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_relationships();`)
	if err != nil {
		log.Panicf("error initializing relationships table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table relationships")

	return nil
}

// ReplaceRelationships deletes every relationship of sourceID and inserts the given ones
// in one transaction. An empty slice keeps the source as mapped without relationships.
func (h *RelationshipsDBHandler) ReplaceRelationships(ctx context.Context, mappingKey string, sourceID string, relationships []*model.Relationship) error {
	return h.ReplaceAllRelationships(ctx, mappingKey, []store.Entry{{SourceID: sourceID, Relationships: relationships}})
}

// ReplaceAllRelationships replaces the relationships of every entry in one transaction,
// so either all entries are written or none.
func (h *RelationshipsDBHandler) ReplaceAllRelationships(ctx context.Context, mappingKey string, entries []store.Entry) error {
	for _, entry := range entries {
		if err := store.CheckEntry(entry); err != nil {
			return helper.NewError("insert", err)
		}
	}

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer tx.Rollback()

	for _, entry := range entries {
		_, err = tx.ExecContext(ctx, `SELECT upsert_mapped_source($1, $2)`, mappingKey, entry.SourceID)
		if err != nil {
			return helper.NewError("upsert mapped source", err)
		}

		_, err = tx.ExecContext(ctx, `SELECT delete_relationships_by_source($1, $2)`, mappingKey, entry.SourceID)
		if err != nil {
			return helper.NewError("delete", err)
		}

		for _, relationship := range entry.Relationships {
			var rid, runRID interface{}
			if relationship.ID != uuid.Nil {
				rid = relationship.ID
			}
			if relationship.RunID != uuid.Nil {
				runRID = relationship.RunID
			}

			row := tx.QueryRowContext(
				ctx,
				`SELECT * FROM insert_relationship($1, $2, $3, $4, $5, $6, $7, $8)`,
				rid,
				mappingKey,
				runRID,
				relationship.SourceID,
				relationship.TargetID,
				relationship.Rationale,
				relationship.BatchIndex,
				relationship.Metadata,
			)
			err = scanRelationship(row, relationship)
			if err != nil {
				return helper.NewError("scan", err)
			}
		}
	}

	err = tx.Commit()
	if err != nil {
		return helper.NewError("commit", err)
	}

	return nil
}

// SelectRelationshipsBySource returns the relationships of sourceID in insertion order.
func (h *RelationshipsDBHandler) SelectRelationshipsBySource(ctx context.Context, mappingKey string, sourceID string) ([]*model.Relationship, error) {
	return h.selectRelationships(ctx, `SELECT * FROM select_relationships_by_source($1, $2)`, mappingKey, sourceID)
}

// SelectRelationshipsByMapping returns all relationships of the mapping ordered by the
// first write of their source, then by insertion.
func (h *RelationshipsDBHandler) SelectRelationshipsByMapping(ctx context.Context, mappingKey string) ([]*model.Relationship, error) {
	return h.selectRelationships(ctx, `SELECT * FROM select_relationships_by_mapping($1)`, mappingKey)
}

// SelectRelationshipsByRun returns the relationships still stored from the run with runRID.
func (h *RelationshipsDBHandler) SelectRelationshipsByRun(ctx context.Context, runRID uuid.UUID) ([]*model.Relationship, error) {
	return h.selectRelationships(ctx, `SELECT * FROM select_relationships_by_run($1)`, runRID)
}

// SelectMappedSources returns the mapped source ids in order of their first write.
func (h *RelationshipsDBHandler) SelectMappedSources(ctx context.Context, mappingKey string) ([]string, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_mapped_sources($1)`,
		mappingKey,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	sourceIDs := []string{}
	for rows.Next() {
		var sourceID string
		err := rows.Scan(&sourceID)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		sourceIDs = append(sourceIDs, sourceID)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return sourceIDs, nil
}

// DeleteRelationshipsByMapping removes every mapped source and relationship of the mapping.
func (h *RelationshipsDBHandler) DeleteRelationshipsByMapping(ctx context.Context, mappingKey string) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT delete_relationships_by_mapping($1)`,
		mappingKey,
	)
	if err != nil {
		return helper.NewError("delete", err)
	}

	return nil
}

func (h *RelationshipsDBHandler) selectRelationships(ctx context.Context, query string, args ...interface{}) ([]*model.Relationship, error) {
	rows, err := h.db.Instance.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	relationships := []*model.Relationship{}
	for rows.Next() {
		relationship := &model.Relationship{}
		err := scanRelationship(rows, relationship)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		relationships = append(relationships, relationship)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return relationships, nil
}

func scanRelationship(row scanner, relationship *model.Relationship) error {
	var runRID uuid.NullUUID
	err := row.Scan(
		&relationship.ID,
		&runRID,
		&relationship.SourceID,
		&relationship.TargetID,
		&relationship.Rationale,
		&relationship.BatchIndex,
		&relationship.Metadata,
		&relationship.CreatedAt,
	)
	if err != nil {
		return err
	}
	relationship.RunID = runRID.UUID

	return nil
}

// RelationshipStore is a store.Store persisted in Postgres for one mapping key.
type RelationshipStore struct {
	handler    *RelationshipsDBHandler
	mappingKey string
}

// NewRelationshipStore returns the store of mappingKey backed by handler.
func NewRelationshipStore(handler *RelationshipsDBHandler, mappingKey string) *RelationshipStore {
	return &RelationshipStore{
		handler:    handler,
		mappingKey: mappingKey,
	}
}

// MappingKey returns the key relationships are stored under.
func (s *RelationshipStore) MappingKey() string {
	return s.mappingKey
}

func (s *RelationshipStore) Replace(ctx context.Context, sourceID string, relationships []*model.Relationship) error {
	return s.handler.ReplaceRelationships(ctx, s.mappingKey, sourceID, relationships)
}

func (s *RelationshipStore) ReplaceAll(ctx context.Context, entries []store.Entry) error {
	return s.handler.ReplaceAllRelationships(ctx, s.mappingKey, entries)
}

// Get returns nil for a source that was never stored.
func (s *RelationshipStore) Get(ctx context.Context, sourceID string) ([]*model.Relationship, error) {
	relationships, err := s.handler.SelectRelationshipsBySource(ctx, s.mappingKey, sourceID)
	if err != nil {
		return nil, err
	}
	if len(relationships) > 0 {
		return relationships, nil
	}

	sourceIDs, err := s.handler.SelectMappedSources(ctx, s.mappingKey)
	if err != nil {
		return nil, err
	}
	for _, id := range sourceIDs {
		if id == sourceID {
			return relationships, nil
		}
	}
	return nil, nil
}

func (s *RelationshipStore) All(ctx context.Context) ([]*model.Relationship, error) {
	return s.handler.SelectRelationshipsByMapping(ctx, s.mappingKey)
}

func (s *RelationshipStore) SourceIDs(ctx context.Context) ([]string, error) {
	return s.handler.SelectMappedSources(ctx, s.mappingKey)
}

func (s *RelationshipStore) Clear(ctx context.Context) error {
	return s.handler.DeleteRelationshipsByMapping(ctx, s.mappingKey)
}

// MappingKey joins the source and target catalog names into a relationship mapping key.
func MappingKey(sourceCatalog string, targetCatalog string) string {
	return sourceCatalog + "->" + targetCatalog
}
