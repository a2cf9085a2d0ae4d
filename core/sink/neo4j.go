package sink

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/siherrmann/mapper/helper"
	"github.com/siherrmann/mapper/model"
)

// Neo4jConfig holds the connection settings of a Neo4j database.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
	Timeout  time.Duration
}

// NewNeo4jConfigFromEnv reads NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD and NEO4J_DATABASE.
// An empty URI means no graph export is configured.
func NewNeo4jConfigFromEnv() Neo4jConfig {
	user := strings.TrimSpace(os.Getenv("NEO4J_USER"))
	if user == "" {
		user = "neo4j"
	}
	return Neo4jConfig{
		URI:      strings.TrimSpace(os.Getenv("NEO4J_URI")),
		Username: user,
		Password: os.Getenv("NEO4J_PASSWORD"),
		Database: strings.TrimSpace(os.Getenv("NEO4J_DATABASE")),
		Timeout:  10 * time.Second,
	}
}

// Neo4jSink writes the final mapping table as a graph
//
//	(:Entity {catalog, id})-[:MAPS_TO {rationale, run_id}]->(:Entity {catalog, id})
//
// Outgoing MAPS_TO edges of every processed source are replaced, so a remapped
// source keeps only its latest targets.
type Neo4jSink struct {
	NopSink
	Driver        neo4j.DriverWithContext
	Database      string
	SourceCatalog string
	TargetCatalog string
	Logger        *slog.Logger
}

// NewNeo4jSink connects to Neo4j and verifies connectivity.
func NewNeo4jSink(ctx context.Context, config Neo4jConfig, sourceCatalog string, targetCatalog string, logger *slog.Logger) (*Neo4jSink, error) {
	if config.URI == "" {
		return nil, model.NewInputError("neo4j uri is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	driver, err := neo4j.NewDriverWithContext(config.URI, neo4j.BasicAuth(config.Username, config.Password, ""), func(cfg *neo4j.Config) {
		cfg.SocketConnectTimeout = config.Timeout
	})
	if err != nil {
		return nil, helper.NewError("neo4j driver", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, helper.NewError("neo4j connectivity", err)
	}

	return &Neo4jSink{
		Driver:        driver,
		Database:      config.Database,
		SourceCatalog: sourceCatalog,
		TargetCatalog: targetCatalog,
		Logger:        logger,
	}, nil
}

// Close closes the driver
func (s *Neo4jSink) Close(ctx context.Context) error {
	if s.Driver == nil {
		return nil
	}
	return s.Driver.Close(ctx)
}

// Completed replaces the graph edges of all processed sources with the final relationships.
func (s *Neo4jSink) Completed(ctx context.Context, result *model.MappingResult) error {
	if len(result.SourceIDs) == 0 {
		return nil
	}

	params := graphParams(result, s.SourceCatalog, s.TargetCatalog)

	session := s.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.Database,
	})
	defer session.Close(ctx)

	if res, err := session.Run(ctx, `CREATE CONSTRAINT entity_catalog_id_unique IF NOT EXISTS FOR (e:Entity) REQUIRE (e.catalog, e.id) IS UNIQUE`, nil); err != nil {
		s.Logger.Warn("Neo4j schema init failed (continuing)", slog.Any("error", err))
	} else {
		_, _ = res.Consume(ctx)
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, query := range []string{clearMappingsQuery, mergeMappingsQuery} {
			res, err := tx.Run(ctx, query, params)
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return helper.NewError("neo4j write mappings", err)
	}

	s.Logger.Info("Wrote mappings to neo4j",
		slog.Int("sources", len(result.SourceIDs)),
		slog.Int("relationships", len(result.Relationships)),
	)
	return nil
}

const clearMappingsQuery = `
UNWIND $sources AS source_id
MERGE (s:Entity {catalog: $source_catalog, id: source_id})
WITH s
OPTIONAL MATCH (s)-[m:MAPS_TO]->(t:Entity {catalog: $target_catalog})
DELETE m
`

const mergeMappingsQuery = `
UNWIND $rels AS r
MERGE (s:Entity {catalog: $source_catalog, id: r.source_id})
MERGE (t:Entity {catalog: $target_catalog, id: r.target_id})
MERGE (s)-[m:MAPS_TO]->(t)
SET m.rationale = r.rationale,
    m.run_id = r.run_id,
    m.batch_index = r.batch_index,
    m.synced_at = $synced_at
`

func graphParams(result *model.MappingResult, sourceCatalog string, targetCatalog string) map[string]any {
	rels := make([]map[string]any, 0, len(result.Relationships))
	for _, rel := range result.Relationships {
		rels = append(rels, map[string]any{
			"source_id":   rel.SourceID,
			"target_id":   rel.TargetID,
			"rationale":   rel.Rationale,
			"run_id":      rel.RunID.String(),
			"batch_index": int64(rel.BatchIndex),
		})
	}

	sources := make([]any, 0, len(result.SourceIDs))
	for _, id := range result.SourceIDs {
		sources = append(sources, id)
	}

	return map[string]any{
		"source_catalog": sourceCatalog,
		"target_catalog": targetCatalog,
		"sources":        sources,
		"rels":           rels,
		"synced_at":      time.Now().UTC().Format(time.RFC3339Nano),
	}
}
