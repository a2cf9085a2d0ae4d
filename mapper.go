package mapper

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/siherrmann/mapper/core/engine"
	"github.com/siherrmann/mapper/core/llm"
	"github.com/siherrmann/mapper/core/pipeline"
	"github.com/siherrmann/mapper/core/sink"
	"github.com/siherrmann/mapper/database"
	"github.com/siherrmann/mapper/helper"
	"github.com/siherrmann/mapper/model"
	loadSql "github.com/siherrmann/mapper/sql"
)

// Mapper provides a unified interface to the mapping engine and its database handlers
type Mapper struct {
	DB            *helper.Database
	Runs          *database.RunsDBHandler
	Relationships *database.RelationshipsDBHandler
	Entities      *database.EntitiesDBHandler
	Pipeline      *pipeline.Pipeline // Generation pipeline, required before Map
	Sink          sink.Sink          // Receives progress, failures and results
	// Logging
	log *slog.Logger

	mu      sync.Mutex
	running map[string]struct{}
}

// NewMapper creates a new Mapper instance with all handlers initialized.
// embeddingDim is the vector size of the target entity index.
func NewMapper(config *helper.DatabaseConfiguration, embeddingDim int) (*Mapper, error) {
	logger := helper.NewLogger(os.Stdout, slog.LevelInfo)

	db, err := helper.NewDatabase("mapper", config, logger)
	if err != nil {
		return nil, helper.NewError("connect database", err)
	}

	err = loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// force=false to not reload if functions already exist
	runs, err := database.NewRunsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create runs handler", err)
	}

	relationships, err := database.NewRelationshipsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create relationships handler", err)
	}

	entities, err := database.NewEntitiesDBHandler(db, embeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create entities handler", err)
	}

	return &Mapper{
		DB:            db,
		Runs:          runs,
		Relationships: relationships,
		Entities:      entities,
		Sink:          sink.NewLogSink(logger),
		log:           logger,
		running:       map[string]struct{}{},
	}, nil
}

// Close closes the database connection
func (m *Mapper) Close() error {
	if m.DB != nil && m.DB.Instance != nil {
		return m.DB.Instance.Close()
	}
	return nil
}

// SetPipeline sets the generation pipeline
func (m *Mapper) SetPipeline(pipeline *pipeline.Pipeline) {
	m.Pipeline = pipeline
}

// SetSink replaces the sink runs report to
func (m *Mapper) SetSink(resultSink sink.Sink) {
	m.Sink = resultSink
}

// UseGenerator sets the text generation service, keeping prompter and shortlister
// of an existing pipeline.
func (m *Mapper) UseGenerator(generate pipeline.GenerateFunc) {
	if m.Pipeline == nil {
		m.Pipeline = pipeline.NewPipeline(generate)
		return
	}
	m.Pipeline.Generator = generate
}

// UseOpenAI generates with an OpenAI compatible chat completions endpoint.
func (m *Mapper) UseOpenAI(config llm.OpenAIConfig) error {
	client, err := llm.NewOpenAIClient(config)
	if err != nil {
		return helper.NewError("create openai client", err)
	}

	m.UseGenerator(client.Generate)
	m.log.Info("Using OpenAI generator", slog.String("model", config.Model))
	return nil
}

// UseGemini generates with the Gemini API. The returned client can also embed.
func (m *Mapper) UseGemini(ctx context.Context, config llm.GeminiConfig) (*llm.GeminiClient, error) {
	client, err := llm.NewGeminiClient(ctx, config)
	if err != nil {
		return nil, helper.NewError("create gemini client", err)
	}

	m.UseGenerator(client.Generate)
	m.log.Info("Using Gemini generator", slog.String("model", config.Model))
	return client, nil
}

// UsePromptTemplate renders prompts with tmpl.
func (m *Mapper) UsePromptTemplate(tmpl pipeline.PromptTemplate) error {
	if m.Pipeline == nil {
		return helper.NewError("set prompt template", fmt.Errorf("pipeline not set, use UseGenerator() first"))
	}

	m.Pipeline.SetPrompter(pipeline.NewPromptBuilder(tmpl))
	return nil
}

// IndexTargets embeds every target entity and stores it in the target entity index.
// It returns the number of indexed entities.
func (m *Mapper) IndexTargets(ctx context.Context, target *model.Catalog, embed pipeline.EmbedFunc) (int, error) {
	if target.Len() == 0 {
		return 0, helper.NewError("index targets", model.NewInputError("target catalog is empty"))
	}
	if embed == nil {
		return 0, helper.NewError("index targets", fmt.Errorf("embedder is nil"))
	}

	// Upserting in catalog order lets the last row of a duplicate id win.
	for _, e := range target.Entities {
		if err := ctx.Err(); err != nil {
			return 0, helper.NewError("index targets", err)
		}

		embedding, err := embed(pipeline.EntityText(e))
		if err != nil {
			return 0, helper.NewError(fmt.Sprintf("embed target %s", e.ID), err)
		}

		err = m.Entities.UpsertEntity(ctx, &model.EntityEmbedding{
			Catalog:   target.Name,
			EntityID:  e.ID,
			Text:      e.Text,
			Embedding: embedding,
		})
		if err != nil {
			return 0, helper.NewError(fmt.Sprintf("insert target %s", e.ID), err)
		}
	}

	count := len(target.IDSet())
	m.log.Info("Indexed target entities", slog.String("catalog", target.Name), slog.Int("count", count))
	return count, nil
}

// UseVectorShortlist shortlists targets of targetCatalog through the target entity index.
// The catalog has to be indexed with IndexTargets using the same embedder.
func (m *Mapper) UseVectorShortlist(targetCatalog string, embed pipeline.EmbedFunc) error {
	if m.Pipeline == nil {
		return helper.NewError("set shortlister", fmt.Errorf("pipeline not set, use UseGenerator() first"))
	}

	m.Pipeline.SetShortlister(NewVectorShortlister(m.Entities, targetCatalog, embed))
	return nil
}

// Map maps source onto target and persists relationships and the run record.
// Relationships of sources mapped before are replaced, others are kept.
func (m *Mapper) Map(ctx context.Context, source *model.Catalog, target *model.Catalog, config model.MappingConfig) (*model.MappingResult, error) {
	mappingEngine, release, err := m.engine(source, target, config)
	if err != nil {
		return nil, err
	}
	defer release()

	return mappingEngine.Run(ctx, source, target, config)
}

// Retry maps the unmapped sources of a previous result again.
func (m *Mapper) Retry(ctx context.Context, previous *model.MappingResult, source *model.Catalog, target *model.Catalog, config model.MappingConfig) (*model.MappingResult, error) {
	mappingEngine, release, err := m.engine(source, target, config)
	if err != nil {
		return nil, err
	}
	defer release()

	return mappingEngine.Retry(ctx, previous, source, target, config)
}

// Mappings returns every stored relationship between the two catalogs.
func (m *Mapper) Mappings(ctx context.Context, sourceCatalog string, targetCatalog string) ([]*model.Relationship, error) {
	return m.Relationships.SelectRelationshipsByMapping(ctx, database.MappingKey(sourceCatalog, targetCatalog))
}

// ClearMappings removes every stored relationship between the two catalogs.
func (m *Mapper) ClearMappings(ctx context.Context, sourceCatalog string, targetCatalog string) error {
	return m.Relationships.DeleteRelationshipsByMapping(ctx, database.MappingKey(sourceCatalog, targetCatalog))
}

// RunHistory returns up to limit runs, newest first.
func (m *Mapper) RunHistory(ctx context.Context, limit int) ([]*model.Run, error) {
	return m.Runs.SelectAllRuns(ctx, limit)
}

// RunFailures returns the failed batches of the run with rid.
func (m *Mapper) RunFailures(ctx context.Context, rid uuid.UUID) ([]model.BatchFailure, error) {
	return m.Runs.SelectBatchFailures(ctx, rid)
}

// PreviousResult rebuilds the result of a stored run so it can be passed to Retry.
// Unmapped holds every source of failed, cancelled or never started batches.
func (m *Mapper) PreviousResult(ctx context.Context, rid uuid.UUID) (*model.MappingResult, error) {
	run, err := m.Runs.SelectRun(ctx, rid)
	if err != nil {
		return nil, helper.NewError("select run", err)
	}

	failures, err := m.RunFailures(ctx, rid)
	if err != nil {
		return nil, helper.NewError("select batch failures", err)
	}

	return &model.MappingResult{
		RunID:        run.RID,
		State:        run.State,
		TotalBatches: run.TotalBatches,
		Failures:     failures,
		Unmapped:     run.Unmapped,
		StartedAt:    run.CreatedAt,
	}, nil
}

// ChangeIndexType changes the target index type between HNSW and IVFFlat
func (m *Mapper) ChangeIndexType(ctx context.Context, indexType database.IndexType, params database.IndexParams) error {
	return m.Entities.ChangeIndexType(ctx, indexType, params)
}

// engine builds the engine of one run. Only one run per catalog pair may be active.
func (m *Mapper) engine(source *model.Catalog, target *model.Catalog, config model.MappingConfig) (*engine.Engine, func(), error) {
	if source == nil || target == nil {
		return nil, nil, helper.NewError("map", model.NewInputError("source and target catalog are required"))
	}
	if m.Pipeline == nil {
		return nil, nil, helper.NewError("map", fmt.Errorf("pipeline not set, use UseGenerator() first"))
	}

	key := database.MappingKey(source.Name, target.Name)

	m.mu.Lock()
	if _, ok := m.running[key]; ok {
		m.mu.Unlock()
		return nil, nil, engine.ErrRunInProgress
	}
	m.running[key] = struct{}{}
	m.mu.Unlock()

	release := func() {
		m.mu.Lock()
		delete(m.running, key)
		m.mu.Unlock()
	}

	sinks := sink.MultiSink{&runRecorder{
		runs:   m.Runs,
		source: source.Name,
		target: target.Name,
		config: config,
	}}
	if m.Sink != nil {
		sinks = append(sinks, m.Sink)
	}

	store := database.NewRelationshipStore(m.Relationships, key)
	return engine.NewEngine(m.Pipeline, store, sinks, m.log), release, nil
}

// runRecorder persists the run record and its batch failures once a run completes.
type runRecorder struct {
	sink.NopSink
	runs   database.RunsDBHandlerFunctions
	source string
	target string
	config model.MappingConfig
}

func (r *runRecorder) Completed(ctx context.Context, result *model.MappingResult) error {
	run := model.NewRun(result, r.source, r.target, r.config)
	if err := r.runs.InsertRun(ctx, run); err != nil {
		return helper.NewError("insert run", err)
	}

	for _, failure := range result.Failures {
		if err := r.runs.InsertBatchFailure(ctx, run.RID, failure); err != nil {
			return helper.NewError("insert batch failure", err)
		}
	}
	return nil
}
