package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/mapper/core/catalog"
	"github.com/siherrmann/mapper/core/pipeline"
	"github.com/siherrmann/mapper/core/sink"
	"github.com/siherrmann/mapper/core/store"
	"github.com/siherrmann/mapper/helper"
	"github.com/siherrmann/mapper/model"
)

// ErrRunInProgress is returned when Run is called while another run of the same engine is active.
var ErrRunInProgress = errors.New("mapping run already in progress")

// Engine maps a source catalog onto a target catalog batch by batch.
// A failed batch does not stop the run, its sources are reported as unmapped.
type Engine struct {
	pipeline *pipeline.Pipeline
	store    store.Store
	sink     sink.Sink
	log      *slog.Logger

	mu    sync.RWMutex
	state model.RunState
}

// NewEngine creates an engine writing into store and reporting to sink.
// A nil sink discards events and a nil logger uses slog.Default.
func NewEngine(pipeline *pipeline.Pipeline, store store.Store, resultSink sink.Sink, logger *slog.Logger) *Engine {
	if resultSink == nil {
		resultSink = sink.NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		pipeline: pipeline,
		store:    store,
		sink:     resultSink,
		log:      logger,
		state:    model.RunStateIdle,
	}
}

// State returns the state of the current or last run.
func (e *Engine) State() model.RunState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Store returns the store the engine writes to
func (e *Engine) Store() store.Store {
	return e.store
}

func (e *Engine) setState(state model.RunState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
}

func (e *Engine) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == model.RunStateRunning {
		return ErrRunInProgress
	}
	e.state = model.RunStateRunning
	return nil
}

// Run maps every source entity. Input errors are returned before any batch is processed.
// The returned result is complete even if the run was cancelled or batches failed.
func (e *Engine) Run(ctx context.Context, source *model.Catalog, target *model.Catalog, config model.MappingConfig) (*model.MappingResult, error) {
	if err := config.Validate(); err != nil {
		return nil, helper.NewError("validate config", err)
	}
	if err := catalog.ApplyDuplicatePolicy(source, config.DuplicatePolicy); err != nil {
		return nil, helper.NewError("source catalog", err)
	}
	if err := catalog.ApplyDuplicatePolicy(target, config.DuplicatePolicy); err != nil {
		return nil, helper.NewError("target catalog", err)
	}
	if e.pipeline == nil || e.pipeline.Generator == nil {
		return nil, helper.NewError("run", model.NewInputError("no text generation service configured"))
	}

	entities := source.LastRows()
	if collapsed := source.Len() - len(entities); collapsed > 0 {
		e.log.Info("Collapsed duplicate source rows to their last row", slog.Int("rows", collapsed))
	}

	batches, err := pipeline.Plan(entities, config.BatchSize)
	if err != nil {
		return nil, helper.NewError("plan batches", err)
	}

	if err := e.begin(); err != nil {
		return nil, err
	}

	return e.run(ctx, batches, target, config)
}

// Retry runs the unmapped sources of a previous result again.
func (e *Engine) Retry(ctx context.Context, previous *model.MappingResult, source *model.Catalog, target *model.Catalog, config model.MappingConfig) (*model.MappingResult, error) {
	if previous == nil || len(previous.Unmapped) == 0 {
		return nil, helper.NewError("retry", model.NewInputError("no unmapped sources to retry"))
	}

	e.log.Info("Retrying unmapped sources", slog.Int("count", len(previous.Unmapped)), slog.String("previous_run", previous.RunID.String()))
	return e.Run(ctx, source.Subset(previous.Unmapped), target, config)
}

// run holds the bookkeeping of one active run. It is only touched by the writer.
type run struct {
	result    *model.MappingResult
	batches   []model.Batch
	unmapped  map[string]struct{}
	completed int
	cancelled bool
}

// job is the read-only input shared by all batches of a run.
type job struct {
	targets      []model.Entity
	knownTargets map[string]struct{}
	config       model.MappingConfig
}

// batchOutcome is what processing a batch produced, including split halves.
type batchOutcome struct {
	results   []*pipeline.BatchResult
	failures  []model.BatchFailure
	cancelled bool
}

func (e *Engine) run(ctx context.Context, batches []model.Batch, target *model.Catalog, config model.MappingConfig) (*model.MappingResult, error) {
	r := &run{
		result: &model.MappingResult{
			RunID:        uuid.New(),
			State:        model.RunStateRunning,
			TotalBatches: len(batches),
			StartedAt:    time.Now(),
		},
		batches:  batches,
		unmapped: map[string]struct{}{},
	}
	j := &job{
		targets:      target.Entities,
		knownTargets: target.IDSet(),
		config:       config,
	}

	e.log.Info("Starting mapping run",
		slog.String("run_id", r.result.RunID.String()),
		slog.Int("batches", len(batches)),
		slog.Int("targets", target.Len()),
		slog.Int("concurrency", config.Concurrency),
	)

	if config.Concurrency > 1 && len(batches) > 1 {
		e.runConcurrent(ctx, r, j)
	} else {
		e.runSequential(ctx, r, j)
	}

	return e.finish(ctx, r)
}

func (e *Engine) runSequential(ctx context.Context, r *run, j *job) {
	for _, batch := range r.batches {
		if ctx.Err() != nil {
			e.apply(ctx, r, batch, batchOutcome{cancelled: true})
			continue
		}
		e.apply(ctx, r, batch, e.process(ctx, batch, j))
	}
}

// apply writes one batch outcome to the store and reports progress.
// Batches must be applied in plan order.
func (e *Engine) apply(ctx context.Context, r *run, batch model.Batch, outcome batchOutcome) {
	// Finished batches are kept even when the run is cancelled meanwhile.
	storeCtx := context.WithoutCancel(ctx)

	stored := map[string]struct{}{}
	for _, res := range outcome.results {
		if err := e.write(storeCtx, r.result.RunID, res); err != nil {
			outcome.failures = append(outcome.failures, model.NewBatchFailure(res.Batch, helper.NewError("store relationships", err)))
			continue
		}
		r.result.Report.Add(res.Report)
		for _, id := range res.Batch.SourceIDs() {
			stored[id] = struct{}{}
		}
	}

	for _, failure := range outcome.failures {
		r.result.Failures = append(r.result.Failures, failure)
		for _, id := range failure.SourceIDs {
			r.unmapped[id] = struct{}{}
		}
		e.sink.BatchFailed(ctx, failure)
	}

	if outcome.cancelled {
		r.cancelled = true
		for _, id := range batch.SourceIDs() {
			if _, ok := stored[id]; !ok {
				r.unmapped[id] = struct{}{}
			}
		}
		return
	}

	r.completed++
	snapshot, err := e.store.All(storeCtx)
	if err != nil {
		e.log.Warn("Failed to read store snapshot", slog.Any("error", err))
	}
	e.sink.Progress(ctx, model.NewProgress(r.result.RunID, r.completed, len(r.batches), snapshot))
}

// write replaces the stored relationships of every source of the batch in one store call,
// sources without accepted relationships get an empty entry.
func (e *Engine) write(ctx context.Context, runID uuid.UUID, res *pipeline.BatchResult) error {
	bySource := map[string][]*model.Relationship{}
	for _, rel := range res.Relationships {
		rel.RunID = runID
		bySource[rel.SourceID] = append(bySource[rel.SourceID], rel)
	}

	sourceIDs := res.Batch.SourceIDs()
	entries := make([]store.Entry, 0, len(sourceIDs))
	for _, sourceID := range sourceIDs {
		entries = append(entries, store.Entry{SourceID: sourceID, Relationships: bySource[sourceID]})
	}
	return e.store.ReplaceAll(ctx, entries)
}

func (e *Engine) finish(ctx context.Context, r *run) (*model.MappingResult, error) {
	result := r.result

	// The run context may be cancelled, the final snapshot and sink still need a live context.
	finalCtx := context.WithoutCancel(ctx)

	seen := map[string]struct{}{}
	for _, batch := range r.batches {
		for _, id := range batch.SourceIDs() {
			if _, ok := r.unmapped[id]; !ok {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			result.Unmapped = append(result.Unmapped, id)
		}
	}

	var err error
	if result.Relationships, err = e.store.All(finalCtx); err != nil {
		e.log.Warn("Failed to read relationships", slog.Any("error", err))
	}
	if result.SourceIDs, err = e.store.SourceIDs(finalCtx); err != nil {
		e.log.Warn("Failed to read source ids", slog.Any("error", err))
	}

	switch {
	case r.cancelled:
		result.State = model.RunStateCancelled
	case len(result.Failures) > 0:
		result.State = model.RunStatePartial
	default:
		result.State = model.RunStateCompleted
	}
	result.FinishedAt = time.Now()
	e.setState(result.State)

	e.log.Info("Finished mapping run",
		slog.String("run_id", result.RunID.String()),
		slog.String("state", string(result.State)),
		slog.Int("relationships", len(result.Relationships)),
		slog.Int("failed_batches", len(result.Failures)),
		slog.Int("unmapped", len(result.Unmapped)),
		slog.Int("rejected", result.Report.Rejected()),
	)

	if err := e.sink.Completed(finalCtx, result); err != nil {
		return result, helper.NewError("complete run", err)
	}
	return result, nil
}
