package sink

import (
	"context"
	"errors"
	"log/slog"

	"github.com/siherrmann/mapper/model"
)

// Sink consumes the observable events of a mapping run.
// Progress and BatchFailed are called from the single writer of the engine, never concurrently.
type Sink interface {
	Progress(ctx context.Context, progress model.Progress)
	BatchFailed(ctx context.Context, failure model.BatchFailure)
	Completed(ctx context.Context, result *model.MappingResult) error
}

// NopSink ignores all events
type NopSink struct{}

func (NopSink) Progress(ctx context.Context, progress model.Progress) {}

func (NopSink) BatchFailed(ctx context.Context, failure model.BatchFailure) {}

func (NopSink) Completed(ctx context.Context, result *model.MappingResult) error {
	return nil
}

// Funcs adapts plain functions to a Sink, nil functions are skipped.
type Funcs struct {
	OnProgress    func(ctx context.Context, progress model.Progress)
	OnBatchFailed func(ctx context.Context, failure model.BatchFailure)
	OnCompleted   func(ctx context.Context, result *model.MappingResult) error
}

func (f Funcs) Progress(ctx context.Context, progress model.Progress) {
	if f.OnProgress != nil {
		f.OnProgress(ctx, progress)
	}
}

func (f Funcs) BatchFailed(ctx context.Context, failure model.BatchFailure) {
	if f.OnBatchFailed != nil {
		f.OnBatchFailed(ctx, failure)
	}
}

func (f Funcs) Completed(ctx context.Context, result *model.MappingResult) error {
	if f.OnCompleted != nil {
		return f.OnCompleted(ctx, result)
	}
	return nil
}

// LogSink writes run events to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

// NewLogSink creates a sink logging to logger
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{Logger: logger}
}

func (s *LogSink) Progress(ctx context.Context, progress model.Progress) {
	s.Logger.Info("Mapping progress",
		slog.Int("completed", progress.BatchesCompleted),
		slog.Int("total", progress.TotalBatches),
		slog.Float64("fraction", progress.Fraction),
		slog.Int("relationships", len(progress.Relationships)),
	)
}

func (s *LogSink) BatchFailed(ctx context.Context, failure model.BatchFailure) {
	s.Logger.Warn("Batch failed, sources not mapped",
		slog.Int("batch", failure.Index),
		slog.String("first_source", failure.FirstSourceID),
		slog.String("last_source", failure.LastSourceID),
		slog.String("error", failure.Message),
	)
}

func (s *LogSink) Completed(ctx context.Context, result *model.MappingResult) error {
	summary := result.Summary()
	s.Logger.Info("Mapping completed",
		slog.String("run_id", result.RunID.String()),
		slog.String("state", string(result.State)),
		slog.Int("total_mappings", summary.TotalMappings),
		slog.Int("unique_targets", summary.UniqueTargets),
		slog.Int("mapped_sources", summary.MappedSources),
		slog.Int("failed_batches", summary.FailedBatches),
		slog.Int("rejected", result.Report.Rejected()),
		slog.Duration("duration", result.Duration()),
	)
	return nil
}

// MultiSink fans events out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Progress(ctx context.Context, progress model.Progress) {
	for _, s := range m {
		s.Progress(ctx, progress)
	}
}

func (m MultiSink) BatchFailed(ctx context.Context, failure model.BatchFailure) {
	for _, s := range m {
		s.BatchFailed(ctx, failure)
	}
}

// Completed calls every sink and joins their errors.
func (m MultiSink) Completed(ctx context.Context, result *model.MappingResult) error {
	var errs []error
	for _, s := range m {
		if err := s.Completed(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
