package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/siherrmann/mapper/core/pipeline"
	"github.com/siherrmann/mapper/model"
	"golang.org/x/sync/errgroup"
)

// process runs one batch with the retry policy of config.
// A batch that still fails is split in halves when enabled, each half is retried on its own.
func (e *Engine) process(ctx context.Context, batch model.Batch, j *job) batchOutcome {
	config := j.config
	input := pipeline.BatchInput{
		Batch:        batch,
		Targets:      j.targets,
		KnownSources: (&model.Catalog{Entities: batch.Entities}).IDSet(),
		KnownTargets: j.knownTargets,
		ExtraContext: config.ExtraContext,
		Shortlist:    config.ShortlistSize,
	}

	var lastErr error
	for attempt := 1; attempt <= config.Retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := config.Retry.Backoff << (attempt - 2)
			if err := sleep(ctx, backoff); err != nil {
				return batchOutcome{cancelled: true}
			}
		}

		result, err := e.generate(ctx, input, config.GenerateTimeout)
		if err == nil {
			e.log.Debug("Processed batch",
				slog.Int("batch", batch.Index),
				slog.String("first_source", batch.FirstID()),
				slog.Int("candidates", result.Report.Candidates),
				slog.Int("accepted", result.Report.Accepted),
				slog.Int("rejected", result.Report.Rejected()),
			)
			return batchOutcome{results: []*pipeline.BatchResult{result}}
		}
		if ctx.Err() != nil {
			return batchOutcome{cancelled: true}
		}

		lastErr = err
		e.log.Warn("Batch attempt failed",
			slog.Int("batch", batch.Index),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", config.Retry.MaxAttempts),
			slog.Any("error", err),
		)
	}

	if config.Retry.SplitOnFailure && len(batch.Entities)/2 >= config.Retry.MinBatchSize {
		left, right := batch.Split()
		e.log.Info("Splitting failed batch",
			slog.Int("batch", batch.Index),
			slog.Int("left", len(left.Entities)),
			slog.Int("right", len(right.Entities)),
		)

		outcome := e.process(ctx, left, j)
		if outcome.cancelled {
			return outcome
		}
		second := e.process(ctx, right, j)
		outcome.results = append(outcome.results, second.results...)
		outcome.failures = append(outcome.failures, second.failures...)
		outcome.cancelled = second.cancelled
		return outcome
	}

	return batchOutcome{failures: []model.BatchFailure{model.NewBatchFailure(batch, lastErr)}}
}

// generate runs the pipeline for one batch with a per call timeout.
func (e *Engine) generate(ctx context.Context, input pipeline.BatchInput, timeout time.Duration) (*pipeline.BatchResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return e.pipeline.ProcessBatch(ctx, input)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type indexedOutcome struct {
	index   int
	outcome batchOutcome
}

// runConcurrent processes batches with up to config.Concurrency generation calls in flight.
// Outcomes are applied by this goroutine alone and strictly in plan order.
func (e *Engine) runConcurrent(ctx context.Context, r *run, j *job) {
	outcomes := make(chan indexedOutcome)

	go func() {
		var g errgroup.Group
		g.SetLimit(j.config.Concurrency)
		for i, batch := range r.batches {
			g.Go(func() error {
				var outcome batchOutcome
				if ctx.Err() != nil {
					outcome = batchOutcome{cancelled: true}
				} else {
					outcome = e.process(ctx, batch, j)
				}
				outcomes <- indexedOutcome{index: i, outcome: outcome}
				return nil
			})
		}
		_ = g.Wait()
		close(outcomes)
	}()

	pending := map[int]batchOutcome{}
	next := 0
	for o := range outcomes {
		pending[o.index] = o.outcome
		for {
			outcome, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			e.apply(ctx, r, r.batches[next], outcome)
			next++
		}
	}
}
