package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"concord/internal/hub"
)

// ItemProcessor reconciles a single validation item within a batch.
type ItemProcessor interface {
	Process(ctx context.Context, batch Batch, item ValidationItem) Result
}

// Orchestrator drives a batch through fixed-size chunks. Items within a
// chunk run in parallel, the chunk settles completely before the next one
// starts, and a pause between chunks relieves downstream pressure.
type Orchestrator struct {
	processor ItemProcessor
	events    Broadcaster
	progress  *Tracker
	chunkSize int
	pause     time.Duration
	logger    *slog.Logger
}

// NewOrchestrator creates an Orchestrator. progress may be nil when no scope
// bookkeeping is wanted.
func NewOrchestrator(
	processor ItemProcessor,
	events Broadcaster,
	progress *Tracker,
	chunkSize int,
	pause time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	if chunkSize < 1 {
		chunkSize = 25
	}
	return &Orchestrator{
		processor: processor,
		events:    events,
		progress:  progress,
		chunkSize: chunkSize,
		pause:     pause,
		logger:    logger.With("system", "orchestrator"),
	}
}

// RunBatch processes every item in the batch and returns an aggregate
// summary. Item failures are counted, never propagated; only context
// cancellation cuts the run short, and items a cancelled run never started
// still count against their scope.
func (o *Orchestrator) RunBatch(ctx context.Context, batch Batch) Summary {
	start := time.Now()
	summary := Summary{Items: len(batch.Items)}

	o.logger.Info(
		"batch started",
		"trait", batch.Trait,
		"batch_type", batch.BatchType,
		"scope", batch.ScopeKey,
		"items", summary.Items,
	)
	o.events.Publish(hub.NewEvent(hub.EventBatchStarted, hub.BatchStatus{
		ModelID:   batch.ModelID,
		BatchType: string(batch.BatchType),
		ScopeKey:  batch.ScopeKey,
		Items:     summary.Items,
	}))

	for offset := 0; offset < len(batch.Items); offset += o.chunkSize {
		end := min(offset+o.chunkSize, len(batch.Items))
		chunk := batch.Items[offset:end]
		summary.Chunks++

		for _, result := range o.runChunk(ctx, batch, chunk) {
			if result.Failed() {
				summary.Failed++
			} else {
				summary.Succeeded++
			}
		}

		if end < len(batch.Items) {
			select {
			case <-time.After(o.pause):
			case <-ctx.Done():
				skipped := len(batch.Items) - end
				summary.Failed += skipped
				o.recordSkipped(ctx, batch.ScopeKey, skipped)
				summary.Elapsed = time.Since(start)
				o.finish(batch, summary)
				return summary
			}
		}
	}

	summary.Elapsed = time.Since(start)
	o.finish(batch, summary)
	return summary
}

// recordSkipped counts items a cancelled run never started against their
// scope, so the scope is not stranded short of its expected count. Scope
// bookkeeping outlives the cancelled batch.
func (o *Orchestrator) recordSkipped(ctx context.Context, scopeKey string, skipped int) {
	if o.progress == nil {
		return
	}
	rctx := context.WithoutCancel(ctx)
	for range skipped {
		o.progress.Record(rctx, scopeKey)
	}
}

// runChunk processes one chunk in parallel and waits for every item to
// settle. Results are positionally aligned with the chunk.
func (o *Orchestrator) runChunk(ctx context.Context, batch Batch, chunk []ValidationItem) []Result {
	results := make([]Result, len(chunk))

	g, gctx := errgroup.WithContext(ctx)
	for i, item := range chunk {
		g.Go(func() error {
			results[i] = o.processor.Process(gctx, batch, item)
			return nil
		})
	}
	g.Wait()

	return results
}

func (o *Orchestrator) finish(batch Batch, summary Summary) {
	o.logger.Info(
		"batch settled",
		"trait", batch.Trait,
		"batch_type", batch.BatchType,
		"scope", batch.ScopeKey,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"chunks", summary.Chunks,
		"elapsed", summary.Elapsed,
	)
	o.events.Publish(hub.NewEvent(hub.EventBatchCompleted, hub.BatchStatus{
		ModelID:   batch.ModelID,
		BatchType: string(batch.BatchType),
		ScopeKey:  batch.ScopeKey,
		Items:     summary.Items,
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
	}))
}
