package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"concord/internal/hub"
	"concord/internal/items"
	"concord/internal/oracle"
	"concord/internal/policy"
	"concord/pkg/semaphore"
)

// DecisionStore is the slice of the item domain the processor drives.
// items.System satisfies it.
type DecisionStore interface {
	Find(ctx context.Context, id uuid.UUID) (*items.Item, error)
	ApplyDecision(ctx context.Context, cmd items.ApplyDecisionCommand) error
}

// Processor reconciles one validation item at a time: fetch the owning item,
// consult the oracle under the limiter, apply the policy, persist the
// outcome, and emit a change event. Every attempt, successful or not, is
// reported to the progress tracker.
type Processor struct {
	store    DecisionStore
	oracle   oracle.Client
	engine   policy.Engine
	limiter  *semaphore.Semaphore
	events   Broadcaster
	progress *Tracker
	retries  int
	logger   *slog.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(
	store DecisionStore,
	client oracle.Client,
	engine policy.Engine,
	limiter *semaphore.Semaphore,
	events Broadcaster,
	progress *Tracker,
	conflictRetries int,
	logger *slog.Logger,
) *Processor {
	if conflictRetries < 1 {
		conflictRetries = 3
	}
	return &Processor{
		store:    store,
		oracle:   client,
		engine:   engine,
		limiter:  limiter,
		events:   events,
		progress: progress,
		retries:  conflictRetries,
		logger:   logger.With("system", "processor"),
	}
}

// Process runs the full reconciliation for one item. Failures are caught,
// logged, and returned as a failed Result; they never abort sibling items.
func (p *Processor) Process(ctx context.Context, batch Batch, item ValidationItem) (result Result) {
	result.ItemID = item.ItemID

	defer p.progress.Record(ctx, batch.ScopeKey)

	doc, err := p.store.Find(ctx, item.ItemID)
	if err != nil {
		result.Err = fmt.Errorf("fetch item: %w", err)
		p.fail(batch, item, result.Err)
		return result
	}

	resp, callErr := p.consult(ctx, doc, batch)
	result.Decision = p.engine.Decide(item.PriorScore, resp, callErr)

	if callErr != nil {
		// Oracle failure: no document mutation; the dispatcher decides
		// whether to redeliver.
		result.Err = callErr
		p.fail(batch, item, callErr)
		return result
	}

	cmd := decisionCommand(batch, item, resp, result.Decision)
	if err := p.persist(ctx, cmd); err != nil {
		result.Err = fmt.Errorf("persist decision: %w", err)
		p.fail(batch, item, result.Err)
		return result
	}

	p.emit(batch, item, resp, result.Decision)
	return result
}

// consult performs the limiter-scoped oracle call. The slot is released on
// every exit path.
func (p *Processor) consult(ctx context.Context, doc *items.Item, batch Batch) (*oracle.Response, error) {
	release, err := p.limiter.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", oracle.ErrUnavailable, err)
	}
	defer release()

	req := oracle.Request{
		Text:            doc.Content,
		TraitLabel:      batch.Trait,
		TraitDefinition: batch.TraitDefinition,
		TraitExamples:   batch.TraitExamples,
		Mode:            batch.BatchType.OracleMode(),
	}
	if batch.BatchType == BatchContext {
		req.ProjectContext = doc.ProjectContext
		req.ConceptContext = doc.ConceptContext
	}

	return p.oracle.Classify(ctx, req)
}

// persist writes the decision with a bounded retry on write conflicts.
func (p *Processor) persist(ctx context.Context, cmd items.ApplyDecisionCommand) error {
	var err error
	for attempt := range p.retries {
		err = p.store.ApplyDecision(ctx, cmd)
		if err == nil || !errors.Is(err, items.ErrConflict) {
			return err
		}
		p.logger.Warn(
			"decision write conflicted, retrying",
			"item", cmd.ItemID,
			"trait", cmd.Trait,
			"attempt", attempt+1,
		)
	}
	return err
}

func (p *Processor) emit(batch Batch, item ValidationItem, resp *oracle.Response, d policy.Decision) {
	oracleScore := resp.BinaryScore()

	change := hub.TraitChange{
		ItemID:         item.ItemID,
		Trait:          batch.Trait,
		BatchType:      string(batch.BatchType),
		PriorScore:     item.PriorScore,
		OracleScore:    &oracleScore,
		FinalScore:     d.FinalScore,
		Action:         string(d.Action),
		RequiresReview: d.RequiresReview,
	}

	eventType := hub.EventTraitUpdated
	if d.Action == policy.ActionScoreAdded {
		eventType = hub.EventTraitAdded
	}

	p.events.Publish(hub.NewEvent(eventType, change))
}

func (p *Processor) fail(batch Batch, item ValidationItem, err error) {
	p.logger.Warn(
		"item failed",
		"item", item.ItemID,
		"trait", batch.Trait,
		"batch_type", batch.BatchType,
		"error", err,
	)
}

func decisionCommand(
	batch Batch,
	item ValidationItem,
	resp *oracle.Response,
	d policy.Decision,
) items.ApplyDecisionCommand {
	cmd := items.ApplyDecisionCommand{
		ItemID:          item.ItemID,
		Trait:           batch.Trait,
		BatchType:       string(batch.BatchType),
		PriorScore:      item.PriorScore,
		OracleRationale: d.Reason,
		FinalScore:      d.FinalScore,
		Action:          string(d.Action),
		RequiresReview:  d.RequiresReview,
	}

	present := resp.Present
	cmd.OraclePresent = &present

	if confidence, ok := resp.Confidence.Value(); ok {
		cmd.OracleConfidence = &confidence
	}

	return cmd
}
