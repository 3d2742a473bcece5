package validations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"concord/internal/items"
	"concord/internal/pipeline"
	"concord/internal/traits"
)

// BatchRunner drives one batch to settlement.
type BatchRunner interface {
	RunBatch(ctx context.Context, batch pipeline.Batch) pipeline.Summary
}

// ModelSource is the slice of the trait registry dispatch needs.
type ModelSource interface {
	Find(ctx context.Context, id uuid.UUID) (*traits.Model, error)
	ListEnabled(ctx context.Context) ([]traits.Model, error)
}

// PriorSource supplies per-trait prior scores for unprocessed items.
type PriorSource interface {
	TraitPriors(ctx context.Context, trait string, before time.Time) ([]items.TraitPrior, error)
}

// System defines the public contract for validation dispatch operations.
type System interface {
	Handler() *Handler

	// Dispatch validates the command, opens the progress scope, and starts
	// the batch in the background. It returns before any item is processed.
	Dispatch(ctx context.Context, cmd DispatchCommand) (*Receipt, error)

	// Run sweeps every unprocessed item across every enabled trait model
	// under one progress scope, detached from the request.
	Run(ctx context.Context, cmd RunCommand) (*Receipt, error)
}

type service struct {
	runner  BatchRunner
	models  ModelSource
	priors  PriorSource
	tracker *pipeline.Tracker
	logger  *slog.Logger
}

// New creates the validation dispatch system.
func New(
	runner BatchRunner,
	models ModelSource,
	priors PriorSource,
	tracker *pipeline.Tracker,
	logger *slog.Logger,
) System {
	return &service{
		runner:  runner,
		models:  models,
		priors:  priors,
		tracker: tracker,
		logger:  logger.With("system", "validations"),
	}
}

func (s *service) Handler() *Handler {
	return NewHandler(s, s.logger)
}

func (s *service) Dispatch(ctx context.Context, cmd DispatchCommand) (*Receipt, error) {
	if !cmd.BatchType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBatchType, cmd.BatchType)
	}
	if len(cmd.Items) == 0 {
		return nil, ErrNoItems
	}

	model, err := s.models.Find(ctx, cmd.TraitModelID)
	if err != nil {
		if errors.Is(err, traits.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cmd.TraitModelID)
		}
		return nil, err
	}
	if !model.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrModelDisabled, model.Label)
	}

	scopeKey := scopeKey(cmd.ScopeID, cmd.BatchType)
	s.tracker.Begin(scopeKey, len(cmd.Items), time.Now().UTC())

	batch := pipeline.Batch{
		Trait:           model.Label,
		TraitDefinition: model.Definition,
		TraitExamples:   model.Examples,
		ModelID:         model.ModelID,
		BatchType:       cmd.BatchType,
		ScopeKey:        scopeKey,
		Items:           cmd.Items,
	}

	go s.run(context.WithoutCancel(ctx), scopeKey, []pipeline.Batch{batch})

	return &Receipt{Accepted: len(cmd.Items), Batches: 1, ScopeKey: scopeKey}, nil
}

func (s *service) Run(ctx context.Context, cmd RunCommand) (*Receipt, error) {
	if !cmd.BatchType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBatchType, cmd.BatchType)
	}

	models, err := s.models.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list enabled models: %w", err)
	}
	if len(models) == 0 {
		return nil, ErrNoModels
	}

	// The cutoff is fixed before the sweep starts; items created while it
	// runs belong to the next sweep.
	cutoff := time.Now().UTC()
	scope := scopeKey(cmd.ScopeID, cmd.BatchType)

	var batches []pipeline.Batch
	total := 0
	for _, model := range models {
		priors, err := s.priors.TraitPriors(ctx, model.Label, cutoff)
		if err != nil {
			return nil, fmt.Errorf("priors for %s: %w", model.Label, err)
		}
		if len(priors) == 0 {
			continue
		}

		validationItems := make([]pipeline.ValidationItem, len(priors))
		for i, p := range priors {
			validationItems[i] = pipeline.ValidationItem{ItemID: p.ItemID, PriorScore: p.Score}
		}

		batches = append(batches, pipeline.Batch{
			Trait:           model.Label,
			TraitDefinition: model.Definition,
			TraitExamples:   model.Examples,
			ModelID:         model.ModelID,
			BatchType:       cmd.BatchType,
			ScopeKey:        scope,
			Items:           validationItems,
		})
		total += len(priors)
	}

	if total == 0 {
		return nil, ErrNoItems
	}

	s.tracker.Begin(scope, total, cutoff)

	go s.run(context.WithoutCancel(ctx), scope, batches)

	return &Receipt{Accepted: total, Batches: len(batches), ScopeKey: scope}, nil
}

// run executes the batches sequentially; high-fanout parallelism lives inside
// the orchestrator's chunks, not across traits.
func (s *service) run(ctx context.Context, scope string, batches []pipeline.Batch) {
	for _, batch := range batches {
		summary := s.runner.RunBatch(ctx, batch)
		s.logger.Info(
			"batch finished",
			"scope", scope,
			"trait", batch.Trait,
			"succeeded", summary.Succeeded,
			"failed", summary.Failed,
		)
	}
}

func scopeKey(scopeID string, batchType pipeline.BatchType) string {
	if scopeID == "" {
		scopeID = uuid.NewString()
	}
	return fmt.Sprintf("%s:%s", batchType, scopeID)
}
