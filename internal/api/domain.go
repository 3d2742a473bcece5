package api

import (
	"context"
	"time"

	"concord/internal/config"
	"concord/internal/hub"
	"concord/internal/items"
	"concord/internal/oracle"
	"concord/internal/pipeline"
	"concord/internal/policy"
	"concord/internal/traits"
	"concord/internal/validations"
	"concord/pkg/semaphore"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Hub         *hub.Hub
	Items       items.System
	Traits      traits.System
	Validations validations.System
}

// NewDomain creates all domain systems from the API runtime. The hub is
// created first so every system can broadcast through it; the pipeline is
// assembled last on top of the item and trait systems.
func NewDomain(cfg *config.Config, runtime *Runtime) *Domain {
	eventHub := hub.New(hub.Config{
		FlushInterval:     cfg.Hub.FlushIntervalDuration(),
		MaxBatch:          cfg.Hub.MaxBatch,
		SendBuffer:        cfg.Hub.SendBuffer,
		HeartbeatInterval: cfg.Hub.HeartbeatIntervalDuration(),
		PongTimeout:       cfg.Hub.PongTimeoutDuration(),
	}, runtime.Logger)

	itemsSystem := items.New(
		runtime.Database.Connection(),
		eventHub,
		runtime.Logger,
		runtime.Pagination,
	)

	traitsSystem := traits.New(
		runtime.Database.Connection(),
		runtime.Logger,
		runtime.Pagination,
	)

	oracleClient := oracle.New(oracle.Config{
		BaseURL: cfg.Oracle.BaseURL,
		Timeout: cfg.Oracle.TimeoutDuration(),
	}, runtime.Logger)

	// Seed regenerates scope expectations after a restart: every enabled
	// trait model re-validates every still-unprocessed item.
	seed := func(ctx context.Context, _ string) (int, time.Time, error) {
		now := time.Now().UTC()
		count, err := itemsSystem.CountUnprocessed(ctx, now)
		if err != nil {
			return 0, time.Time{}, err
		}
		models, err := traitsSystem.ListEnabled(ctx)
		if err != nil {
			return 0, time.Time{}, err
		}
		return count * len(models), now, nil
	}

	tracker := pipeline.NewTracker(seed, itemsSystem, eventHub, runtime.Logger)

	processor := pipeline.NewProcessor(
		itemsSystem,
		oracleClient,
		policy.New(cfg.Pipeline.ConfidenceThreshold),
		semaphore.New(cfg.Pipeline.MaxConcurrent),
		eventHub,
		tracker,
		cfg.Pipeline.ConflictRetries,
		runtime.Logger,
	)

	orchestrator := pipeline.NewOrchestrator(
		processor,
		eventHub,
		tracker,
		cfg.Pipeline.ChunkSize,
		cfg.Pipeline.ChunkPauseDuration(),
		runtime.Logger,
	)

	validationsSystem := validations.New(
		orchestrator,
		traitsSystem,
		itemsSystem,
		tracker,
		runtime.Logger,
	)

	return &Domain{
		Hub:         eventHub,
		Items:       itemsSystem,
		Traits:      traitsSystem,
		Validations: validationsSystem,
	}
}
