package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"concord/internal/hub"
)

// SeedFunc computes the expected completion count and start cutoff for a
// lazily created scope, queried from the store at first use.
type SeedFunc func(ctx context.Context, scopeKey string) (expected int, start time.Time, err error)

// ProcessedMarker is the slice of the item store the tracker needs for its
// bulk finalization write.
type ProcessedMarker interface {
	MarkProcessed(ctx context.Context, before time.Time) (int64, error)
}

type scope struct {
	expected  int
	processed int
	start     time.Time
}

// Tracker maintains expected-vs-processed counters per scope key and detects
// global completion. Counters are process-local and not persisted; upstream
// at-least-once redelivery regenerates them from stored documents after a
// restart. All counter mutation happens inside one mutex critical section,
// and a completed scope is removed from the map before the finalization
// write and broadcast run, so completion fires exactly once.
type Tracker struct {
	mu     sync.Mutex
	scopes map[string]*scope

	seed   SeedFunc
	store  ProcessedMarker
	events Broadcaster
	logger *slog.Logger
}

// NewTracker creates a Tracker. seed may be nil when every scope is opened
// explicitly via Begin.
func NewTracker(seed SeedFunc, store ProcessedMarker, events Broadcaster, logger *slog.Logger) *Tracker {
	return &Tracker{
		scopes: make(map[string]*scope),
		seed:   seed,
		store:  store,
		events: events,
		logger: logger.With("system", "progress"),
	}
}

// Begin opens a scope with an explicit expected count. Opening an already
// active scope raises its expectation instead of resetting progress, so
// overlapping dispatches into one scope accumulate.
func (t *Tracker) Begin(scopeKey string, expected int, start time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.scopes[scopeKey]; ok {
		s.expected += expected
		return
	}

	// A scope with nothing expected must never exist in the map: the first
	// Record against it would finalize immediately with processed > expected.
	if expected <= 0 {
		return
	}

	t.scopes[scopeKey] = &scope{expected: expected, start: start}
	t.logger.Info("scope opened", "scope", scopeKey, "expected", expected)
}

// Active returns the expected and processed counts for a scope, or zeros
// when the scope is not active.
func (t *Tracker) Active(scopeKey string) (expected, processed int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.scopes[scopeKey]; ok {
		return s.expected, s.processed
	}
	return 0, 0
}

// Record counts one item completion (success or failure) against a scope.
// When the scope reaches its expected count it is atomically reset before
// the bulk mark-processed write and the completion broadcast execute.
func (t *Tracker) Record(ctx context.Context, scopeKey string) {
	s, err := t.ensure(ctx, scopeKey)
	if err != nil {
		t.logger.Error("scope seed failed", "scope", scopeKey, "error", err)
		return
	}
	if s == nil {
		// Late redelivery for a scope that holds no pending work. Counting
		// it would finalize a scope that was never open.
		t.logger.Warn("record dropped for inactive scope", "scope", scopeKey)
		return
	}

	t.mu.Lock()
	if t.scopes[scopeKey] != s {
		// Scope finalized by a sibling completion between ensure and here.
		t.mu.Unlock()
		return
	}
	s.processed++
	done := s.processed >= s.expected
	var snapshot scope
	if done {
		snapshot = *s
		delete(t.scopes, scopeKey)
	}
	t.mu.Unlock()

	if done {
		t.finalize(ctx, scopeKey, snapshot)
	}
}

// ensure returns the active scope, creating it through the seed function on
// first use. Seeding queries the store, so it runs outside the lock with a
// double-check on re-entry. A seed that finds no pending work yields a nil
// scope without a map entry.
func (t *Tracker) ensure(ctx context.Context, scopeKey string) (*scope, error) {
	t.mu.Lock()
	if s, ok := t.scopes[scopeKey]; ok {
		t.mu.Unlock()
		return s, nil
	}
	t.mu.Unlock()

	if t.seed == nil {
		return nil, fmt.Errorf("no active scope %q and no seed function", scopeKey)
	}

	expected, start, err := t.seed(ctx, scopeKey)
	if err != nil {
		return nil, err
	}
	if expected <= 0 {
		return nil, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.scopes[scopeKey]; ok {
		return s, nil
	}

	s := &scope{expected: expected, start: start}
	t.scopes[scopeKey] = s
	t.logger.Info("scope seeded", "scope", scopeKey, "expected", expected)
	return s, nil
}

// finalize runs after the scope has been reset: it bulk-marks the documents
// that were unprocessed at scope start and broadcasts completion. Items
// created after the scope start belong to a newer scope and stay untouched.
func (t *Tracker) finalize(ctx context.Context, scopeKey string, s scope) {
	marked, err := t.store.MarkProcessed(ctx, s.start)
	if err != nil {
		t.logger.Error("bulk mark processed failed", "scope", scopeKey, "error", err)
	}

	t.logger.Info(
		"scope completed",
		"scope", scopeKey,
		"expected", s.expected,
		"processed", s.processed,
		"marked", marked,
	)

	t.events.Publish(hub.NewEvent(hub.EventProcessCompleted, hub.ScopeCompleted{
		ScopeKey:  scopeKey,
		Expected:  s.expected,
		Processed: s.processed,
		Marked:    int(marked),
	}))
}
