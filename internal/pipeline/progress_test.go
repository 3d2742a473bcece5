package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"concord/internal/hub"
	"concord/internal/pipeline"
)

func TestTrackerCompletesExactlyOnce(t *testing.T) {
	const expected = 50

	events := &fakeBroadcaster{}
	marker := &fakeMarker{marked: expected}
	tracker := pipeline.NewTracker(nil, marker, events, testLogger())

	start := time.Now().UTC()
	tracker.Begin("scope-a", expected, start)

	var wg sync.WaitGroup
	for range expected {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Record(context.Background(), "scope-a")
		}()
	}
	wg.Wait()

	if got := marker.callCount(); got != 1 {
		t.Fatalf("expected exactly one bulk mark, got %d", got)
	}
	if got := marker.calls[0]; !got.Equal(start) {
		t.Errorf("expected mark cutoff %v, got %v", start, got)
	}

	completed := events.byType(hub.EventProcessCompleted)
	if len(completed) != 1 {
		t.Fatalf("expected exactly one completion event, got %d", len(completed))
	}

	payload, ok := completed[0].Payload.(hub.ScopeCompleted)
	if !ok {
		t.Fatalf("expected ScopeCompleted payload, got %T", completed[0].Payload)
	}
	if payload.Expected != expected || payload.Processed != expected {
		t.Errorf("expected %d/%d, got %d/%d",
			expected, expected, payload.Processed, payload.Expected)
	}

	if e, p := tracker.Active("scope-a"); e != 0 || p != 0 {
		t.Errorf("expected scope reset after completion, got %d/%d", p, e)
	}
}

func TestTrackerFailedItemsStillCount(t *testing.T) {
	events := &fakeBroadcaster{}
	marker := &fakeMarker{}
	tracker := pipeline.NewTracker(nil, marker, events, testLogger())

	tracker.Begin("scope-b", 3, time.Now())

	// Failures and successes report identically; completion depends only
	// on the attempt count.
	for range 3 {
		tracker.Record(context.Background(), "scope-b")
	}

	if got := marker.callCount(); got != 1 {
		t.Fatalf("expected completion after three attempts, got %d marks", got)
	}
}

func TestTrackerOverlappingDispatchesAccumulate(t *testing.T) {
	events := &fakeBroadcaster{}
	marker := &fakeMarker{}
	tracker := pipeline.NewTracker(nil, marker, events, testLogger())

	start := time.Now()
	tracker.Begin("scope-c", 2, start)
	tracker.Begin("scope-c", 3, start.Add(time.Second))

	if e, _ := tracker.Active("scope-c"); e != 5 {
		t.Fatalf("expected accumulated expectation 5, got %d", e)
	}

	for range 4 {
		tracker.Record(context.Background(), "scope-c")
	}
	if got := marker.callCount(); got != 0 {
		t.Fatalf("scope completed early after 4 of 5 records")
	}

	tracker.Record(context.Background(), "scope-c")
	if got := marker.callCount(); got != 1 {
		t.Fatalf("expected completion after 5 records, got %d marks", got)
	}

	// The cutoff is the original scope start, not the later dispatch.
	if !marker.calls[0].Equal(start) {
		t.Errorf("expected cutoff %v, got %v", start, marker.calls[0])
	}
}

func TestTrackerSeedsScopeOnFirstRecord(t *testing.T) {
	events := &fakeBroadcaster{}
	marker := &fakeMarker{}
	start := time.Now().UTC()

	var seeds int
	seed := func(_ context.Context, scopeKey string) (int, time.Time, error) {
		if scopeKey != "scope-d" {
			t.Errorf("unexpected seed scope %q", scopeKey)
		}
		seeds++
		return 2, start, nil
	}

	tracker := pipeline.NewTracker(seed, marker, events, testLogger())

	tracker.Record(context.Background(), "scope-d")
	if e, p := tracker.Active("scope-d"); e != 2 || p != 1 {
		t.Fatalf("expected 1/2 after first record, got %d/%d", p, e)
	}

	tracker.Record(context.Background(), "scope-d")
	if got := marker.callCount(); got != 1 {
		t.Fatalf("expected completion, got %d marks", got)
	}
	if seeds != 1 {
		t.Errorf("expected one seed call, got %d", seeds)
	}
}

func TestTrackerZeroSeedDropsRecord(t *testing.T) {
	events := &fakeBroadcaster{}
	marker := &fakeMarker{}

	// A redelivered item can arrive after its scope already finalized, or
	// after a restart with everything marked processed. The seed then finds
	// nothing pending, and the record must not open a scope that completes
	// on its first attempt.
	seed := func(context.Context, string) (int, time.Time, error) {
		return 0, time.Now().UTC(), nil
	}

	tracker := pipeline.NewTracker(seed, marker, events, testLogger())
	tracker.Record(context.Background(), "scope-g")

	if got := marker.callCount(); got != 0 {
		t.Fatalf("expected no bulk mark for a zero-expectation seed, got %d", got)
	}
	if got := events.byType(hub.EventProcessCompleted); len(got) != 0 {
		t.Fatalf("expected no completion broadcast, got %d", len(got))
	}
	if e, p := tracker.Active("scope-g"); e != 0 || p != 0 {
		t.Errorf("expected no scope entry, got %d/%d", p, e)
	}
}

func TestTrackerBeginZeroExpectedIsInert(t *testing.T) {
	events := &fakeBroadcaster{}
	marker := &fakeMarker{}
	tracker := pipeline.NewTracker(nil, marker, events, testLogger())

	tracker.Begin("scope-h", 0, time.Now())
	tracker.Record(context.Background(), "scope-h")

	if got := marker.callCount(); got != 0 {
		t.Fatalf("expected no finalization for an empty scope, got %d marks", got)
	}
	if e, p := tracker.Active("scope-h"); e != 0 || p != 0 {
		t.Errorf("expected no scope entry, got %d/%d", p, e)
	}
}

func TestTrackerSeedFailureDropsRecord(t *testing.T) {
	events := &fakeBroadcaster{}
	marker := &fakeMarker{}
	seed := func(context.Context, string) (int, time.Time, error) {
		return 0, time.Time{}, errors.New("store offline")
	}

	tracker := pipeline.NewTracker(seed, marker, events, testLogger())
	tracker.Record(context.Background(), "scope-e")

	if got := marker.callCount(); got != 0 {
		t.Fatalf("expected no finalization on seed failure, got %d marks", got)
	}
	if e, p := tracker.Active("scope-e"); e != 0 || p != 0 {
		t.Errorf("expected no scope entry on seed failure, got %d/%d", p, e)
	}
}

func TestTrackerMarkFailureStillBroadcasts(t *testing.T) {
	events := &fakeBroadcaster{}
	marker := &fakeMarker{failErr: errors.New("write failed")}
	tracker := pipeline.NewTracker(nil, marker, events, testLogger())

	tracker.Begin("scope-f", 1, time.Now())
	tracker.Record(context.Background(), "scope-f")

	completed := events.byType(hub.EventProcessCompleted)
	if len(completed) != 1 {
		t.Fatalf("expected completion broadcast despite mark failure, got %d", len(completed))
	}
	payload := completed[0].Payload.(hub.ScopeCompleted)
	if payload.Marked != 0 {
		t.Errorf("expected marked 0 on mark failure, got %d", payload.Marked)
	}
}
