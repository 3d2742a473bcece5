package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"concord/internal/hub"
	"concord/internal/pipeline"
)

// recordingProcessor tracks which items were in flight together so chunk
// boundaries can be asserted.
type recordingProcessor struct {
	mu        sync.Mutex
	inFlight  int
	peak      int
	processed []uuid.UUID
	fail      map[uuid.UUID]error
	delay     time.Duration
	progress  *pipeline.Tracker
}

func (p *recordingProcessor) Process(ctx context.Context, batch pipeline.Batch, item pipeline.ValidationItem) pipeline.Result {
	p.mu.Lock()
	p.inFlight++
	if p.inFlight > p.peak {
		p.peak = p.inFlight
	}
	p.mu.Unlock()

	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	if p.progress != nil {
		p.progress.Record(ctx, batch.ScopeKey)
	}

	p.mu.Lock()
	p.inFlight--
	p.processed = append(p.processed, item.ItemID)
	err := p.fail[item.ItemID]
	p.mu.Unlock()

	return pipeline.Result{ItemID: item.ItemID, Err: err}
}

func makeItems(n int) []pipeline.ValidationItem {
	out := make([]pipeline.ValidationItem, n)
	for i := range out {
		out[i] = pipeline.ValidationItem{ItemID: uuid.New(), PriorScore: i % 2}
	}
	return out
}

func TestRunBatchChunksAndSettles(t *testing.T) {
	items := makeItems(60)
	proc := &recordingProcessor{delay: 5 * time.Millisecond}
	events := &fakeBroadcaster{}

	o := pipeline.NewOrchestrator(proc, events, nil, 25, time.Millisecond, testLogger())
	summary := o.RunBatch(context.Background(), pipeline.Batch{
		Trait:     "durability",
		ModelID:   "validator-1",
		BatchType: pipeline.BatchInitial,
		ScopeKey:  "scope-a",
		Items:     items,
	})

	if summary.Items != 60 || summary.Succeeded != 60 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Chunks != 3 {
		t.Errorf("expected 3 chunks for 60 items at size 25, got %d", summary.Chunks)
	}
	if proc.peak > 25 {
		t.Errorf("chunk boundary breached: %d items in flight", proc.peak)
	}
	if len(proc.processed) != 60 {
		t.Errorf("expected 60 processed items, got %d", len(proc.processed))
	}
}

func TestRunBatchItemFailuresAreIsolated(t *testing.T) {
	items := makeItems(10)
	proc := &recordingProcessor{
		fail: map[uuid.UUID]error{
			items[2].ItemID: errors.New("oracle timeout"),
			items[7].ItemID: errors.New("oracle timeout"),
		},
	}
	events := &fakeBroadcaster{}

	o := pipeline.NewOrchestrator(proc, events, nil, 4, 0, testLogger())
	summary := o.RunBatch(context.Background(), pipeline.Batch{
		Trait:     "durability",
		BatchType: pipeline.BatchInitial,
		ScopeKey:  "scope-b",
		Items:     items,
	})

	if summary.Succeeded != 8 || summary.Failed != 2 {
		t.Fatalf("expected 8/2 split, got %d/%d", summary.Succeeded, summary.Failed)
	}
	if len(proc.processed) != 10 {
		t.Errorf("failures stopped the batch: %d of 10 processed", len(proc.processed))
	}
}

func TestRunBatchPublishesLifecycleEvents(t *testing.T) {
	proc := &recordingProcessor{}
	events := &fakeBroadcaster{}

	o := pipeline.NewOrchestrator(proc, events, nil, 25, 0, testLogger())
	o.RunBatch(context.Background(), pipeline.Batch{
		Trait:     "durability",
		ModelID:   "validator-1",
		BatchType: pipeline.BatchContext,
		ScopeKey:  "scope-c",
		Items:     makeItems(5),
	})

	started := events.byType(hub.EventBatchStarted)
	if len(started) != 1 {
		t.Fatalf("expected one start event, got %d", len(started))
	}
	status := started[0].Payload.(hub.BatchStatus)
	if status.Items != 5 || status.BatchType != "CONTEXT" || status.ModelID != "validator-1" {
		t.Errorf("unexpected start payload: %+v", status)
	}

	completed := events.byType(hub.EventBatchCompleted)
	if len(completed) != 1 {
		t.Fatalf("expected one completion event, got %d", len(completed))
	}
	status = completed[0].Payload.(hub.BatchStatus)
	if status.Succeeded != 5 || status.Failed != 0 {
		t.Errorf("unexpected completion payload: %+v", status)
	}
}

func TestRunBatchCancellationCountsRemainderFailed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	proc := &recordingProcessor{}
	events := &fakeBroadcaster{}

	// Cancel during the inter-chunk pause so the second chunk never starts.
	o := pipeline.NewOrchestrator(proc, events, nil, 5, time.Second, testLogger())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	summary := o.RunBatch(ctx, pipeline.Batch{
		Trait:     "durability",
		BatchType: pipeline.BatchInitial,
		ScopeKey:  "scope-d",
		Items:     makeItems(10),
	})

	if summary.Succeeded != 5 {
		t.Errorf("expected first chunk to settle, got %d succeeded", summary.Succeeded)
	}
	if summary.Failed != 5 {
		t.Errorf("expected remainder counted failed, got %d", summary.Failed)
	}
	if len(events.byType(hub.EventBatchCompleted)) != 1 {
		t.Error("expected completion event even on cancellation")
	}
}

func TestRunBatchCancellationReportsSkippedToScope(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	events := &fakeBroadcaster{}
	marker := &fakeMarker{}
	tracker := pipeline.NewTracker(nil, marker, events, testLogger())
	proc := &recordingProcessor{progress: tracker}

	start := time.Now().UTC()
	tracker.Begin("scope-i", 10, start)

	o := pipeline.NewOrchestrator(proc, events, tracker, 5, time.Second, testLogger())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	o.RunBatch(ctx, pipeline.Batch{
		Trait:     "durability",
		BatchType: pipeline.BatchInitial,
		ScopeKey:  "scope-i",
		Items:     makeItems(10),
	})

	// Five items settled, five were never started; both halves count, so
	// the scope completes instead of stranding at 5 of 10.
	if got := marker.callCount(); got != 1 {
		t.Fatalf("expected scope completion after cancellation, got %d marks", got)
	}
	if !marker.calls[0].Equal(start) {
		t.Errorf("expected cutoff %v, got %v", start, marker.calls[0])
	}

	completed := events.byType(hub.EventProcessCompleted)
	if len(completed) != 1 {
		t.Fatalf("expected one scope completion event, got %d", len(completed))
	}
	payload := completed[0].Payload.(hub.ScopeCompleted)
	if payload.Processed != 10 || payload.Expected != 10 {
		t.Errorf("expected 10/10, got %d/%d", payload.Processed, payload.Expected)
	}
}

func TestRunBatchEmptyBatch(t *testing.T) {
	proc := &recordingProcessor{}
	events := &fakeBroadcaster{}

	o := pipeline.NewOrchestrator(proc, events, nil, 25, 0, testLogger())
	summary := o.RunBatch(context.Background(), pipeline.Batch{
		Trait:     "durability",
		BatchType: pipeline.BatchInitial,
		ScopeKey:  "scope-e",
	})

	if summary.Items != 0 || summary.Chunks != 0 {
		t.Errorf("unexpected summary for empty batch: %+v", summary)
	}
	if len(events.byType(hub.EventBatchCompleted)) != 1 {
		t.Error("expected completion event for empty batch")
	}
}
