package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"concord/internal/hub"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBroadcaster captures published events for inspection.
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []hub.Event
}

func (f *fakeBroadcaster) Publish(e hub.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fakeBroadcaster) byType(t hub.EventType) []hub.Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []hub.Event
	for _, e := range f.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// fakeMarker records bulk mark-processed calls.
type fakeMarker struct {
	mu      sync.Mutex
	calls   []time.Time
	marked  int64
	failErr error
}

func (f *fakeMarker) MarkProcessed(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, before)
	if f.failErr != nil {
		return 0, f.failErr
	}
	return f.marked, nil
}

func (f *fakeMarker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
