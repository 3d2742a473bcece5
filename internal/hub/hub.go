package hub

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"concord/pkg/lifecycle"
)

// Config holds batching and liveness parameters for the hub.
type Config struct {
	// FlushInterval is the batching window: queued events are flushed this
	// long after the first one arrives, unless MaxBatch fills first.
	FlushInterval time.Duration
	// MaxBatch flushes the queue immediately once it reaches this size.
	MaxBatch int
	// SendBuffer is the per-observer outbound backlog; a full buffer marks
	// the observer unresponsive and removes it rather than blocking the hub.
	SendBuffer int
	// HeartbeatInterval is how often observers are pinged.
	HeartbeatInterval time.Duration
	// PongTimeout disconnects an observer that has not acknowledged within it.
	PongTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.FlushInterval <= 0 {
		c.FlushInterval = 500 * time.Millisecond
	}
	if c.MaxBatch <= 0 {
		c.MaxBatch = 50
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 60 * time.Second
	}
	return c
}

// Hub fans change events out to all live observers. A single run loop owns
// the observer set and the batching queue; everything else communicates with
// it through channels.
type Hub struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	register   chan *Observer
	unregister chan *Observer
	events     chan Event
	quit       chan struct{}
	done       chan struct{}
	quitOnce   sync.Once
	closed     atomic.Bool

	// loop-owned state
	observers map[*Observer]struct{}
	queue     []Event
}

// New creates a Hub. Call Start (or Run in a goroutine) before publishing.
func New(cfg Config, logger *slog.Logger) *Hub {
	return &Hub{
		cfg:    cfg.withDefaults(),
		logger: logger.With("system", "hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Origin enforcement belongs to the CORS middleware in front.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		register:   make(chan *Observer),
		unregister: make(chan *Observer),
		events:     make(chan Event, 256),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		observers:  make(map[*Observer]struct{}),
	}
}

// Start launches the run loop and registers a shutdown hook that drains the
// queue and closes all observers.
func (h *Hub) Start(lc *lifecycle.Coordinator) {
	go h.Run()

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		h.Shutdown()
	})
}

// Publish offers an event to the batching queue. Events published after
// shutdown are dropped.
func (h *Hub) Publish(e Event) {
	select {
	case h.events <- e:
	case <-h.done:
	}
}

// Shutdown stops accepting observers, flushes queued events, notifies every
// observer, and closes all connections. Safe to call more than once.
func (h *Hub) Shutdown() {
	h.closed.Store(true)
	h.quitOnce.Do(func() { close(h.quit) })
	<-h.done
}

// ServeHTTP upgrades the request to a websocket observer connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.closed.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	o := &Observer{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, h.cfg.SendBuffer),
		logger: h.logger.With("remote", conn.RemoteAddr().String()),
	}

	select {
	case h.register <- o:
	case <-h.done:
		conn.Close()
		return
	}

	go o.writePump()
	go o.readPump()
}

// Run executes the hub loop until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	flush := time.NewTimer(h.cfg.FlushInterval)
	if !flush.Stop() {
		<-flush.C
	}
	armed := false

	for {
		select {
		case o := <-h.register:
			h.observers[o] = struct{}{}
			h.logger.Info("observer connected", "observers", len(h.observers))
			if frame, err := encode(NewEvent(EventConnected, nil)); err == nil {
				o.enqueue(frame)
			}

		case o := <-h.unregister:
			h.remove(o)

		case e := <-h.events:
			h.queue = append(h.queue, e)
			if len(h.queue) >= h.cfg.MaxBatch {
				if armed && !flush.Stop() {
					<-flush.C
				}
				armed = false
				h.flush()
			} else if !armed {
				flush.Reset(h.cfg.FlushInterval)
				armed = true
			}

		case <-flush.C:
			armed = false
			h.flush()

		case <-h.quit:
			h.drain()
			h.flush()
			h.broadcast(NewEvent(EventServerShutdown, nil))
			for o := range h.observers {
				h.remove(o)
			}
			return
		}
	}
}

// drain empties the event channel into the queue without blocking.
func (h *Hub) drain() {
	for {
		select {
		case e := <-h.events:
			h.queue = append(h.queue, e)
		default:
			return
		}
	}
}

// flush sends the queued events to every observer: a lone event as-is,
// multiple events as a single batch_update envelope preserving arrival order.
func (h *Hub) flush() {
	if len(h.queue) == 0 {
		return
	}

	var payload any
	if len(h.queue) == 1 {
		payload = h.queue[0]
	} else {
		payload = envelope{
			Type:      EventBatchUpdate,
			Events:    h.queue,
			Timestamp: time.Now().UTC(),
		}
	}
	h.queue = nil

	frame, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("encode flush failed", "error", err)
		return
	}

	for o := range h.observers {
		if !o.enqueue(frame) {
			h.logger.Warn("observer unresponsive, removing", "remote", o.conn.RemoteAddr())
			h.remove(o)
		}
	}
}

func (h *Hub) broadcast(e Event) {
	frame, err := encode(e)
	if err != nil {
		return
	}
	for o := range h.observers {
		o.enqueue(frame)
	}
}

func (h *Hub) remove(o *Observer) {
	if _, ok := h.observers[o]; !ok {
		return
	}
	delete(h.observers, o)
	close(o.send)
	h.logger.Info("observer disconnected", "observers", len(h.observers))
}

// drop asks the run loop to remove an observer; used by the pumps.
func (h *Hub) drop(o *Observer) {
	select {
	case h.unregister <- o:
	case <-h.done:
	}
}

func encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}
