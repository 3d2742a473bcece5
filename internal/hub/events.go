// Package hub batches change events and fans them out to connected
// websocket observers with backpressure and liveness management.
package hub

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a server-to-client event.
type EventType string

const (
	EventConnected        EventType = "connected"
	EventDocumentCreated  EventType = "document_created"
	EventTraitAdded       EventType = "trait_added"
	EventTraitUpdated     EventType = "trait_updated"
	EventBatchStarted     EventType = "batch_processing_started"
	EventBatchCompleted   EventType = "batch_processing_completed"
	EventProcessCompleted EventType = "process_completed"
	EventBatchUpdate      EventType = "batch_update"
	EventServerShutdown   EventType = "server_shutdown"
	EventPong             EventType = "pong"
)

// Event is a single JSON-encoded message to observers.
type Event struct {
	Type      EventType `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an Event stamped with the current time.
func NewEvent(t EventType, payload any) Event {
	return Event{Type: t, Payload: payload, Timestamp: time.Now().UTC()}
}

// envelope wraps multiple events flushed in one batching window.
type envelope struct {
	Type      EventType `json:"type"`
	Events    []Event   `json:"events"`
	Timestamp time.Time `json:"timestamp"`
}

// TraitChange carries everything an observer needs to render a trait
// reconciliation without a follow-up fetch.
type TraitChange struct {
	ItemID         uuid.UUID `json:"item_id"`
	Trait          string    `json:"trait"`
	BatchType      string    `json:"batch_type"`
	PriorScore     int       `json:"prior_score"`
	OracleScore    *int      `json:"oracle_score,omitempty"`
	FinalScore     int       `json:"final_score"`
	Action         string    `json:"action"`
	RequiresReview bool      `json:"requires_review"`
}

// BatchStatus describes the start or settlement of one orchestrated batch.
type BatchStatus struct {
	ModelID   string `json:"model_id"`
	BatchType string `json:"batch_type"`
	ScopeKey  string `json:"scope_key"`
	Items     int    `json:"items"`
	Succeeded int    `json:"succeeded,omitempty"`
	Failed    int    `json:"failed,omitempty"`
}

// ScopeCompleted describes a progress scope reaching its expected count.
type ScopeCompleted struct {
	ScopeKey  string `json:"scope_key"`
	Expected  int    `json:"expected"`
	Processed int    `json:"processed"`
	Marked    int    `json:"marked"`
}
