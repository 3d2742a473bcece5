// Package pipeline implements the reconciliation pipeline: the item
// processor that drives oracle calls under the concurrency limiter, the
// batch orchestrator that paces chunks, and the progress tracker that
// detects scope completion across overlapping batches.
package pipeline

import (
	"time"

	"github.com/google/uuid"

	"concord/internal/hub"
	"concord/internal/oracle"
	"concord/internal/policy"
)

// BatchType selects which oracle evaluation a batch requests.
type BatchType string

const (
	// BatchInitial validates the item text alone.
	BatchInitial BatchType = "INITIAL"
	// BatchContext validates the text with project and concept context.
	BatchContext BatchType = "CONTEXT"
)

// Valid reports whether b is a known batch type.
func (b BatchType) Valid() bool {
	return b == BatchInitial || b == BatchContext
}

// OracleMode maps the batch type onto the oracle's evaluation mode.
func (b BatchType) OracleMode() oracle.Mode {
	if b == BatchContext {
		return oracle.ModeContext
	}
	return oracle.ModeBasic
}

// ValidationItem is one unit of work: an item id carrying its preliminary
// binary classification for the batch's trait. Immutable for the lifetime of
// one processing attempt.
type ValidationItem struct {
	ItemID     uuid.UUID `json:"item_id"`
	PriorScore int       `json:"prior_score"`
}

// Batch is an ordered list of validation items sharing one trait model and
// batch type. ScopeKey names the progress scope the batch reports into.
type Batch struct {
	Trait           string
	TraitDefinition string
	TraitExamples   []string
	ModelID         string
	BatchType       BatchType
	ScopeKey        string
	Items           []ValidationItem
}

// Result is the outcome of processing one validation item.
type Result struct {
	ItemID   uuid.UUID
	Decision policy.Decision
	Err      error
}

// Failed reports whether the attempt ended in failure.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Summary aggregates a batch run.
type Summary struct {
	Items     int
	Chunks    int
	Succeeded int
	Failed    int
	Elapsed   time.Duration
}

// Broadcaster publishes change events to connected observers.
type Broadcaster interface {
	Publish(e hub.Event)
}

// Config holds pipeline pacing and policy parameters.
type Config struct {
	// MaxConcurrent bounds simultaneous oracle calls across all batches.
	MaxConcurrent int
	// ChunkSize partitions a batch; a chunk settles fully before the next starts.
	ChunkSize int
	// ChunkPause is the fixed pause between chunks, smoothing load on the
	// oracle and the store.
	ChunkPause time.Duration
	// ConfidenceThreshold is the single reconciliation threshold.
	ConfidenceThreshold float64
	// ConflictRetries bounds retries of a conflicted read-modify-write.
	ConflictRetries int
}
