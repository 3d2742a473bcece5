// Package validations exposes the dispatch surface of the reconciliation
// pipeline: explicit batch dispatches and full sweeps over unprocessed items.
// Both acknowledge immediately and run detached from the request.
package validations

import (
	"github.com/google/uuid"

	"concord/internal/pipeline"
)

// DispatchCommand targets one trait model with an explicit item list.
type DispatchCommand struct {
	TraitModelID uuid.UUID                 `json:"trait_model_id"`
	BatchType    pipeline.BatchType        `json:"batch_type"`
	ScopeID      string                    `json:"scope_id,omitempty"`
	Items        []pipeline.ValidationItem `json:"items"`
}

// RunCommand starts a sweep of every unprocessed item across every enabled
// trait model.
type RunCommand struct {
	BatchType pipeline.BatchType `json:"batch_type"`
	ScopeID   string             `json:"scope_id,omitempty"`
}

// Receipt acknowledges an accepted dispatch before any item is processed.
type Receipt struct {
	Accepted int    `json:"accepted"`
	Batches  int    `json:"batches"`
	ScopeKey string `json:"scope_key"`
}
