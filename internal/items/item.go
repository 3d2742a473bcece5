// Package items implements the item domain for Concord. An item is one unit
// of classified text: the parent row owning a trait set, a review-tag set,
// and an append-only reconciliation audit history.
package items

import (
	"time"

	"github.com/google/uuid"
)

// Item statuses. A newly created item is unprocessed; the progress tracker's
// bulk finalization marks it processed once its scope completes.
const (
	StatusUnprocessed = "unprocessed"
	StatusProcessed   = "processed"
)

// Item represents a registered text item with its trait and review-tag sets.
type Item struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Content        string    `json:"content"`
	ProjectContext string    `json:"project_context,omitempty"`
	ConceptContext string    `json:"concept_context,omitempty"`
	Status         string    `json:"status"`
	Traits         []string  `json:"traits"`
	ReviewTags     []string  `json:"review_tags"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AuditRecord is one append-only history entry for a trait reconciliation.
// Human corrections append new records; nothing is ever mutated in place.
type AuditRecord struct {
	ID               uuid.UUID  `json:"id"`
	ItemID           uuid.UUID  `json:"item_id"`
	Trait            string     `json:"trait"`
	PriorScore       int        `json:"prior_score"`
	OraclePresent    *bool      `json:"oracle_present,omitempty"`
	OracleConfidence *float64   `json:"oracle_confidence,omitempty"`
	OracleRationale  string     `json:"oracle_rationale,omitempty"`
	FinalScore       int        `json:"final_score"`
	Action           string     `json:"action"`
	BatchType        string     `json:"batch_type,omitempty"`
	CorrectedBy      *string    `json:"corrected_by,omitempty"`
	CorrectedAt      *time.Time `json:"corrected_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// CreateCommand carries the data needed to register a new item.
type CreateCommand struct {
	Name           string `json:"name"`
	Content        string `json:"content"`
	ProjectContext string `json:"project_context"`
	ConceptContext string `json:"concept_context"`
}

// ApplyDecisionCommand carries one reconciliation outcome to persist: the
// audit record fields plus the trait-set and review-tag deltas, written as a
// single transaction against the owning item.
type ApplyDecisionCommand struct {
	ItemID           uuid.UUID
	Trait            string
	BatchType        string
	PriorScore       int
	OraclePresent    *bool
	OracleConfidence *float64
	OracleRationale  string
	FinalScore       int
	Action           string
	RequiresReview   bool
}

// TraitPrior pairs an item with its current binary score for one trait.
type TraitPrior struct {
	ItemID uuid.UUID `json:"item_id"`
	Score  int       `json:"score"`
}

// ResolveReviewCommand carries a human adjudication of a flagged trait verdict.
type ResolveReviewCommand struct {
	Score      int    `json:"score"`
	ResolvedBy string `json:"resolved_by"`
	Reason     string `json:"reason"`
}
