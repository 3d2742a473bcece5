package items

import (
	"context"
	"time"

	"github.com/google/uuid"

	"concord/internal/hub"
	"concord/pkg/pagination"
)

// Broadcaster publishes change events to connected observers.
type Broadcaster interface {
	Publish(e hub.Event)
}

// System defines the public contract for item domain operations. It doubles
// as the persistence gateway for the reconciliation pipeline: ApplyDecision,
// CountUnprocessed, and MarkProcessed are the operations the pipeline drives.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Item], error)

	Find(ctx context.Context, id uuid.UUID) (*Item, error)
	Create(ctx context.Context, cmd CreateCommand) (*Item, error)
	Delete(ctx context.Context, id uuid.UUID) error

	Audits(
		ctx context.Context,
		itemID uuid.UUID,
		page pagination.PageRequest,
	) (*pagination.PageResult[AuditRecord], error)

	ResolveReview(
		ctx context.Context,
		itemID uuid.UUID,
		trait string,
		cmd ResolveReviewCommand,
	) (*Item, error)

	// ApplyDecision persists one reconciliation outcome atomically: audit
	// append, trait-set delta, review-tag delta. Returns ErrConflict when a
	// concurrent writer collided; callers retry a bounded number of times.
	ApplyDecision(ctx context.Context, cmd ApplyDecisionCommand) error

	// TraitPriors returns, for every unprocessed item created at or before
	// the cutoff, the item id and its current binary score for the trait.
	TraitPriors(ctx context.Context, trait string, before time.Time) ([]TraitPrior, error)

	// CountUnprocessed counts unprocessed items created at or before the cutoff.
	CountUnprocessed(ctx context.Context, before time.Time) (int, error)

	// MarkProcessed bulk-marks unprocessed items created at or before the
	// cutoff as processed, returning how many rows changed. Items created
	// after the cutoff belong to a newer scope and are left untouched.
	MarkProcessed(ctx context.Context, before time.Time) (int64, error)
}
