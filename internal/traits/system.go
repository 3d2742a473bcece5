package traits

import (
	"context"

	"github.com/google/uuid"

	"concord/pkg/pagination"
)

// System defines the public contract for trait model operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Model], error)

	// ListEnabled returns every enabled trait model, ordered by label.
	// The pipeline uses this to fan a batch out across traits and to size
	// progress scopes.
	ListEnabled(ctx context.Context) ([]Model, error)

	Find(ctx context.Context, id uuid.UUID) (*Model, error)
	Create(ctx context.Context, cmd CreateCommand) (*Model, error)
	Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Model, error)
	SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) (*Model, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
