package traits

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"concord/pkg/pagination"
	"concord/pkg/query"
	"concord/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a trait model repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "traits"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Model], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Label", "Definition")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count trait models: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	models, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanModel)
	if err != nil {
		return nil, fmt.Errorf("query trait models: %w", err)
	}

	result := pagination.NewPageResult(models, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) ListEnabled(ctx context.Context) ([]Model, error) {
	enabled := true
	q, args := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("Enabled", &enabled).
		Build()

	models, err := repository.QueryMany(ctx, r.db, q, args, scanModel)
	if err != nil {
		return nil, fmt.Errorf("query enabled trait models: %w", err)
	}
	return models, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Model, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	m, err := repository.QueryOne(ctx, r.db, q, args, scanModel)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &m, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Model, error) {
	if strings.TrimSpace(cmd.Label) == "" || strings.TrimSpace(cmd.Definition) == "" {
		return nil, fmt.Errorf("%w: label and definition are required", ErrInvalidModel)
	}

	examples, err := json.Marshal(orEmpty(cmd.Examples))
	if err != nil {
		return nil, fmt.Errorf("marshal examples: %w", err)
	}

	q := `
		INSERT INTO trait_models(id, label, definition, examples, model_id, enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, label, definition, examples, model_id, enabled, created_at, updated_at`

	insertArgs := []any{
		uuid.New(),
		cmd.Label,
		cmd.Definition,
		examples,
		cmd.ModelID,
		!cmd.Disabled,
	}

	m, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Model, error) {
		return repository.QueryOne(ctx, tx, q, insertArgs, scanModel)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("trait model created", "id", m.ID, "label", m.Label)
	return &m, nil
}

func (r *repo) Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Model, error) {
	current, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if cmd.Definition != nil {
		current.Definition = *cmd.Definition
	}
	if cmd.Examples != nil {
		current.Examples = orEmpty(*cmd.Examples)
	}
	if cmd.ModelID != nil {
		current.ModelID = *cmd.ModelID
	}

	examples, err := json.Marshal(current.Examples)
	if err != nil {
		return nil, fmt.Errorf("marshal examples: %w", err)
	}

	q := `
		UPDATE trait_models
		SET definition = $2, examples = $3, model_id = $4, updated_at = now()
		WHERE id = $1
		RETURNING id, label, definition, examples, model_id, enabled, created_at, updated_at`

	m, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Model, error) {
		return repository.QueryOne(
			ctx, tx, q,
			[]any{id, current.Definition, examples, current.ModelID},
			scanModel,
		)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("trait model updated", "id", m.ID, "label", m.Label)
	return &m, nil
}

func (r *repo) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) (*Model, error) {
	q := `
		UPDATE trait_models
		SET enabled = $2, updated_at = now()
		WHERE id = $1
		RETURNING id, label, definition, examples, model_id, enabled, created_at, updated_at`

	m, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Model, error) {
		return repository.QueryOne(ctx, tx, q, []any{id, enabled}, scanModel)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("trait model toggled", "id", m.ID, "label", m.Label, "enabled", m.Enabled)
	return &m, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM trait_models WHERE id = $1",
			id,
		)
		return struct{}{}, err
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("trait model deleted", "id", id)
	return nil
}

func orEmpty(examples []string) []string {
	if examples == nil {
		return []string{}
	}
	return examples
}
