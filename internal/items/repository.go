package items

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"concord/internal/hub"
	"concord/pkg/pagination"
	"concord/pkg/query"
	"concord/pkg/repository"
)

type repo struct {
	db         *sql.DB
	events     Broadcaster
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates an item repository implementing the System interface.
func New(
	db *sql.DB,
	events Broadcaster,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		events:     events,
		logger:     logger.With("system", "items"),
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
) (*pagination.PageResult[Item], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Name", "Content")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	list, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanItem)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}

	result := pagination.NewPageResult(list, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Item, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	item, err := repository.QueryOne(ctx, r.db, q, args, scanItem)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	if err := r.loadSets(ctx, r.db, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Item, error) {
	if strings.TrimSpace(cmd.Name) == "" || strings.TrimSpace(cmd.Content) == "" {
		return nil, fmt.Errorf("%w: name and content are required", ErrInvalidItem)
	}

	q := `
		INSERT INTO items(id, name, content, project_context, concept_context)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, content, project_context, concept_context, status, created_at, updated_at`

	insertArgs := []any{
		uuid.New(),
		cmd.Name,
		cmd.Content,
		cmd.ProjectContext,
		cmd.ConceptContext,
	}

	item, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Item, error) {
		return repository.QueryOne(ctx, tx, q, insertArgs, scanItem)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	item.Traits = []string{}
	item.ReviewTags = []string{}

	r.logger.Info("item created", "id", item.ID, "name", item.Name)
	r.events.Publish(hub.NewEvent(hub.EventDocumentCreated, item))

	return &item, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM items WHERE id = $1",
			id,
		)
		return struct{}{}, err
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("item deleted", "id", id)
	return nil
}

func (r *repo) Audits(
	ctx context.Context,
	itemID uuid.UUID,
	page pagination.PageRequest,
) (*pagination.PageResult[AuditRecord], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(auditProjection, auditSort).
		WhereEquals("ItemID", itemID)

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count audits: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	audits, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanAudit)
	if err != nil {
		return nil, fmt.Errorf("query audits: %w", err)
	}

	result := pagination.NewPageResult(audits, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) ApplyDecision(ctx context.Context, cmd ApplyDecisionCommand) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := lockItem(ctx, tx, cmd.ItemID); err != nil {
			return struct{}{}, err
		}

		if err := appendAudit(ctx, tx, cmd); err != nil {
			return struct{}{}, fmt.Errorf("append audit: %w", err)
		}

		if err := applyTraitDelta(ctx, tx, cmd.ItemID, cmd.Trait, cmd.FinalScore); err != nil {
			return struct{}{}, fmt.Errorf("apply trait delta: %w", err)
		}

		if err := applyReviewDelta(ctx, tx, cmd.ItemID, cmd.Trait, cmd.RequiresReview); err != nil {
			return struct{}{}, fmt.Errorf("apply review delta: %w", err)
		}

		return struct{}{}, touchItem(ctx, tx, cmd.ItemID)
	})

	if repository.IsConflict(err) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}

func (r *repo) ResolveReview(
	ctx context.Context,
	itemID uuid.UUID,
	trait string,
	cmd ResolveReviewCommand,
) (*Item, error) {
	if cmd.Score != 0 && cmd.Score != 1 {
		return nil, ErrInvalidScore
	}

	now := time.Now().UTC()

	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := lockItem(ctx, tx, itemID); err != nil {
			return struct{}{}, err
		}

		res, err := tx.ExecContext(
			ctx,
			"DELETE FROM review_tags WHERE item_id = $1 AND trait = $2",
			itemID, trait,
		)
		if err != nil {
			return struct{}{}, err
		}
		if n, err := res.RowsAffected(); err != nil {
			return struct{}{}, err
		} else if n == 0 {
			return struct{}{}, ErrReviewNotFound
		}

		prior := 0
		var exists bool
		if err := tx.QueryRowContext(
			ctx,
			"SELECT EXISTS (SELECT 1 FROM item_traits WHERE item_id = $1 AND trait = $2)",
			itemID, trait,
		).Scan(&exists); err != nil {
			return struct{}{}, err
		}
		if exists {
			prior = 1
		}

		correction := ApplyDecisionCommand{
			ItemID:          itemID,
			Trait:           trait,
			PriorScore:      prior,
			OracleRationale: cmd.Reason,
			FinalScore:      cmd.Score,
			Action:          "human_corrected",
		}
		if err := appendCorrection(ctx, tx, correction, cmd.ResolvedBy, now); err != nil {
			return struct{}{}, fmt.Errorf("append correction: %w", err)
		}

		if err := applyTraitDelta(ctx, tx, itemID, trait, cmd.Score); err != nil {
			return struct{}{}, fmt.Errorf("apply trait delta: %w", err)
		}

		return struct{}{}, touchItem(ctx, tx, itemID)
	})
	if err != nil {
		if repository.IsConflict(err) {
			return nil, fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info(
		"review resolved",
		"item", itemID,
		"trait", trait,
		"score", cmd.Score,
		"resolved_by", cmd.ResolvedBy,
	)

	return r.Find(ctx, itemID)
}

func (r *repo) TraitPriors(ctx context.Context, trait string, before time.Time) ([]TraitPrior, error) {
	q := `
		SELECT i.id, (t.trait IS NOT NULL)::int
		FROM items i
		LEFT JOIN item_traits t ON t.item_id = i.id AND t.trait = $1
		WHERE i.status = $2 AND i.created_at <= $3
		ORDER BY i.created_at`

	priors, err := repository.QueryMany(
		ctx, r.db, q,
		[]any{trait, StatusUnprocessed, before},
		func(row repository.Scanner) (TraitPrior, error) {
			var p TraitPrior
			err := row.Scan(&p.ItemID, &p.Score)
			return p, err
		},
	)
	if err != nil {
		return nil, fmt.Errorf("trait priors: %w", err)
	}
	return priors, nil
}

func (r *repo) CountUnprocessed(ctx context.Context, before time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(
		ctx,
		"SELECT COUNT(*) FROM items WHERE status = $1 AND created_at <= $2",
		StatusUnprocessed, before,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unprocessed: %w", err)
	}
	return count, nil
}

func (r *repo) MarkProcessed(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(
		ctx,
		"UPDATE items SET status = $1, updated_at = now() WHERE status = $2 AND created_at <= $3",
		StatusProcessed, StatusUnprocessed, before,
	)
	if err != nil {
		return 0, fmt.Errorf("mark processed: %w", err)
	}

	marked, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	r.logger.Info("items marked processed", "count", marked, "cutoff", before)
	return marked, nil
}

// lockItem takes the per-item row lock that serializes concurrent trait
// writes against one item.
func lockItem(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	var status string
	err := tx.QueryRowContext(
		ctx,
		"SELECT status FROM items WHERE id = $1 FOR UPDATE",
		id,
	).Scan(&status)
	if err != nil {
		return err
	}
	return nil
}

func appendAudit(ctx context.Context, tx *sql.Tx, cmd ApplyDecisionCommand) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO trait_audits(
			id, item_id, trait, prior_score, oracle_present, oracle_confidence,
			oracle_rationale, final_score, action, batch_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.New(),
		cmd.ItemID,
		cmd.Trait,
		cmd.PriorScore,
		cmd.OraclePresent,
		cmd.OracleConfidence,
		cmd.OracleRationale,
		cmd.FinalScore,
		cmd.Action,
		cmd.BatchType,
	)
	return err
}

func appendCorrection(
	ctx context.Context,
	tx *sql.Tx,
	cmd ApplyDecisionCommand,
	resolvedBy string,
	at time.Time,
) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO trait_audits(
			id, item_id, trait, prior_score, oracle_rationale,
			final_score, action, corrected_by, corrected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.New(),
		cmd.ItemID,
		cmd.Trait,
		cmd.PriorScore,
		cmd.OracleRationale,
		cmd.FinalScore,
		cmd.Action,
		resolvedBy,
		at,
	)
	return err
}

// applyTraitDelta keeps the trait set consistent with the final score:
// score 1 inserts the trait (no duplicates), score 0 removes it. Reapplying
// the same decision is a no-op.
func applyTraitDelta(ctx context.Context, tx *sql.Tx, itemID uuid.UUID, trait string, finalScore int) error {
	if finalScore == 1 {
		_, err := tx.ExecContext(
			ctx,
			"INSERT INTO item_traits(item_id, trait) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			itemID, trait,
		)
		return err
	}

	_, err := tx.ExecContext(
		ctx,
		"DELETE FROM item_traits WHERE item_id = $1 AND trait = $2",
		itemID, trait,
	)
	return err
}

func applyReviewDelta(ctx context.Context, tx *sql.Tx, itemID uuid.UUID, trait string, requiresReview bool) error {
	if requiresReview {
		_, err := tx.ExecContext(
			ctx,
			"INSERT INTO review_tags(item_id, trait) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			itemID, trait,
		)
		return err
	}

	_, err := tx.ExecContext(
		ctx,
		"DELETE FROM review_tags WHERE item_id = $1 AND trait = $2",
		itemID, trait,
	)
	return err
}

func touchItem(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	_, err := tx.ExecContext(
		ctx,
		"UPDATE items SET updated_at = now() WHERE id = $1",
		id,
	)
	return err
}

func (r *repo) loadSets(ctx context.Context, q repository.Querier, item *Item) error {
	traits, err := repository.QueryMany(
		ctx, q,
		"SELECT trait FROM item_traits WHERE item_id = $1 ORDER BY trait",
		[]any{item.ID},
		scanLabel,
	)
	if err != nil {
		return fmt.Errorf("query traits: %w", err)
	}

	tags, err := repository.QueryMany(
		ctx, q,
		"SELECT trait FROM review_tags WHERE item_id = $1 ORDER BY trait",
		[]any{item.ID},
		scanLabel,
	)
	if err != nil {
		return fmt.Errorf("query review tags: %w", err)
	}

	item.Traits = traits
	item.ReviewTags = tags
	return nil
}
