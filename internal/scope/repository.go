package scope

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tenantcms/tenantcms/internal/platform/db"
)

// Repository stores product category assignments in PostgreSQL. Category
// leads are scoped to product categories only.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ AssignmentStore = (*Repository)(nil)

// ListCategoryAssignments returns the categories assigned to actorID.
func (r *Repository) ListCategoryAssignments(ctx context.Context, actorID string) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_category_id FROM product_category_assignments WHERE actor_id = $1 ORDER BY product_category_id`, actorID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// ReplaceCategoryAssignments deletes then re-inserts inside one transaction.
func (r *Repository) ReplaceCategoryAssignments(ctx context.Context, actorID string, categoryIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM product_category_assignments WHERE actor_id = $1`, actorID); err != nil {
			return err
		}
		if len(categoryIDs) == 0 {
			return nil
		}
		rows := make([][]any, 0, len(categoryIDs))
		for _, id := range categoryIDs {
			rows = append(rows, []any{actorID, id})
		}
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"product_category_assignments"}, []string{"actor_id", "product_category_id"}, pgx.CopyFromRows(rows))
		return err
	})
}
