package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type tableSpec struct {
	entity       string
	statusColumn string
	brandColumn  string
	links        string
	linkEntity   string
	linkCategory string
	comments     string
	commentRef   string
	categories   string
}

var tables = map[Kind]tableSpec{
	KindArticle: {
		entity:       "articles",
		statusColumn: "article_status_id",
		brandColumn:  "product_brand_id",
		links:        "article_category_articles",
		linkEntity:   "article_id",
		linkCategory: "article_category_id",
		comments:     "article_comments",
		commentRef:   "article_id",
		categories:   "article_categories",
	},
	KindProduct: {
		entity:       "products",
		statusColumn: "product_status_id",
		brandColumn:  "product_brand_id",
		links:        "product_category_products",
		linkEntity:   "product_id",
		linkCategory: "product_category_id",
		comments:     "product_comments",
		commentRef:   "product_id",
		categories:   "product_categories",
	},
	KindBrand: {
		entity:       "product_brands",
		statusColumn: "product_brand_status_id",
	},
}

func specFor(kind Kind) (tableSpec, error) {
	spec, ok := tables[kind]
	if !ok {
		return tableSpec{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return spec, nil
}

// Repository reads and writes content snapshots in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindEntity loads the workflow snapshot of one entity.
func (r *Repository) FindEntity(ctx context.Context, kind Kind, id int64) (Entity, error) {
	spec, err := specFor(kind)
	if err != nil {
		return Entity{}, err
	}
	brand := `NULL::bigint`
	if spec.brandColumn != "" {
		brand = "e." + spec.brandColumn
	}
	categories := `'{}'::bigint[]`
	if spec.links != "" {
		categories = fmt.Sprintf(`COALESCE((SELECT array_agg(l.%s) FROM %s l WHERE l.%s = e.id), '{}')`, spec.linkCategory, spec.links, spec.linkEntity)
	}
	query := fmt.Sprintf(`SELECT e.id, COALESCE(e.created_by, ''), %s, %s, e.%s,
       e.checked, e.check_by, e.check_date, e.approved, e.approve_by, e.approve_date
FROM %s e WHERE e.id = $1`, brand, categories, spec.statusColumn, spec.entity)

	var (
		ent                    Entity
		categoryIDs            []int64
		status                 int
		checked, approved      int
		checkBy, approveBy     *string
		checkDate, approveDate *time.Time
	)
	err = r.pool.QueryRow(ctx, query, id).Scan(
		&ent.ID, &ent.OwnerID, &ent.BrandID, &categoryIDs, &status,
		&checked, &checkBy, &checkDate, &approved, &approveBy, &approveDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entity{}, ErrNotFound
		}
		return Entity{}, err
	}
	ent.Kind = kind
	ent.StatusID = Status(status)
	if ent.Checked, err = TriStateFromInt(checked); err != nil {
		return Entity{}, err
	}
	if ent.Approved, err = TriStateFromInt(approved); err != nil {
		return Entity{}, err
	}
	ent.CheckedBy = deref(checkBy)
	ent.ApprovedBy = deref(approveBy)
	if checkDate != nil {
		ent.CheckedAt = *checkDate
	}
	if approveDate != nil {
		ent.ApprovedAt = *approveDate
	}
	ent.CategoryIDs = make(map[int64]struct{}, len(categoryIDs))
	for _, c := range categoryIDs {
		ent.CategoryIDs[c] = struct{}{}
	}
	return ent, nil
}

// SaveStatus persists the workflow fields of ent.
func (r *Repository) SaveStatus(ctx context.Context, ent Entity) error {
	spec, err := specFor(ent.Kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET %s = $2,
       checked = $3, check_by = NULLIF($4, ''), check_date = $5,
       approved = $6, approve_by = NULLIF($7, ''), approve_date = $8
WHERE id = $1`, spec.entity, spec.statusColumn)
	tag, err := r.pool.Exec(ctx, query, ent.ID, int(ent.StatusID),
		ent.Checked.Int(), ent.CheckedBy, nullableTime(ent.CheckedAt),
		ent.Approved.Int(), ent.ApprovedBy, nullableTime(ent.ApprovedAt))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindComment loads a comment on an article or product.
func (r *Repository) FindComment(ctx context.Context, kind Kind, id int64) (Comment, error) {
	spec, err := specFor(kind)
	if err != nil {
		return Comment{}, err
	}
	if spec.comments == "" {
		return Comment{}, fmt.Errorf("%w: %q has no comments", ErrUnknownKind, kind)
	}
	query := fmt.Sprintf(`SELECT id, %s, COALESCE(created_by, ''), is_staff FROM %s WHERE id = $1`, spec.commentRef, spec.comments)
	c := Comment{Kind: kind}
	if err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.TargetID, &c.CreatedBy, &c.Staff); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Comment{}, ErrNotFound
		}
		return Comment{}, err
	}
	return c, nil
}

// FindCategory loads an article or product category.
func (r *Repository) FindCategory(ctx context.Context, kind Kind, id int64) (Category, error) {
	spec, err := specFor(kind)
	if err != nil {
		return Category{}, err
	}
	if spec.categories == "" {
		return Category{}, fmt.Errorf("%w: %q has no categories", ErrUnknownKind, kind)
	}
	query := fmt.Sprintf(`SELECT id, name, can_delete FROM %s WHERE id = $1`, spec.categories)
	c := Category{Kind: kind}
	if err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.CanDelete); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, ErrNotFound
		}
		return Category{}, err
	}
	return c, nil
}

// CountCategoryMembers counts entities linked to a category.
func (r *Repository) CountCategoryMembers(ctx context.Context, kind Kind, categoryID int64) (int, error) {
	spec, err := specFor(kind)
	if err != nil {
		return 0, err
	}
	if spec.links == "" {
		return 0, nil
	}
	var n int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`, spec.links, spec.linkCategory)
	if err := r.pool.QueryRow(ctx, query, categoryID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
