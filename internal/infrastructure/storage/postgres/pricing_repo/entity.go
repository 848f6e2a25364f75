package pricing_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"farmacia/internal/core/apperror"
	"farmacia/internal/domain/pricing"
	"farmacia/internal/infrastructure/storage/postgres"
)

var entityTables = map[pricing.EntityType]string{
	pricing.EntityProduct:   "products",
	pricing.EntitySupply:    "supplies",
	pricing.EntityPackaging: "packaging",
}

var entityColumns = postgres.ExtractDBColumns[pricing.PricedEntity]()

func tableFor(t pricing.EntityType) (string, error) {
	table, ok := entityTables[t]
	if !ok {
		return "", apperror.NewValidation("unknown entity type").WithDetail("value", string(t))
	}
	return table, nil
}

// EntityRepo reads and writes the pricing columns of products, supplies and
// packaging. Each entity type has its own table with the same pricing columns.
type EntityRepo struct {
	db postgres.QuerierProvider
}

var _ pricing.EntityStore = (*EntityRepo)(nil)

// NewEntityRepo creates an entity repository.
func NewEntityRepo(db postgres.QuerierProvider) *EntityRepo {
	return &EntityRepo{db: db}
}

// Get loads one entity.
func (r *EntityRepo) Get(ctx context.Context, ref pricing.EntityRef) (*pricing.PricedEntity, error) {
	table, err := tableFor(ref.Type)
	if err != nil {
		return nil, err
	}

	sql, args, err := postgres.Builder().
		Select(entityColumns...).
		From(table).
		Where(squirrel.Eq{"id": ref.ID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var e pricing.PricedEntity
	if err := pgxscan.Get(ctx, r.db.GetQuerier(ctx), &e, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(table, ref.ID.String())
		}
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	e.Type = ref.Type
	return &e, nil
}

// SavePricing writes cost, markup, sale price and the custom flag together,
// guarded by the entity version.
func (r *EntityRepo) SavePricing(ctx context.Context, e *pricing.PricedEntity) error {
	q, err := savePricingQuery(e)
	if err != nil {
		return err
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.db.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("save pricing %s: %w", e.Ref(), err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(string(e.Type), e.ID.String())
	}
	e.Version++
	return nil
}

func savePricingQuery(e *pricing.PricedEntity) (squirrel.UpdateBuilder, error) {
	table, err := tableFor(e.Type)
	if err != nil {
		return squirrel.UpdateBuilder{}, err
	}
	return postgres.Builder().
		Update(table).
		Set("cost_price", e.CostPrice).
		Set("markup", e.Markup).
		Set("sale_price", e.SalePrice).
		Set("markup_is_custom", e.MarkupIsCustom).
		Set("updated_at", e.UpdatedAt).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": e.ID}).
		Where(squirrel.Eq{"version": e.Version}), nil
}

// List returns entities of one type ordered by name.
func (r *EntityRepo) List(ctx context.Context, f pricing.EntityFilter) ([]*pricing.PricedEntity, error) {
	q, err := listEntitiesQuery(f)
	if err != nil {
		return nil, err
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []*pricing.PricedEntity
	if err := pgxscan.Select(ctx, r.db.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", f.Type, err)
	}
	for _, e := range out {
		e.Type = f.Type
	}
	return out, nil
}

func listEntitiesQuery(f pricing.EntityFilter) (squirrel.SelectBuilder, error) {
	table, err := tableFor(f.Type)
	if err != nil {
		return squirrel.SelectBuilder{}, err
	}
	q := postgres.Builder().
		Select(entityColumns...).
		From(table).
		OrderBy("name", "id")
	if f.CategoryName != nil {
		q = q.Where(squirrel.Eq{"category_name": *f.CategoryName})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	return q, nil
}

// Create inserts a new entity. Used by the seeder and imports.
func (r *EntityRepo) Create(ctx context.Context, e *pricing.PricedEntity) error {
	table, err := tableFor(e.Type)
	if err != nil {
		return err
	}

	sql, args, err := postgres.Builder().
		Insert(table).
		SetMap(postgres.StructToMap(e)).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", e.Ref(), err)
	}
	return nil
}
