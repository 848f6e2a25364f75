// Package pricing_repo provides PostgreSQL implementations of the pricing stores.
package pricing_repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"farmacia/internal/core/apperror"
	"farmacia/internal/domain/pricing"
	"farmacia/internal/infrastructure/storage/postgres"
)

const (
	tableGlobalConfig = "pricing_global_config"
	tableCategories   = "pricing_category_markups"
	globalConfigID    = 1
)

var (
	globalColumns   = postgres.ExtractDBColumns[pricing.GlobalPricingConfig]()
	categoryColumns = postgres.ExtractDBColumns[pricing.CategoryMarkup]()
)

// ConfigRepo stores the global pricing configuration and category markups.
type ConfigRepo struct {
	db  postgres.QuerierProvider
	now func() time.Time
}

var _ pricing.ConfigStore = (*ConfigRepo)(nil)

// NewConfigRepo creates a config repository.
func NewConfigRepo(db postgres.QuerierProvider) *ConfigRepo {
	return &ConfigRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// GetGlobalConfig loads the singleton configuration.
func (r *ConfigRepo) GetGlobalConfig(ctx context.Context) (*pricing.GlobalPricingConfig, error) {
	sql, args, err := postgres.Builder().
		Select(globalColumns...).
		From(tableGlobalConfig).
		Where(squirrel.Eq{"id": globalConfigID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var cfg pricing.GlobalPricingConfig
	if err := pgxscan.Get(ctx, r.db.GetQuerier(ctx), &cfg, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(tableGlobalConfig, globalConfigID)
		}
		return nil, fmt.Errorf("get global config: %w", err)
	}
	return &cfg, nil
}

// ProvisionGlobalConfig inserts the singleton unless it already exists.
// It reports whether a row was created.
func (r *ConfigRepo) ProvisionGlobalConfig(ctx context.Context, cfg *pricing.GlobalPricingConfig) (bool, error) {
	data := postgres.StructToMap(cfg)
	data["id"] = globalConfigID
	data["updated_at"] = r.now()

	sql, args, err := postgres.Builder().
		Insert(tableGlobalConfig).
		SetMap(data).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}

	tag, err := r.db.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("provision global config: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateGlobalConfig writes the non-nil fields of patch.
func (r *ConfigRepo) UpdateGlobalConfig(ctx context.Context, patch pricing.GlobalConfigPatch) (*pricing.GlobalPricingConfig, error) {
	sql, args, err := r.updateGlobalQuery(patch).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}

	var cfg pricing.GlobalPricingConfig
	if err := pgxscan.Get(ctx, r.db.GetQuerier(ctx), &cfg, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(tableGlobalConfig, globalConfigID)
		}
		return nil, fmt.Errorf("update global config: %w", err)
	}
	return &cfg, nil
}

func (r *ConfigRepo) updateGlobalQuery(patch pricing.GlobalConfigPatch) squirrel.UpdateBuilder {
	set := map[string]any{"updated_at": r.now()}
	if patch.DefaultMarkup != nil {
		set["default_markup"] = *patch.DefaultMarkup
	}
	if patch.MinMarkup != nil {
		set["min_markup"] = *patch.MinMarkup
	}
	if patch.MaxMarkup != nil {
		set["max_markup"] = *patch.MaxMarkup
	}
	if patch.AllowZeroMarkup != nil {
		set["allow_zero_markup"] = *patch.AllowZeroMarkup
	}
	if patch.AutoApplyOnImport != nil {
		set["auto_apply_on_import"] = *patch.AutoApplyOnImport
	}
	if patch.UpdatedBy != "" {
		set["updated_by"] = patch.UpdatedBy
	}

	return postgres.Builder().
		Update(tableGlobalConfig).
		SetMap(set).
		Where(squirrel.Eq{"id": globalConfigID}).
		Suffix("RETURNING " + strings.Join(globalColumns, ", "))
}

// GetCategoryByName loads a category by exact name, active or not.
func (r *ConfigRepo) GetCategoryByName(ctx context.Context, name string) (*pricing.CategoryMarkup, error) {
	sql, args, err := postgres.Builder().
		Select(categoryColumns...).
		From(tableCategories).
		Where(squirrel.Eq{"category_name": name}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var c pricing.CategoryMarkup
	if err := pgxscan.Get(ctx, r.db.GetQuerier(ctx), &c, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("category", name)
		}
		return nil, fmt.Errorf("get category %q: %w", name, err)
	}
	return &c, nil
}

// CreateCategory inserts a category markup.
func (r *ConfigRepo) CreateCategory(ctx context.Context, c *pricing.CategoryMarkup) error {
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = r.now()
	}

	sql, args, err := postgres.Builder().
		Insert(tableCategories).
		SetMap(postgres.StructToMap(c)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicate("category", "categoryName", c.CategoryName)
		}
		return fmt.Errorf("insert category %q: %w", c.CategoryName, err)
	}
	return nil
}

// UpdateCategory writes the non-nil fields of patch.
func (r *ConfigRepo) UpdateCategory(ctx context.Context, name string, patch pricing.CategoryPatch) (*pricing.CategoryMarkup, error) {
	sql, args, err := r.updateCategoryQuery(name, patch).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}

	var c pricing.CategoryMarkup
	if err := pgxscan.Get(ctx, r.db.GetQuerier(ctx), &c, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("category", name)
		}
		return nil, fmt.Errorf("update category %q: %w", name, err)
	}
	return &c, nil
}

func (r *ConfigRepo) updateCategoryQuery(name string, patch pricing.CategoryPatch) squirrel.UpdateBuilder {
	set := map[string]any{"updated_at": r.now()}
	if patch.DefaultMarkup != nil {
		set["default_markup"] = *patch.DefaultMarkup
	}
	if patch.Active != nil {
		set["active"] = *patch.Active
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}

	return postgres.Builder().
		Update(tableCategories).
		SetMap(set).
		Where(squirrel.Eq{"category_name": name}).
		Suffix("RETURNING " + strings.Join(categoryColumns, ", "))
}

// ListCategories returns categories ordered by name.
func (r *ConfigRepo) ListCategories(ctx context.Context, includeInactive bool) ([]*pricing.CategoryMarkup, error) {
	sql, args, err := listCategoriesQuery(includeInactive).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []*pricing.CategoryMarkup
	if err := pgxscan.Select(ctx, r.db.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

func listCategoriesQuery(includeInactive bool) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select(categoryColumns...).
		From(tableCategories).
		OrderBy("category_name")
	if !includeInactive {
		q = q.Where(squirrel.Eq{"active": true})
	}
	return q
}
