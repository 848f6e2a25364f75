package pricing_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"farmacia/internal/core/id"
	"farmacia/internal/domain/pricing"
	"farmacia/internal/infrastructure/storage/postgres"
)

const tableHistory = "price_history"

var historyColumns = postgres.ExtractDBColumns[pricing.PriceHistoryEntry]()

// HistoryRepo is the append-only price history. It never updates or deletes.
type HistoryRepo struct {
	db postgres.QuerierProvider
}

var (
	_ pricing.HistoryRecorder = (*HistoryRepo)(nil)
	_ pricing.HistoryReader   = (*HistoryRepo)(nil)
)

// NewHistoryRepo creates a history repository.
func NewHistoryRepo(db postgres.QuerierProvider) *HistoryRepo {
	return &HistoryRepo{db: db}
}

// Record appends one entry.
func (r *HistoryRepo) Record(ctx context.Context, entry pricing.PriceHistoryEntry) error {
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}

	sql, args, err := postgres.Builder().
		Insert(tableHistory).
		SetMap(postgres.StructToMap(entry)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert price history: %w", err)
	}
	return nil
}

// ListByEntity returns the newest entries of one entity.
func (r *HistoryRepo) ListByEntity(ctx context.Context, ref pricing.EntityRef, limit int) ([]pricing.PriceHistoryEntry, error) {
	sql, args, err := listHistoryQuery(ref, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []pricing.PriceHistoryEntry
	if err := pgxscan.Select(ctx, r.db.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list price history: %w", err)
	}
	return out, nil
}

func listHistoryQuery(ref pricing.EntityRef, limit int) squirrel.SelectBuilder {
	return postgres.Builder().
		Select(historyColumns...).
		From(tableHistory).
		Where(squirrel.Eq{"entity_type": string(ref.Type), "entity_id": ref.ID}).
		OrderBy("changed_at DESC", "id DESC").
		Limit(uint64(limit))
}
