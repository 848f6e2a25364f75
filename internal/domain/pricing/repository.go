package pricing

import (
	"context"
	"time"

	"farmacia/internal/core/id"
	"farmacia/internal/core/types"
)

// ConfigStore persists the global configuration and category markups.
// Getters return an apperror with CodeNotFound when the record is absent.
type ConfigStore interface {
	GetGlobalConfig(ctx context.Context) (*GlobalPricingConfig, error)
	// UpdateGlobalConfig writes only the non-nil fields of patch.
	UpdateGlobalConfig(ctx context.Context, patch GlobalConfigPatch) (*GlobalPricingConfig, error)

	GetCategoryByName(ctx context.Context, name string) (*CategoryMarkup, error)
	// UpdateCategory writes only the non-nil fields of patch.
	UpdateCategory(ctx context.Context, name string, patch CategoryPatch) (*CategoryMarkup, error)
	CreateCategory(ctx context.Context, category *CategoryMarkup) error
	ListCategories(ctx context.Context, includeInactive bool) ([]*CategoryMarkup, error)
}

// EntityFilter narrows EntityStore.List to one entity type.
type EntityFilter struct {
	Type         EntityType
	CategoryName *string
	Limit        int
	Offset       int
}

// EntityStore loads and saves the pricing fields of priced entities.
type EntityStore interface {
	Get(ctx context.Context, ref EntityRef) (*PricedEntity, error)
	// SavePricing writes cost, markup, sale price and the custom flag in one
	// statement. It fails with CodeConcurrentModification when e.Version is stale
	// and increments e.Version on success.
	SavePricing(ctx context.Context, e *PricedEntity) error
	List(ctx context.Context, filter EntityFilter) ([]*PricedEntity, error)
}

// HistoryRecorder appends price history entries. Entries are never updated.
type HistoryRecorder interface {
	Record(ctx context.Context, entry PriceHistoryEntry) error
}

// HistoryReader lists history of one entity, newest first.
type HistoryReader interface {
	ListByEntity(ctx context.Context, ref EntityRef, limit int) ([]PriceHistoryEntry, error)
}

// BulkRun is the audit record of one bulk application.
type BulkRun struct {
	ID         id.ID        `json:"id"`
	Markup     types.Markup `json:"markup"`
	Reason     *string      `json:"reason,omitempty"`
	Selector   string       `json:"selector,omitempty"`
	ChangedBy  string       `json:"changedBy"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Result     BulkResult   `json:"result"`
}

// BulkAuditor keeps a log of bulk runs.
type BulkAuditor interface {
	LogBulkRun(ctx context.Context, run *BulkRun) error
	RecentBulkRuns(ctx context.Context, limit int) ([]*BulkRun, error)
}

// BulkObserver receives bulk run statistics. Implementations must be safe
// for concurrent use.
type BulkObserver interface {
	ObserveItem(kind string)
	ObserveRun(succeeded, failed int, elapsed time.Duration)
}
