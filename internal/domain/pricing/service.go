package pricing

import (
	"context"
	"time"

	"farmacia/internal/core/apperror"
	appctx "farmacia/internal/core/context"
	"farmacia/internal/core/id"
	"farmacia/internal/core/tx"
	"farmacia/internal/core/types"
	"farmacia/pkg/logger"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	selectorPageSize    = 500
)

// ServiceConfig wires the collaborators of Service.
// Auditor and Observer are optional.
type ServiceConfig struct {
	Configs       ConfigStore
	Entities      EntityStore
	History       HistoryRecorder
	HistoryReader HistoryReader
	TxManager     tx.Manager
	Auditor       BulkAuditor
	Observer      BulkObserver
	BulkWorkers   int
	Now           func() time.Time
}

// Service is the entry point used by forms, category screens and batch jobs.
type Service struct {
	configs  ConfigStore
	entities EntityStore
	history  HistoryReader
	auditor  BulkAuditor
	resolver *Resolver
	repricer *repricer
	bulk     *BulkApplier
	now      func() time.Time
}

// NewService creates a pricing service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	txm := cfg.TxManager
	if txm == nil {
		txm = tx.NoTx
	}

	resolver := NewResolver(cfg.Configs)
	rp := &repricer{
		resolver: resolver,
		entities: cfg.Entities,
		history:  cfg.History,
		txm:      txm,
		now:      now,
	}

	return &Service{
		configs:  cfg.Configs,
		entities: cfg.Entities,
		history:  cfg.HistoryReader,
		auditor:  cfg.Auditor,
		resolver: resolver,
		repricer: rp,
		bulk: &BulkApplier{
			repricer: rp,
			workers:  cfg.BulkWorkers,
			observer: cfg.Observer,
		},
		now: now,
	}
}

// Resolver exposes the store-backed resolver.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// BulkApplier exposes the bulk applier.
func (s *Service) BulkApplier() *BulkApplier {
	return s.bulk
}

// --- Previews ---

// QuoteRequest describes a price preview for a record that may not exist yet.
type QuoteRequest struct {
	CostPrice    types.Money
	CategoryName *string
	// Markup is the explicit markup typed into the form.
	Markup *types.Markup
	// MarginPercent derives the explicit markup when Markup is nil.
	MarginPercent *types.Percent
	// CustomMarkup is a per-item custom markup already stored on the record.
	CustomMarkup *types.Markup
}

// QuoteResult is the resolved markup together with the computed price.
type QuoteResult struct {
	Resolution
	PriceQuote
}

// Quote resolves and prices req without persisting anything.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (QuoteResult, error) {
	explicit := req.Markup
	if explicit == nil && req.MarginPercent != nil {
		m, err := ComputeMarkupFromMargin(*req.MarginPercent)
		if err != nil {
			return QuoteResult{}, err
		}
		explicit = &m
	}

	entity := &PricedEntity{CostPrice: types.RoundStored(req.CostPrice), CategoryName: req.CategoryName}
	if req.CustomMarkup != nil {
		entity.Markup = *req.CustomMarkup
		entity.MarkupIsCustom = true
	}
	return s.quote(ctx, entity, explicit)
}

// Preview resolves and prices a stored entity without persisting anything.
func (s *Service) Preview(ctx context.Context, ref EntityRef, explicit *types.Markup) (QuoteResult, error) {
	entity, err := s.entities.Get(ctx, ref)
	if err != nil {
		return QuoteResult{}, wrapPersistence("load entity", err)
	}
	entity.Type = ref.Type
	return s.quote(ctx, entity, explicit)
}

func (s *Service) quote(ctx context.Context, entity *PricedEntity, explicit *types.Markup) (QuoteResult, error) {
	res, err := s.resolver.Resolve(ctx, entity, explicit)
	if err != nil {
		return QuoteResult{}, err
	}
	q, err := ComputeSalePrice(entity.CostPrice, res.Markup)
	if err != nil {
		return QuoteResult{}, err
	}
	return QuoteResult{Resolution: res, PriceQuote: q}, nil
}

// CheckMarkup validates markup against the stored global configuration.
func (s *Service) CheckMarkup(ctx context.Context, markup types.Markup) error {
	return s.resolver.Validate(ctx, markup)
}

// --- Single-entity mutations ---

// Reprice re-resolves the markup of one entity and persists the new sale price.
// A non-nil explicit markup becomes the entity's custom markup.
func (s *Service) Reprice(ctx context.Context, ref EntityRef, explicit *types.Markup, reason *string) (PriceChange, error) {
	change, err := s.repricer.apply(ctx, ref, mutation{explicit: explicit, reason: reason})
	if err != nil {
		return PriceChange{}, err
	}
	logger.Info(ctx, "entity repriced",
		"entity", ref.String(),
		"source", change.Source,
		"markup", change.NewMarkup.String(),
		"sale_price", change.NewSalePrice.String(),
	)
	return change, nil
}

// UpdateCost sets a new cost price and recomputes the sale price in the same write.
func (s *Service) UpdateCost(ctx context.Context, ref EntityRef, cost types.Money, reason *string) (PriceChange, error) {
	if cost.IsNegative() {
		return PriceChange{}, apperror.NewInvalidInput("cost price must not be negative").
			WithDetail("field", "costPrice").
			WithDetail("value", cost.String())
	}
	change, err := s.repricer.apply(ctx, ref, mutation{cost: &cost, reason: reason})
	if err != nil {
		return PriceChange{}, err
	}
	logger.Info(ctx, "entity cost updated",
		"entity", ref.String(),
		"cost", cost.String(),
		"sale_price", change.NewSalePrice.String(),
	)
	return change, nil
}

// ResetMarkup clears the custom flag so the entity follows its category or
// the global default again.
func (s *Service) ResetMarkup(ctx context.Context, ref EntityRef, reason *string) (PriceChange, error) {
	change, err := s.repricer.apply(ctx, ref, mutation{clearCustom: true, reason: reason})
	if err != nil {
		return PriceChange{}, err
	}
	logger.Info(ctx, "entity markup reset", "entity", ref.String(), "source", change.Source)
	return change, nil
}

// History returns the newest history entries of one entity.
func (s *Service) History(ctx context.Context, ref EntityRef, limit int) ([]PriceHistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	entries, err := s.history.ListByEntity(ctx, ref, limit)
	if err != nil {
		return nil, wrapPersistence("list price history", err)
	}
	return entries, nil
}

// --- Bulk ---

// BulkRequest selects targets either by explicit Refs or by EntityType with
// an optional CategoryName filter and CEL Selector.
type BulkRequest struct {
	Refs         []EntityRef
	EntityType   EntityType
	CategoryName *string
	Selector     string
	Markup       types.Markup
	Reason       *string
}

// ApplyBulk applies req.Markup to every selected entity and logs the run.
// The returned run is non-nil whenever the applier ran, even when ctx was
// cancelled midway.
func (s *Service) ApplyBulk(ctx context.Context, req BulkRequest) (*BulkRun, error) {
	refs, err := s.bulkTargets(ctx, req)
	if err != nil {
		return nil, err
	}

	run := &BulkRun{
		ID:        id.New(),
		Markup:    req.Markup,
		Reason:    req.Reason,
		Selector:  req.Selector,
		ChangedBy: appctx.ChangedBy(ctx),
		StartedAt: s.now(),
	}

	result, applyErr := s.bulk.Apply(ctx, refs, req.Markup, req.Reason)
	run.Result = result
	run.FinishedAt = s.now()

	if s.auditor != nil {
		if err := s.auditor.LogBulkRun(context.WithoutCancel(ctx), run); err != nil {
			logger.Warn(ctx, "failed to log bulk run", "run_id", run.ID, "error", err)
		}
	}
	return run, applyErr
}

// BulkRuns lists recent bulk runs, newest first.
func (s *Service) BulkRuns(ctx context.Context, limit int) ([]*BulkRun, error) {
	if s.auditor == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	runs, err := s.auditor.RecentBulkRuns(ctx, limit)
	if err != nil {
		return nil, wrapPersistence("list bulk runs", err)
	}
	return runs, nil
}

func (s *Service) bulkTargets(ctx context.Context, req BulkRequest) ([]EntityRef, error) {
	if len(req.Refs) > 0 {
		if req.Selector != "" || req.EntityType != "" {
			return nil, apperror.NewValidation("refs and selector are mutually exclusive").
				WithDetail("field", "refs")
		}
		for _, ref := range req.Refs {
			if !ref.Type.Valid() {
				return nil, apperror.NewValidation("unknown entity type").
					WithDetail("field", "refs").
					WithDetail("value", string(ref.Type))
			}
		}
		return req.Refs, nil
	}

	if !req.EntityType.Valid() {
		return nil, apperror.NewValidation("either refs or a valid entityType is required").
			WithDetail("field", "entityType")
	}

	var sel *Selector
	if req.Selector != "" {
		compiled, err := CompileSelector(req.Selector)
		if err != nil {
			return nil, err
		}
		sel = compiled
	}

	var refs []EntityRef
	for offset := 0; ; offset += selectorPageSize {
		page, err := s.entities.List(ctx, EntityFilter{
			Type:         req.EntityType,
			CategoryName: req.CategoryName,
			Limit:        selectorPageSize,
			Offset:       offset,
		})
		if err != nil {
			return nil, wrapPersistence("list entities", err)
		}
		for _, e := range page {
			e.Type = req.EntityType
			if sel != nil {
				ok, err := sel.Match(e)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
			}
			refs = append(refs, e.Ref())
		}
		if len(page) < selectorPageSize {
			break
		}
	}
	return refs, nil
}

// --- Configuration administration ---

// GlobalConfig returns the current global configuration.
func (s *Service) GlobalConfig(ctx context.Context) (*GlobalPricingConfig, error) {
	cfg, err := s.configs.GetGlobalConfig(ctx)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewConfigNotFound().WithCause(err)
		}
		return nil, wrapPersistence("load global pricing config", err)
	}
	return cfg, nil
}

// UpdateGlobalConfig merges patch onto the current configuration, validates
// the result and writes only the patched fields.
func (s *Service) UpdateGlobalConfig(ctx context.Context, patch GlobalConfigPatch) (*GlobalPricingConfig, error) {
	if patch.IsEmpty() {
		return nil, apperror.NewValidation("no fields to update")
	}
	patch = patch.rounded()

	current, err := s.GlobalConfig(ctx)
	if err != nil {
		return nil, err
	}
	merged := current.Apply(patch)
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	patch.UpdatedBy = appctx.ChangedBy(ctx)
	updated, err := s.configs.UpdateGlobalConfig(ctx, patch)
	if err != nil {
		return nil, wrapPersistence("update global pricing config", err)
	}

	logger.Info(ctx, "global pricing config updated",
		"default_markup", updated.DefaultMarkup.String(),
		"min_markup", updated.MinMarkup.String(),
		"max_markup", updated.MaxMarkup.String(),
		"allow_zero", updated.AllowZeroMarkup,
	)
	return updated, nil
}

// Categories lists category markups.
func (s *Service) Categories(ctx context.Context, includeInactive bool) ([]*CategoryMarkup, error) {
	list, err := s.configs.ListCategories(ctx, includeInactive)
	if err != nil {
		return nil, wrapPersistence("list categories", err)
	}
	return list, nil
}

// Category returns one category markup by exact name.
func (s *Service) Category(ctx context.Context, name string) (*CategoryMarkup, error) {
	c, err := s.configs.GetCategoryByName(ctx, name)
	if err != nil {
		return nil, wrapPersistence("load category markup", err)
	}
	return c, nil
}

// CreateCategory registers a new category markup.
func (s *Service) CreateCategory(ctx context.Context, c *CategoryMarkup) error {
	c.DefaultMarkup = types.RoundStored(c.DefaultMarkup)
	if err := c.Validate(); err != nil {
		return err
	}
	if err := s.resolver.Validate(ctx, c.DefaultMarkup); err != nil {
		return err
	}

	_, err := s.configs.GetCategoryByName(ctx, c.CategoryName)
	switch {
	case err == nil:
		return apperror.NewDuplicate("category", "categoryName", c.CategoryName)
	case !apperror.IsNotFound(err):
		return wrapPersistence("load category markup", err)
	}

	c.UpdatedAt = s.now()
	if err := s.configs.CreateCategory(ctx, c); err != nil {
		return wrapPersistence("create category markup", err)
	}
	logger.Info(ctx, "category markup created", "category", c.CategoryName, "markup", c.DefaultMarkup.String())
	return nil
}

// UpdateCategory applies patch to the named category.
func (s *Service) UpdateCategory(ctx context.Context, name string, patch CategoryPatch) (*CategoryMarkup, error) {
	if patch.IsEmpty() {
		return nil, apperror.NewValidation("no fields to update")
	}
	patch.DefaultMarkup = types.RoundStoredPtr(patch.DefaultMarkup)
	if patch.DefaultMarkup != nil {
		if !patch.DefaultMarkup.IsPositive() {
			return nil, apperror.NewValidation("defaultMarkup must be greater than 0").
				WithDetail("field", "defaultMarkup")
		}
		if err := s.resolver.Validate(ctx, *patch.DefaultMarkup); err != nil {
			return nil, err
		}
	}

	updated, err := s.configs.UpdateCategory(ctx, name, patch)
	if err != nil {
		return nil, wrapPersistence("update category markup", err)
	}
	logger.Info(ctx, "category markup updated",
		"category", name,
		"markup", updated.DefaultMarkup.String(),
		"active", updated.Active,
	)
	return updated, nil
}

// DeactivateCategory soft-deletes a category. Entities in it fall back to
// the global default on their next resolution.
func (s *Service) DeactivateCategory(ctx context.Context, name string) (*CategoryMarkup, error) {
	inactive := false
	return s.UpdateCategory(ctx, name, CategoryPatch{Active: &inactive})
}
