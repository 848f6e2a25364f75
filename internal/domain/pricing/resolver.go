package pricing

import (
	"context"

	"farmacia/internal/core/apperror"
	"farmacia/internal/core/types"
)

// Snapshot is the configuration state one resolution works against.
// Category is nil when the entity has no category, the category does not
// exist, or precedence never reaches the category step.
type Snapshot struct {
	Global   *GlobalPricingConfig
	Category *CategoryMarkup
}

// Resolution is the effective markup and the rule that produced it.
type Resolution struct {
	Markup   types.Markup `json:"markup"`
	Source   MarkupSource `json:"source"`
	Category *string      `json:"category,omitempty"`
}

// ResolveSnapshot applies precedence explicit > custom > category > global
// and validates the winner against snap.Global. Out-of-bounds values are
// rejected, never clamped. entity may be nil for a preview with no record.
func ResolveSnapshot(snap Snapshot, entity *PricedEntity, explicit *types.Markup) (Resolution, error) {
	var res Resolution

	switch {
	case explicit != nil:
		res = Resolution{Markup: *explicit, Source: SourceExplicit}

	case entity != nil && entity.MarkupIsCustom:
		res = Resolution{Markup: entity.Markup, Source: SourceCustom}

	case categoryApplies(snap.Category, entity):
		name := snap.Category.CategoryName
		res = Resolution{Markup: snap.Category.DefaultMarkup, Source: SourceCategory, Category: &name}

	default:
		if snap.Global == nil {
			return Resolution{}, apperror.NewConfigNotFound()
		}
		res = Resolution{Markup: snap.Global.DefaultMarkup, Source: SourceGlobalFallback}
	}
	res.Markup = types.RoundStored(res.Markup)

	if err := ValidateMarkup(res.Markup, snap.Global); err != nil {
		return Resolution{}, err
	}
	return res, nil
}

func categoryApplies(cat *CategoryMarkup, entity *PricedEntity) bool {
	if cat == nil || !cat.Active || entity == nil {
		return false
	}
	return entity.CategoryName != nil && *entity.CategoryName == cat.CategoryName
}

// Resolver resolves effective markups against the stored configuration.
type Resolver struct {
	store ConfigStore
}

// NewResolver creates a Resolver backed by store.
func NewResolver(store ConfigStore) *Resolver {
	return &Resolver{store: store}
}

// Snapshot loads the configuration needed to resolve entity. The category is
// fetched only when precedence can reach it.
func (r *Resolver) Snapshot(ctx context.Context, entity *PricedEntity, explicit *types.Markup) (Snapshot, error) {
	global, err := r.store.GetGlobalConfig(ctx)
	if err != nil {
		if apperror.IsNotFound(err) {
			return Snapshot{}, apperror.NewConfigNotFound().WithCause(err)
		}
		return Snapshot{}, wrapPersistence("load global pricing config", err)
	}

	snap := Snapshot{Global: global}
	if explicit != nil || entity == nil || entity.MarkupIsCustom || entity.Category() == "" {
		return snap, nil
	}

	category, err := r.store.GetCategoryByName(ctx, entity.Category())
	switch {
	case err == nil:
		snap.Category = category
	case apperror.IsNotFound(err):
		// unknown category falls through to the global default
	default:
		return Snapshot{}, wrapPersistence("load category markup", err)
	}
	return snap, nil
}

// Resolve returns the effective markup for entity using a fresh snapshot.
func (r *Resolver) Resolve(ctx context.Context, entity *PricedEntity, explicit *types.Markup) (Resolution, error) {
	snap, err := r.Snapshot(ctx, entity, explicit)
	if err != nil {
		return Resolution{}, err
	}
	return ResolveSnapshot(snap, entity, explicit)
}

// Validate checks markup against the stored global configuration.
func (r *Resolver) Validate(ctx context.Context, markup types.Markup) error {
	snap, err := r.Snapshot(ctx, nil, &markup)
	if err != nil {
		return err
	}
	return ValidateMarkup(markup, snap.Global)
}

// wrapPersistence tags collaborator failures. AppErrors raised by a store
// (not found, concurrent modification) keep their code.
func wrapPersistence(op string, err error) error {
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewPersistence(op, err)
}
