package pricing

import (
	"context"
	"time"

	"farmacia/internal/core/apperror"
	appctx "farmacia/internal/core/context"
	"farmacia/internal/core/id"
	"farmacia/internal/core/tx"
	"farmacia/internal/core/types"
)

// mutation describes what changes on one entity before it is re-priced.
type mutation struct {
	explicit    *types.Markup
	cost        *types.Money
	clearCustom bool
	reason      *string
}

// repricer performs a single entity update: load, resolve, recompute, save
// and record history inside one transaction.
type repricer struct {
	resolver *Resolver
	entities EntityStore
	history  HistoryRecorder
	txm      tx.Manager
	now      func() time.Time
}

func (p *repricer) apply(ctx context.Context, ref EntityRef, m mutation) (PriceChange, error) {
	var change PriceChange

	err := p.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		entity, err := p.entities.Get(ctx, ref)
		if err != nil {
			return wrapPersistence("load entity", err)
		}
		entity.Type = ref.Type
		before := *entity

		if m.cost != nil {
			entity.CostPrice = types.RoundStored(*m.cost)
		}
		if m.clearCustom {
			entity.MarkupIsCustom = false
		}

		res, err := p.resolver.Resolve(ctx, entity, m.explicit)
		if err != nil {
			return err
		}
		quote, err := ComputeSalePrice(entity.CostPrice, res.Markup)
		if err != nil {
			return err
		}

		entity.Markup = res.Markup
		entity.SalePrice = quote.SalePrice
		if res.Source == SourceExplicit {
			entity.MarkupIsCustom = true
		}
		entity.UpdatedAt = p.now()

		if err := p.entities.SavePricing(ctx, entity); err != nil {
			return wrapPersistence("save entity pricing", err)
		}

		entry := PriceHistoryEntry{
			ID:           id.New(),
			EntityType:   ref.Type,
			EntityID:     ref.ID,
			OldMarkup:    before.Markup,
			NewMarkup:    entity.Markup,
			OldSalePrice: before.SalePrice,
			NewSalePrice: entity.SalePrice,
			OldCostPrice: before.CostPrice,
			NewCostPrice: entity.CostPrice,
			Source:       res.Source,
			ChangedBy:    appctx.ChangedBy(ctx),
			Timestamp:    entity.UpdatedAt,
			Reason:       m.reason,
		}
		if err := p.history.Record(ctx, entry); err != nil {
			return wrapPersistence("record price history", err)
		}

		change = PriceChange{
			Ref:          ref,
			OldMarkup:    before.Markup,
			NewMarkup:    entity.Markup,
			OldSalePrice: before.SalePrice,
			NewSalePrice: entity.SalePrice,
			CostPrice:    entity.CostPrice,
			Source:       res.Source,
		}
		return nil
	})
	if err != nil {
		if !apperror.IsAppError(err) {
			err = apperror.NewPersistence("reprice transaction", err)
		}
		return PriceChange{}, err
	}
	return change, nil
}
