package pricing

import (
	"github.com/shopspring/decimal"

	"farmacia/internal/core/apperror"
	"farmacia/internal/core/types"
)

// PriceQuote is the outcome of applying a markup to a cost price.
type PriceQuote struct {
	SalePrice     types.Money   `json:"salePrice"`
	MarginPercent types.Percent `json:"marginPercent"`
}

// ComputeSalePrice converts (cost, markup) into a sale price and its margin.
// Bounds are not checked here; only the arithmetic domain is.
func ComputeSalePrice(cost types.Money, markup types.Markup) (PriceQuote, error) {
	if cost.IsNegative() {
		return PriceQuote{}, apperror.NewInvalidInput("cost price must not be negative").
			WithDetail("field", "costPrice").
			WithDetail("value", cost.String())
	}
	if !markup.IsPositive() {
		return PriceQuote{}, apperror.NewInvalidInput("markup must be greater than 0").
			WithDetail("field", "markup").
			WithDetail("value", markup.String())
	}

	sale := types.RoundCurrency(cost.Mul(markup))
	margin := decimal.Zero
	if !sale.IsZero() {
		margin = types.RoundCurrency(sale.Sub(cost).Div(sale).Mul(types.Hundred()))
	}

	return PriceQuote{SalePrice: sale, MarginPercent: margin}, nil
}

// ComputeMarkupFromMargin returns the markup yielding marginPercent,
// i.e. 1 / (1 - margin/100), rounded to two places.
func ComputeMarkupFromMargin(marginPercent types.Percent) (types.Markup, error) {
	if marginPercent.GreaterThanOrEqual(types.Hundred()) {
		return decimal.Zero, apperror.NewInvalidInput("margin must be below 100%").
			WithDetail("field", "marginPercent").
			WithDetail("value", marginPercent.String())
	}

	denominator := decimal.NewFromInt(1).Sub(marginPercent.Div(types.Hundred()))
	return types.RoundCurrency(decimal.NewFromInt(1).Div(denominator)), nil
}

// QuoteFromMargin derives the markup for a target margin and prices cost with it.
func QuoteFromMargin(cost types.Money, marginPercent types.Percent) (types.Markup, PriceQuote, error) {
	markup, err := ComputeMarkupFromMargin(marginPercent)
	if err != nil {
		return decimal.Zero, PriceQuote{}, err
	}
	quote, err := ComputeSalePrice(cost, markup)
	if err != nil {
		return decimal.Zero, PriceQuote{}, err
	}
	return markup, quote, nil
}
