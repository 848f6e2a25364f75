// Package pricing implements the markup engine: sale price calculation,
// markup bounds validation, effective markup resolution and bulk application.
//
// Pure functions (ComputeSalePrice, ValidateMarkup, ResolveSnapshot) take
// every input explicitly. Store-backed components (Resolver, BulkApplier,
// Service) fetch a configuration snapshot per logical operation and thread it
// through the pure layer.
package pricing

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"farmacia/internal/core/apperror"
	"farmacia/internal/core/id"
	"farmacia/internal/core/types"
)

// EntityType names a kind of priced record. Each type lives in its own table.
type EntityType string

const (
	EntityProduct   EntityType = "product"
	EntitySupply    EntityType = "supply"    // insumos
	EntityPackaging EntityType = "packaging" // embalagens
)

// EntityTypes lists every supported EntityType.
func EntityTypes() []EntityType {
	return []EntityType{EntityProduct, EntitySupply, EntityPackaging}
}

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityProduct, EntitySupply, EntityPackaging:
		return true
	}
	return false
}

// ParseEntityType converts s to EntityType.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if !t.Valid() {
		return "", apperror.NewValidation("unknown entity type").
			WithDetail("field", "entityType").
			WithDetail("value", s)
	}
	return t, nil
}

// EntityRef addresses one priced record.
type EntityRef struct {
	Type EntityType `json:"type"`
	ID   id.ID      `json:"id"`
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s/%s", r.Type, r.ID)
}

// MarkupSource tells which precedence rule produced an effective markup.
type MarkupSource string

const (
	SourceExplicit       MarkupSource = "explicit"
	SourceCustom         MarkupSource = "custom"
	SourceCategory       MarkupSource = "category"
	SourceGlobalFallback MarkupSource = "global_fallback"
)

// GlobalPricingConfig is the singleton holding fallback markup and bounds.
type GlobalPricingConfig struct {
	DefaultMarkup     types.Markup `db:"default_markup" json:"defaultMarkup"`
	MinMarkup         types.Markup `db:"min_markup" json:"minMarkup"`
	MaxMarkup         types.Markup `db:"max_markup" json:"maxMarkup"`
	AllowZeroMarkup   bool         `db:"allow_zero_markup" json:"allowZeroMarkup"`
	AutoApplyOnImport bool         `db:"auto_apply_on_import" json:"autoApplyOnImport"`
	UpdatedAt         time.Time    `db:"updated_at" json:"updatedAt"`
	UpdatedBy         string       `db:"updated_by" json:"updatedBy"`
}

// Validate checks the configuration invariants and reports all violations at once.
func (c *GlobalPricingConfig) Validate() error {
	var errs error
	if !c.DefaultMarkup.IsPositive() {
		errs = multierr.Append(errs, errors.New("defaultMarkup must be greater than 0"))
	}
	if c.MinMarkup.IsNegative() {
		errs = multierr.Append(errs, errors.New("minMarkup must not be negative"))
	}
	if c.MinMarkup.GreaterThan(c.MaxMarkup) {
		errs = multierr.Append(errs, errors.New("minMarkup must not exceed maxMarkup"))
	}
	return violationsError("invalid global pricing configuration", errs)
}

// Apply returns a copy of c with every non-nil patch field applied.
func (c GlobalPricingConfig) Apply(p GlobalConfigPatch) GlobalPricingConfig {
	if p.DefaultMarkup != nil {
		c.DefaultMarkup = *p.DefaultMarkup
	}
	if p.MinMarkup != nil {
		c.MinMarkup = *p.MinMarkup
	}
	if p.MaxMarkup != nil {
		c.MaxMarkup = *p.MaxMarkup
	}
	if p.AllowZeroMarkup != nil {
		c.AllowZeroMarkup = *p.AllowZeroMarkup
	}
	if p.AutoApplyOnImport != nil {
		c.AutoApplyOnImport = *p.AutoApplyOnImport
	}
	if p.UpdatedBy != "" {
		c.UpdatedBy = p.UpdatedBy
	}
	return c
}

// GlobalConfigPatch is a partial update. Nil fields are left unchanged.
type GlobalConfigPatch struct {
	DefaultMarkup     *types.Markup
	MinMarkup         *types.Markup
	MaxMarkup         *types.Markup
	AllowZeroMarkup   *bool
	AutoApplyOnImport *bool

	// UpdatedBy is stamped by the service, not supplied by callers.
	UpdatedBy string
}

// IsEmpty reports whether the patch changes no field.
func (p GlobalConfigPatch) IsEmpty() bool {
	return p.DefaultMarkup == nil && p.MinMarkup == nil && p.MaxMarkup == nil &&
		p.AllowZeroMarkup == nil && p.AutoApplyOnImport == nil
}

// rounded brings the markup fields to the stored scale.
func (p GlobalConfigPatch) rounded() GlobalConfigPatch {
	p.DefaultMarkup = types.RoundStoredPtr(p.DefaultMarkup)
	p.MinMarkup = types.RoundStoredPtr(p.MinMarkup)
	p.MaxMarkup = types.RoundStoredPtr(p.MaxMarkup)
	return p
}

// CategoryMarkup is the default markup of a product category.
// Lookup is by exact, case-sensitive CategoryName.
type CategoryMarkup struct {
	CategoryName  string       `db:"category_name" json:"categoryName"`
	DefaultMarkup types.Markup `db:"default_markup" json:"defaultMarkup"`
	Active        bool         `db:"active" json:"active"`
	Description   *string      `db:"description" json:"description,omitempty"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updatedAt"`
}

// Validate checks the category invariants.
func (c *CategoryMarkup) Validate() error {
	var errs error
	if c.CategoryName == "" {
		errs = multierr.Append(errs, errors.New("categoryName is required"))
	}
	if !c.DefaultMarkup.IsPositive() {
		errs = multierr.Append(errs, errors.New("defaultMarkup must be greater than 0"))
	}
	return violationsError("invalid category markup", errs)
}

// Apply returns a copy of c with every non-nil patch field applied.
func (c CategoryMarkup) Apply(p CategoryPatch) CategoryMarkup {
	if p.DefaultMarkup != nil {
		c.DefaultMarkup = *p.DefaultMarkup
	}
	if p.Active != nil {
		c.Active = *p.Active
	}
	if p.Description != nil {
		c.Description = p.Description
	}
	return c
}

// CategoryPatch is a partial category update. Nil fields are left unchanged.
type CategoryPatch struct {
	DefaultMarkup *types.Markup
	Active        *bool
	Description   *string
}

// IsEmpty reports whether the patch changes no field.
func (p CategoryPatch) IsEmpty() bool {
	return p.DefaultMarkup == nil && p.Active == nil && p.Description == nil
}

// PricedEntity is the pricing view of a product, supply or packaging row.
// SalePrice always equals round(CostPrice * Markup, 2) once persisted.
type PricedEntity struct {
	Type           EntityType   `db:"-" json:"type"`
	ID             id.ID        `db:"id" json:"id"`
	Name           string       `db:"name" json:"name"`
	CostPrice      types.Money  `db:"cost_price" json:"costPrice"`
	SalePrice      types.Money  `db:"sale_price" json:"salePrice"`
	Markup         types.Markup `db:"markup" json:"markup"`
	MarkupIsCustom bool         `db:"markup_is_custom" json:"markupIsCustom"`
	CategoryName   *string      `db:"category_name" json:"categoryName,omitempty"`
	Version        int          `db:"version" json:"version"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updatedAt"`
}

// Ref returns the entity address.
func (e *PricedEntity) Ref() EntityRef {
	return EntityRef{Type: e.Type, ID: e.ID}
}

// Category returns the category name or "" when the entity has none.
func (e *PricedEntity) Category() string {
	if e.CategoryName == nil {
		return ""
	}
	return *e.CategoryName
}

// IsConsistent reports whether SalePrice matches CostPrice and Markup.
func (e *PricedEntity) IsConsistent() bool {
	return e.SalePrice.Equal(types.RoundCurrency(e.CostPrice.Mul(e.Markup)))
}

// PriceHistoryEntry is one append-only audit row for a markup/price mutation.
type PriceHistoryEntry struct {
	ID           id.ID        `db:"id" json:"id"`
	EntityType   EntityType   `db:"entity_type" json:"entityType"`
	EntityID     id.ID        `db:"entity_id" json:"entityId"`
	OldMarkup    types.Markup `db:"old_markup" json:"oldMarkup"`
	NewMarkup    types.Markup `db:"new_markup" json:"newMarkup"`
	OldSalePrice types.Money  `db:"old_sale_price" json:"oldSalePrice"`
	NewSalePrice types.Money  `db:"new_sale_price" json:"newSalePrice"`
	OldCostPrice types.Money  `db:"old_cost_price" json:"oldCostPrice"`
	NewCostPrice types.Money  `db:"new_cost_price" json:"newCostPrice"`
	Source       MarkupSource `db:"source" json:"source"`
	ChangedBy    string       `db:"changed_by" json:"changedBy"`
	Timestamp    time.Time    `db:"changed_at" json:"timestamp"`
	Reason       *string      `db:"reason" json:"reason,omitempty"`
}

// PriceChange summarizes one successful re-pricing.
type PriceChange struct {
	Ref          EntityRef    `json:"ref"`
	OldMarkup    types.Markup `json:"oldMarkup"`
	NewMarkup    types.Markup `json:"newMarkup"`
	OldSalePrice types.Money  `json:"oldSalePrice"`
	NewSalePrice types.Money  `json:"newSalePrice"`
	CostPrice    types.Money  `json:"costPrice"`
	Source       MarkupSource `json:"source"`
}

func violationsError(message string, errs error) error {
	if errs == nil {
		return nil
	}
	list := multierr.Errors(errs)
	msgs := make([]string, 0, len(list))
	for _, e := range list {
		msgs = append(msgs, e.Error())
	}
	return apperror.NewValidation(message).
		WithDetail("violations", msgs).
		WithCause(errs)
}
