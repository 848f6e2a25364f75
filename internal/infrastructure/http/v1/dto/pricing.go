package dto

import (
	"strings"

	"github.com/shopspring/decimal"

	"farmacia/internal/core/apperror"
	"farmacia/internal/core/id"
	"farmacia/internal/domain/pricing"
)

// --- Calculator ---

// QuoteRequest previews the price of a record that may not exist yet.
// Markup wins over MarginPercent when both are sent.
type QuoteRequest struct {
	CostPrice     *decimal.Decimal `json:"costPrice" binding:"required"`
	CategoryName  *string          `json:"categoryName"`
	Markup        *decimal.Decimal `json:"markup"`
	MarginPercent *decimal.Decimal `json:"marginPercent"`
	CustomMarkup  *decimal.Decimal `json:"customMarkup"`
}

func (r QuoteRequest) ToDomain() pricing.QuoteRequest {
	return pricing.QuoteRequest{
		CostPrice:     *r.CostPrice,
		CategoryName:  nonEmpty(r.CategoryName),
		Markup:        r.Markup,
		MarginPercent: r.MarginPercent,
		CustomMarkup:  r.CustomMarkup,
	}
}

// QuoteResponse is the resolved markup and resulting price.
type QuoteResponse struct {
	Markup        decimal.Decimal      `json:"markup"`
	Source        pricing.MarkupSource `json:"source"`
	Category      *string              `json:"category,omitempty"`
	SalePrice     decimal.Decimal      `json:"salePrice"`
	MarginPercent decimal.Decimal      `json:"marginPercent"`
}

func FromQuote(q pricing.QuoteResult) QuoteResponse {
	return QuoteResponse{
		Markup:        q.Markup,
		Source:        q.Source,
		Category:      q.Category,
		SalePrice:     q.SalePrice,
		MarginPercent: q.MarginPercent,
	}
}

type MarkupFromMarginRequest struct {
	MarginPercent *decimal.Decimal `json:"marginPercent" binding:"required"`
}

type MarkupResponse struct {
	Markup decimal.Decimal `json:"markup"`
}

type ValidateMarkupRequest struct {
	Markup *decimal.Decimal `json:"markup" binding:"required"`
}

// ValidateMarkupResponse reports a bound violation as data so forms can show
// it next to the field.
type ValidateMarkupResponse struct {
	Valid     bool           `json:"valid"`
	ErrorKind string         `json:"errorKind,omitempty"`
	Message   string         `json:"message,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// --- Global config ---

type UpdateGlobalConfigRequest struct {
	DefaultMarkup     *decimal.Decimal `json:"defaultMarkup"`
	MinMarkup         *decimal.Decimal `json:"minMarkup"`
	MaxMarkup         *decimal.Decimal `json:"maxMarkup"`
	AllowZeroMarkup   *bool            `json:"allowZeroMarkup"`
	AutoApplyOnImport *bool            `json:"autoApplyOnImport"`
}

func (r UpdateGlobalConfigRequest) ToPatch() pricing.GlobalConfigPatch {
	return pricing.GlobalConfigPatch{
		DefaultMarkup:     r.DefaultMarkup,
		MinMarkup:         r.MinMarkup,
		MaxMarkup:         r.MaxMarkup,
		AllowZeroMarkup:   r.AllowZeroMarkup,
		AutoApplyOnImport: r.AutoApplyOnImport,
	}
}

// --- Categories ---

type CategoryListRequest struct {
	IncludeInactive bool `form:"includeInactive"`
}

type CreateCategoryRequest struct {
	CategoryName  string           `json:"categoryName" binding:"required,max=100"`
	DefaultMarkup *decimal.Decimal `json:"defaultMarkup" binding:"required"`
	Active        *bool            `json:"active"`
	Description   *string          `json:"description"`
}

// ToEntity builds the category. Categories are active unless stated otherwise.
func (r CreateCategoryRequest) ToEntity() *pricing.CategoryMarkup {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return &pricing.CategoryMarkup{
		CategoryName:  r.CategoryName,
		DefaultMarkup: *r.DefaultMarkup,
		Active:        active,
		Description:   r.Description,
	}
}

type UpdateCategoryRequest struct {
	DefaultMarkup *decimal.Decimal `json:"defaultMarkup"`
	Active        *bool            `json:"active"`
	Description   *string          `json:"description"`
}

func (r UpdateCategoryRequest) ToPatch() pricing.CategoryPatch {
	return pricing.CategoryPatch{
		DefaultMarkup: r.DefaultMarkup,
		Active:        r.Active,
		Description:   r.Description,
	}
}

// --- Entities ---

type ResolveRequest struct {
	Markup *decimal.Decimal `json:"markup"`
}

type RepriceRequest struct {
	Markup *decimal.Decimal `json:"markup"`
	Reason *string          `json:"reason" binding:"omitempty,max=500"`
}

type UpdateCostRequest struct {
	CostPrice *decimal.Decimal `json:"costPrice" binding:"required"`
	Reason    *string          `json:"reason" binding:"omitempty,max=500"`
}

type ResetMarkupRequest struct {
	Reason *string `json:"reason" binding:"omitempty,max=500"`
}

// --- Bulk ---

type EntityRefRequest struct {
	Type string `json:"type" binding:"required"`
	ID   string `json:"id" binding:"required"`
}

// BulkRequest picks targets by explicit refs, or by entityType narrowed by
// categoryName and a CEL selector.
type BulkRequest struct {
	Refs         []EntityRefRequest `json:"refs" binding:"omitempty,max=10000,dive"`
	EntityType   string             `json:"entityType"`
	CategoryName *string            `json:"categoryName"`
	Selector     string             `json:"selector" binding:"max=2000"`
	Markup       *decimal.Decimal   `json:"markup" binding:"required"`
	Reason       *string            `json:"reason" binding:"omitempty,max=500"`
}

func (r BulkRequest) ToDomain() (pricing.BulkRequest, error) {
	req := pricing.BulkRequest{
		CategoryName: nonEmpty(r.CategoryName),
		Selector:     strings.TrimSpace(r.Selector),
		Markup:       *r.Markup,
		Reason:       r.Reason,
	}
	if r.EntityType != "" {
		t, err := pricing.ParseEntityType(r.EntityType)
		if err != nil {
			return pricing.BulkRequest{}, err
		}
		req.EntityType = t
	}
	if len(r.Refs) > 0 {
		req.Refs = make([]pricing.EntityRef, 0, len(r.Refs))
		for i, ref := range r.Refs {
			parsed, err := ParseEntityRef(ref.Type, ref.ID)
			if err != nil {
				if appErr, ok := apperror.AsAppError(err); ok {
					return pricing.BulkRequest{}, appErr.WithDetail("index", i)
				}
				return pricing.BulkRequest{}, err
			}
			req.Refs = append(req.Refs, parsed)
		}
	}
	return req, nil
}

// ParseEntityRef parses the :type and :id path segments.
func ParseEntityRef(entityType, rawID string) (pricing.EntityRef, error) {
	t, err := pricing.ParseEntityType(entityType)
	if err != nil {
		return pricing.EntityRef{}, err
	}
	entityID, err := id.Parse(rawID)
	if err != nil {
		return pricing.EntityRef{}, apperror.NewValidation("invalid id format").WithDetail("value", rawID)
	}
	return pricing.EntityRef{Type: t, ID: entityID}, nil
}

// BulkRunResponse summarizes a run; per-entity results are in Result.
type BulkRunResponse struct {
	*pricing.BulkRun
	Total     int `json:"total"`
	Succeeded int `json:"succeededCount"`
	Failed    int `json:"failedCount"`
}

func FromBulkRun(run *pricing.BulkRun) BulkRunResponse {
	return BulkRunResponse{
		BulkRun:   run,
		Total:     run.Result.Total(),
		Succeeded: len(run.Result.Succeeded),
		Failed:    len(run.Result.Failed),
	}
}

// nonEmpty maps "" to nil. Category names are exact keys and are not trimmed.
func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
