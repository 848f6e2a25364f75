package handlers

import (
	"github.com/gin-gonic/gin"

	"farmacia/internal/core/apperror"
	"farmacia/internal/domain/pricing"
	"farmacia/internal/infrastructure/http/v1/dto"
)

// PricingHandler serves the pricing API.
type PricingHandler struct {
	*BaseHandler
	service *pricing.Service
}

// NewPricingHandler creates a pricing handler.
func NewPricingHandler(base *BaseHandler, service *pricing.Service) *PricingHandler {
	return &PricingHandler{BaseHandler: base, service: service}
}

// --- Calculator ---

// Quote handles POST /pricing/quote.
func (h *PricingHandler) Quote(c *gin.Context) {
	var req dto.QuoteRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Quote(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromQuote(result))
}

// MarkupFromMargin handles POST /pricing/markup-from-margin.
func (h *PricingHandler) MarkupFromMargin(c *gin.Context) {
	var req dto.MarkupFromMarginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	markup, err := pricing.ComputeMarkupFromMargin(*req.MarginPercent)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.MarkupResponse{Markup: markup})
}

// ValidateMarkup handles POST /pricing/validate. Bound violations are
// answered with 200 and valid=false; a missing config is an error.
func (h *PricingHandler) ValidateMarkup(c *gin.Context) {
	var req dto.ValidateMarkupRequest
	if !h.BindJSON(c, &req) {
		return
	}

	err := h.service.CheckMarkup(c.Request.Context(), *req.Markup)
	if err == nil {
		h.OK(c, dto.ValidateMarkupResponse{Valid: true})
		return
	}

	appErr, ok := apperror.AsAppError(err)
	if !ok || !apperror.IsMarkupViolation(err) {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ValidateMarkupResponse{
		ErrorKind: appErr.Code,
		Message:   appErr.Message,
		Details:   appErr.Details,
	})
}

// --- Global config ---

// GetConfig handles GET /pricing/config.
func (h *PricingHandler) GetConfig(c *gin.Context) {
	cfg, err := h.service.GlobalConfig(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cfg)
}

// UpdateConfig handles PATCH /pricing/config.
func (h *PricingHandler) UpdateConfig(c *gin.Context) {
	var req dto.UpdateGlobalConfigRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cfg, err := h.service.UpdateGlobalConfig(c.Request.Context(), req.ToPatch())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cfg)
}

// --- Categories ---

// ListCategories handles GET /pricing/categories.
func (h *PricingHandler) ListCategories(c *gin.Context) {
	var req dto.CategoryListRequest
	if !h.BindQuery(c, &req) {
		return
	}

	items, err := h.service.Categories(c.Request.Context(), req.IncludeInactive)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(items))
}

// GetCategory handles GET /pricing/categories/:name.
func (h *PricingHandler) GetCategory(c *gin.Context) {
	cat, err := h.service.Category(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cat)
}

// CreateCategory handles POST /pricing/categories.
func (h *PricingHandler) CreateCategory(c *gin.Context) {
	var req dto.CreateCategoryRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cat := req.ToEntity()
	if err := h.service.CreateCategory(c.Request.Context(), cat); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, cat)
}

// UpdateCategory handles PATCH /pricing/categories/:name.
func (h *PricingHandler) UpdateCategory(c *gin.Context) {
	var req dto.UpdateCategoryRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cat, err := h.service.UpdateCategory(c.Request.Context(), c.Param("name"), req.ToPatch())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cat)
}

// DeactivateCategory handles DELETE /pricing/categories/:name.
// Categories are never removed, only deactivated.
func (h *PricingHandler) DeactivateCategory(c *gin.Context) {
	cat, err := h.service.DeactivateCategory(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cat)
}

// --- Entities ---

func (h *PricingHandler) entityRef(c *gin.Context) (pricing.EntityRef, bool) {
	ref, err := dto.ParseEntityRef(c.Param("type"), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return pricing.EntityRef{}, false
	}
	return ref, true
}

// Resolve handles POST /pricing/entities/:type/:id/resolve.
// Nothing is persisted.
func (h *PricingHandler) Resolve(c *gin.Context) {
	ref, ok := h.entityRef(c)
	if !ok {
		return
	}
	var req dto.ResolveRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}

	result, err := h.service.Preview(c.Request.Context(), ref, req.Markup)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromQuote(result))
}

// Reprice handles POST /pricing/entities/:type/:id/reprice.
func (h *PricingHandler) Reprice(c *gin.Context) {
	ref, ok := h.entityRef(c)
	if !ok {
		return
	}
	var req dto.RepriceRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}

	change, err := h.service.Reprice(c.Request.Context(), ref, req.Markup, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, change)
}

// UpdateCost handles PUT /pricing/entities/:type/:id/cost.
func (h *PricingHandler) UpdateCost(c *gin.Context) {
	ref, ok := h.entityRef(c)
	if !ok {
		return
	}
	var req dto.UpdateCostRequest
	if !h.BindJSON(c, &req) {
		return
	}

	change, err := h.service.UpdateCost(c.Request.Context(), ref, *req.CostPrice, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, change)
}

// ResetMarkup handles POST /pricing/entities/:type/:id/reset.
func (h *PricingHandler) ResetMarkup(c *gin.Context) {
	ref, ok := h.entityRef(c)
	if !ok {
		return
	}
	var req dto.ResetMarkupRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}

	change, err := h.service.ResetMarkup(c.Request.Context(), ref, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, change)
}

// History handles GET /pricing/entities/:type/:id/history.
func (h *PricingHandler) History(c *gin.Context) {
	ref, ok := h.entityRef(c)
	if !ok {
		return
	}
	var q dto.LimitRequest
	if !h.BindQuery(c, &q) {
		return
	}

	entries, err := h.service.History(c.Request.Context(), ref, q.Limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(entries))
}

// --- Bulk ---

// ApplyBulk handles POST /pricing/bulk. Per-entity failures are part of a
// 200 response; only request-level errors fail the call.
func (h *PricingHandler) ApplyBulk(c *gin.Context) {
	var req dto.BulkRequest
	if !h.BindJSON(c, &req) {
		return
	}
	bulkReq, err := req.ToDomain()
	if err != nil {
		h.Error(c, err)
		return
	}

	run, err := h.service.ApplyBulk(c.Request.Context(), bulkReq)
	if err != nil {
		if run != nil {
			err = apperror.NewCancelled(err).WithDetail("run_id", run.ID.String())
		}
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromBulkRun(run))
}

// BulkRuns handles GET /pricing/bulk/runs.
func (h *PricingHandler) BulkRuns(c *gin.Context) {
	var q dto.LimitRequest
	if !h.BindQuery(c, &q) {
		return
	}

	runs, err := h.service.BulkRuns(c.Request.Context(), q.Limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(runs))
}

// RegisterRoutes mounts the pricing routes on rg.
func (h *PricingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/quote", h.Quote)
	rg.POST("/markup-from-margin", h.MarkupFromMargin)
	rg.POST("/validate", h.ValidateMarkup)

	rg.GET("/config", h.GetConfig)
	rg.PATCH("/config", h.UpdateConfig)

	categories := rg.Group("/categories")
	categories.GET("", h.ListCategories)
	categories.POST("", h.CreateCategory)
	categories.GET("/:name", h.GetCategory)
	categories.PATCH("/:name", h.UpdateCategory)
	categories.DELETE("/:name", h.DeactivateCategory)

	entity := rg.Group("/entities/:type/:id")
	entity.POST("/resolve", h.Resolve)
	entity.POST("/reprice", h.Reprice)
	entity.PUT("/cost", h.UpdateCost)
	entity.POST("/reset", h.ResetMarkup)
	entity.GET("/history", h.History)

	rg.POST("/bulk", h.ApplyBulk)
	rg.GET("/bulk/runs", h.BulkRuns)
}
