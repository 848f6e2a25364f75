// Package handlers maps the pricing REST surface onto pricing.Service.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"farmacia/internal/core/apperror"
	"farmacia/internal/infrastructure/http/v1/middleware"
)

// BaseHandler holds the binding and response helpers shared by handlers.
type BaseHandler struct{}

func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

func (h *BaseHandler) bind(c *gin.Context, obj any, b binding.Binding, what string) bool {
	if err := c.ShouldBindWith(obj, b); err != nil {
		h.Error(c, apperror.NewValidation("invalid "+what).WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindJSON reports false after registering a VALIDATION_ERROR.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	return h.bind(c, obj, binding.JSON, "request body")
}

// BindOptionalJSON accepts an empty body and leaves obj untouched.
func (h *BaseHandler) BindOptionalJSON(c *gin.Context, obj any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return h.BindJSON(c, obj)
}

func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	return h.bind(c, obj, binding.Query, "query parameters")
}

// Error hands err to middleware.ErrorHandler and stops the chain.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func (h *BaseHandler) OK(c *gin.Context, data any) {
	h.respond(c, http.StatusOK, data)
}

func (h *BaseHandler) Created(c *gin.Context, data any) {
	h.respond(c, http.StatusCreated, data)
}

// respond also records the body for idempotent replay when a key is active.
func (h *BaseHandler) respond(c *gin.Context, status int, data any) {
	middleware.CompleteIdempotency(c, status, binding.MIMEJSON, data)
	c.JSON(status, data)
}
