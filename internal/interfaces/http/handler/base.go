// Package handler implements the storefront HTTP handlers.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/medistore/backend/internal/domain/shared"
	"github.com/medistore/backend/internal/infrastructure/logger"
	"github.com/medistore/backend/internal/interfaces/http/dto"
	"github.com/medistore/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// BaseHandler is embedded by every handler for envelope and error helpers
type BaseHandler struct{}

func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Paged answers one page of a listing
func (h *BaseHandler) Paged(c *gin.Context, data any, meta dto.Meta) {
	c.JSON(http.StatusOK, dto.NewPagedResponse(data, meta))
}

// Error aborts with an error envelope
func (h *BaseHandler) Error(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(code, message, c.GetString(middleware.RequestIDKey)))
}

func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// BindJSON decodes the body into req; on failure it has already answered 400
func (h *BaseHandler) BindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err != nil {
		middleware.HandleValidationError(c, err)
	}
	return err == nil
}

// UserID returns the authenticated user; on failure it has already answered 401
func (h *BaseHandler) UserID(c *gin.Context) (uuid.UUID, bool) {
	if id, err := uuid.Parse(middleware.GetUserID(c)); err == nil {
		return id, true
	}
	h.Unauthorized(c, "Authentication required")
	return uuid.Nil, false
}

// HandleError answers with the status of err's domain code. Errors without
// one are logged and hidden behind a generic 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	log := logger.GetGinLogger(c)

	var de *shared.DomainError
	if !errors.As(err, &de) {
		log.Error("Unexpected error", zap.Error(err))
		h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
		return
	}

	code := dto.FromDomainCode(de.Code)
	status := dto.GetHTTPStatus(code)
	switch {
	case code == dto.ErrCodeUnavailable:
		log.Warn("Dependency unavailable", zap.Error(err))
		c.Header("Retry-After", "1")
	case status >= http.StatusInternalServerError:
		log.Error("Request failed", zap.Error(err))
	}
	h.Error(c, status, code, de.Message)
}
