package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	orderapp "github.com/medistore/backend/internal/application/order"
	"github.com/medistore/backend/internal/domain/cart"
	"github.com/medistore/backend/internal/domain/order"
	"github.com/medistore/backend/internal/domain/shared"
	"github.com/medistore/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

// IdempotencyKeyHeader carries the client's retry key for a submission
const IdempotencyKeyHeader = "Idempotency-Key"

// OrderHandler handles checkout and order history
type OrderHandler struct {
	BaseHandler
	orders OrderService
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// SubmitOrderRequest is the checkout body. Item and total validation is
// done by the order service so the error shape matches every other caller.
type SubmitOrderRequest struct {
	Items []cart.Item     `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// OrderResponse is one stored order
type OrderResponse struct {
	ID             uuid.UUID   `json:"id"`
	Items          []cart.Item `json:"items"`
	Total          string      `json:"total"`
	IdempotencyKey string      `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

func newOrderResponse(o *order.Order) OrderResponse {
	return OrderResponse{
		ID:             o.ID,
		Items:          o.Items,
		Total:          o.Total.StringFixed(2),
		IdempotencyKey: o.IdempotencyKey,
		CreatedAt:      o.CreatedAt,
	}
}

// Submit godoc
// @Summary      Submit an order
// @Description  Stores the order and returns its id. A repeated Idempotency-Key returns the first order with 200.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string false "Client retry key"
// @Param        request body SubmitOrderRequest true "Items and total"
// @Success      201 {object} dto.Response{data=OrderResponse}
// @Success      200 {object} dto.Response{data=OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders [post]
func (h *OrderHandler) Submit(c *gin.Context) {
	userID, ok := h.UserID(c)
	if !ok {
		return
	}
	var req SubmitOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.orders.Submit(c.Request.Context(), orderapp.SubmitInput{
		UserID:         userID,
		Items:          req.Items,
		Total:          req.Total,
		IdempotencyKey: c.GetHeader(IdempotencyKeyHeader),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Replayed {
		c.Header("Idempotent-Replayed", "true")
		h.Success(c, newOrderResponse(result.Order))
		return
	}
	h.Created(c, newOrderResponse(result.Order))
}

// List godoc
// @Summary      Order history
// @Tags         orders
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Param        order_dir query string false "Sort direction" Enums(asc, desc)
// @Success      200 {object} dto.Response{data=[]OrderResponse,meta=dto.Meta}
// @Security     BearerAuth
// @Router       /orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	userID, ok := h.UserID(c)
	if !ok {
		return
	}
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, "Invalid query parameters")
		return
	}
	page, err := h.orders.List(c.Request.Context(), userID, shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	items := make([]OrderResponse, len(page.Items))
	for i, o := range page.Items {
		items[i] = newOrderResponse(o)
	}
	h.Paged(c, items, dto.Meta{
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	})
}

// Get godoc
// @Summary      One order
// @Tags         orders
// @Produce      json
// @Param        id path string true "Order ID"
// @Success      200 {object} dto.Response{data=OrderResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	userID, ok := h.UserID(c)
	if !ok {
		return
	}
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "Invalid order ID")
		return
	}
	o, err := h.orders.Get(c.Request.Context(), userID, uuid.MustParse(req.ID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, newOrderResponse(o))
}
