package transport

import (
	"errors"
	"net/http"
	"strconv"

	"ticket-office/internal/entity"
	"ticket-office/internal/service"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	orderService service.OrderService
}

func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// SuccessResponse wraps a successful API reply.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

// ErrorResponse wraps an API error reply.
type ErrorResponse struct {
	Success bool                `json:"success"`
	Error   string              `json:"error"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// CancelOrderRequest carries the customer's cancellation reason.
type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// respondError maps the error taxonomy to HTTP statuses.
func respondError(c *gin.Context, err error) {
	var verr *entity.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Error:   "validation failed",
			Fields:  verr.Fields,
		})
		return
	}

	var payErr *entity.PaymentError
	if errors.As(err, &payErr) {
		c.JSON(http.StatusPaymentRequired, ErrorResponse{Success: false, Error: payErr.Error()})
		return
	}

	var refundErr *entity.RefundError
	if errors.As(err, &refundErr) {
		c.JSON(http.StatusBadGateway, ErrorResponse{Success: false, Error: refundErr.Error()})
		return
	}

	var enqErr *entity.EnqueueError
	if errors.As(err, &enqErr) {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Success: false, Error: enqErr.Error()})
		return
	}

	switch {
	case errors.Is(err, entity.ErrEventNotFound), errors.Is(err, entity.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Success: false, Error: err.Error()})
	case errors.Is(err, entity.ErrInsufficientTickets),
		errors.Is(err, entity.ErrEventNotAvailable),
		errors.Is(err, entity.ErrEventEnded),
		errors.Is(err, entity.ErrEventHasOrders),
		errors.Is(err, entity.ErrInvalidOrderStatus),
		errors.Is(err, entity.ErrInvalidEventStatus):
		c.JSON(http.StatusConflict, ErrorResponse{Success: false, Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Success: false, Error: err.Error()})
	}
}

func parseID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid " + param})
		return 0, false
	}
	return id, true
}

// PurchaseTickets handles POST /api/v1/orders. The idempotency key may come
// from the Idempotency-Key header or the request body; the header wins.
func (h *OrderHandler) PurchaseTickets(c *gin.Context) {
	var req service.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	if key := c.GetHeader("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	order, err := h.orderService.PurchaseTickets(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Success: true,
		Message: "Order confirmed",
		Data:    order,
	})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	order, err := h.orderService.GetOrderWithEvent(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Order retrieved",
		Data:    order,
	})
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}
	if req.Reason == "" {
		req.Reason = "cancelled by customer"
	}

	order, err := h.orderService.CancelOrder(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Order cancelled",
		Data:    order,
	})
}

// GetOrders handles GET /api/v1/orders. With a customer_email query it lists
// that customer's orders; otherwise the most recent orders.
func (h *OrderHandler) GetOrders(c *gin.Context) {
	ctx := c.Request.Context()

	if email := c.Query("customer_email"); email != "" {
		orders, err := h.orderService.GetCustomerOrders(ctx, email)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, SuccessResponse{
			Success: true,
			Message: "Orders retrieved",
			Data:    orders,
			Meta:    map[string]interface{}{"total": len(orders)},
		})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	orders, err := h.orderService.GetRecentOrders(ctx, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Orders retrieved",
		Data:    orders,
		Meta:    map[string]interface{}{"total": len(orders), "limit": limit},
	})
}

// MarkRefunded handles POST /api/v1/admin/orders/:id/refund for refunds
// settled outside the cancellation flow.
func (h *OrderHandler) MarkRefunded(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	order, err := h.orderService.MarkRefunded(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Order marked refunded",
		Data:    order,
	})
}
