package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/director74/dz9_saga/order-service/internal/entity"
	"github.com/director74/dz9_saga/order-service/internal/usecase"
	"github.com/director74/dz9_saga/pkg/auth"
	"github.com/director74/dz9_saga/pkg/errors"
	"github.com/director74/dz9_saga/pkg/saga"
)

type OrderHandler struct {
	orderUseCase *usecase.OrderUseCase
	internalAuth *auth.InternalAuthMiddleware
}

func NewOrderHandler(orderUseCase *usecase.OrderUseCase, internalAuth *auth.InternalAuthMiddleware) *OrderHandler {
	return &OrderHandler{
		orderUseCase: orderUseCase,
		internalAuth: internalAuth,
	}
}

func (h *OrderHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.HealthCheck)

	api := router.Group("/api/v1")
	{
		api.POST("/order/start", h.StartOrder)
		api.GET("/order/:orderId", h.GetOrder)
		api.GET("/order/:orderId/saga", h.GetSagaStatus)

		// Endpoint обратной цепочки доступен только сервисам саги
		internal := api.Group("")
		internal.Use(h.internalAuth.Required())
		{
			internal.POST("/order/compensate", h.CompensateOrder)
		}
	}
}

func (h *OrderHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *OrderHandler) StartOrder(c *gin.Context) {
	keyStr := c.GetHeader(saga.IdempotencyKeyHeader)
	if keyStr == "" {
		c.JSON(http.StatusBadRequest, errors.ErrorResponse("отсутствует заголовок idempotency-key", nil))
		return
	}
	key, err := uuid.Parse(keyStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, errors.ErrorResponse("заголовок idempotency-key должен быть UUID", nil))
		return
	}

	var req entity.StartOrderRequest
	if !errors.BindJSON(c, &req) {
		return
	}

	resp, err := h.orderUseCase.StartOrder(c.Request.Context(), key, req)
	if errors.HandleGinError(c, err) {
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *OrderHandler) CompensateOrder(c *gin.Context) {
	var req entity.CompensateOrderRequest
	if !errors.BindJSON(c, &req) {
		return
	}

	compensationKey := c.GetHeader(saga.IdempotencyKeyHeader)

	resp, err := h.orderUseCase.CompensateOrder(c.Request.Context(), compensationKey, req)
	if errors.HandleGinError(c, err) {
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errors.ErrorResponse("некорректный orderId", nil))
		return
	}

	order, err := h.orderUseCase.GetOrder(c.Request.Context(), orderID)
	if errors.HandleGinError(c, err) {
		return
	}

	c.JSON(http.StatusOK, saga.OK(order))
}

func (h *OrderHandler) GetSagaStatus(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errors.ErrorResponse("некорректный orderId", nil))
		return
	}

	sagaLog, err := h.orderUseCase.GetSagaStatus(c.Request.Context(), orderID)
	if errors.HandleGinError(c, err) {
		return
	}

	c.JSON(http.StatusOK, saga.OK(sagaLog))
}
