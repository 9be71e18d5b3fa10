package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/director74/dz9_saga/pkg/auth"
	"github.com/director74/dz9_saga/pkg/errors"
	"github.com/director74/dz9_saga/pkg/saga"
	"github.com/director74/dz9_saga/shipping-service/internal/entity"
	"github.com/director74/dz9_saga/shipping-service/internal/usecase"
)

type ShippingHandler struct {
	shippingUseCase *usecase.ShippingUseCase
	internalAuth    *auth.InternalAuthMiddleware
}

func NewShippingHandler(shippingUseCase *usecase.ShippingUseCase, internalAuth *auth.InternalAuthMiddleware) *ShippingHandler {
	return &ShippingHandler{
		shippingUseCase: shippingUseCase,
		internalAuth:    internalAuth,
	}
}

func (h *ShippingHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.HealthCheck)

	api := router.Group("/api/v1")
	{
		api.GET("/shipping/:shippingId", h.GetShipping)

		internal := api.Group("")
		internal.Use(h.internalAuth.Required())
		{
			internal.POST("/shipping/deliver", h.DeliverOrder)
			internal.POST("/shipping/cancel", h.CancelShipping)
		}
	}
}

func (h *ShippingHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *ShippingHandler) DeliverOrder(c *gin.Context) {
	idempotencyKey := c.GetHeader(saga.IdempotencyKeyHeader)
	if idempotencyKey == "" {
		c.JSON(http.StatusBadRequest, errors.ErrorResponse("отсутствует заголовок idempotency-key", nil))
		return
	}

	var req entity.DeliverOrderRequest
	if !errors.BindJSON(c, &req) {
		return
	}

	resp, err := h.shippingUseCase.DeliverOrder(c.Request.Context(), idempotencyKey, req)
	if errors.HandleGinError(c, err) {
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ShippingHandler) CancelShipping(c *gin.Context) {
	idempotencyKey := c.GetHeader(saga.IdempotencyKeyHeader)
	if idempotencyKey == "" {
		c.JSON(http.StatusBadRequest, errors.ErrorResponse("отсутствует заголовок idempotency-key", nil))
		return
	}

	var req entity.CancelShippingRequest
	if !errors.BindJSON(c, &req) {
		return
	}

	resp, err := h.shippingUseCase.CancelShipping(c.Request.Context(), idempotencyKey, req)
	if errors.HandleGinError(c, err) {
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ShippingHandler) GetShipping(c *gin.Context) {
	shippingID, err := uuid.Parse(c.Param("shippingId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errors.ErrorResponse("некорректный shippingId", nil))
		return
	}

	shipping, err := h.shippingUseCase.GetShipping(c.Request.Context(), shippingID)
	if errors.HandleGinError(c, err) {
		return
	}

	c.JSON(http.StatusOK, saga.OK(shipping))
}
