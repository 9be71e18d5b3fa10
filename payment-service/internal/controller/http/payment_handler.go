package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/director74/dz9_saga/payment-service/internal/entity"
	"github.com/director74/dz9_saga/payment-service/internal/usecase"
	"github.com/director74/dz9_saga/pkg/auth"
	"github.com/director74/dz9_saga/pkg/errors"
	"github.com/director74/dz9_saga/pkg/saga"
)

type PaymentHandler struct {
	paymentUseCase *usecase.PaymentUseCase
	internalAuth   *auth.InternalAuthMiddleware
}

func NewPaymentHandler(paymentUseCase *usecase.PaymentUseCase, internalAuth *auth.InternalAuthMiddleware) *PaymentHandler {
	return &PaymentHandler{
		paymentUseCase: paymentUseCase,
		internalAuth:   internalAuth,
	}
}

func (h *PaymentHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.HealthCheck)

	api := router.Group("/api/v1")
	{
		api.GET("/payment/:paymentId", h.GetPayment)

		internal := api.Group("")
		internal.Use(h.internalAuth.Required())
		{
			internal.POST("/payment/process", h.ProcessPayment)
			internal.POST("/payment/refund", h.RefundPayment)
		}
	}
}

func (h *PaymentHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *PaymentHandler) ProcessPayment(c *gin.Context) {
	idempotencyKey := c.GetHeader(saga.IdempotencyKeyHeader)
	if idempotencyKey == "" {
		c.JSON(http.StatusBadRequest, errors.ErrorResponse("отсутствует заголовок idempotency-key", nil))
		return
	}

	var req entity.ProcessPaymentRequest
	if !errors.BindJSON(c, &req) {
		return
	}

	resp, err := h.paymentUseCase.ProcessPayment(c.Request.Context(), idempotencyKey, req)
	if errors.HandleGinError(c, err) {
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	idempotencyKey := c.GetHeader(saga.IdempotencyKeyHeader)
	if idempotencyKey == "" {
		c.JSON(http.StatusBadRequest, errors.ErrorResponse("отсутствует заголовок idempotency-key", nil))
		return
	}

	var req entity.RefundPaymentRequest
	if !errors.BindJSON(c, &req) {
		return
	}

	resp, err := h.paymentUseCase.RefundPayment(c.Request.Context(), idempotencyKey, req)
	if errors.HandleGinError(c, err) {
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) GetPayment(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("paymentId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errors.ErrorResponse("некорректный paymentId", nil))
		return
	}

	payment, err := h.paymentUseCase.GetPayment(c.Request.Context(), paymentID)
	if errors.HandleGinError(c, err) {
		return
	}

	c.JSON(http.StatusOK, saga.OK(payment))
}
