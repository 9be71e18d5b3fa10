package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/director74/dz9_saga/inventory-service/internal/entity"
	"github.com/director74/dz9_saga/inventory-service/internal/usecase"
	"github.com/director74/dz9_saga/pkg/auth"
	"github.com/director74/dz9_saga/pkg/errors"
	"github.com/director74/dz9_saga/pkg/saga"
)

type InventoryHandler struct {
	inventoryUseCase *usecase.InventoryUseCase
	internalAuth     *auth.InternalAuthMiddleware
}

func NewInventoryHandler(inventoryUseCase *usecase.InventoryUseCase, internalAuth *auth.InternalAuthMiddleware) *InventoryHandler {
	return &InventoryHandler{
		inventoryUseCase: inventoryUseCase,
		internalAuth:     internalAuth,
	}
}

func (h *InventoryHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.HealthCheck)

	api := router.Group("/api/v1")
	{
		api.POST("/inventory/initialize", h.InitializeInventory)
		api.GET("/inventory/:productId", h.GetInventory)

		internal := api.Group("")
		internal.Use(h.internalAuth.Required())
		{
			internal.POST("/inventory/update", h.UpdateInventory)
			internal.POST("/inventory/compensate", h.CompensateInventory)
		}
	}
}

func (h *InventoryHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *InventoryHandler) UpdateInventory(c *gin.Context) {
	idempotencyKey := c.GetHeader(saga.IdempotencyKeyHeader)
	if idempotencyKey == "" {
		c.JSON(http.StatusBadRequest, errors.ErrorResponse("отсутствует заголовок idempotency-key", nil))
		return
	}

	var req entity.UpdateInventoryRequest
	if !errors.BindJSON(c, &req) {
		return
	}

	resp, err := h.inventoryUseCase.UpdateInventory(c.Request.Context(), idempotencyKey, req)
	if errors.HandleGinError(c, err) {
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *InventoryHandler) CompensateInventory(c *gin.Context) {
	idempotencyKey := c.GetHeader(saga.IdempotencyKeyHeader)
	if idempotencyKey == "" {
		c.JSON(http.StatusBadRequest, errors.ErrorResponse("отсутствует заголовок idempotency-key", nil))
		return
	}

	var req entity.CompensateInventoryRequest
	if !errors.BindJSON(c, &req) {
		return
	}

	resp, err := h.inventoryUseCase.CompensateInventory(c.Request.Context(), idempotencyKey, req)
	if errors.HandleGinError(c, err) {
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *InventoryHandler) InitializeInventory(c *gin.Context) {
	var req entity.InitializeInventoryRequest
	if !errors.BindJSON(c, &req) {
		return
	}

	inv, err := h.inventoryUseCase.InitializeInventory(c.Request.Context(), req)
	if errors.HandleGinError(c, err) {
		return
	}

	c.JSON(http.StatusOK, saga.OK(inv))
}

func (h *InventoryHandler) GetInventory(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("productId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errors.ErrorResponse("некорректный productId", nil))
		return
	}

	inv, err := h.inventoryUseCase.GetInventory(c.Request.Context(), productID)
	if errors.HandleGinError(c, err) {
		return
	}

	c.JSON(http.StatusOK, saga.OK(inv))
}
