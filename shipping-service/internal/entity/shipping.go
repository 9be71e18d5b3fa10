package entity

import (
	"time"

	"github.com/google/uuid"
)

// ShippingStatus статус доставки
type ShippingStatus string

const (
	ShippingStatusShipped   ShippingStatus = "SHIPPED"
	ShippingStatusCancelled ShippingStatus = "CANCELLED"
)

// Shipping хранит информацию о доставке заказа
type Shipping struct {
	ID              uuid.UUID      `json:"shippingId" gorm:"type:uuid;primaryKey"`
	OrderID         uuid.UUID      `json:"orderId" gorm:"type:uuid;not null;index"`
	SagaLogID       uuid.UUID      `json:"sagaLogId" gorm:"type:uuid;not null"`
	CustomerID      uuid.UUID      `json:"customerId" gorm:"type:uuid;not null"`
	Status          ShippingStatus `json:"status" gorm:"type:varchar(20);not null"`
	IdempotencyKey  string         `json:"-" gorm:"type:varchar(100);not null;uniqueIndex:uniq_shippings_idempotency_key"`
	CompensationKey *string        `json:"-" gorm:"type:varchar(100)"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// DeliverOrderRequest запрос на доставку заказа
type DeliverOrderRequest struct {
	CustomerID string `json:"customerId" binding:"required,uuid"`
	OrderID    string `json:"orderId" binding:"required,uuid"`
	SagaLogID  string `json:"sagaLogId" binding:"required,uuid"`
}

// CancelShippingRequest запрос на отмену доставки
type CancelShippingRequest struct {
	OrderID   string `json:"orderId" binding:"required,uuid"`
	SagaLogID string `json:"sagaLogId" binding:"required,uuid"`
}
