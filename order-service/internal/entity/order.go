package entity

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus статус заказа
type OrderStatus string

const (
	OrderStatusConfirmed   OrderStatus = "CONFIRMED"
	OrderStatusCompensated OrderStatus = "COMPENSATED"
)

// Order хранит информацию о заказе клиента. Строка создается подтвержденной
// при старте саги и переводится в COMPENSATED при откате.
type Order struct {
	ID              uuid.UUID   `json:"orderId" gorm:"type:uuid;primaryKey"`
	CustomerID      uuid.UUID   `json:"customerId" gorm:"type:uuid;not null;index"`
	ProductID       uuid.UUID   `json:"productId" gorm:"type:uuid;not null"`
	Quantity        int         `json:"quantity" gorm:"not null"`
	TotalPrice      float64     `json:"totalPrice" gorm:"not null"`
	Status          OrderStatus `json:"status" gorm:"type:varchar(20);not null"`
	IdempotencyKey  uuid.UUID   `json:"-" gorm:"type:uuid;not null;uniqueIndex:uniq_orders_idempotency_key"`
	CompensationKey *string     `json:"-" gorm:"type:varchar(100)"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// StartOrderRequest запрос на старт саги заказа
type StartOrderRequest struct {
	CustomerID string  `json:"customerId" binding:"required,uuid"`
	ProductID  string  `json:"productId" binding:"required,uuid"`
	Quantity   int     `json:"quantity" binding:"required,min=1"`
	TotalPrice float64 `json:"totalPrice" binding:"omitempty,min=0"`
}

// StartOrderResponse данные успешного старта саги
type StartOrderResponse struct {
	OrderID   string `json:"orderId"`
	SagaLogID string `json:"sagaLogId"`
	Status    string `json:"status"`
}

// CompensateOrderRequest запрос на компенсацию заказа
type CompensateOrderRequest struct {
	OrderID string `json:"orderId" binding:"required,uuid"`
}
