package entity

import (
	"time"

	"github.com/google/uuid"
)

// Inventory остаток товара на складе.
// Резервирование проверяет только Quantity - ReservedQuantity >= q и переносит q
// из Quantity в ReservedQuantity, поэтому после крупного резерва ReservedQuantity
// может превысить Quantity (100 единиц, резерв 60: Quantity 40, ReservedQuantity 60).
// ReservedQuantity не опускается ниже 0.
type Inventory struct {
	ID               uuid.UUID `json:"inventoryId" gorm:"type:uuid;primaryKey"`
	ProductID        uuid.UUID `json:"productId" gorm:"type:uuid;not null;uniqueIndex:uniq_inventories_product_id"`
	Quantity         int       `json:"quantity" gorm:"not null"`
	ReservedQuantity int       `json:"reservedQuantity" gorm:"not null;default:0"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// ReservationStatus статус резервации
type ReservationStatus string

const (
	ReservationStatusReserved    ReservationStatus = "RESERVED"
	ReservationStatusFailed      ReservationStatus = "FAILED"
	ReservationStatusCompensated ReservationStatus = "COMPENSATED"
)

// Reservation результат обработки шага UPDATE_INVENTORY для конкретного
// заказа. Ключ идемпотентности входящего запроса живет здесь, а не на строке
// остатка: остаток общий для всех саг.
type Reservation struct {
	ID              uuid.UUID         `json:"reservationId" gorm:"type:uuid;primaryKey"`
	OrderID         uuid.UUID         `json:"orderId" gorm:"type:uuid;not null;index"`
	SagaLogID       uuid.UUID         `json:"sagaLogId" gorm:"type:uuid;not null"`
	ProductID       uuid.UUID         `json:"productId" gorm:"type:uuid;not null"`
	Quantity        int               `json:"quantity" gorm:"not null"`
	Status          ReservationStatus `json:"status" gorm:"type:varchar(20);not null"`
	FailureReason   *string           `json:"-" gorm:"type:text"`
	IdempotencyKey  string            `json:"-" gorm:"type:varchar(100);not null;uniqueIndex:uniq_reservations_idempotency_key"`
	CompensationKey *string           `json:"-" gorm:"type:varchar(100)"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// UpdateInventoryRequest запрос на резервацию товара в рамках саги
type UpdateInventoryRequest struct {
	OrderID   string `json:"orderId" binding:"required,uuid"`
	ProductID string `json:"productId" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	SagaLogID string `json:"sagaLogId" binding:"required,uuid"`
}

// CompensateInventoryRequest запрос на возврат резервации
type CompensateInventoryRequest struct {
	OrderID   string `json:"orderId" binding:"required,uuid"`
	ProductID string `json:"productId" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	SagaLogID string `json:"sagaLogId" binding:"required,uuid"`
}

// InitializeInventoryRequest запрос на установку остатка товара
type InitializeInventoryRequest struct {
	ProductID string `json:"productId" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required,min=0"`
}
