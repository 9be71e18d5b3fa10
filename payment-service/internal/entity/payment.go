package entity

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus статус платежа
type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

// Payment хранит результат обработки платежа в рамках саги
type Payment struct {
	ID              uuid.UUID     `json:"paymentId" gorm:"type:uuid;primaryKey"`
	OrderID         uuid.UUID     `json:"orderId" gorm:"type:uuid;not null;index"`
	SagaLogID       uuid.UUID     `json:"sagaLogId" gorm:"type:uuid;not null"`
	CustomerID      uuid.UUID     `json:"customerId" gorm:"type:uuid;not null"`
	Amount          float64       `json:"amount" gorm:"not null"`
	Status          PaymentStatus `json:"status" gorm:"type:varchar(20);not null"`
	TransactionID   string        `json:"transactionId" gorm:"type:varchar(50)"`
	FailureReason   *string       `json:"-" gorm:"type:text"`
	IdempotencyKey  string        `json:"-" gorm:"type:varchar(100);not null;uniqueIndex:uniq_payments_idempotency_key"`
	CompensationKey *string       `json:"-" gorm:"type:varchar(100)"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// ProcessPaymentRequest запрос на обработку платежа
type ProcessPaymentRequest struct {
	Amount     float64 `json:"amount" binding:"omitempty,min=0"`
	CustomerID string  `json:"customerId" binding:"required,uuid"`
	OrderID    string  `json:"orderId" binding:"required,uuid"`
	SagaLogID  string  `json:"sagaLogId" binding:"required,uuid"`
}

// RefundPaymentRequest запрос на возврат платежа
type RefundPaymentRequest struct {
	OrderID   string `json:"orderId" binding:"required,uuid"`
	SagaLogID string `json:"sagaLogId" binding:"required,uuid"`
}
