package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/director74/dz9_saga/payment-service/internal/entity"
)

// PaymentRepository интерфейс репозитория для работы с платежами
type PaymentRepository interface {
	CreateInTx(ctx context.Context, tx *gorm.DB, payment *entity.Payment) error
	SaveInTx(ctx context.Context, tx *gorm.DB, payment *entity.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*entity.Payment, error)
	GetByCompensationKey(ctx context.Context, key string, orderID uuid.UUID) (*entity.Payment, error)
	GetByOrderAndSaga(ctx context.Context, orderID, sagaLogID uuid.UUID) (*entity.Payment, error)
}

// PaymentRepositoryImpl реализация репозитория платежей на GORM
type PaymentRepositoryImpl struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &PaymentRepositoryImpl{
		db: db,
	}
}

// CreateInTx создает платеж в рамках переданной транзакции
func (r *PaymentRepositoryImpl) CreateInTx(ctx context.Context, tx *gorm.DB, payment *entity.Payment) error {
	if err := r.conn(tx).WithContext(ctx).Create(payment).Error; err != nil {
		return fmt.Errorf("ошибка создания платежа %s: %w", payment.ID, err)
	}
	return nil
}

// SaveInTx сохраняет платеж в рамках переданной транзакции
func (r *PaymentRepositoryImpl) SaveInTx(ctx context.Context, tx *gorm.DB, payment *entity.Payment) error {
	result := r.conn(tx).WithContext(ctx).Save(payment)
	if result.Error != nil {
		return fmt.Errorf("ошибка сохранения платежа %s: %w", payment.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetByID возвращает платеж по идентификатору, nil если не найден
func (r *PaymentRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	return r.findOne(ctx, "id = ?", id)
}

// GetByIdempotencyKey возвращает платеж по ключу идемпотентности, nil если не найден
func (r *PaymentRepositoryImpl) GetByIdempotencyKey(ctx context.Context, key string) (*entity.Payment, error) {
	return r.findOne(ctx, "idempotency_key = ?", key)
}

// GetByCompensationKey возвращает платеж по ключу компенсации и заказу, nil если не найден
func (r *PaymentRepositoryImpl) GetByCompensationKey(ctx context.Context, key string, orderID uuid.UUID) (*entity.Payment, error) {
	return r.findOne(ctx, "compensation_key = ? AND order_id = ?", key, orderID)
}

// GetByOrderAndSaga возвращает платеж по заказу и саге, nil если не найден
func (r *PaymentRepositoryImpl) GetByOrderAndSaga(ctx context.Context, orderID, sagaLogID uuid.UUID) (*entity.Payment, error) {
	return r.findOne(ctx, "order_id = ? AND saga_log_id = ?", orderID, sagaLogID)
}

func (r *PaymentRepositoryImpl) findOne(ctx context.Context, query string, args ...interface{}) (*entity.Payment, error) {
	var payment entity.Payment
	result := r.db.WithContext(ctx).First(&payment, append([]interface{}{query}, args...)...)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &payment, nil
}

func (r *PaymentRepositoryImpl) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
