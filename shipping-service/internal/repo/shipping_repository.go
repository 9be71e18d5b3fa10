package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/director74/dz9_saga/shipping-service/internal/entity"
)

// ShippingRepository интерфейс репозитория для работы с доставками
type ShippingRepository interface {
	CreateInTx(ctx context.Context, tx *gorm.DB, shipping *entity.Shipping) error
	SaveInTx(ctx context.Context, tx *gorm.DB, shipping *entity.Shipping) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Shipping, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*entity.Shipping, error)
	GetByCompensationKey(ctx context.Context, key string, orderID uuid.UUID) (*entity.Shipping, error)
	GetByOrderAndSaga(ctx context.Context, orderID, sagaLogID uuid.UUID) (*entity.Shipping, error)
}

// ShippingRepositoryImpl реализация репозитория доставок на GORM
type ShippingRepositoryImpl struct {
	db *gorm.DB
}

func NewShippingRepository(db *gorm.DB) ShippingRepository {
	return &ShippingRepositoryImpl{
		db: db,
	}
}

// CreateInTx создает доставку в рамках переданной транзакции
func (r *ShippingRepositoryImpl) CreateInTx(ctx context.Context, tx *gorm.DB, shipping *entity.Shipping) error {
	if err := r.conn(tx).WithContext(ctx).Create(shipping).Error; err != nil {
		return fmt.Errorf("ошибка создания доставки %s: %w", shipping.ID, err)
	}
	return nil
}

// SaveInTx сохраняет доставку в рамках переданной транзакции
func (r *ShippingRepositoryImpl) SaveInTx(ctx context.Context, tx *gorm.DB, shipping *entity.Shipping) error {
	result := r.conn(tx).WithContext(ctx).Save(shipping)
	if result.Error != nil {
		return fmt.Errorf("ошибка сохранения доставки %s: %w", shipping.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetByID возвращает доставку по идентификатору, nil если не найдена
func (r *ShippingRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*entity.Shipping, error) {
	return r.findOne(ctx, "id = ?", id)
}

// GetByIdempotencyKey возвращает доставку по ключу идемпотентности, nil если не найдена
func (r *ShippingRepositoryImpl) GetByIdempotencyKey(ctx context.Context, key string) (*entity.Shipping, error) {
	return r.findOne(ctx, "idempotency_key = ?", key)
}

// GetByCompensationKey возвращает доставку по ключу компенсации и заказу, nil если не найдена
func (r *ShippingRepositoryImpl) GetByCompensationKey(ctx context.Context, key string, orderID uuid.UUID) (*entity.Shipping, error) {
	return r.findOne(ctx, "compensation_key = ? AND order_id = ?", key, orderID)
}

// GetByOrderAndSaga возвращает доставку по заказу и саге, nil если не найдена
func (r *ShippingRepositoryImpl) GetByOrderAndSaga(ctx context.Context, orderID, sagaLogID uuid.UUID) (*entity.Shipping, error) {
	return r.findOne(ctx, "order_id = ? AND saga_log_id = ?", orderID, sagaLogID)
}

func (r *ShippingRepositoryImpl) findOne(ctx context.Context, query string, args ...interface{}) (*entity.Shipping, error) {
	var shipping entity.Shipping
	result := r.db.WithContext(ctx).First(&shipping, append([]interface{}{query}, args...)...)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &shipping, nil
}

func (r *ShippingRepositoryImpl) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
