package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/director74/dz9_saga/order-service/internal/entity"
)

// OrderRepository интерфейс репозитория для работы с заказами
type OrderRepository interface {
	CreateInTx(ctx context.Context, tx *gorm.DB, order *entity.Order) error
	SaveInTx(ctx context.Context, tx *gorm.DB, order *entity.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Order, error)
	GetByIdempotencyKey(ctx context.Context, key uuid.UUID) (*entity.Order, error)
}

// OrderRepositoryImpl реализация репозитория заказов на GORM
type OrderRepositoryImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &OrderRepositoryImpl{
		db: db,
	}
}

// CreateInTx создает заказ в рамках переданной транзакции
func (r *OrderRepositoryImpl) CreateInTx(ctx context.Context, tx *gorm.DB, order *entity.Order) error {
	if err := r.conn(tx).WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("ошибка создания заказа %s: %w", order.ID, err)
	}
	return nil
}

// SaveInTx сохраняет заказ в рамках переданной транзакции
func (r *OrderRepositoryImpl) SaveInTx(ctx context.Context, tx *gorm.DB, order *entity.Order) error {
	result := r.conn(tx).WithContext(ctx).Save(order)
	if result.Error != nil {
		return fmt.Errorf("ошибка сохранения заказа %s: %w", order.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetByID возвращает заказ по идентификатору, nil если не найден
func (r *OrderRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	var order entity.Order
	result := r.db.WithContext(ctx).First(&order, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &order, nil
}

// GetByIdempotencyKey возвращает заказ по ключу идемпотентности, nil если не найден
func (r *OrderRepositoryImpl) GetByIdempotencyKey(ctx context.Context, key uuid.UUID) (*entity.Order, error) {
	var order entity.Order
	result := r.db.WithContext(ctx).First(&order, "idempotency_key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &order, nil
}

func (r *OrderRepositoryImpl) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
