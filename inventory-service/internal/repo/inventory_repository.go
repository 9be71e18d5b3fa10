package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/director74/dz9_saga/inventory-service/internal/entity"
)

// InventoryRepository интерфейс репозитория остатков
type InventoryRepository interface {
	GetByProductID(ctx context.Context, productID uuid.UUID) (*entity.Inventory, error)
	EnsureExistsInTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, defaultQuantity int) error
	TryReserveInTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) (bool, error)
	RestoreInTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) error
	Upsert(ctx context.Context, productID uuid.UUID, quantity int) (*entity.Inventory, error)
}

// InventoryRepositoryImpl реализация репозитория остатков на GORM
type InventoryRepositoryImpl struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) InventoryRepository {
	return &InventoryRepositoryImpl{
		db: db,
	}
}

// GetByProductID возвращает остаток по товару, nil если не найден
func (r *InventoryRepositoryImpl) GetByProductID(ctx context.Context, productID uuid.UUID) (*entity.Inventory, error) {
	var inv entity.Inventory
	result := r.db.WithContext(ctx).First(&inv, "product_id = ?", productID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &inv, nil
}

// EnsureExistsInTx создает позицию с остатком по умолчанию, если ее еще нет.
// Конфликт по product_id игнорируется: позиция уже существует.
func (r *InventoryRepositoryImpl) EnsureExistsInTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, defaultQuantity int) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("ошибка генерации идентификатора позиции: %w", err)
	}
	inv := &entity.Inventory{
		ID:        id,
		ProductID: productID,
		Quantity:  defaultQuantity,
	}
	result := r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoNothing: true,
		}).
		Create(inv)
	if result.Error != nil {
		return fmt.Errorf("ошибка создания позиции для товара %s: %w", productID, result.Error)
	}
	return nil
}

// TryReserveInTx атомарно резервирует товар: списывает остаток и увеличивает
// резерв одной командой с проверкой доступности в условии WHERE. Возвращает
// false, если доступного остатка недостаточно.
func (r *InventoryRepositoryImpl) TryReserveInTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) (bool, error) {
	result := r.conn(tx).WithContext(ctx).
		Model(&entity.Inventory{}).
		Where("product_id = ? AND quantity - reserved_quantity >= ?", productID, quantity).
		Updates(map[string]interface{}{
			"quantity":          gorm.Expr("quantity - ?", quantity),
			"reserved_quantity": gorm.Expr("reserved_quantity + ?", quantity),
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("ошибка резервации товара %s: %w", productID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// RestoreInTx возвращает остаток после компенсации: quantity += q,
// reservedQuantity опускается не ниже нуля
func (r *InventoryRepositoryImpl) RestoreInTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) error {
	result := r.conn(tx).WithContext(ctx).
		Model(&entity.Inventory{}).
		Where("product_id = ?", productID).
		Updates(map[string]interface{}{
			"quantity":          gorm.Expr("quantity + ?", quantity),
			"reserved_quantity": gorm.Expr("GREATEST(reserved_quantity - ?, 0)", quantity),
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("ошибка восстановления остатка товара %s: %w", productID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Upsert устанавливает остаток товара (операция инициализации)
func (r *InventoryRepositoryImpl) Upsert(ctx context.Context, productID uuid.UUID, quantity int) (*entity.Inventory, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации идентификатора позиции: %w", err)
	}
	inv := &entity.Inventory{
		ID:        id,
		ProductID: productID,
		Quantity:  quantity,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity":   quantity,
				"updated_at": time.Now(),
			}),
		}).
		Create(inv)
	if result.Error != nil {
		return nil, fmt.Errorf("ошибка инициализации остатка товара %s: %w", productID, result.Error)
	}
	return r.GetByProductID(ctx, productID)
}

func (r *InventoryRepositoryImpl) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
