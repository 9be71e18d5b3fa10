package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/director74/dz9_saga/inventory-service/internal/entity"
)

// ReservationRepository интерфейс репозитория резерваций
type ReservationRepository interface {
	CreateInTx(ctx context.Context, tx *gorm.DB, reservation *entity.Reservation) error
	SaveInTx(ctx context.Context, tx *gorm.DB, reservation *entity.Reservation) error
	GetByIdempotencyKey(ctx context.Context, key string) (*entity.Reservation, error)
	GetByCompensationKey(ctx context.Context, key string, orderID uuid.UUID) (*entity.Reservation, error)
	GetByOrderAndSaga(ctx context.Context, orderID, sagaLogID uuid.UUID) (*entity.Reservation, error)
}

// ReservationRepositoryImpl реализация репозитория резерваций на GORM
type ReservationRepositoryImpl struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &ReservationRepositoryImpl{
		db: db,
	}
}

// CreateInTx создает резервацию в рамках переданной транзакции
func (r *ReservationRepositoryImpl) CreateInTx(ctx context.Context, tx *gorm.DB, reservation *entity.Reservation) error {
	if err := r.conn(tx).WithContext(ctx).Create(reservation).Error; err != nil {
		return fmt.Errorf("ошибка создания резервации %s: %w", reservation.ID, err)
	}
	return nil
}

// SaveInTx сохраняет резервацию в рамках переданной транзакции
func (r *ReservationRepositoryImpl) SaveInTx(ctx context.Context, tx *gorm.DB, reservation *entity.Reservation) error {
	result := r.conn(tx).WithContext(ctx).Save(reservation)
	if result.Error != nil {
		return fmt.Errorf("ошибка сохранения резервации %s: %w", reservation.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetByIdempotencyKey возвращает резервацию по ключу идемпотентности, nil если не найдена
func (r *ReservationRepositoryImpl) GetByIdempotencyKey(ctx context.Context, key string) (*entity.Reservation, error) {
	return r.findOne(ctx, "idempotency_key = ?", key)
}

// GetByCompensationKey возвращает резервацию по ключу компенсации и заказу, nil если не найдена
func (r *ReservationRepositoryImpl) GetByCompensationKey(ctx context.Context, key string, orderID uuid.UUID) (*entity.Reservation, error) {
	return r.findOne(ctx, "compensation_key = ? AND order_id = ?", key, orderID)
}

// GetByOrderAndSaga возвращает резервацию по заказу и саге, nil если не найдена
func (r *ReservationRepositoryImpl) GetByOrderAndSaga(ctx context.Context, orderID, sagaLogID uuid.UUID) (*entity.Reservation, error) {
	return r.findOne(ctx, "order_id = ? AND saga_log_id = ?", orderID, sagaLogID)
}

func (r *ReservationRepositoryImpl) findOne(ctx context.Context, query string, args ...interface{}) (*entity.Reservation, error) {
	var reservation entity.Reservation
	result := r.db.WithContext(ctx).First(&reservation, append([]interface{}{query}, args...)...)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &reservation, nil
}

func (r *ReservationRepositoryImpl) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
