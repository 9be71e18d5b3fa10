package sagalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	pkgerrors "github.com/director74/dz9_saga/pkg/errors"
)

// Repository репозиторий журнала саг на GORM.
// Таблица saga_logs логически принадлежит order-service (он открывает и
// закрывает саги), но открыта на чтение-запись всем участникам: каждый из них
// изменяет только запись собственного шага и монотонно продвигает статус.
type Repository struct {
	db *gorm.DB
}

// NewRepository создает новый экземпляр репозитория журнала саг
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByIdempotencyKey ищет сагу по ключу идемпотентности инициации.
// Возвращает nil без ошибки, если сага не найдена.
func (r *Repository) FindByIdempotencyKey(ctx context.Context, key uuid.UUID) (*SagaLog, error) {
	var log SagaLog
	result := r.db.WithContext(ctx).First(&log, "idempotency_key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка поиска саги по ключу идемпотентности: %w", result.Error)
	}
	return &log, nil
}

// FindByID ищет сагу по идентификатору.
// Возвращает nil без ошибки, если сага не найдена.
func (r *Repository) FindByID(ctx context.Context, sagaID uuid.UUID) (*SagaLog, error) {
	var log SagaLog
	result := r.db.WithContext(ctx).First(&log, "id = ?", sagaID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка получения саги %s: %w", sagaID, result.Error)
	}
	return &log, nil
}

// FindByOrderID ищет сагу по идентификатору заказа.
// Возвращает nil без ошибки, если сага не найдена.
func (r *Repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*SagaLog, error) {
	var log SagaLog
	result := r.db.WithContext(ctx).First(&log, "order_id = ?", orderID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка поиска саги по заказу %s: %w", orderID, result.Error)
	}
	return &log, nil
}

// CreateInTx создает журнал саги в рамках переданной транзакции.
// Нарушение уникальности ключа идемпотентности превращается в
// ErrDuplicateIdempotencyKey — сигнал повтора инициации.
func (r *Repository) CreateInTx(ctx context.Context, tx *gorm.DB, log *SagaLog) error {
	result := r.conn(tx).WithContext(ctx).Create(log)
	if result.Error != nil {
		if pkgerrors.IsUniqueViolation(result.Error, "uniq_saga_logs_idempotency_key") {
			return pkgerrors.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("ошибка создания журнала саги %s: %w", log.ID, result.Error)
	}
	return nil
}

// SaveInTx сохраняет журнал саги целиком (upsert по первичному ключу)
// в рамках переданной транзакции.
func (r *Repository) SaveInTx(ctx context.Context, tx *gorm.DB, log *SagaLog) error {
	result := r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(log)
	if result.Error != nil {
		if pkgerrors.IsUniqueViolation(result.Error, "uniq_saga_logs_idempotency_key") {
			return pkgerrors.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("ошибка сохранения журнала саги %s: %w", log.ID, result.Error)
	}
	return nil
}

// Save сохраняет журнал саги вне транзакции вызывающего
func (r *Repository) Save(ctx context.Context, log *SagaLog) error {
	return r.SaveInTx(ctx, nil, log)
}

func (r *Repository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
