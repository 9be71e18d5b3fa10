package outbox

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Repository репозиторий таблицы outbox_events на GORM
type Repository struct {
	db *gorm.DB
}

// NewRepository создает новый экземпляр репозитория outbox
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AppendInTx добавляет событие в outbox строго в транзакции вызывающего.
// Транзакция обязана совпадать с транзакцией изменения состояния участника:
// либо фиксируются оба, либо ни одно.
func (r *Repository) AppendInTx(ctx context.Context, tx *gorm.DB, event *Event) error {
	if tx == nil {
		return fmt.Errorf("append в outbox вне транзакции запрещен")
	}
	if result := tx.WithContext(ctx).Create(event); result.Error != nil {
		return fmt.Errorf("ошибка записи события %s в outbox: %w", event.EventType, result.Error)
	}
	return nil
}

// FindUnpublished возвращает неопубликованные события с неисчерпанными
// попытками, в порядке создания, не более batchSize штук
func (r *Repository) FindUnpublished(ctx context.Context, batchSize int) ([]Event, error) {
	var events []Event
	result := r.db.WithContext(ctx).
		Where("is_published = ? AND publish_attempts < max_retries", false).
		Order("created_at ASC").
		Limit(batchSize).
		Find(&events)
	if result.Error != nil {
		return nil, fmt.Errorf("ошибка выборки неопубликованных событий: %w", result.Error)
	}
	return events, nil
}

// Save обновляет только метаданные публикации события
func (r *Repository) Save(ctx context.Context, event *Event) error {
	result := r.db.WithContext(ctx).
		Model(&Event{}).
		Where("id = ?", event.ID).
		Updates(map[string]interface{}{
			"is_published":     event.IsPublished,
			"publish_attempts": event.PublishAttempts,
			"last_error":       event.LastError,
			"published_at":     event.PublishedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("ошибка обновления метаданных события %s: %w", event.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountTerminallyFailed возвращает число событий с исчерпанными попытками.
// Такие события не ретраятся автоматически и видны оператору.
func (r *Repository) CountTerminallyFailed(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&Event{}).
		Where("is_published = ? AND publish_attempts >= max_retries", false).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("ошибка подсчета терминально неуспешных событий: %w", result.Error)
	}
	return count, nil
}

// MarkPublished помечает событие опубликованным
func (e *Event) MarkPublished(now time.Time) {
	e.IsPublished = true
	e.PublishedAt = &now
}

// MarkAttemptFailed фиксирует неуспешную попытку публикации
func (e *Event) MarkAttemptFailed(errMsg string) {
	e.PublishAttempts++
	e.LastError = &errMsg
}
