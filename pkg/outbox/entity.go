package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/director74/dz9_saga/pkg/saga"
)

// Event запись outbox: исходящее событие с метаданными публикации.
// В прямом направлении таблица append-only; паблишер изменяет только
// publish_attempts, last_error, published_at и is_published.
type Event struct {
	ID              uuid.UUID          `gorm:"type:uuid;primaryKey"`
	AggregateID     uuid.UUID          `gorm:"type:uuid;not null;index"`
	EventType       saga.EventType     `gorm:"type:varchar(50);not null"`
	Payload         datatypes.JSON     `gorm:"type:jsonb;not null"`
	TargetService   saga.TargetService `gorm:"type:varchar(20);not null;index:idx_outbox_events_unpublished,where:is_published = false"`
	TargetEndpoint  string             `gorm:"type:varchar(255);not null"`
	IsPublished     bool               `gorm:"not null;default:false;index:idx_outbox_events_unpublished,where:is_published = false"`
	PublishAttempts int                `gorm:"not null;default:0"`
	MaxRetries      int                `gorm:"not null;default:3"`
	LastError       *string            `gorm:"type:text"`
	PublishedAt     *time.Time
	CreatedAt       time.Time `gorm:"not null"`
}

// TableName задает имя таблицы для GORM
func (Event) TableName() string {
	return "outbox_events"
}

// NewEvent создает событие outbox: маршрут определяется типом события по
// таблице протокола, payload сериализуется в JSON.
func NewEvent(aggregateID uuid.UUID, eventType saga.EventType, payload interface{}, maxRetries int) (*Event, error) {
	route, err := saga.RouteFor(eventType)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации идентификатора события: %w", err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации payload события %s: %w", eventType, err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &Event{
		ID:             id,
		AggregateID:    aggregateID,
		EventType:      eventType,
		Payload:        datatypes.JSON(data),
		TargetService:  route.Service,
		TargetEndpoint: route.Endpoint,
		MaxRetries:     maxRetries,
		CreatedAt:      time.Now(),
	}, nil
}

// TerminallyFailed сообщает, что попытки публикации исчерпаны
func (e *Event) TerminallyFailed() bool {
	return !e.IsPublished && e.PublishAttempts >= e.MaxRetries
}
