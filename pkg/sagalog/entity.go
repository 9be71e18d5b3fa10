package sagalog

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/director74/dz9_saga/pkg/saga"
)

// StepRecord запись о прохождении одного шага саги
type StepRecord struct {
	Name               saga.StepName           `json:"name"`
	Status             saga.StepStatus         `json:"status"`
	CompensationStatus saga.CompensationStatus `json:"compensationStatus"`
	Error              *string                 `json:"error"`
	Timestamp          *time.Time              `json:"timestamp"`
}

// StepList упорядоченный список шагов саги, хранится одной JSONB колонкой.
// Массив, а не map: порядок шагов — часть протокола и не должен зависеть от
// сортировки ключей JSON.
type StepList []StepRecord

// Value реализует driver.Valuer для сохранения в JSONB
func (s StepList) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan реализует sql.Scanner для чтения из JSONB
func (s *StepList) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("неподдерживаемый тип колонки steps: %T", value)
	}
	return json.Unmarshal(data, s)
}

// NewSteps создает список из четырех шагов протокола в статусе PENDING
func NewSteps() StepList {
	names := saga.StepOrder()
	steps := make(StepList, 0, len(names))
	for _, name := range names {
		steps = append(steps, StepRecord{
			Name:               name,
			Status:             saga.StepStatusPending,
			CompensationStatus: saga.CompensationPending,
		})
	}
	return steps
}

// SagaLog журнал саги, хранящийся в БД
type SagaLog struct {
	ID             uuid.UUID   `gorm:"type:uuid;primaryKey" json:"sagaId"`
	IdempotencyKey uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:uniq_saga_logs_idempotency_key" json:"idempotencyKey"`
	CustomerID     uuid.UUID   `gorm:"type:uuid;not null" json:"customerId"`
	ProductID      uuid.UUID   `gorm:"type:uuid;not null" json:"productId"`
	Quantity       int         `gorm:"not null" json:"quantity"`
	TotalPrice     float64     `gorm:"not null" json:"totalPrice"`
	OrderID        *uuid.UUID  `gorm:"type:uuid;index" json:"orderId"`
	Status         saga.Status `gorm:"type:varchar(20);not null;index" json:"status"`
	Steps          StepList    `gorm:"type:jsonb;not null" json:"steps"`
	CreatedAt      time.Time   `gorm:"not null" json:"createdAt"`
}

// TableName задает имя таблицы для GORM
func (SagaLog) TableName() string {
	return "saga_logs"
}

// NewSagaLog создает журнал новой саги со всеми шагами в PENDING
func NewSagaLog(idempotencyKey, customerID, productID uuid.UUID, quantity int, totalPrice float64) (*SagaLog, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации идентификатора саги: %w", err)
	}

	return &SagaLog{
		ID:             id,
		IdempotencyKey: idempotencyKey,
		CustomerID:     customerID,
		ProductID:      productID,
		Quantity:       quantity,
		TotalPrice:     totalPrice,
		Status:         saga.StatusStarted,
		Steps:          NewSteps(),
		CreatedAt:      time.Now(),
	}, nil
}

// Step возвращает запись шага по имени
func (s *SagaLog) Step(name saga.StepName) *StepRecord {
	for i := range s.Steps {
		if s.Steps[i].Name == name {
			return &s.Steps[i]
		}
	}
	return nil
}

// MarkStepCompleted помечает шаг выполненным. Шаг может стать COMPLETED только
// если все предыдущие шаги уже COMPLETED.
func (s *SagaLog) MarkStepCompleted(name saga.StepName) error {
	for i := range s.Steps {
		step := &s.Steps[i]
		if step.Name == name {
			now := time.Now()
			step.Status = saga.StepStatusCompleted
			step.Error = nil
			step.Timestamp = &now
			return nil
		}
		if step.Status != saga.StepStatusCompleted {
			return fmt.Errorf("шаг %s не может завершиться: предыдущий шаг %s в статусе %s", name, step.Name, step.Status)
		}
	}
	return fmt.Errorf("шаг %s не найден в журнале саги", name)
}

// MarkStepFailed помечает шаг неуспешным с текстом ошибки
func (s *SagaLog) MarkStepFailed(name saga.StepName, errMsg string) error {
	step := s.Step(name)
	if step == nil {
		return fmt.Errorf("шаг %s не найден в журнале саги", name)
	}
	now := time.Now()
	step.Status = saga.StepStatusFailed
	step.Error = &errMsg
	step.Timestamp = &now
	return nil
}

// MarkStepCompensated помечает компенсацию шага завершенной
func (s *SagaLog) MarkStepCompensated(name saga.StepName) error {
	step := s.Step(name)
	if step == nil {
		return fmt.Errorf("шаг %s не найден в журнале саги", name)
	}
	step.CompensationStatus = saga.CompensationCompleted
	if step.Status == saga.StepStatusCompleted {
		step.Status = saga.StepStatusCompensated
	}
	return nil
}

// AllStepsCompleted проверяет, что все четыре шага выполнены
func (s *SagaLog) AllStepsCompleted() bool {
	for i := range s.Steps {
		if s.Steps[i].Status != saga.StepStatusCompleted {
			return false
		}
	}
	return len(s.Steps) > 0
}

// CompletedStepsCompensated проверяет, что каждый ранее выполненный шаг
// компенсирован. Условие терминального статуса COMPENSATED.
func (s *SagaLog) CompletedStepsCompensated() bool {
	for i := range s.Steps {
		step := &s.Steps[i]
		wasCompleted := step.Status == saga.StepStatusCompleted || step.Status == saga.StepStatusCompensated
		if wasCompleted && step.CompensationStatus != saga.CompensationCompleted {
			return false
		}
	}
	return true
}

// PromoteStatus переводит сагу в новый статус. Переходы монотонны: из
// терминального статуса выхода нет, повторная запись того же статуса допустима.
func (s *SagaLog) PromoteStatus(newStatus saga.Status) error {
	if s.Status == newStatus {
		return nil
	}
	if s.Status.IsTerminal() {
		return fmt.Errorf("сага %s уже в терминальном статусе %s, переход в %s невозможен", s.ID, s.Status, newStatus)
	}
	s.Status = newStatus
	return nil
}
