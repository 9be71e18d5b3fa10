package saga

import (
	"fmt"

	"github.com/google/uuid"
)

// StepName имя шага саги
type StepName string

const (
	StepCreateOrder     StepName = "CREATE_ORDER"
	StepProcessPayment  StepName = "PROCESS_PAYMENT"
	StepUpdateInventory StepName = "UPDATE_INVENTORY"
	StepDeliverOrder    StepName = "DELIVER_ORDER"
)

// StepOrder возвращает шаги саги в порядке их выполнения.
// Порядок фиксирован протоколом; хранение обязано его сохранять.
func StepOrder() []StepName {
	return []StepName{
		StepCreateOrder,
		StepProcessPayment,
		StepUpdateInventory,
		StepDeliverOrder,
	}
}

// Status представляет возможные статусы саги
type Status string

const (
	StatusStarted      Status = "STARTED"
	StatusInProgress   Status = "IN_PROGRESS"
	StatusCompleted    Status = "COMPLETED"
	StatusFailed       Status = "FAILED"
	StatusCompensating Status = "COMPENSATING"
	StatusCompensated  Status = "COMPENSATED"
)

// IsTerminal сообщает, является ли статус конечным
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCompensated || s == StatusFailed
}

// StepStatus статус выполнения шага
type StepStatus string

const (
	StepStatusPending     StepStatus = "PENDING"
	StepStatusInProgress  StepStatus = "IN_PROGRESS"
	StepStatusCompleted   StepStatus = "COMPLETED"
	StepStatusFailed      StepStatus = "FAILED"
	StepStatusCompensated StepStatus = "COMPENSATED"
)

// CompensationStatus статус компенсации шага
type CompensationStatus string

const (
	CompensationPending    CompensationStatus = "PENDING"
	CompensationInProgress CompensationStatus = "IN_PROGRESS"
	CompensationCompleted  CompensationStatus = "COMPLETED"
	CompensationFailed     CompensationStatus = "FAILED"
)

// EventType тип события outbox; набор закрыт протоколом
type EventType string

const (
	EventOrderCreated     EventType = "OrderCreated"
	EventPaymentProcessed EventType = "PaymentProcessed"
	EventPaymentFailed    EventType = "PaymentFailed"
	EventInventoryUpdated EventType = "InventoryUpdated"
	EventInventoryFailed  EventType = "InventoryFailed"
	EventOrderShipped     EventType = "OrderShipped"
	EventOrderDelivered   EventType = "OrderDelivered"
	EventOrderCompensated EventType = "OrderCompensated"
)

// TargetService сервис-получатель события
type TargetService string

const (
	ServiceOrder     TargetService = "order"
	ServicePayment   TargetService = "payment"
	ServiceInventory TargetService = "inventory"
	ServiceShipping  TargetService = "shipping"
)

// Route описывает получателя события: сервис и относительный путь endpoint
type Route struct {
	Service  TargetService
	Endpoint string
}

// Таблица маршрутизации событий. Прямая цепочка:
// OrderCreated → payment, PaymentProcessed → inventory, InventoryUpdated → shipping.
// Обратная: PaymentFailed → order.compensate, InventoryFailed → payment.refund,
// OrderCompensated → order.compensate.
var eventRoutes = map[EventType]Route{
	EventOrderCreated:     {Service: ServicePayment, Endpoint: "/payment/process"},
	EventPaymentProcessed: {Service: ServiceInventory, Endpoint: "/inventory/update"},
	EventPaymentFailed:    {Service: ServiceOrder, Endpoint: "/order/compensate"},
	EventInventoryUpdated: {Service: ServiceShipping, Endpoint: "/shipping/deliver"},
	EventInventoryFailed:  {Service: ServicePayment, Endpoint: "/payment/refund"},
	EventOrderCompensated: {Service: ServiceOrder, Endpoint: "/order/compensate"},
}

// RouteFor возвращает маршрут для типа события.
// OrderShipped и OrderDelivered входят в алфавит событий, но автоматической
// цепочкой не производятся и маршрута не имеют.
func RouteFor(eventType EventType) (Route, error) {
	route, ok := eventRoutes[eventType]
	if !ok {
		return Route{}, fmt.Errorf("для события %s не определен маршрут", eventType)
	}
	return route, nil
}

// OutboundIdempotencyKey вычисляет детерминированный ключ идемпотентности
// исходящего запроса. Пара (aggregateId, eventType) встречается в саге не более
// одного раза, поэтому ключ безопасен при любом числе повторных доставок.
func OutboundIdempotencyKey(aggregateID uuid.UUID, eventType EventType) string {
	return fmt.Sprintf("%s-%s", aggregateID, eventType)
}

// IdempotencyKeyHeader имя заголовка с ключом идемпотентности
const IdempotencyKeyHeader = "idempotency-key"
