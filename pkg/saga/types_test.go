package saga

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestStepOrder(t *testing.T) {
	steps := StepOrder()

	assert.Equal(t, []StepName{
		StepCreateOrder,
		StepProcessPayment,
		StepUpdateInventory,
		StepDeliverOrder,
	}, steps)
}

func TestRouteFor_ForwardChain(t *testing.T) {
	// Прямая цепочка: заказ → платеж → склад → доставка
	route, err := RouteFor(EventOrderCreated)
	assert.NoError(t, err)
	assert.Equal(t, ServicePayment, route.Service)
	assert.Equal(t, "/payment/process", route.Endpoint)

	route, err = RouteFor(EventPaymentProcessed)
	assert.NoError(t, err)
	assert.Equal(t, ServiceInventory, route.Service)
	assert.Equal(t, "/inventory/update", route.Endpoint)

	route, err = RouteFor(EventInventoryUpdated)
	assert.NoError(t, err)
	assert.Equal(t, ServiceShipping, route.Service)
	assert.Equal(t, "/shipping/deliver", route.Endpoint)
}

func TestRouteFor_BackwardChain(t *testing.T) {
	// Обратная цепочка: сбой платежа и сбой склада ведут назад
	route, err := RouteFor(EventPaymentFailed)
	assert.NoError(t, err)
	assert.Equal(t, ServiceOrder, route.Service)
	assert.Equal(t, "/order/compensate", route.Endpoint)

	route, err = RouteFor(EventInventoryFailed)
	assert.NoError(t, err)
	assert.Equal(t, ServicePayment, route.Service)
	assert.Equal(t, "/payment/refund", route.Endpoint)

	route, err = RouteFor(EventOrderCompensated)
	assert.NoError(t, err)
	assert.Equal(t, ServiceOrder, route.Service)
	assert.Equal(t, "/order/compensate", route.Endpoint)
}

func TestRouteFor_UnroutedEvents(t *testing.T) {
	// OrderShipped и OrderDelivered не производятся автоматической цепочкой
	_, err := RouteFor(EventOrderShipped)
	assert.Error(t, err)

	_, err = RouteFor(EventOrderDelivered)
	assert.Error(t, err)
}

func TestOutboundIdempotencyKey(t *testing.T) {
	aggregateID := uuid.MustParse("0190a000-0000-7000-8000-000000000001")

	key := OutboundIdempotencyKey(aggregateID, EventPaymentProcessed)
	assert.Equal(t, "0190a000-0000-7000-8000-000000000001-PaymentProcessed", key)

	// Ключ детерминирован: повторное вычисление дает тот же результат
	assert.Equal(t, key, OutboundIdempotencyKey(aggregateID, EventPaymentProcessed))
}

func TestStatusIsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCompensated.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusStarted.IsTerminal())
	assert.False(t, StatusInProgress.IsTerminal())
	assert.False(t, StatusCompensating.IsTerminal())
}
