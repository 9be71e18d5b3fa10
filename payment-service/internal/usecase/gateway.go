package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
)

// PaymentGateway абстракция внешнего платежного шлюза
type PaymentGateway interface {
	Charge(ctx context.Context, amount float64) (transactionID string, err error)
}

// ErrPaymentDeclined платеж отклонен шлюзом
var ErrPaymentDeclined = errors.New("платеж отклонен платежным шлюзом")

// SimulatedGateway демонстрационный шлюз: отклоняет заданную долю платежей.
// Доля отказов задается конфигурацией, а не зашита в код.
type SimulatedGateway struct {
	failureRate float64
}

func NewSimulatedGateway(failureRate float64) *SimulatedGateway {
	return &SimulatedGateway{failureRate: failureRate}
}

// Charge эмулирует проведение платежа (в реальной системе здесь был бы вызов
// внешнего платежного шлюза)
func (g *SimulatedGateway) Charge(ctx context.Context, amount float64) (string, error) {
	if rand.Float64() < g.failureRate {
		return "", ErrPaymentDeclined
	}
	return fmt.Sprintf("TRX-%d", rand.Intn(1000000)), nil
}
