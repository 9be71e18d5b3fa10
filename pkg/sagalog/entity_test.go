package sagalog

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/director74/dz9_saga/pkg/saga"
)

func newTestSagaLog(t *testing.T) *SagaLog {
	t.Helper()
	key, err := uuid.NewV7()
	assert.NoError(t, err)
	customerID, err := uuid.NewV7()
	assert.NoError(t, err)
	productID, err := uuid.NewV7()
	assert.NoError(t, err)

	log, err := NewSagaLog(key, customerID, productID, 2, 40)
	assert.NoError(t, err)
	return log
}

func TestNewSagaLog(t *testing.T) {
	log := newTestSagaLog(t)

	assert.Equal(t, saga.StatusStarted, log.Status)
	assert.Len(t, log.Steps, 4)

	// Порядок шагов фиксирован протоколом
	for i, name := range saga.StepOrder() {
		assert.Equal(t, name, log.Steps[i].Name)
		assert.Equal(t, saga.StepStatusPending, log.Steps[i].Status)
		assert.Equal(t, saga.CompensationPending, log.Steps[i].CompensationStatus)
		assert.Nil(t, log.Steps[i].Error)
		assert.Nil(t, log.Steps[i].Timestamp)
	}
}

func TestMarkStepCompleted_RequiresPredecessors(t *testing.T) {
	log := newTestSagaLog(t)

	// Нельзя завершить второй шаг, пока первый не завершен
	err := log.MarkStepCompleted(saga.StepProcessPayment)
	assert.Error(t, err)

	assert.NoError(t, log.MarkStepCompleted(saga.StepCreateOrder))
	assert.NoError(t, log.MarkStepCompleted(saga.StepProcessPayment))

	step := log.Step(saga.StepProcessPayment)
	assert.Equal(t, saga.StepStatusCompleted, step.Status)
	assert.NotNil(t, step.Timestamp)
}

func TestAllStepsCompleted(t *testing.T) {
	log := newTestSagaLog(t)
	assert.False(t, log.AllStepsCompleted())

	for _, name := range saga.StepOrder() {
		assert.NoError(t, log.MarkStepCompleted(name))
	}
	assert.True(t, log.AllStepsCompleted())
}

func TestMarkStepFailed(t *testing.T) {
	log := newTestSagaLog(t)
	assert.NoError(t, log.MarkStepCompleted(saga.StepCreateOrder))

	assert.NoError(t, log.MarkStepFailed(saga.StepProcessPayment, "платеж отклонен"))

	step := log.Step(saga.StepProcessPayment)
	assert.Equal(t, saga.StepStatusFailed, step.Status)
	assert.NotNil(t, step.Error)
	assert.Equal(t, "платеж отклонен", *step.Error)
}

func TestCompletedStepsCompensated(t *testing.T) {
	log := newTestSagaLog(t)
	assert.NoError(t, log.MarkStepCompleted(saga.StepCreateOrder))
	assert.NoError(t, log.MarkStepCompleted(saga.StepProcessPayment))
	assert.NoError(t, log.MarkStepFailed(saga.StepUpdateInventory, "недостаточно товара"))

	// Пока платеж не компенсирован, условие не выполняется
	assert.False(t, log.CompletedStepsCompensated())

	assert.NoError(t, log.MarkStepCompensated(saga.StepProcessPayment))
	assert.False(t, log.CompletedStepsCompensated())

	assert.NoError(t, log.MarkStepCompensated(saga.StepCreateOrder))
	assert.True(t, log.CompletedStepsCompensated())

	// Компенсированный шаг получает статус COMPENSATED
	assert.Equal(t, saga.StepStatusCompensated, log.Step(saga.StepProcessPayment).Status)
}

func TestPromoteStatus_Monotonic(t *testing.T) {
	log := newTestSagaLog(t)

	assert.NoError(t, log.PromoteStatus(saga.StatusInProgress))
	assert.NoError(t, log.PromoteStatus(saga.StatusCompleted))

	// Из терминального статуса выхода нет
	err := log.PromoteStatus(saga.StatusCompensating)
	assert.Error(t, err)
	assert.Equal(t, saga.StatusCompleted, log.Status)

	// Повторная запись того же статуса допустима
	assert.NoError(t, log.PromoteStatus(saga.StatusCompleted))
}

func TestStepList_ScanPreservesOrder(t *testing.T) {
	log := newTestSagaLog(t)
	assert.NoError(t, log.MarkStepCompleted(saga.StepCreateOrder))

	raw, err := log.Steps.Value()
	assert.NoError(t, err)

	var restored StepList
	assert.NoError(t, restored.Scan(raw))

	assert.Len(t, restored, 4)
	for i, name := range saga.StepOrder() {
		assert.Equal(t, name, restored[i].Name)
	}
	assert.Equal(t, saga.StepStatusCompleted, restored[0].Status)
}
