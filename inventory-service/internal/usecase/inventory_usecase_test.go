package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"github.com/director74/dz9_saga/inventory-service/internal/entity"
	"github.com/director74/dz9_saga/pkg/outbox"
	"github.com/director74/dz9_saga/pkg/saga"
	"github.com/director74/dz9_saga/pkg/sagalog"
)

// Мок для InventoryRepository
type MockInventoryRepository struct {
	mock.Mock
}

func (m *MockInventoryRepository) GetByProductID(ctx context.Context, productID uuid.UUID) (*entity.Inventory, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Inventory), args.Error(1)
}

func (m *MockInventoryRepository) EnsureExistsInTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, defaultQuantity int) error {
	args := m.Called(ctx, tx, productID, defaultQuantity)
	return args.Error(0)
}

func (m *MockInventoryRepository) TryReserveInTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) (bool, error) {
	args := m.Called(ctx, tx, productID, quantity)
	return args.Bool(0), args.Error(1)
}

func (m *MockInventoryRepository) RestoreInTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) error {
	args := m.Called(ctx, tx, productID, quantity)
	return args.Error(0)
}

func (m *MockInventoryRepository) Upsert(ctx context.Context, productID uuid.UUID, quantity int) (*entity.Inventory, error) {
	args := m.Called(ctx, productID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Inventory), args.Error(1)
}

// Мок для ReservationRepository
type MockReservationRepository struct {
	mock.Mock
}

func (m *MockReservationRepository) CreateInTx(ctx context.Context, tx *gorm.DB, reservation *entity.Reservation) error {
	args := m.Called(ctx, tx, reservation)
	return args.Error(0)
}

func (m *MockReservationRepository) SaveInTx(ctx context.Context, tx *gorm.DB, reservation *entity.Reservation) error {
	args := m.Called(ctx, tx, reservation)
	return args.Error(0)
}

func (m *MockReservationRepository) GetByIdempotencyKey(ctx context.Context, key string) (*entity.Reservation, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Reservation), args.Error(1)
}

func (m *MockReservationRepository) GetByCompensationKey(ctx context.Context, key string, orderID uuid.UUID) (*entity.Reservation, error) {
	args := m.Called(ctx, key, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Reservation), args.Error(1)
}

func (m *MockReservationRepository) GetByOrderAndSaga(ctx context.Context, orderID, sagaLogID uuid.UUID) (*entity.Reservation, error) {
	args := m.Called(ctx, orderID, sagaLogID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Reservation), args.Error(1)
}

// Мок для SagaLogRepository
type MockSagaLogRepository struct {
	mock.Mock
}

func (m *MockSagaLogRepository) FindByID(ctx context.Context, sagaID uuid.UUID) (*sagalog.SagaLog, error) {
	args := m.Called(ctx, sagaID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sagalog.SagaLog), args.Error(1)
}

func (m *MockSagaLogRepository) SaveInTx(ctx context.Context, tx *gorm.DB, log *sagalog.SagaLog) error {
	args := m.Called(ctx, tx, log)
	return args.Error(0)
}

// Мок для OutboxRepository
type MockOutboxRepository struct {
	mock.Mock
	Appended []*outbox.Event
}

func (m *MockOutboxRepository) AppendInTx(ctx context.Context, tx *gorm.DB, event *outbox.Event) error {
	args := m.Called(ctx, tx, event)
	m.Appended = append(m.Appended, event)
	return args.Error(0)
}

// fakeTransactor выполняет функцию без реальной транзакции
type fakeTransactor struct{}

func (f *fakeTransactor) WithinTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newSagaAfterPayment(t *testing.T) (*sagalog.SagaLog, uuid.UUID) {
	t.Helper()
	sagaLog, err := sagalog.NewSagaLog(uuid.New(), uuid.New(), uuid.New(), 2, 40)
	assert.NoError(t, err)
	orderID := uuid.New()
	sagaLog.OrderID = &orderID
	assert.NoError(t, sagaLog.MarkStepCompleted(saga.StepCreateOrder))
	assert.NoError(t, sagaLog.PromoteStatus(saga.StatusInProgress))
	assert.NoError(t, sagaLog.MarkStepCompleted(saga.StepProcessPayment))
	return sagaLog, orderID
}

func newUseCase(invRepo *MockInventoryRepository, resRepo *MockReservationRepository, sagaRepo *MockSagaLogRepository, outboxRepo *MockOutboxRepository) *InventoryUseCase {
	return NewInventoryUseCase(&fakeTransactor{}, invRepo, resRepo, sagaRepo, outboxRepo, 100, 3, nil)
}

func updateRequest(sagaLog *sagalog.SagaLog, orderID uuid.UUID, quantity int) entity.UpdateInventoryRequest {
	return entity.UpdateInventoryRequest{
		OrderID:   orderID.String(),
		ProductID: sagaLog.ProductID.String(),
		Quantity:  quantity,
		SagaLogID: sagaLog.ID.String(),
	}
}

func TestUpdateInventory_ReservesAndAdvancesSaga(t *testing.T) {
	invRepo := new(MockInventoryRepository)
	resRepo := new(MockReservationRepository)
	sagaRepo := new(MockSagaLogRepository)
	outboxRepo := new(MockOutboxRepository)

	sagaLog, orderID := newSagaAfterPayment(t)
	idemKey := saga.OutboundIdempotencyKey(orderID, saga.EventPaymentProcessed)

	resRepo.On("GetByIdempotencyKey", mock.Anything, idemKey).Return(nil, nil).Once()
	sagaRepo.On("FindByID", mock.Anything, sagaLog.ID).Return(sagaLog, nil).Once()
	invRepo.On("EnsureExistsInTx", mock.Anything, mock.Anything, sagaLog.ProductID, 100).Return(nil).Once()
	invRepo.On("TryReserveInTx", mock.Anything, mock.Anything, sagaLog.ProductID, 2).Return(true, nil).Once()
	resRepo.On("CreateInTx", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	sagaRepo.On("SaveInTx", mock.Anything, mock.Anything, sagaLog).Return(nil).Once()
	outboxRepo.On("AppendInTx", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	uc := newUseCase(invRepo, resRepo, sagaRepo, outboxRepo)
	resp, err := uc.UpdateInventory(context.Background(), idemKey, updateRequest(sagaLog, orderID, 2))

	assert.NoError(t, err)
	assert.True(t, resp.Success)

	reservation := resp.Data.(*entity.Reservation)
	assert.Equal(t, entity.ReservationStatusReserved, reservation.Status)

	assert.Equal(t, saga.StepStatusCompleted, sagaLog.Step(saga.StepUpdateInventory).Status)

	// Следующее событие: доставка, customerId берется из журнала саги
	assert.Len(t, outboxRepo.Appended, 1)
	event := outboxRepo.Appended[0]
	assert.Equal(t, saga.EventInventoryUpdated, event.EventType)
	assert.Equal(t, saga.ServiceShipping, event.TargetService)
	assert.Equal(t, "/shipping/deliver", event.TargetEndpoint)
	var payload saga.DeliverOrderPayload
	assert.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, sagaLog.CustomerID.String(), payload.CustomerID)

	invRepo.AssertExpectations(t)
	resRepo.AssertExpectations(t)
	sagaRepo.AssertExpectations(t)
	outboxRepo.AssertExpectations(t)
}

func TestUpdateInventory_InsufficientStockStartsCompensation(t *testing.T) {
	invRepo := new(MockInventoryRepository)
	resRepo := new(MockReservationRepository)
	sagaRepo := new(MockSagaLogRepository)
	outboxRepo := new(MockOutboxRepository)

	sagaLog, orderID := newSagaAfterPayment(t)
	idemKey := saga.OutboundIdempotencyKey(orderID, saga.EventPaymentProcessed)

	resRepo.On("GetByIdempotencyKey", mock.Anything, idemKey).Return(nil, nil).Once()
	sagaRepo.On("FindByID", mock.Anything, sagaLog.ID).Return(sagaLog, nil).Once()
	invRepo.On("EnsureExistsInTx", mock.Anything, mock.Anything, sagaLog.ProductID, 100).Return(nil).Once()
	invRepo.On("TryReserveInTx", mock.Anything, mock.Anything, sagaLog.ProductID, 200).Return(false, nil).Once()
	resRepo.On("CreateInTx", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	sagaRepo.On("SaveInTx", mock.Anything, mock.Anything, sagaLog).Return(nil).Once()
	outboxRepo.On("AppendInTx", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	uc := newUseCase(invRepo, resRepo, sagaRepo, outboxRepo)
	resp, err := uc.UpdateInventory(context.Background(), idemKey, updateRequest(sagaLog, orderID, 200))

	assert.NoError(t, err)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)

	step := sagaLog.Step(saga.StepUpdateInventory)
	assert.Equal(t, saga.StepStatusFailed, step.Status)
	assert.Equal(t, saga.StatusCompensating, sagaLog.Status)

	// Обратное событие: возврат платежа
	assert.Len(t, outboxRepo.Appended, 1)
	event := outboxRepo.Appended[0]
	assert.Equal(t, saga.EventInventoryFailed, event.EventType)
	assert.Equal(t, saga.ServicePayment, event.TargetService)
	assert.Equal(t, "/payment/refund", event.TargetEndpoint)
}

func TestUpdateInventory_ReplayReturnsStoredResult(t *testing.T) {
	invRepo := new(MockInventoryRepository)
	resRepo := new(MockReservationRepository)
	sagaRepo := new(MockSagaLogRepository)
	outboxRepo := new(MockOutboxRepository)

	sagaLog, orderID := newSagaAfterPayment(t)
	idemKey := saga.OutboundIdempotencyKey(orderID, saga.EventPaymentProcessed)

	stored := &entity.Reservation{
		ID:             uuid.New(),
		OrderID:        orderID,
		Status:         entity.ReservationStatusReserved,
		IdempotencyKey: idemKey,
	}
	resRepo.On("GetByIdempotencyKey", mock.Anything, idemKey).Return(stored, nil).Once()

	uc := newUseCase(invRepo, resRepo, sagaRepo, outboxRepo)
	resp, err := uc.UpdateInventory(context.Background(), idemKey, updateRequest(sagaLog, orderID, 2))

	assert.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, stored, resp.Data)

	// Повтор не трогает остатки
	invRepo.AssertNotCalled(t, "TryReserveInTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	outboxRepo.AssertNotCalled(t, "AppendInTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateInventory_SagaNotFound(t *testing.T) {
	invRepo := new(MockInventoryRepository)
	resRepo := new(MockReservationRepository)
	sagaRepo := new(MockSagaLogRepository)
	outboxRepo := new(MockOutboxRepository)

	sagaLog, orderID := newSagaAfterPayment(t)
	idemKey := saga.OutboundIdempotencyKey(orderID, saga.EventPaymentProcessed)

	resRepo.On("GetByIdempotencyKey", mock.Anything, idemKey).Return(nil, nil).Once()
	sagaRepo.On("FindByID", mock.Anything, sagaLog.ID).Return(nil, nil).Once()

	uc := newUseCase(invRepo, resRepo, sagaRepo, outboxRepo)
	resp, err := uc.UpdateInventory(context.Background(), idemKey, updateRequest(sagaLog, orderID, 2))

	assert.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "SagaLog not found", resp.Message)
}

func TestCompensateInventory_RestoresStock(t *testing.T) {
	invRepo := new(MockInventoryRepository)
	resRepo := new(MockReservationRepository)
	sagaRepo := new(MockSagaLogRepository)
	outboxRepo := new(MockOutboxRepository)

	sagaLog, orderID := newSagaAfterPayment(t)
	assert.NoError(t, sagaLog.MarkStepCompleted(saga.StepUpdateInventory))
	compKey := "manual-compensation-1"

	reservation := &entity.Reservation{
		ID:        uuid.New(),
		OrderID:   orderID,
		SagaLogID: sagaLog.ID,
		ProductID: sagaLog.ProductID,
		Quantity:  2,
		Status:    entity.ReservationStatusReserved,
	}

	resRepo.On("GetByCompensationKey", mock.Anything, compKey, orderID).Return(nil, nil).Once()
	resRepo.On("GetByOrderAndSaga", mock.Anything, orderID, sagaLog.ID).Return(reservation, nil).Once()
	sagaRepo.On("FindByID", mock.Anything, sagaLog.ID).Return(sagaLog, nil).Once()
	invRepo.On("RestoreInTx", mock.Anything, mock.Anything, sagaLog.ProductID, 2).Return(nil).Once()
	resRepo.On("SaveInTx", mock.Anything, mock.Anything, reservation).Return(nil).Once()
	sagaRepo.On("SaveInTx", mock.Anything, mock.Anything, sagaLog).Return(nil).Once()

	uc := newUseCase(invRepo, resRepo, sagaRepo, outboxRepo)
	resp, err := uc.CompensateInventory(context.Background(), compKey, entity.CompensateInventoryRequest{
		OrderID:   orderID.String(),
		ProductID: sagaLog.ProductID.String(),
		Quantity:  2,
		SagaLogID: sagaLog.ID.String(),
	})

	assert.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, entity.ReservationStatusCompensated, reservation.Status)
	assert.Equal(t, saga.CompensationCompleted, sagaLog.Step(saga.StepUpdateInventory).CompensationStatus)

	// Компенсация склада не продолжает обратную цепочку событием
	outboxRepo.AssertNotCalled(t, "AppendInTx", mock.Anything, mock.Anything, mock.Anything)

	invRepo.AssertExpectations(t)
	resRepo.AssertExpectations(t)
}

func TestCompensateInventory_ReplayShortCircuits(t *testing.T) {
	invRepo := new(MockInventoryRepository)
	resRepo := new(MockReservationRepository)
	sagaRepo := new(MockSagaLogRepository)
	outboxRepo := new(MockOutboxRepository)

	sagaLog, orderID := newSagaAfterPayment(t)
	compKey := "manual-compensation-1"

	compensated := &entity.Reservation{
		ID:              uuid.New(),
		OrderID:         orderID,
		Status:          entity.ReservationStatusCompensated,
		CompensationKey: &compKey,
	}
	resRepo.On("GetByCompensationKey", mock.Anything, compKey, orderID).Return(compensated, nil).Once()

	uc := newUseCase(invRepo, resRepo, sagaRepo, outboxRepo)
	resp, err := uc.CompensateInventory(context.Background(), compKey, entity.CompensateInventoryRequest{
		OrderID:   orderID.String(),
		ProductID: sagaLog.ProductID.String(),
		Quantity:  2,
		SagaLogID: sagaLog.ID.String(),
	})

	assert.NoError(t, err)
	assert.True(t, resp.Success)

	invRepo.AssertNotCalled(t, "RestoreInTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestInitializeInventory(t *testing.T) {
	invRepo := new(MockInventoryRepository)
	resRepo := new(MockReservationRepository)
	sagaRepo := new(MockSagaLogRepository)
	outboxRepo := new(MockOutboxRepository)

	productID := uuid.New()
	inv := &entity.Inventory{ID: uuid.New(), ProductID: productID, Quantity: 500}

	invRepo.On("Upsert", mock.Anything, productID, 500).Return(inv, nil).Once()

	uc := newUseCase(invRepo, resRepo, sagaRepo, outboxRepo)
	result, err := uc.InitializeInventory(context.Background(), entity.InitializeInventoryRequest{
		ProductID: productID.String(),
		Quantity:  500,
	})

	assert.NoError(t, err)
	assert.Equal(t, inv, result)
}
