package usecase

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"github.com/director74/dz9_saga/pkg/saga"
	"github.com/director74/dz9_saga/pkg/sagalog"
	"github.com/director74/dz9_saga/shipping-service/internal/entity"
)

// Мок для ShippingRepository
type MockShippingRepository struct {
	mock.Mock
}

func (m *MockShippingRepository) CreateInTx(ctx context.Context, tx *gorm.DB, shipping *entity.Shipping) error {
	args := m.Called(ctx, tx, shipping)
	return args.Error(0)
}

func (m *MockShippingRepository) SaveInTx(ctx context.Context, tx *gorm.DB, shipping *entity.Shipping) error {
	args := m.Called(ctx, tx, shipping)
	return args.Error(0)
}

func (m *MockShippingRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Shipping, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Shipping), args.Error(1)
}

func (m *MockShippingRepository) GetByIdempotencyKey(ctx context.Context, key string) (*entity.Shipping, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Shipping), args.Error(1)
}

func (m *MockShippingRepository) GetByCompensationKey(ctx context.Context, key string, orderID uuid.UUID) (*entity.Shipping, error) {
	args := m.Called(ctx, key, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Shipping), args.Error(1)
}

func (m *MockShippingRepository) GetByOrderAndSaga(ctx context.Context, orderID, sagaLogID uuid.UUID) (*entity.Shipping, error) {
	args := m.Called(ctx, orderID, sagaLogID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Shipping), args.Error(1)
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

// fakeTransactor выполняет функцию без реальной транзакции
type fakeTransactor struct{}

func (f *fakeTransactor) WithinTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newSagaBeforeDelivery(t *testing.T) (*sagalog.SagaLog, uuid.UUID) {
	t.Helper()
	sagaLog, err := sagalog.NewSagaLog(uuid.New(), uuid.New(), uuid.New(), 2, 40)
	assert.NoError(t, err)
	orderID := uuid.New()
	sagaLog.OrderID = &orderID
	assert.NoError(t, sagaLog.MarkStepCompleted(saga.StepCreateOrder))
	assert.NoError(t, sagaLog.PromoteStatus(saga.StatusInProgress))
	assert.NoError(t, sagaLog.MarkStepCompleted(saga.StepProcessPayment))
	assert.NoError(t, sagaLog.MarkStepCompleted(saga.StepUpdateInventory))
	return sagaLog, orderID
}

func deliverRequest(sagaLog *sagalog.SagaLog, orderID uuid.UUID) entity.DeliverOrderRequest {
	return entity.DeliverOrderRequest{
		CustomerID: sagaLog.CustomerID.String(),
		OrderID:    orderID.String(),
		SagaLogID:  sagaLog.ID.String(),
	}
}

func TestDeliverOrder_CompletesSaga(t *testing.T) {
	shippingRepo := new(MockShippingRepository)
	sagaRepo := new(MockSagaLogRepository)

	sagaLog, orderID := newSagaBeforeDelivery(t)
	idemKey := saga.OutboundIdempotencyKey(orderID, saga.EventInventoryUpdated)

	shippingRepo.On("GetByIdempotencyKey", mock.Anything, idemKey).Return(nil, nil).Once()
	sagaRepo.On("FindByID", mock.Anything, sagaLog.ID).Return(sagaLog, nil).Once()
	shippingRepo.On("CreateInTx", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	sagaRepo.On("SaveInTx", mock.Anything, mock.Anything, sagaLog).Return(nil).Once()

	uc := NewShippingUseCase(&fakeTransactor{}, shippingRepo, sagaRepo, nil)
	resp, err := uc.DeliverOrder(context.Background(), idemKey, deliverRequest(sagaLog, orderID))

	assert.NoError(t, err)
	assert.True(t, resp.Success)

	shipping := resp.Data.(*entity.Shipping)
	assert.Equal(t, entity.ShippingStatusShipped, shipping.Status)

	// Последний шаг завершает сагу терминальным статусом
	assert.Equal(t, saga.StepStatusCompleted, sagaLog.Step(saga.StepDeliverOrder).Status)
	assert.True(t, sagaLog.AllStepsCompleted())
	assert.Equal(t, saga.StatusCompleted, sagaLog.Status)

	shippingRepo.AssertExpectations(t)
	sagaRepo.AssertExpectations(t)
}

func TestDeliverOrder_ReplayShortCircuits(t *testing.T) {
	shippingRepo := new(MockShippingRepository)
	sagaRepo := new(MockSagaLogRepository)

	sagaLog, orderID := newSagaBeforeDelivery(t)
	idemKey := saga.OutboundIdempotencyKey(orderID, saga.EventInventoryUpdated)

	stored := &entity.Shipping{
		ID:             uuid.New(),
		OrderID:        orderID,
		Status:         entity.ShippingStatusShipped,
		IdempotencyKey: idemKey,
	}
	shippingRepo.On("GetByIdempotencyKey", mock.Anything, idemKey).Return(stored, nil).Once()

	uc := NewShippingUseCase(&fakeTransactor{}, shippingRepo, sagaRepo, nil)
	resp, err := uc.DeliverOrder(context.Background(), idemKey, deliverRequest(sagaLog, orderID))

	assert.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, stored, resp.Data)

	shippingRepo.AssertNotCalled(t, "CreateInTx", mock.Anything, mock.Anything, mock.Anything)
	sagaRepo.AssertNotCalled(t, "SaveInTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeliverOrder_SagaNotFound(t *testing.T) {
	shippingRepo := new(MockShippingRepository)
	sagaRepo := new(MockSagaLogRepository)

	sagaLog, orderID := newSagaBeforeDelivery(t)
	idemKey := saga.OutboundIdempotencyKey(orderID, saga.EventInventoryUpdated)

	shippingRepo.On("GetByIdempotencyKey", mock.Anything, idemKey).Return(nil, nil).Once()
	sagaRepo.On("FindByID", mock.Anything, sagaLog.ID).Return(nil, nil).Once()

	uc := NewShippingUseCase(&fakeTransactor{}, shippingRepo, sagaRepo, nil)
	resp, err := uc.DeliverOrder(context.Background(), idemKey, deliverRequest(sagaLog, orderID))

	assert.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "SagaLog not found", resp.Message)
}

func TestCancelShipping(t *testing.T) {
	shippingRepo := new(MockShippingRepository)
	sagaRepo := new(MockSagaLogRepository)

	sagaLog, orderID := newSagaBeforeDelivery(t)
	assert.NoError(t, sagaLog.MarkStepCompleted(saga.StepDeliverOrder))
	compKey := "manual-cancel-1"

	shipping := &entity.Shipping{
		ID:        uuid.New(),
		OrderID:   orderID,
		SagaLogID: sagaLog.ID,
		Status:    entity.ShippingStatusShipped,
	}

	shippingRepo.On("GetByCompensationKey", mock.Anything, compKey, orderID).Return(nil, nil).Once()
	shippingRepo.On("GetByOrderAndSaga", mock.Anything, orderID, sagaLog.ID).Return(shipping, nil).Once()
	sagaRepo.On("FindByID", mock.Anything, sagaLog.ID).Return(sagaLog, nil).Once()
	shippingRepo.On("SaveInTx", mock.Anything, mock.Anything, shipping).Return(nil).Once()
	sagaRepo.On("SaveInTx", mock.Anything, mock.Anything, sagaLog).Return(nil).Once()

	uc := NewShippingUseCase(&fakeTransactor{}, shippingRepo, sagaRepo, nil)
	resp, err := uc.CancelShipping(context.Background(), compKey, entity.CancelShippingRequest{
		OrderID:   orderID.String(),
		SagaLogID: sagaLog.ID.String(),
	})

	assert.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, entity.ShippingStatusCancelled, shipping.Status)
	assert.Equal(t, saga.CompensationCompleted, sagaLog.Step(saga.StepDeliverOrder).CompensationStatus)

	shippingRepo.AssertExpectations(t)
	sagaRepo.AssertExpectations(t)
}

func TestCancelShipping_ReplayShortCircuits(t *testing.T) {
	shippingRepo := new(MockShippingRepository)
	sagaRepo := new(MockSagaLogRepository)

	sagaLog, orderID := newSagaBeforeDelivery(t)
	compKey := "manual-cancel-1"

	cancelled := &entity.Shipping{
		ID:              uuid.New(),
		OrderID:         orderID,
		Status:          entity.ShippingStatusCancelled,
		CompensationKey: &compKey,
	}
	shippingRepo.On("GetByCompensationKey", mock.Anything, compKey, orderID).Return(cancelled, nil).Once()

	uc := NewShippingUseCase(&fakeTransactor{}, shippingRepo, sagaRepo, nil)
	resp, err := uc.CancelShipping(context.Background(), compKey, entity.CancelShippingRequest{
		OrderID:   orderID.String(),
		SagaLogID: sagaLog.ID.String(),
	})

	assert.NoError(t, err)
	assert.True(t, resp.Success)

	shippingRepo.AssertNotCalled(t, "SaveInTx", mock.Anything, mock.Anything, mock.Anything)
}
