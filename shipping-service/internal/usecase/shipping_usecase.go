package usecase

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/director74/dz9_saga/pkg/database"
	pkgerrors "github.com/director74/dz9_saga/pkg/errors"
	"github.com/director74/dz9_saga/pkg/saga"
	"github.com/director74/dz9_saga/pkg/sagalog"
	"github.com/director74/dz9_saga/shipping-service/internal/entity"
	"github.com/director74/dz9_saga/shipping-service/internal/repo"
)

// SagaLogRepository интерфейс для работы с журналом саг
type SagaLogRepository interface {
	FindByID(ctx context.Context, sagaID uuid.UUID) (*sagalog.SagaLog, error)
	SaveInTx(ctx context.Context, tx *gorm.DB, log *sagalog.SagaLog) error
}

// ShippingUseCase реализует бизнес-логику шага DELIVER_ORDER и его компенсации.
// Доставка — последний шаг: ее успех закрывает сагу терминальным COMPLETED,
// следующего события outbox не существует.
type ShippingUseCase struct {
	tx           database.Transactor
	shippingRepo repo.ShippingRepository
	sagaRepo     SagaLogRepository
	logger       *log.Logger
}

// NewShippingUseCase создает новый use case для доставок
func NewShippingUseCase(
	tx database.Transactor,
	shippingRepo repo.ShippingRepository,
	sagaRepo SagaLogRepository,
	logger *log.Logger,
) *ShippingUseCase {
	if logger == nil {
		logger = log.New(log.Writer(), "[ShippingUseCase] [Saga] ", log.LstdFlags)
	}
	return &ShippingUseCase{
		tx:           tx,
		shippingRepo: shippingRepo,
		sagaRepo:     sagaRepo,
		logger:       logger,
	}
}

// DeliverOrder оформляет доставку заказа и завершает сагу
func (uc *ShippingUseCase) DeliverOrder(ctx context.Context, idempotencyKey string, req entity.DeliverOrderRequest) (saga.Response, error) {
	// Повтор доставки события: результат уже зафиксирован
	existing, err := uc.shippingRepo.GetByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		return saga.Response{}, err
	}
	if existing != nil {
		uc.logger.Printf("Доставка %s: повтор с ключом %s, возвращаем исходный результат", existing.ID, idempotencyKey)
		return saga.OK(existing), nil
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return saga.Response{}, pkgerrors.NewValidationError("orderId", "некорректный UUID")
	}
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return saga.Response{}, pkgerrors.NewValidationError("customerId", "некорректный UUID")
	}
	sagaLogID, err := uuid.Parse(req.SagaLogID)
	if err != nil {
		return saga.Response{}, pkgerrors.NewValidationError("sagaLogId", "некорректный UUID")
	}

	sagaLog, err := uc.sagaRepo.FindByID(ctx, sagaLogID)
	if err != nil {
		return saga.Response{}, err
	}
	if sagaLog == nil {
		return saga.NotApplicable("SagaLog not found"), nil
	}

	shippingID, err := uuid.NewV7()
	if err != nil {
		return saga.Response{}, fmt.Errorf("ошибка генерации идентификатора доставки: %w", err)
	}

	shipping := &entity.Shipping{
		ID:             shippingID,
		OrderID:        orderID,
		SagaLogID:      sagaLogID,
		CustomerID:     customerID,
		Status:         entity.ShippingStatusShipped,
		IdempotencyKey: idempotencyKey,
	}

	if err := sagaLog.MarkStepCompleted(saga.StepDeliverOrder); err != nil {
		return saga.Response{}, err
	}
	if sagaLog.AllStepsCompleted() {
		if err := sagaLog.PromoteStatus(saga.StatusCompleted); err != nil {
			return saga.Response{}, err
		}
	}

	err = uc.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		if err := uc.shippingRepo.CreateInTx(ctx, tx, shipping); err != nil {
			return err
		}
		return uc.sagaRepo.SaveInTx(ctx, tx, sagaLog)
	})
	if err != nil {
		return saga.Response{}, err
	}

	uc.logger.Printf("SagaID=%s: заказ %s отгружен, сага завершена со статусом %s", sagaLogID, orderID, sagaLog.Status)

	return saga.OK(shipping), nil
}

// CancelShipping компенсация шага DELIVER_ORDER: отмена доставки
func (uc *ShippingUseCase) CancelShipping(ctx context.Context, compensationKey string, req entity.CancelShippingRequest) (saga.Response, error) {
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return saga.Response{}, pkgerrors.NewValidationError("orderId", "некорректный UUID")
	}
	sagaLogID, err := uuid.Parse(req.SagaLogID)
	if err != nil {
		return saga.Response{}, pkgerrors.NewValidationError("sagaLogId", "некорректный UUID")
	}

	// Повтор доставки компенсации
	cancelled, err := uc.shippingRepo.GetByCompensationKey(ctx, compensationKey, orderID)
	if err != nil {
		return saga.Response{}, err
	}
	if cancelled != nil {
		uc.logger.Printf("Доставка %s уже отменена (ключ %s), повтор", cancelled.ID, compensationKey)
		return saga.OK(cancelled), nil
	}

	shipping, err := uc.shippingRepo.GetByOrderAndSaga(ctx, orderID, sagaLogID)
	if err != nil {
		return saga.Response{}, err
	}
	if shipping == nil {
		return saga.NotApplicable("Shipping not found"), nil
	}

	sagaLog, err := uc.sagaRepo.FindByID(ctx, sagaLogID)
	if err != nil {
		return saga.Response{}, err
	}
	if sagaLog == nil {
		return saga.NotApplicable("SagaLog not found"), nil
	}

	shipping.Status = entity.ShippingStatusCancelled
	shipping.CompensationKey = &compensationKey

	if err := sagaLog.MarkStepCompensated(saga.StepDeliverOrder); err != nil {
		return saga.Response{}, err
	}

	err = uc.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		if err := uc.shippingRepo.SaveInTx(ctx, tx, shipping); err != nil {
			return err
		}
		return uc.sagaRepo.SaveInTx(ctx, tx, sagaLog)
	})
	if err != nil {
		return saga.Response{}, err
	}

	uc.logger.Printf("SagaID=%s: доставка %s отменена", sagaLogID, shipping.ID)

	return saga.OK(shipping), nil
}

// GetShipping возвращает доставку по идентификатору
func (uc *ShippingUseCase) GetShipping(ctx context.Context, shippingID uuid.UUID) (*entity.Shipping, error) {
	shipping, err := uc.shippingRepo.GetByID(ctx, shippingID)
	if err != nil {
		return nil, err
	}
	if shipping == nil {
		return nil, pkgerrors.NewNotFoundError("Доставка", shippingID)
	}
	return shipping, nil
}
