package usecase

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/director74/dz9_saga/inventory-service/internal/entity"
	"github.com/director74/dz9_saga/inventory-service/internal/repo"
	"github.com/director74/dz9_saga/pkg/database"
	pkgerrors "github.com/director74/dz9_saga/pkg/errors"
	"github.com/director74/dz9_saga/pkg/outbox"
	"github.com/director74/dz9_saga/pkg/saga"
	"github.com/director74/dz9_saga/pkg/sagalog"
)

// SagaLogRepository интерфейс для работы с журналом саг
type SagaLogRepository interface {
	FindByID(ctx context.Context, sagaID uuid.UUID) (*sagalog.SagaLog, error)
	SaveInTx(ctx context.Context, tx *gorm.DB, log *sagalog.SagaLog) error
}

// OutboxRepository интерфейс для добавления событий в outbox
type OutboxRepository interface {
	AppendInTx(ctx context.Context, tx *gorm.DB, event *outbox.Event) error
}

// InventoryUseCase реализует бизнес-логику шага UPDATE_INVENTORY и его
// компенсации
type InventoryUseCase struct {
	tx              database.Transactor
	inventoryRepo   repo.InventoryRepository
	reservationRepo repo.ReservationRepository
	sagaRepo        SagaLogRepository
	outboxRepo      OutboxRepository
	defaultQuantity int
	maxRetries      int
	logger          *log.Logger
}

// NewInventoryUseCase создает новый use case для склада
func NewInventoryUseCase(
	tx database.Transactor,
	inventoryRepo repo.InventoryRepository,
	reservationRepo repo.ReservationRepository,
	sagaRepo SagaLogRepository,
	outboxRepo OutboxRepository,
	defaultQuantity int,
	maxRetries int,
	logger *log.Logger,
) *InventoryUseCase {
	if logger == nil {
		logger = log.New(log.Writer(), "[InventoryUseCase] [Saga] ", log.LstdFlags)
	}
	if defaultQuantity <= 0 {
		defaultQuantity = 100
	}
	return &InventoryUseCase{
		tx:              tx,
		inventoryRepo:   inventoryRepo,
		reservationRepo: reservationRepo,
		sagaRepo:        sagaRepo,
		outboxRepo:      outboxRepo,
		defaultQuantity: defaultQuantity,
		maxRetries:      maxRetries,
		logger:          logger,
	}
}

// UpdateInventory резервирует товар для заказа. Позиция создается с остатком
// по умолчанию, если ее нет; проверка доступности и списание атомарны.
func (uc *InventoryUseCase) UpdateInventory(ctx context.Context, idempotencyKey string, req entity.UpdateInventoryRequest) (saga.Response, error) {
	// Повтор доставки: результат уже зафиксирован
	existing, err := uc.reservationRepo.GetByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		return saga.Response{}, err
	}
	if existing != nil {
		return uc.replayUpdate(existing), nil
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return saga.Response{}, pkgerrors.NewValidationError("orderId", "некорректный UUID")
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return saga.Response{}, pkgerrors.NewValidationError("productId", "некорректный UUID")
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

	reservationID, err := uuid.NewV7()
	if err != nil {
		return saga.Response{}, fmt.Errorf("ошибка генерации идентификатора резервации: %w", err)
	}

	reservation := &entity.Reservation{
		ID:             reservationID,
		OrderID:        orderID,
		SagaLogID:      sagaLogID,
		ProductID:      productID,
		Quantity:       req.Quantity,
		IdempotencyKey: idempotencyKey,
	}

	var reserved bool
	err = uc.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		if err := uc.inventoryRepo.EnsureExistsInTx(ctx, tx, productID, uc.defaultQuantity); err != nil {
			return err
		}

		var reserveErr error
		reserved, reserveErr = uc.inventoryRepo.TryReserveInTx(ctx, tx, productID, req.Quantity)
		if reserveErr != nil {
			return reserveErr
		}

		if reserved {
			reservation.Status = entity.ReservationStatusReserved
			if err := sagaLog.MarkStepCompleted(saga.StepUpdateInventory); err != nil {
				return err
			}
			event, err := outbox.NewEvent(orderID, saga.EventInventoryUpdated, saga.DeliverOrderPayload{
				CustomerID: sagaLog.CustomerID.String(),
				OrderID:    orderID.String(),
				SagaLogID:  sagaLogID.String(),
			}, uc.maxRetries)
			if err != nil {
				return err
			}
			if err := uc.reservationRepo.CreateInTx(ctx, tx, reservation); err != nil {
				return err
			}
			if err := uc.sagaRepo.SaveInTx(ctx, tx, sagaLog); err != nil {
				return err
			}
			return uc.outboxRepo.AppendInTx(ctx, tx, event)
		}

		reason := fmt.Sprintf("недостаточно товара %s для резервации %d единиц", productID, req.Quantity)
		reservation.Status = entity.ReservationStatusFailed
		reservation.FailureReason = &reason
		if err := sagaLog.MarkStepFailed(saga.StepUpdateInventory, reason); err != nil {
			return err
		}
		if err := sagaLog.PromoteStatus(saga.StatusCompensating); err != nil {
			return err
		}
		event, err := outbox.NewEvent(orderID, saga.EventInventoryFailed, saga.RefundPaymentPayload{
			OrderID:   orderID.String(),
			SagaLogID: sagaLogID.String(),
		}, uc.maxRetries)
		if err != nil {
			return err
		}
		if err := uc.reservationRepo.CreateInTx(ctx, tx, reservation); err != nil {
			return err
		}
		if err := uc.sagaRepo.SaveInTx(ctx, tx, sagaLog); err != nil {
			return err
		}
		return uc.outboxRepo.AppendInTx(ctx, tx, event)
	})
	if err != nil {
		return saga.Response{}, err
	}

	if reserved {
		uc.logger.Printf("SagaID=%s: зарезервировано %d единиц товара %s, событие %s записано в outbox",
			sagaLogID, req.Quantity, productID, saga.EventInventoryUpdated)
		return saga.OK(reservation), nil
	}

	uc.logger.Printf("SagaID=%s: недостаточно товара %s, событие %s записано в outbox",
		sagaLogID, productID, saga.EventInventoryFailed)
	return saga.Failed(*reservation.FailureReason), nil
}

// replayUpdate воспроизводит ответ исходной резервации
func (uc *InventoryUseCase) replayUpdate(reservation *entity.Reservation) saga.Response {
	uc.logger.Printf("Резервация %s: повтор с ключом %s, возвращаем исходный результат", reservation.ID, reservation.IdempotencyKey)
	if reservation.Status == entity.ReservationStatusFailed {
		reason := "недостаточно товара для резервации"
		if reservation.FailureReason != nil {
			reason = *reservation.FailureReason
		}
		return saga.Failed(reason)
	}
	return saga.OK(reservation)
}

// CompensateInventory компенсация шага UPDATE_INVENTORY: возврат остатка.
// Дальше обратная цепочка не передается: автоматические пути отката
// заканчиваются раньше этого шага, endpoint доступен оператору.
func (uc *InventoryUseCase) CompensateInventory(ctx context.Context, compensationKey string, req entity.CompensateInventoryRequest) (saga.Response, error) {
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return saga.Response{}, pkgerrors.NewValidationError("orderId", "некорректный UUID")
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return saga.Response{}, pkgerrors.NewValidationError("productId", "некорректный UUID")
	}
	sagaLogID, err := uuid.Parse(req.SagaLogID)
	if err != nil {
		return saga.Response{}, pkgerrors.NewValidationError("sagaLogId", "некорректный UUID")
	}

	// Повтор доставки компенсации
	compensated, err := uc.reservationRepo.GetByCompensationKey(ctx, compensationKey, orderID)
	if err != nil {
		return saga.Response{}, err
	}
	if compensated != nil {
		uc.logger.Printf("Резервация %s уже компенсирована (ключ %s), повтор", compensated.ID, compensationKey)
		return saga.OK(compensated), nil
	}

	reservation, err := uc.reservationRepo.GetByOrderAndSaga(ctx, orderID, sagaLogID)
	if err != nil {
		return saga.Response{}, err
	}
	if reservation == nil {
		return saga.NotApplicable("Reservation not found"), nil
	}
	if reservation.Status != entity.ReservationStatusReserved {
		return saga.NotApplicable(fmt.Sprintf("Резервация в статусе %s возврату не подлежит", reservation.Status)), nil
	}
	if reservation.ProductID != productID {
		return saga.Response{}, pkgerrors.NewBadRequestError("товар не совпадает с исходной резервацией")
	}

	sagaLog, err := uc.sagaRepo.FindByID(ctx, sagaLogID)
	if err != nil {
		return saga.Response{}, err
	}
	if sagaLog == nil {
		return saga.NotApplicable("SagaLog not found"), nil
	}

	reservation.Status = entity.ReservationStatusCompensated
	reservation.CompensationKey = &compensationKey

	if err := sagaLog.MarkStepCompensated(saga.StepUpdateInventory); err != nil {
		return saga.Response{}, err
	}

	err = uc.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		if err := uc.inventoryRepo.RestoreInTx(ctx, tx, productID, reservation.Quantity); err != nil {
			return err
		}
		if err := uc.reservationRepo.SaveInTx(ctx, tx, reservation); err != nil {
			return err
		}
		return uc.sagaRepo.SaveInTx(ctx, tx, sagaLog)
	})
	if err != nil {
		return saga.Response{}, err
	}

	uc.logger.Printf("SagaID=%s: резервация %s компенсирована, остаток товара %s восстановлен",
		sagaLogID, reservation.ID, productID)

	return saga.OK(reservation), nil
}

// InitializeInventory устанавливает остаток товара
func (uc *InventoryUseCase) InitializeInventory(ctx context.Context, req entity.InitializeInventoryRequest) (*entity.Inventory, error) {
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, pkgerrors.NewValidationError("productId", "некорректный UUID")
	}
	return uc.inventoryRepo.Upsert(ctx, productID, req.Quantity)
}

// GetInventory возвращает остаток по товару
func (uc *InventoryUseCase) GetInventory(ctx context.Context, productID uuid.UUID) (*entity.Inventory, error) {
	inv, err := uc.inventoryRepo.GetByProductID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, pkgerrors.NewNotFoundError("Остаток товара", productID)
	}
	return inv, nil
}
