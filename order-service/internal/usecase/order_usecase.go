package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/director74/dz9_saga/order-service/internal/entity"
	"github.com/director74/dz9_saga/order-service/internal/repo"
	"github.com/director74/dz9_saga/pkg/database"
	pkgerrors "github.com/director74/dz9_saga/pkg/errors"
	"github.com/director74/dz9_saga/pkg/outbox"
	"github.com/director74/dz9_saga/pkg/saga"
	"github.com/director74/dz9_saga/pkg/sagalog"
)

// SagaLogRepository интерфейс для работы с журналом саг
type SagaLogRepository interface {
	FindByIdempotencyKey(ctx context.Context, key uuid.UUID) (*sagalog.SagaLog, error)
	FindByID(ctx context.Context, sagaID uuid.UUID) (*sagalog.SagaLog, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*sagalog.SagaLog, error)
	CreateInTx(ctx context.Context, tx *gorm.DB, log *sagalog.SagaLog) error
	SaveInTx(ctx context.Context, tx *gorm.DB, log *sagalog.SagaLog) error
}

// OutboxRepository интерфейс для добавления событий в outbox
type OutboxRepository interface {
	AppendInTx(ctx context.Context, tx *gorm.DB, event *outbox.Event) error
}

// OrderUseCase бизнес-логика сервиса заказов: открытие саги и ее терминальная
// компенсация
type OrderUseCase struct {
	tx         database.Transactor
	orderRepo  repo.OrderRepository
	sagaRepo   SagaLogRepository
	outboxRepo OutboxRepository
	maxRetries int
	logger     *log.Logger
}

// NewOrderUseCase создает новый use case для заказов
func NewOrderUseCase(
	tx database.Transactor,
	orderRepo repo.OrderRepository,
	sagaRepo SagaLogRepository,
	outboxRepo OutboxRepository,
	maxRetries int,
	logger *log.Logger,
) *OrderUseCase {
	if logger == nil {
		logger = log.New(log.Writer(), "[OrderUseCase] [Saga] ", log.LstdFlags)
	}
	return &OrderUseCase{
		tx:         tx,
		orderRepo:  orderRepo,
		sagaRepo:   sagaRepo,
		outboxRepo: outboxRepo,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// StartOrder открывает сагу заказа. Журнал саги, строка заказа и событие
// OrderCreated фиксируются одной локальной транзакцией. Повтор с тем же ключом
// идемпотентности возвращает исходный результат без побочных эффектов.
func (uc *OrderUseCase) StartOrder(ctx context.Context, idempotencyKey uuid.UUID, req entity.StartOrderRequest) (saga.Response, error) {
	// Быстрый путь: сага с этим ключом уже открыта
	existing, err := uc.sagaRepo.FindByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		return saga.Response{}, err
	}
	if existing != nil {
		return uc.replayStart(ctx, existing)
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return saga.Response{}, pkgerrors.NewValidationError("customerId", "некорректный UUID")
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return saga.Response{}, pkgerrors.NewValidationError("productId", "некорректный UUID")
	}

	sagaLog, err := sagalog.NewSagaLog(idempotencyKey, customerID, productID, req.Quantity, req.TotalPrice)
	if err != nil {
		return saga.Response{}, err
	}

	orderID, err := uuid.NewV7()
	if err != nil {
		return saga.Response{}, fmt.Errorf("ошибка генерации идентификатора заказа: %w", err)
	}

	order := &entity.Order{
		ID:             orderID,
		CustomerID:     customerID,
		ProductID:      productID,
		Quantity:       req.Quantity,
		TotalPrice:     req.TotalPrice,
		Status:         entity.OrderStatusConfirmed,
		IdempotencyKey: idempotencyKey,
	}

	// Первый шаг выполняется локально: заказ создан
	sagaLog.OrderID = &orderID
	if err := sagaLog.MarkStepCompleted(saga.StepCreateOrder); err != nil {
		return saga.Response{}, err
	}
	if err := sagaLog.PromoteStatus(saga.StatusInProgress); err != nil {
		return saga.Response{}, err
	}

	event, err := outbox.NewEvent(orderID, saga.EventOrderCreated, saga.ProcessPaymentPayload{
		Amount:     req.TotalPrice,
		CustomerID: customerID.String(),
		OrderID:    orderID.String(),
		SagaLogID:  sagaLog.ID.String(),
	}, uc.maxRetries)
	if err != nil {
		return saga.Response{}, err
	}

	err = uc.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		if err := uc.sagaRepo.CreateInTx(ctx, tx, sagaLog); err != nil {
			return err
		}
		if err := uc.orderRepo.CreateInTx(ctx, tx, order); err != nil {
			return err
		}
		return uc.outboxRepo.AppendInTx(ctx, tx, event)
	})
	if err != nil {
		// Параллельный старт с тем же ключом успел первым: возвращаем его результат
		if errors.Is(err, pkgerrors.ErrDuplicateIdempotencyKey) {
			winner, findErr := uc.sagaRepo.FindByIdempotencyKey(ctx, idempotencyKey)
			if findErr != nil {
				return saga.Response{}, findErr
			}
			if winner != nil {
				return uc.replayStart(ctx, winner)
			}
		}
		return saga.Response{}, err
	}

	uc.logger.Printf("SagaID=%s: сага открыта для заказа %s, событие %s записано в outbox", sagaLog.ID, orderID, saga.EventOrderCreated)

	return saga.OK(entity.StartOrderResponse{
		OrderID:   orderID.String(),
		SagaLogID: sagaLog.ID.String(),
		Status:    string(order.Status),
	}), nil
}

// replayStart воспроизводит ответ исходного старта саги
func (uc *OrderUseCase) replayStart(ctx context.Context, sagaLog *sagalog.SagaLog) (saga.Response, error) {
	status := string(entity.OrderStatusConfirmed)
	orderIDStr := ""
	if sagaLog.OrderID != nil {
		orderIDStr = sagaLog.OrderID.String()
		order, err := uc.orderRepo.GetByID(ctx, *sagaLog.OrderID)
		if err != nil {
			return saga.Response{}, err
		}
		if order != nil {
			status = string(order.Status)
		}
	}

	uc.logger.Printf("SagaID=%s: повтор старта с ключом %s, возвращаем исходный результат", sagaLog.ID, sagaLog.IdempotencyKey)

	return saga.OK(entity.StartOrderResponse{
		OrderID:   orderIDStr,
		SagaLogID: sagaLog.ID.String(),
		Status:    status,
	}), nil
}

// CompensateOrder терминальное звено обратной цепочки: помечает заказ
// компенсированным и закрывает сагу статусом COMPENSATED
func (uc *OrderUseCase) CompensateOrder(ctx context.Context, compensationKey string, req entity.CompensateOrderRequest) (saga.Response, error) {
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return saga.Response{}, pkgerrors.NewValidationError("orderId", "некорректный UUID")
	}

	order, err := uc.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return saga.Response{}, err
	}
	if order == nil {
		return saga.NotApplicable("Order not found"), nil
	}

	// Ключ компенсации по умолчанию детерминирован — ручной вызов без заголовка
	// остается идемпотентным
	if compensationKey == "" {
		compensationKey = saga.OutboundIdempotencyKey(orderID, saga.EventOrderCompensated)
	}

	if order.CompensationKey != nil && *order.CompensationKey == compensationKey {
		uc.logger.Printf("Заказ %s уже компенсирован (ключ %s), повтор", orderID, compensationKey)
		return saga.OK(order), nil
	}

	sagaLog, err := uc.sagaRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		return saga.Response{}, err
	}
	if sagaLog == nil {
		return saga.NotApplicable("SagaLog not found"), nil
	}

	order.Status = entity.OrderStatusCompensated
	order.CompensationKey = &compensationKey

	if err := sagaLog.MarkStepCompensated(saga.StepCreateOrder); err != nil {
		return saga.Response{}, err
	}
	if sagaLog.CompletedStepsCompensated() {
		if err := sagaLog.PromoteStatus(saga.StatusCompensated); err != nil {
			return saga.Response{}, err
		}
	}

	err = uc.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		if err := uc.orderRepo.SaveInTx(ctx, tx, order); err != nil {
			return err
		}
		return uc.sagaRepo.SaveInTx(ctx, tx, sagaLog)
	})
	if err != nil {
		return saga.Response{}, err
	}

	uc.logger.Printf("SagaID=%s: заказ %s компенсирован, статус саги %s", sagaLog.ID, orderID, sagaLog.Status)

	return saga.OK(order), nil
}

// GetOrder возвращает заказ по идентификатору
func (uc *OrderUseCase) GetOrder(ctx context.Context, orderID uuid.UUID) (*entity.Order, error) {
	order, err := uc.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, pkgerrors.NewNotFoundError("Заказ", orderID)
	}
	return order, nil
}

// GetSagaStatus возвращает журнал саги заказа для оператора
func (uc *OrderUseCase) GetSagaStatus(ctx context.Context, orderID uuid.UUID) (*sagalog.SagaLog, error) {
	sagaLog, err := uc.sagaRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if sagaLog == nil {
		return nil, pkgerrors.NewNotFoundError("Сага заказа", orderID)
	}
	return sagaLog, nil
}
