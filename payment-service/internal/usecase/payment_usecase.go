package usecase

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/director74/dz9_saga/payment-service/internal/entity"
	"github.com/director74/dz9_saga/payment-service/internal/repo"
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

// PaymentUseCase реализует бизнес-логику шага PROCESS_PAYMENT и его компенсации
type PaymentUseCase struct {
	tx          database.Transactor
	paymentRepo repo.PaymentRepository
	sagaRepo    SagaLogRepository
	outboxRepo  OutboxRepository
	gateway     PaymentGateway
	maxRetries  int
	logger      *log.Logger
}

// NewPaymentUseCase создает новый use case для платежей
func NewPaymentUseCase(
	tx database.Transactor,
	paymentRepo repo.PaymentRepository,
	sagaRepo SagaLogRepository,
	outboxRepo OutboxRepository,
	gateway PaymentGateway,
	maxRetries int,
	logger *log.Logger,
) *PaymentUseCase {
	if logger == nil {
		logger = log.New(log.Writer(), "[PaymentUseCase] [Saga] ", log.LstdFlags)
	}
	return &PaymentUseCase{
		tx:          tx,
		paymentRepo: paymentRepo,
		sagaRepo:    sagaRepo,
		outboxRepo:  outboxRepo,
		gateway:     gateway,
		maxRetries:  maxRetries,
		logger:      logger,
	}
}

// ProcessPayment обрабатывает платеж саги. Строка платежа, запись шага в
// журнале и следующее событие outbox фиксируются одной транзакцией.
func (uc *PaymentUseCase) ProcessPayment(ctx context.Context, idempotencyKey string, req entity.ProcessPaymentRequest) (saga.Response, error) {
	// Повтор доставки: результат уже зафиксирован
	existing, err := uc.paymentRepo.GetByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		return saga.Response{}, err
	}
	if existing != nil {
		return uc.replayProcess(existing), nil
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return saga.Response{}, pkgerrors.NewValidationError("orderId", "некорректный UUID")
	}
	sagaLogID, err := uuid.Parse(req.SagaLogID)
	if err != nil {
		return saga.Response{}, pkgerrors.NewValidationError("sagaLogId", "некорректный UUID")
	}
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return saga.Response{}, pkgerrors.NewValidationError("customerId", "некорректный UUID")
	}

	sagaLog, err := uc.sagaRepo.FindByID(ctx, sagaLogID)
	if err != nil {
		return saga.Response{}, err
	}
	if sagaLog == nil {
		return saga.NotApplicable("SagaLog not found"), nil
	}

	paymentID, err := uuid.NewV7()
	if err != nil {
		return saga.Response{}, fmt.Errorf("ошибка генерации идентификатора платежа: %w", err)
	}

	payment := &entity.Payment{
		ID:             paymentID,
		OrderID:        orderID,
		SagaLogID:      sagaLogID,
		CustomerID:     customerID,
		Amount:         req.Amount,
		IdempotencyKey: idempotencyKey,
	}

	transactionID, chargeErr := uc.gateway.Charge(ctx, req.Amount)
	if chargeErr != nil {
		return uc.processFailure(ctx, payment, sagaLog, chargeErr)
	}

	payment.Status = entity.PaymentStatusCompleted
	payment.TransactionID = transactionID

	if err := sagaLog.MarkStepCompleted(saga.StepProcessPayment); err != nil {
		return saga.Response{}, err
	}

	event, err := outbox.NewEvent(orderID, saga.EventPaymentProcessed, saga.UpdateInventoryPayload{
		OrderID:   orderID.String(),
		ProductID: sagaLog.ProductID.String(),
		Quantity:  sagaLog.Quantity,
		SagaLogID: sagaLogID.String(),
	}, uc.maxRetries)
	if err != nil {
		return saga.Response{}, err
	}

	err = uc.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		if err := uc.paymentRepo.CreateInTx(ctx, tx, payment); err != nil {
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

	uc.logger.Printf("SagaID=%s: платеж %s проведен (%s), событие %s записано в outbox",
		sagaLogID, paymentID, transactionID, saga.EventPaymentProcessed)

	return saga.OK(payment), nil
}

// processFailure фиксирует отклоненный платеж и запускает обратную цепочку
func (uc *PaymentUseCase) processFailure(ctx context.Context, payment *entity.Payment, sagaLog *sagalog.SagaLog, chargeErr error) (saga.Response, error) {
	reason := chargeErr.Error()
	payment.Status = entity.PaymentStatusFailed
	payment.FailureReason = &reason

	if err := sagaLog.MarkStepFailed(saga.StepProcessPayment, reason); err != nil {
		return saga.Response{}, err
	}
	if err := sagaLog.PromoteStatus(saga.StatusCompensating); err != nil {
		return saga.Response{}, err
	}

	event, err := outbox.NewEvent(payment.OrderID, saga.EventPaymentFailed, saga.CompensateOrderPayload{
		OrderID: payment.OrderID.String(),
	}, uc.maxRetries)
	if err != nil {
		return saga.Response{}, err
	}

	err = uc.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		if err := uc.paymentRepo.CreateInTx(ctx, tx, payment); err != nil {
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

	uc.logger.Printf("SagaID=%s: платеж по заказу %s отклонен (%s), событие %s записано в outbox",
		sagaLog.ID, payment.OrderID, reason, saga.EventPaymentFailed)

	return saga.Failed(reason), nil
}

// replayProcess воспроизводит ответ исходной обработки платежа
func (uc *PaymentUseCase) replayProcess(payment *entity.Payment) saga.Response {
	uc.logger.Printf("Платеж %s: повтор обработки с ключом %s, возвращаем исходный результат", payment.ID, payment.IdempotencyKey)
	if payment.Status == entity.PaymentStatusFailed {
		reason := "платеж отклонен"
		if payment.FailureReason != nil {
			reason = *payment.FailureReason
		}
		return saga.Failed(reason)
	}
	return saga.OK(payment)
}

// RefundPayment компенсация шага PROCESS_PAYMENT: возврат платежа и передача
// обратной цепочки дальше, к компенсации заказа
func (uc *PaymentUseCase) RefundPayment(ctx context.Context, compensationKey string, req entity.RefundPaymentRequest) (saga.Response, error) {
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return saga.Response{}, pkgerrors.NewValidationError("orderId", "некорректный UUID")
	}
	sagaLogID, err := uuid.Parse(req.SagaLogID)
	if err != nil {
		return saga.Response{}, pkgerrors.NewValidationError("sagaLogId", "некорректный UUID")
	}

	// Повтор доставки компенсации
	compensated, err := uc.paymentRepo.GetByCompensationKey(ctx, compensationKey, orderID)
	if err != nil {
		return saga.Response{}, err
	}
	if compensated != nil {
		uc.logger.Printf("Платеж %s уже возвращен (ключ %s), повтор", compensated.ID, compensationKey)
		return saga.OK(compensated), nil
	}

	payment, err := uc.paymentRepo.GetByOrderAndSaga(ctx, orderID, sagaLogID)
	if err != nil {
		return saga.Response{}, err
	}
	if payment == nil {
		return saga.NotApplicable("Payment not found"), nil
	}
	if payment.Status != entity.PaymentStatusCompleted {
		return saga.NotApplicable(fmt.Sprintf("Платеж в статусе %s возврату не подлежит", payment.Status)), nil
	}

	sagaLog, err := uc.sagaRepo.FindByID(ctx, sagaLogID)
	if err != nil {
		return saga.Response{}, err
	}
	if sagaLog == nil {
		return saga.NotApplicable("SagaLog not found"), nil
	}

	payment.Status = entity.PaymentStatusRefunded
	payment.CompensationKey = &compensationKey

	if err := sagaLog.MarkStepCompensated(saga.StepProcessPayment); err != nil {
		return saga.Response{}, err
	}

	event, err := outbox.NewEvent(orderID, saga.EventOrderCompensated, saga.CompensateOrderPayload{
		OrderID: orderID.String(),
	}, uc.maxRetries)
	if err != nil {
		return saga.Response{}, err
	}

	err = uc.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		if err := uc.paymentRepo.SaveInTx(ctx, tx, payment); err != nil {
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

	uc.logger.Printf("SagaID=%s: платеж %s возвращен, событие %s записано в outbox",
		sagaLogID, payment.ID, saga.EventOrderCompensated)

	return saga.OK(payment), nil
}

// GetPayment возвращает платеж по идентификатору
func (uc *PaymentUseCase) GetPayment(ctx context.Context, paymentID uuid.UUID) (*entity.Payment, error) {
	payment, err := uc.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, pkgerrors.NewNotFoundError("Платеж", paymentID)
	}
	return payment, nil
}
