package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/sync/errgroup"

	"github.com/director74/dz9_saga/pkg/config"
	"github.com/director74/dz9_saga/pkg/saga"
)

// Предел одновременных отправок внутри одного цикла опроса
const maxConcurrentDispatch = 5

// EventRepository интерфейс хранилища событий, нужный паблишеру
type EventRepository interface {
	FindUnpublished(ctx context.Context, batchSize int) ([]Event, error)
	Save(ctx context.Context, event *Event) error
	CountTerminallyFailed(ctx context.Context) (int64, error)
}

// TokenIssuer выпускает внутренние межсервисные токены
type TokenIssuer interface {
	Enabled() bool
	GenerateServiceToken(serviceName string) (string, error)
}

// Publisher фоновый паблишер outbox: опрашивает неопубликованные события и
// доставляет их целевым сервисам по HTTP. Единственный экземпляр на процесс;
// выборка не берет блокировок, поэтому несколько реплик одного сервиса
// требуют выделения лидера или SKIP LOCKED на выборке.
type Publisher struct {
	repo        EventRepository
	cfg         config.PublisherConfig
	services    config.ServicesConfig
	tokens      TokenIssuer
	serviceName string
	client      *http.Client
	logger      *log.Logger

	stopCh chan struct{}
	doneCh chan struct{}

	lastTerminalCount int64
}

// NewPublisher создает паблишер outbox для сервиса serviceName
func NewPublisher(
	repo EventRepository,
	cfg config.PublisherConfig,
	services config.ServicesConfig,
	tokens TokenIssuer,
	serviceName string,
	logger *log.Logger,
) *Publisher {
	if logger == nil {
		logger = log.New(log.Writer(), fmt.Sprintf("[OutboxPublisher] [%s] ", serviceName), log.LstdFlags)
	}

	client := cleanhttp.DefaultPooledClient()
	client.Timeout = cfg.RequestTimeout

	return &Publisher{
		repo:        repo,
		cfg:         cfg,
		services:    services,
		tokens:      tokens,
		serviceName: serviceName,
		client:      client,
		logger:      logger,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start запускает цикл опроса в отдельной горутине
func (p *Publisher) Start() {
	go p.run()
	p.logger.Printf("Паблишер outbox запущен (batch=%d, poll=%s, timeout=%s, retries=%d)",
		p.cfg.BatchSize, p.cfg.PollInterval, p.cfg.RequestTimeout, p.cfg.MaxRetries)
}

// Stop прерывает ожидание между циклами и дожидается завершения отправок
func (p *Publisher) Stop() {
	close(p.stopCh)
	<-p.doneCh
	p.logger.Printf("Паблишер outbox остановлен")
}

func (p *Publisher) run() {
	defer close(p.doneCh)

	for {
		p.ProcessBatch(context.Background())
		p.reportTerminallyFailed(context.Background())

		select {
		case <-p.stopCh:
			return
		case <-time.After(p.cfg.PollInterval):
		}
	}
}

// reportTerminallyFailed сообщает оператору о событиях с исчерпанными
// попытками. Такие события больше не опрашиваются; лог пишется только при
// росте счетчика.
func (p *Publisher) reportTerminallyFailed(ctx context.Context) {
	count, err := p.repo.CountTerminallyFailed(ctx)
	if err != nil {
		p.logger.Printf("[ERROR] Не удалось подсчитать терминально неуспешные события: %v", err)
		return
	}
	if count > p.lastTerminalCount {
		p.logger.Printf("[WARN] В outbox %d событий с исчерпанными попытками публикации, требуется вмешательство оператора", count)
	}
	p.lastTerminalCount = count
}

// ProcessBatch выполняет один цикл опроса: выбирает пачку неопубликованных
// событий и отправляет их с ограниченным параллелизмом. Возвращает число
// успешно опубликованных событий.
func (p *Publisher) ProcessBatch(ctx context.Context) int {
	events, err := p.repo.FindUnpublished(ctx, p.cfg.BatchSize)
	if err != nil {
		p.logger.Printf("[ERROR] Ошибка выборки событий из outbox: %v", err)
		return 0
	}
	if len(events) == 0 {
		return 0
	}

	published := make(chan struct{}, len(events))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentDispatch)

	for i := range events {
		event := events[i]
		g.Go(func() error {
			if p.dispatch(gctx, &event) {
				published <- struct{}{}
			}
			return nil
		})
	}

	g.Wait()
	close(published)

	count := len(published)
	p.logger.Printf("Цикл публикации завершен: отправлено %d из %d", count, len(events))
	return count
}

// dispatch доставляет одно событие. Возвращает true при успешной публикации.
// Успех фиксируется только после записи метаданных в БД, поэтому падение
// процесса между HTTP-ответом и записью приводит к повторной доставке —
// получатель обязан быть идемпотентным.
func (p *Publisher) dispatch(ctx context.Context, event *Event) bool {
	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	if err := p.post(reqCtx, event); err != nil {
		event.MarkAttemptFailed(err.Error())
		if saveErr := p.repo.Save(ctx, event); saveErr != nil {
			p.logger.Printf("[ERROR] Событие %s: не удалось сохранить метаданные неуспешной попытки: %v", event.ID, saveErr)
			return false
		}
		if event.TerminallyFailed() {
			p.logger.Printf("[ERROR] Событие %s (%s) исчерпало %d попыток публикации, последняя ошибка: %v",
				event.ID, event.EventType, event.MaxRetries, err)
		} else {
			p.logger.Printf("[WARN] Событие %s (%s): попытка %d из %d не удалась: %v",
				event.ID, event.EventType, event.PublishAttempts, event.MaxRetries, err)
		}
		return false
	}

	event.MarkPublished(time.Now())
	if err := p.repo.Save(ctx, event); err != nil {
		// Запись не зафиксирована — событие останется неопубликованным и будет
		// доставлено повторно на следующем цикле
		p.logger.Printf("[ERROR] Событие %s: доставлено, но не удалось сохранить отметку публикации: %v", event.ID, err)
		return false
	}

	p.logger.Printf("Событие %s (%s) доставлено в %s%s", event.ID, event.EventType, event.TargetService, event.TargetEndpoint)
	return true
}

// post выполняет HTTP-доставку события целевому сервису
func (p *Publisher) post(ctx context.Context, event *Event) error {
	baseURL, err := p.baseURL(event.TargetService)
	if err != nil {
		return err
	}
	url := baseURL + "/api/v1" + event.TargetEndpoint

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(event.Payload))
	if err != nil {
		return fmt.Errorf("ошибка при создании запроса: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(saga.IdempotencyKeyHeader, saga.OutboundIdempotencyKey(event.AggregateID, event.EventType))

	if p.tokens != nil && p.tokens.Enabled() {
		token, tokenErr := p.tokens.GenerateServiceToken(p.serviceName)
		if tokenErr != nil {
			return fmt.Errorf("ошибка выпуска внутреннего токена: %w", tokenErr)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка при выполнении запроса: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("неуспешный ответ от сервиса %s: %s", event.TargetService, resp.Status)
	}

	// Ответ обязан быть корректным конвертом. success=false с message означает
	// "доставлено, но применять нечего" и публикацией все равно считается.
	var envelope saga.Response
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("ответ сервиса %s не является корректным JSON: %w", event.TargetService, err)
	}

	return nil
}

func (p *Publisher) baseURL(service saga.TargetService) (string, error) {
	switch service {
	case saga.ServiceOrder:
		return p.services.OrderURL, nil
	case saga.ServicePayment:
		return p.services.PaymentURL, nil
	case saga.ServiceInventory:
		return p.services.InventoryURL, nil
	case saga.ServiceShipping:
		return p.services.ShippingURL, nil
	default:
		return "", fmt.Errorf("неизвестный целевой сервис: %s", service)
	}
}
