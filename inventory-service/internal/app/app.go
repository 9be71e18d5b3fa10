package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/director74/dz9_saga/inventory-service/config"
	httpController "github.com/director74/dz9_saga/inventory-service/internal/controller/http"
	"github.com/director74/dz9_saga/inventory-service/internal/entity"
	"github.com/director74/dz9_saga/inventory-service/internal/repo"
	"github.com/director74/dz9_saga/inventory-service/internal/usecase"
	"github.com/director74/dz9_saga/pkg/auth"
	"github.com/director74/dz9_saga/pkg/database"
	"github.com/director74/dz9_saga/pkg/errors"
	"github.com/director74/dz9_saga/pkg/outbox"
	"github.com/director74/dz9_saga/pkg/sagalog"
)

// App представляет приложение
type App struct {
	config     *config.Config
	httpServer *http.Server
	db         *gorm.DB
	publisher  *outbox.Publisher
}

func NewApp(cfg *config.Config) (*App, error) {
	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Postgres)
	if err != nil {
		return nil, errors.AppendPrefix(err, "не удалось подключиться к базе данных")
	}

	// Автомиграция моделей сервиса склада
	if err := database.AutoMigrateWithCleanup(db, &entity.Inventory{}, &entity.Reservation{}, &sagalog.SagaLog{}, &outbox.Event{}); err != nil {
		return nil, errors.AppendPrefix(err, "не удалось выполнить миграцию")
	}

	// Внутренняя межсервисная авторизация
	jwtManager := auth.NewJWTManager(auth.NewConfig(cfg.Internal.SigningKey, cfg.Internal.TokenTTL))
	internalAuth := auth.NewInternalAuthMiddleware(jwtManager)

	// Создаем репозитории
	inventoryRepo := repo.NewInventoryRepository(db)
	reservationRepo := repo.NewReservationRepository(db)
	sagaRepo := sagalog.NewRepository(db)
	outboxRepo := outbox.NewRepository(db)
	transactor := database.NewGormTransactor(db)

	// Создаем use case
	inventoryUseCase := usecase.NewInventoryUseCase(
		transactor, inventoryRepo, reservationRepo, sagaRepo, outboxRepo,
		cfg.Inventory.DefaultQuantity, cfg.Publisher.MaxRetries, nil,
	)

	// Фоновый паблишер outbox этого сервиса
	publisher := outbox.NewPublisher(outboxRepo, cfg.Publisher, cfg.Services, jwtManager, "inventory-service", nil)

	// Создаем HTTP контроллер
	inventoryHandler := httpController.NewInventoryHandler(inventoryUseCase, internalAuth)

	// Инициализируем Gin роутер
	router := gin.Default()

	// Добавляем middleware для обработки ошибок и восстановления после паники
	router.Use(errors.RecoveryMiddleware())
	router.Use(errors.ErrorMiddleware())

	// Настраиваем обработчики для 404 и 405 ошибок
	router.NoRoute(errors.NotFoundHandler())
	router.NoMethod(errors.MethodNotAllowedHandler())

	// Регистрируем эндпоинты
	inventoryHandler.RegisterRoutes(router)

	// Настраиваем HTTP сервер
	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &App{
		config:     cfg,
		httpServer: httpServer,
		db:         db,
		publisher:  publisher,
	}, nil
}

// Run запускает приложение
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Запускаем паблишер outbox
	a.publisher.Start()

	// Запускаем HTTP сервер в горутине
	go func() {
		log.Printf("HTTP сервер запущен на порту %s", a.config.HTTP.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Ошибка запуска HTTP сервера: %v", err)
		}
	}()

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Println("Получен сигнал завершения, закрываем приложение...")
	case <-ctx.Done():
		log.Println("Контекст завершен, закрываем приложение...")
	}

	return a.Shutdown()
}

// Shutdown корректно завершает работу приложения
func (a *App) Shutdown() error {
	errGroup := errors.NewErrorGroup()

	if a.publisher != nil {
		a.publisher.Stop()
	}

	if a.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := a.httpServer.Shutdown(ctx); err != nil {
			errGroup.AddPrefix(err, "ошибка при закрытии HTTP сервера")
		}
	}

	if a.db != nil {
		if err := database.CloseDB(a.db); err != nil {
			errGroup.AddPrefix(err, "ошибка при закрытии соединения с базой данных")
		}
	}

	if errGroup.HasErrors() {
		errors.LogError(errGroup, "Shutdown")
		return errGroup
	}

	log.Println("Приложение успешно завершено")
	return nil
}
