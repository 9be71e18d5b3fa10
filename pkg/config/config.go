package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// CommonConfig содержит общую конфигурацию, используемую во всех сервисах
type CommonConfig struct {
	HTTP      HTTPConfig
	Postgres  PostgresConfig
	Publisher PublisherConfig
	Services  ServicesConfig
	Internal  InternalAuthConfig
}

// HTTPConfig содержит настройки HTTP сервера
type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig содержит настройки базы данных PostgreSQL
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// PublisherConfig содержит настройки фонового паблишера outbox
type PublisherConfig struct {
	BatchSize      int
	PollInterval   time.Duration
	RequestTimeout time.Duration
	MaxRetries     int
}

// ServicesConfig содержит базовые URL всех участников саги
type ServicesConfig struct {
	OrderURL     string
	PaymentURL   string
	InventoryURL string
	ShippingURL  string
}

// InternalAuthConfig содержит настройки внутренней межсервисной авторизации.
// Пустой ключ подписи отключает проверку токенов (режим разработки).
type InternalAuthConfig struct {
	SigningKey string
	TokenTTL   time.Duration
}

// LoadCommonConfig загружает общую конфигурацию из переменных окружения
func LoadCommonConfig(serviceName string, port string) *CommonConfig {
	// Загружаем переменные окружения из .env файла, если он существует
	godotenv.Load()

	return &CommonConfig{
		HTTP: HTTPConfig{
			Port:         GetEnv("HTTP_PORT", port),
			ReadTimeout:  GetEnvAsDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: GetEnvAsDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
		},
		Postgres: PostgresConfig{
			Host:     GetEnv("POSTGRES_HOST", "localhost"),
			Port:     GetEnv("POSTGRES_PORT", "5432"),
			User:     GetEnv("POSTGRES_USER", "postgres"),
			Password: GetEnv("POSTGRES_PASSWORD", "postgres"),
			DBName:   GetEnv("POSTGRES_DB", serviceName),
			SSLMode:  GetEnv("POSTGRES_SSLMODE", "disable"),
		},
		Publisher: LoadPublisherConfig(),
		Services:  LoadServicesConfig(),
		Internal:  LoadInternalAuthConfig(),
	}
}

// LoadPublisherConfig загружает настройки паблишера outbox из переменных окружения
func LoadPublisherConfig() PublisherConfig {
	return PublisherConfig{
		BatchSize:      GetEnvAsInt("BATCH_SIZE", 10),
		PollInterval:   time.Duration(GetEnvAsInt("POLL_INTERVAL_MS", 1000)) * time.Millisecond,
		RequestTimeout: time.Duration(GetEnvAsInt("REQUEST_TIMEOUT_MS", 5000)) * time.Millisecond,
		MaxRetries:     GetEnvAsInt("MAX_RETRIES", 3),
	}
}

// LoadServicesConfig загружает базовые URL сервисов-участников из переменных окружения
func LoadServicesConfig() ServicesConfig {
	return ServicesConfig{
		OrderURL:     GetEnv("ORDER_SERVICE_URL", "http://localhost:3001"),
		PaymentURL:   GetEnv("PAYMENT_SERVICE_URL", "http://localhost:3002"),
		InventoryURL: GetEnv("INVENTORY_SERVICE_URL", "http://localhost:3003"),
		ShippingURL:  GetEnv("SHIPPING_SERVICE_URL", "http://localhost:3004"),
	}
}

// LoadInternalAuthConfig загружает настройки внутренней авторизации
func LoadInternalAuthConfig() InternalAuthConfig {
	return InternalAuthConfig{
		SigningKey: GetEnv("INTERNAL_JWT_SIGNING_KEY", ""),
		TokenTTL:   GetEnvAsDuration("INTERNAL_JWT_TOKEN_TTL", time.Minute),
	}
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := GetEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func GetEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := GetEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := GetEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
