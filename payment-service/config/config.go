package config

import (
	"github.com/director74/dz9_saga/pkg/config"
)

// Config содержит конфигурацию платежного сервиса
type Config struct {
	HTTP      config.HTTPConfig
	Postgres  config.PostgresConfig
	Publisher config.PublisherConfig
	Services  config.ServicesConfig
	Internal  config.InternalAuthConfig
	Payment   PaymentConfig
}

// PaymentConfig содержит настройки симуляции платежного шлюза
type PaymentConfig struct {
	FailureRate float64
}

func NewConfig() (*Config, error) {
	commonConfig := config.LoadCommonConfig("payments", "3002")

	return &Config{
		HTTP:      commonConfig.HTTP,
		Postgres:  commonConfig.Postgres,
		Publisher: commonConfig.Publisher,
		Services:  commonConfig.Services,
		Internal:  commonConfig.Internal,
		Payment: PaymentConfig{
			// Доля отказов демонстрационного шлюза, настраивается извне
			FailureRate: config.GetEnvAsFloat("PAYMENT_FAILURE_RATE", 0.1),
		},
	}, nil
}
