package config

import (
	"github.com/director74/dz9_saga/pkg/config"
)

// Config содержит конфигурацию сервиса заказов
type Config struct {
	HTTP      config.HTTPConfig
	Postgres  config.PostgresConfig
	Publisher config.PublisherConfig
	Services  config.ServicesConfig
	Internal  config.InternalAuthConfig
}

func NewConfig() (*Config, error) {
	commonConfig := config.LoadCommonConfig("orders", "3001")

	return &Config{
		HTTP:      commonConfig.HTTP,
		Postgres:  commonConfig.Postgres,
		Publisher: commonConfig.Publisher,
		Services:  commonConfig.Services,
		Internal:  commonConfig.Internal,
	}, nil
}
