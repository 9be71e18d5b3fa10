package config

import (
	"github.com/director74/dz9_saga/pkg/config"
)

// Config содержит конфигурацию сервиса склада
type Config struct {
	HTTP      config.HTTPConfig
	Postgres  config.PostgresConfig
	Publisher config.PublisherConfig
	Services  config.ServicesConfig
	Internal  config.InternalAuthConfig
	Inventory InventoryConfig
}

// InventoryConfig содержит настройки склада
type InventoryConfig struct {
	DefaultQuantity int
}

func NewConfig() (*Config, error) {
	commonConfig := config.LoadCommonConfig("inventories", "3003")

	return &Config{
		HTTP:      commonConfig.HTTP,
		Postgres:  commonConfig.Postgres,
		Publisher: commonConfig.Publisher,
		Services:  commonConfig.Services,
		Internal:  commonConfig.Internal,
		Inventory: InventoryConfig{
			// Начальный остаток автоматически создаваемой позиции
			DefaultQuantity: config.GetEnvAsInt("INVENTORY_DEFAULT_QUANTITY", 100),
		},
	}, nil
}
