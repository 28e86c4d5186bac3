package config

import "github.com/spf13/viper"

// Config - структура для хранения конфигураций приложения
type Config struct {
	ServerAddress       string `mapstructure:"SERVER_ADDRESS"`
	PostgresConn        string `mapstructure:"POSTGRES_CONN"`
	PostgresURL         string `mapstructure:"POSTGRES_JDBC_URL"`
	PostgresUser        string `mapstructure:"POSTGRES_USERNAME"`
	PostgresPass        string `mapstructure:"POSTGRES_PASSWORD"`
	PostgresHost        string `mapstructure:"POSTGRES_HOST"`
	PostgresPort        string `mapstructure:"POSTGRES_PORT"`
	PostgresDB          string `mapstructure:"POSTGRES_DATABASE"`
	MigrationURL        string `mapstructure:"MIGRATION_URL"`
	AmqpURL             string `mapstructure:"AMQP_URL"`
	RedisAddr           string `mapstructure:"REDIS_ADDR"`
	RedisPassword       string `mapstructure:"REDIS_PASSWORD"`
	RedisDB             int    `mapstructure:"REDIS_DB"`
	RevealGateEnabled   bool   `mapstructure:"REVEAL_GATE_ENABLED"`
	OutboxPollSeconds   int    `mapstructure:"OUTBOX_POLL_SECONDS"`
	OutboxMaxAttempts   int    `mapstructure:"OUTBOX_MAX_ATTEMPTS"`
	BrochureStoragePath string `mapstructure:"BROCHURE_STORAGE_PATH"`
	NotificationChannel string `mapstructure:"NOTIFICATION_CHANNEL"`
}

// LoadConfig загружает конфигурацию из файла
func LoadConfig(path string) (cfg Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	viper.SetDefault("SERVER_ADDRESS", ":8080")
	viper.SetDefault("REVEAL_GATE_ENABLED", true)
	viper.SetDefault("OUTBOX_POLL_SECONDS", 2)
	viper.SetDefault("OUTBOX_MAX_ATTEMPTS", 5)
	viper.SetDefault("NOTIFICATION_CHANNEL", "bid_notifications")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}
	err = viper.Unmarshal(&cfg)
	return
}
