package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Source   SourceConfig
	Channel  ChannelConfig
	Tracking TrackingConfig
	Database DatabaseConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера трекера
type ServerConfig struct {
	Host string
	Port int
}

// SourceConfig - настройки внешнего Order Source
type SourceConfig struct {
	// BaseURL - origin API (единственная строка, например https://api.cafe.example)
	BaseURL string

	// CustomerID - клиент, чьи заказы отслеживаются
	CustomerID string

	// OrderID - guest-режим: один заказ без аутентификации
	// (используется когда CustomerID пуст)
	OrderID string

	// FetchTimeout - общий таймаут одного запроса
	FetchTimeout time.Duration
}

// ChannelConfig - настройки realtime-канала
type ChannelConfig struct {
	URL string // ws:// или wss:// endpoint

	// Переподключение
	InitialDelay   time.Duration // начальная задержка перед reconnect
	MaxDelay       time.Duration // потолок exponential backoff
	MaxRetries     int           // лимит попыток (0 = бесконечно)
	ConnectTimeout time.Duration

	// Живость соединения
	PingInterval time.Duration
	PongTimeout  time.Duration
}

// TrackingConfig - настройки reconciliation-ядра
type TrackingConfig struct {
	// TickInterval - период тика часов: прогресс анимируется
	// даже без сетевых событий
	TickInterval time.Duration

	// RecencyWindow - окно давности для активных статусов
	RecencyWindow time.Duration

	// Окна кусочно-линейной проекции прогресса
	PendingWindow   time.Duration // разгон 0 -> 20%
	PreparingWindow time.Duration // разгон 20 -> 80%

	// StalePendingAge - порог метрики подвисших pending-заказов
	StalePendingAge time.Duration

	// DegradedPollInterval - период опроса источника при деградации
	// realtime-канала
	DegradedPollInterval time.Duration
}

// DatabaseConfig - настройки подключения к БД для хранилища отметок.
// Enabled=false - трекер работает без персистентности acks.
type DatabaseConfig struct {
	Enabled  bool
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Source: SourceConfig{
			BaseURL:      getEnv("API_ORIGIN", "http://localhost:3000"),
			CustomerID:   getEnv("CUSTOMER_ID", ""),
			OrderID:      getEnv("ORDER_ID", ""),
			FetchTimeout: getEnvAsDuration("FETCH_TIMEOUT", 15*time.Second),
		},
		Channel: ChannelConfig{
			URL:            getEnv("WS_URL", "ws://localhost:3000/ws"),
			InitialDelay:   getEnvAsDuration("WS_INITIAL_DELAY", 2*time.Second),
			MaxDelay:       getEnvAsDuration("WS_MAX_DELAY", 16*time.Second),
			MaxRetries:     getEnvAsInt("WS_MAX_RETRIES", 10),
			ConnectTimeout: getEnvAsDuration("WS_CONNECT_TIMEOUT", 10*time.Second),
			PingInterval:   getEnvAsDuration("WS_PING_INTERVAL", 30*time.Second),
			PongTimeout:    getEnvAsDuration("WS_PONG_TIMEOUT", 10*time.Second),
		},
		Tracking: TrackingConfig{
			TickInterval:    getEnvAsDuration("TICK_INTERVAL", 1*time.Second),
			RecencyWindow:   getEnvAsDuration("RECENCY_WINDOW", 24*time.Hour),
			PendingWindow:   getEnvAsDuration("PENDING_WINDOW", 2*time.Minute),
			PreparingWindow: getEnvAsDuration("PREPARING_WINDOW", 12*time.Minute),
			StalePendingAge:      getEnvAsDuration("STALE_PENDING_AGE", 7*24*time.Hour),
			DegradedPollInterval: getEnvAsDuration("DEGRADED_POLL_INTERVAL", 30*time.Second),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("DB_ENABLED", false),
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "cafetrack"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate проверяет критичные параметры и числовые диапазоны
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Source.BaseURL == "" {
		return fmt.Errorf("API_ORIGIN is required")
	}

	if c.Source.CustomerID == "" && c.Source.OrderID == "" {
		return fmt.Errorf("either CUSTOMER_ID or ORDER_ID is required")
	}

	if c.Tracking.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be positive, got %v", c.Tracking.TickInterval)
	}

	if c.Tracking.PendingWindow <= 0 {
		return fmt.Errorf("PENDING_WINDOW must be positive, got %v", c.Tracking.PendingWindow)
	}

	if c.Tracking.PreparingWindow <= 0 {
		return fmt.Errorf("PREPARING_WINDOW must be positive, got %v", c.Tracking.PreparingWindow)
	}

	if c.Tracking.RecencyWindow <= 0 {
		return fmt.Errorf("RECENCY_WINDOW must be positive, got %v", c.Tracking.RecencyWindow)
	}

	if c.Tracking.DegradedPollInterval <= 0 {
		return fmt.Errorf("DEGRADED_POLL_INTERVAL must be positive, got %v", c.Tracking.DegradedPollInterval)
	}

	if c.Channel.MaxRetries < 0 {
		return fmt.Errorf("WS_MAX_RETRIES cannot be negative, got %d", c.Channel.MaxRetries)
	}

	if c.Channel.InitialDelay <= 0 || c.Channel.MaxDelay < c.Channel.InitialDelay {
		return fmt.Errorf("invalid reconnect delays: initial=%v max=%v",
			c.Channel.InitialDelay, c.Channel.MaxDelay)
	}

	if c.Database.Enabled {
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
		}
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
