// Package config предоставляет управление конфигурацией приложения
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// API содержит конфигурацию клиента REST API
type API struct {
	BaseURL        string `json:"base_url" yaml:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// Cache содержит конфигурацию кэша запросов
type Cache struct {
	TTLSeconds             int `json:"ttl_seconds" yaml:"ttl_seconds"`
	CleanupIntervalSeconds int `json:"cleanup_interval_seconds" yaml:"cleanup_interval_seconds"`
}

// Session содержит конфигурацию хранения сессии
type Session struct {
	TokenFile string `json:"token_file" yaml:"token_file"`
}

// Telegram содержит конфигурацию интеграции с Telegram
type Telegram struct {
	// MockHost включает заглушку окружения Mini App для разработки
	// вне Telegram.
	MockHost bool `json:"mock_host" yaml:"mock_host"`
}

// DevServer содержит конфигурацию встроенного сервера разработки
type DevServer struct {
	Host                   string `json:"host" yaml:"host"`
	Port                   int    `json:"port" yaml:"port"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
	// LegacyShapes заставляет списочные ответы чередовать исторические
	// формы: голый массив, конверт items и конверт models.
	LegacyShapes bool `json:"legacy_shapes" yaml:"legacy_shapes"`
}

// Bot содержит конфигурацию Telegram-бота
type Bot struct {
	Token        string  `json:"token" yaml:"token"`
	WebAppURL    string  `json:"webapp_url" yaml:"webapp_url"`
	AdminChatIDs []int64 `json:"admin_chat_ids" yaml:"admin_chat_ids"`
}

// Logging содержит конфигурацию логирования
type Logging struct {
	Level string `json:"level" yaml:"level"` // debug, info, warn, error
}

// Config содержит конфигурацию приложения
type Config struct {
	API       API       `json:"api" yaml:"api"`
	Cache     Cache     `json:"cache" yaml:"cache"`
	Session   Session   `json:"session" yaml:"session"`
	Telegram  Telegram  `json:"telegram" yaml:"telegram"`
	DevServer DevServer `json:"devserver" yaml:"devserver"`
	Bot       Bot       `json:"bot" yaml:"bot"`
	Logging   Logging   `json:"logging" yaml:"logging"`
}

// APITimeout возвращает таймаут HTTP-запросов как Duration
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// CacheTTL возвращает время свежести кэша как Duration
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// CacheCleanupInterval возвращает период чистки кэша как Duration
func (c *Config) CacheCleanupInterval() time.Duration {
	return time.Duration(c.Cache.CleanupIntervalSeconds) * time.Second
}

// ShutdownTimeout возвращает таймаут остановки dev-сервера как Duration
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.DevServer.ShutdownTimeoutSeconds) * time.Second
}

// Address возвращает адрес dev-сервера в формате "host:port"
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.DevServer.Host, c.DevServer.Port)
}

// LoadConfig загружает конфигурацию приложения: значения по умолчанию,
// поверх них config.yml (если есть), поверх — переменные окружения
// (включая .env файл).
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла, если он существует
	if err := godotenv.Load(); err != nil {
		// Отсутствие .env — это нормально, полагаемся на окружение и config.yml
	}

	cfg := defaultConfig()
	if err := loadFromYAML("config.yml", cfg); err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromYAML накладывает значения из YAML-файла поверх cfg.
// Отсутствие файла не является ошибкой.
func loadFromYAML(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("не удалось разобрать YAML конфигурацию: %w", err)
	}
	return nil
}

// applyEnv накладывает переменные окружения поверх cfg
func applyEnv(cfg *Config) error {
	cfg.API.BaseURL = getEnv("API_BASE_URL", cfg.API.BaseURL)
	cfg.Session.TokenFile = getEnv("SESSION_TOKEN_FILE", cfg.Session.TokenFile)
	cfg.Bot.Token = getEnv("BOT_TOKEN", cfg.Bot.Token)
	cfg.Bot.WebAppURL = getEnv("WEBAPP_URL", cfg.Bot.WebAppURL)
	cfg.DevServer.Host = getEnv("SERVER_HOST", cfg.DevServer.Host)
	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)

	if portStr := os.Getenv("SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("недопустимый SERVER_PORT: %w", err)
		}
		cfg.DevServer.Port = port
	}
	if mockStr := os.Getenv("TELEGRAM_MOCK_HOST"); mockStr != "" {
		mock, err := strconv.ParseBool(mockStr)
		if err != nil {
			return fmt.Errorf("недопустимый TELEGRAM_MOCK_HOST: %w", err)
		}
		cfg.Telegram.MockHost = mock
	}
	return nil
}

// Validate проверяет, являются ли значения конфигурации допустимыми
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url не может быть пустым")
	}
	if c.API.TimeoutSeconds <= 0 {
		return fmt.Errorf("api.timeout_seconds должно быть положительным")
	}

	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds должно быть положительным")
	}
	if c.Cache.CleanupIntervalSeconds <= 0 {
		return fmt.Errorf("cache.cleanup_interval_seconds должно быть положительным")
	}

	if c.Session.TokenFile == "" {
		return fmt.Errorf("session.token_file не может быть пустым")
	}

	if c.DevServer.Port <= 0 || c.DevServer.Port > 65535 {
		return fmt.Errorf("devserver.port должен быть действительным номером порта (1-65535)")
	}
	if c.DevServer.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("devserver.shutdown_timeout_seconds должно быть положительным")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// all good
	default:
		return fmt.Errorf("logging.level должен быть одним из: debug, info, warn, error")
	}

	return nil
}

// getEnv извлекает значение переменной окружения или возвращает значение по умолчанию, если она не установлена
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
