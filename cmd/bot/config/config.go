package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// BotConfig содержит конфигурацию для Telegram-бота
type BotConfig struct {
	Token     string `yaml:"token"`
	WebAppURL string `yaml:"webapp_url"`

	// Доступ к REST API для команд /models и выгрузок
	BackendURL         string `yaml:"backend_url"`
	APIToken           string `yaml:"api_token"`
	HTTPTimeoutSeconds int    `yaml:"http_timeout_seconds"`

	// Чаты, которым доступны админ-команды
	AdminChatIDs []int64 `yaml:"admin_chat_ids"`
}

// Config является оберткой для соответствия структуре YAML файла.
type Config struct {
	Bot BotConfig `yaml:"bot"`
}

// LoadBotConfig загружает конфигурацию бота из указанного файла.
func LoadBotConfig(filename string) (*BotConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read bot config file %s: %w", filename, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bot config: %w", err)
	}

	// Устанавливаем значения по умолчанию
	botCfg := &cfg.Bot
	if botCfg.BackendURL == "" {
		botCfg.BackendURL = DefaultBackendURL
	}
	if botCfg.HTTPTimeoutSeconds == 0 {
		botCfg.HTTPTimeoutSeconds = DefaultHTTPTimeoutSeconds
	}

	// Секреты можно передать через окружение вместо файла
	if token := os.Getenv("BOT_TOKEN"); token != "" {
		botCfg.Token = token
	}
	if token := os.Getenv("BOT_API_TOKEN"); token != "" {
		botCfg.APIToken = token
	}

	return botCfg, nil
}

// Validate проверяет корректность конфигурации бота.
func (c *BotConfig) Validate() error {
	if c.Token == "" || c.Token == "YOUR_TELEGRAM_BOT_TOKEN" {
		return fmt.Errorf("bot.token is not configured")
	}
	if c.WebAppURL == "" {
		return fmt.Errorf("bot.webapp_url cannot be empty")
	}
	if c.BackendURL == "" {
		return fmt.Errorf("bot.backend_url cannot be empty")
	}
	if c.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("bot.http_timeout_seconds must be positive")
	}
	return nil
}
