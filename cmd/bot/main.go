package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-miniapp-client/cmd/bot/config"
	"telegram-miniapp-client/internal/api"
	"telegram-miniapp-client/internal/bot"
	"telegram-miniapp-client/internal/log"
)

// staticTokens — неизменный токен сервисного доступа к API.
type staticTokens struct {
	token string
}

func (s staticTokens) Token() string { return s.token }

func main() {
	// Загрузка конфигурации бота
	cfg, err := config.LoadBotConfig("bot_config.yml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load bot config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to validate bot config: %v\n", err)
		os.Exit(1)
	}

	// Логгер с маскировкой токенов: токен бота попадает в URL ошибок
	// библиотеки, в логи он выходить не должен
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := log.NewMaskedLogger(handler)
	slog.SetDefault(logger)

	// Внутренний логгер библиотеки тоже заворачиваем в маскировщик
	_ = tgbotapi.SetLogger(&log.TGBotAPIAdapter{Logger: logger})

	// Клиент REST API для команд каталога и выгрузок
	apiClient := api.NewClient(
		cfg.BackendURL,
		time.Duration(cfg.HTTPTimeoutSeconds)*time.Second,
		staticTokens{token: cfg.APIToken},
		logger,
	)

	b, err := bot.NewBot(*cfg, apiClient, logger.With(slog.String("component", "bot")))
	if err != nil {
		slog.Error("failed to create bot", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("Bot created successfully, starting...")

	// Ожидание сигналов для graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go b.Start(ctx)

	<-ctx.Done() // Ожидаем сигнал завершения

	slog.Info("Bot stopped gracefully")
}
