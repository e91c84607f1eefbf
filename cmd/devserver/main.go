package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sevlyar/go-daemon"

	"telegram-miniapp-client/internal/devserver"
	"telegram-miniapp-client/internal/log"
	"telegram-miniapp-client/internal/pkg/config"
)

func main() {
	var daemonize bool
	flag.BoolVar(&daemonize, "daemon", false, "запустить сервер в фоновом режиме")
	flag.Parse()

	if daemonize {
		dctx := &daemon.Context{
			PidFileName: "devserver.pid",
			PidFilePerm: 0644,
			LogFileName: "devserver.log",
			LogFilePerm: 0640,
		}
		child, err := dctx.Reborn()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to daemonize: %v\n", err)
			os.Exit(1)
		}
		if child != nil {
			// Родительский процесс завершается, сервер живет в потомке
			fmt.Printf("devserver started, pid %d\n", child.Pid)
			return
		}
		defer dctx.Release()
	}

	if err := run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}

// run инкапсулирует всю логику инициализации и запуска сервера.
func run() error {
	// 1. Загрузка и валидация конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Инициализация логгера
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := log.NewMaskedLogger(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// 3. Валидация конфигурации (после инициализации логгера)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// 4. Инициализация хранилища и сервера
	store := devserver.NewStore(cfg.Bot.AdminChatIDs)
	srv := devserver.New(cfg, store, logger)

	// 5. Запуск сервера и graceful shutdown
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		slog.Info("Starting devserver", "addr", cfg.Address(), "legacy_shapes", cfg.DevServer.LegacyShapes)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Signal received, shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	<-serverDone
	slog.Info("Devserver exited gracefully")
	return nil
}
