// Package telegram реализует мост к хост-платформе Mini App.
// Хост поставляет сигнал готовности, непрозрачную строку init data
// и, опционально, профиль пользователя; их проверка — дело бэкенда.
package telegram

import (
	"context"
	"fmt"
	"os"
)

// Profile — профиль пользователя, переданный хост-платформой при запуске.
// Носит справочный характер: авторитетный профиль возвращает бэкенд.
type Profile struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// Host определяет интерфейс хост-платформы Mini App.
type Host interface {
	// Ready блокируется до готовности хоста или отмены контекста.
	Ready(ctx context.Context) error
	// InitData возвращает непрозрачную подписанную строку запуска.
	// Пустая строка означает, что хост не передал данные.
	InitData() string
	// User возвращает профиль из данных запуска, если он есть.
	User() *Profile
}

// EnvHost читает данные запуска из окружения процесса — так их передает
// нативная оболочка, внутри которой работает webview приложения.
type EnvHost struct {
	initData string
}

// NewEnvHost создает хост, читающий TELEGRAM_INIT_DATA.
func NewEnvHost() *EnvHost {
	return &EnvHost{initData: os.Getenv("TELEGRAM_INIT_DATA")}
}

// Ready реализует интерфейс Host. Окружение готово сразу.
func (h *EnvHost) Ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("хост-платформа недоступна: %w", err)
	}
	return nil
}

// InitData реализует интерфейс Host.
func (h *EnvHost) InitData() string {
	return h.initData
}

// User реализует интерфейс Host. Профиль из окружения не извлекается:
// его вернет бэкенд после проверки init data.
func (h *EnvHost) User() *Profile {
	return nil
}
