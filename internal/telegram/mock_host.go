package telegram

import "context"

// mockInitData — фиксированная строка запуска для локальной разработки,
// когда настоящая хост-платформа недоступна. Подпись в ней фиктивная:
// бэкенд в dev-режиме принимает ее только при отключенной проверке.
const mockInitData = "user=%7B%22id%22%3A123456789%2C%22first_name%22%3A%22Test%22%2C%22last_name%22%3A%22User%22%2C%22username%22%3A%22testuser%22%2C%22language_code%22%3A%22ru%22%7D&chat_instance=-123456789&chat_type=sender&auth_date=1234567890&hash=mock_hash"

// MockHost подменяет хост-платформу в локальной разработке, чтобы весь
// конвейер аутентификации проходил по тому же пути, что и в продакшене.
// Конструируется только при telegram.mock_host: true в конфигурации —
// это осознанная заглушка окружения, а не обход безопасности.
type MockHost struct{}

// NewMockHost создает новый экземпляр MockHost.
func NewMockHost() *MockHost {
	return &MockHost{}
}

// Ready реализует интерфейс Host.
func (h *MockHost) Ready(ctx context.Context) error {
	return ctx.Err()
}

// InitData реализует интерфейс Host.
func (h *MockHost) InitData() string {
	return mockInitData
}

// User реализует интерфейс Host.
func (h *MockHost) User() *Profile {
	return &Profile{
		ID:           123456789,
		FirstName:    "Test",
		LastName:     "User",
		Username:     "testuser",
		LanguageCode: "ru",
	}
}
