// Package session реализует управление сессией приложения:
// конечный автомат аутентификации и хранение токена.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"telegram-miniapp-client/internal/api"
	"telegram-miniapp-client/internal/domain"
	"telegram-miniapp-client/internal/query"
	"telegram-miniapp-client/internal/telegram"
)

// State — состояние конечного автомата сессии.
type State int

const (
	// StateBootstrapping — ожидание данных запуска от хост-платформы.
	StateBootstrapping State = iota
	// StateAuthenticating — ровно один запрос обмена init data на токен в полете.
	StateAuthenticating
	// StateAuthenticated — токен и пользователь получены, запросы разблокированы.
	StateAuthenticated
	// StateUnauthenticated — данных запуска нет, обмен не удался или пришел 401.
	StateUnauthenticated
)

// String возвращает имя состояния для логов.
func (s State) String() string {
	switch s {
	case StateBootstrapping:
		return "bootstrapping"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Manager управляет жизненным циклом сессии. Реализует api.TokenSource.
type Manager struct {
	apiClient *api.Client
	host      telegram.Host
	storage   TokenStorage
	cache     *query.Cache
	logger    *slog.Logger

	mu    sync.Mutex
	state State
	token string
	user  *domain.User
}

// NewManager создает новый экземпляр Manager.
// Клиент API получает менеджер как источник токена, а менеджер
// регистрируется обработчиком 401 — оба направления связываются здесь.
func NewManager(host telegram.Host, storage TokenStorage, cache *query.Cache, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		host:    host,
		storage: storage,
		cache:   cache,
		logger:  logger,
		state:   StateBootstrapping,
	}
}

// BindClient привязывает клиент API: менеджер становится его источником
// токена, а сброс сессии — его реакцией на 401.
func (m *Manager) BindClient(c *api.Client) {
	m.apiClient = c
	c.SetUnauthorizedHandler(m.HandleUnauthorized)
}

// Token реализует api.TokenSource.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// State возвращает текущее состояние автомата.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CurrentUser возвращает пользователя аутентифицированной сессии.
func (m *Manager) CurrentUser() *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

// IsAuthenticated сообщает, готова ли сессия к запросам.
func (m *Manager) IsAuthenticated() bool {
	return m.State() == StateAuthenticated
}

// Bootstrap проводит сессию от запуска до Authenticated или Unauthenticated:
// дожидается готовности хоста, пробует сохраненный токен, при его отсутствии
// обменивает init data. Зависимые запросы можно выполнять только после
// успешного завершения Bootstrap.
func (m *Manager) Bootstrap(ctx context.Context) error {
	m.mu.Lock()
	m.state = StateBootstrapping
	m.mu.Unlock()

	if err := m.host.Ready(ctx); err != nil {
		m.reset()
		return fmt.Errorf("хост-платформа не сообщила о готовности: %w", err)
	}

	// Сохраненный токен от прошлого запуска проверяется через /auth/me.
	token, err := m.storage.Load()
	if err != nil {
		m.logger.Warn("не удалось прочитать сохраненный токен", slog.String("error", err.Error()))
	}
	if token != "" {
		m.mu.Lock()
		m.token = token
		m.mu.Unlock()

		user, err := m.apiClient.Me(ctx)
		switch {
		case err == nil:
			m.completeAuth(token, *user, false)
			m.logger.Info("сессия восстановлена из сохраненного токена", slog.Int64("user_id", user.ID))
			return nil
		case errors.Is(err, api.ErrAuthExpired):
			// Токен протух; сброс уже выполнен обработчиком 401,
			// продолжаем обычный обмен init data.
			m.logger.Info("сохраненный токен недействителен, выполняется обмен init data")
		default:
			m.reset()
			return fmt.Errorf("не удалось проверить сохраненный токен: %w", err)
		}
	}

	initData := m.host.InitData()
	if initData == "" {
		m.reset()
		m.logger.Warn("хост-платформа не передала init data, сессия не аутентифицирована")
		return nil
	}

	return m.authenticate(ctx, initData)
}

// authenticate выполняет единственный обмен init data на токен.
func (m *Manager) authenticate(ctx context.Context, initData string) error {
	m.mu.Lock()
	if m.state == StateAuthenticating {
		m.mu.Unlock()
		return fmt.Errorf("аутентификация уже выполняется")
	}
	m.state = StateAuthenticating
	m.token = ""
	m.mu.Unlock()

	sess, err := m.apiClient.Verify(ctx, initData)
	if err != nil {
		m.reset()
		return fmt.Errorf("обмен init data не удался: %w", err)
	}

	m.completeAuth(sess.Token, sess.User, true)
	m.logger.Info("сессия аутентифицирована",
		slog.Int64("user_id", sess.User.ID),
		slog.String("role", string(sess.User.Role)))
	return nil
}

// completeAuth фиксирует успешную аутентификацию: токен в памяти и на диске,
// пользователь в кэше, состояние Authenticated.
func (m *Manager) completeAuth(token string, user domain.User, persist bool) {
	m.mu.Lock()
	m.token = token
	u := user
	m.user = &u
	m.state = StateAuthenticated
	m.mu.Unlock()

	if persist {
		if err := m.storage.Save(token); err != nil {
			m.logger.Warn("не удалось сохранить токен на диск", slog.String("error", err.Error()))
		}
	}
	m.cache.Set(query.CurrentUserKey(), user)
}

// Logout завершает сессию по инициативе пользователя.
// Идет тем же путем, что и обработка 401: один код на оба случая.
func (m *Manager) Logout() {
	m.logger.Info("выход из сессии")
	m.reset()
}

// HandleUnauthorized — безусловная реакция на 401 от любого эндпоинта.
func (m *Manager) HandleUnauthorized() {
	m.logger.Warn("сессия сброшена по 401")
	m.reset()
}

// reset — единственный код сброса сессии: токен и пользователь
// удаляются из памяти и с диска, кэш сущностей очищается целиком,
// автомат переходит в Unauthenticated. Частичных состояний не бывает.
func (m *Manager) reset() {
	m.mu.Lock()
	m.token = ""
	m.user = nil
	m.state = StateUnauthenticated
	m.mu.Unlock()

	if err := m.storage.Clear(); err != nil {
		m.logger.Warn("не удалось удалить токен с диска", slog.String("error", err.Error()))
	}
	m.cache.Clear()
}
