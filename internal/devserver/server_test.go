package devserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-miniapp-client/internal/domain"
	"telegram-miniapp-client/internal/pkg/config"
)

const adminTelegramID = 99281932

// newTestServer поднимает dev-сервер поверх httptest.
func newTestServer(t *testing.T, legacyShapes bool) *httptest.Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.DevServer.LegacyShapes = legacyShapes
	srv := New(cfg, NewStore([]int64{adminTelegramID}), nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// makeInitData собирает initData с профилем пользователя.
func makeInitData(telegramID int64, username string) string {
	user, _ := json.Marshal(map[string]any{
		"id":         telegramID,
		"first_name": "Иван",
		"username":   username,
	})
	v := url.Values{}
	v.Set("user", string(user))
	v.Set("auth_date", "1700000000")
	v.Set("hash", "abcdef")
	return v.Encode()
}

// verify обменивает initData на токен.
func verify(t *testing.T, ts *httptest.Server, telegramID int64, username string) (string, domain.User) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"init_data": makeInitData(telegramID, username)})
	resp, err := http.Post(ts.URL+"/api/v1/auth/verify", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Token struct {
			AccessToken string `json:"access_token"`
		} `json:"token"`
		User domain.User `json:"user"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.Token.AccessToken)
	return out.Token.AccessToken, out.User
}

// doJSON выполняет запрос с токеном и возвращает ответ.
func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t, false)

	t.Run("Обмен initData на токен создает пользователя", func(t *testing.T) {
		token, user := verify(t, ts, 1001, "ivan")
		assert.NotEmpty(t, token)
		assert.Equal(t, int64(1001), user.TelegramUserID)
		assert.Equal(t, domain.RoleUser, user.Role)
	})

	t.Run("Настроенный Telegram ID получает роль администратора", func(t *testing.T) {
		_, user := verify(t, ts, adminTelegramID, "admin")
		assert.Equal(t, domain.RoleAdmin, user.Role)
	})

	t.Run("Повторный вход не создает второго пользователя", func(t *testing.T) {
		_, first := verify(t, ts, 1002, "petr")
		_, second := verify(t, ts, 1002, "petr")
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("Запрос без токена получает 401 с detail", func(t *testing.T) {
		resp, data := doJSON(t, ts, http.MethodGet, "/api/v1/models", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Contains(t, string(data), "detail")
	})

	t.Run("Пустой init_data отклоняется", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/v1/auth/verify", "application/json", bytes.NewReader([]byte(`{"init_data":""}`)))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("auth/me возвращает профиль владельца токена", func(t *testing.T) {
		token, user := verify(t, ts, 1003, "anna")
		resp, data := doJSON(t, ts, http.MethodGet, "/api/v1/auth/me", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var me domain.User
		require.NoError(t, json.Unmarshal(data, &me))
		assert.Equal(t, user.ID, me.ID)
	})
}

func TestModels(t *testing.T) {
	ts := newTestServer(t, false)
	adminToken, _ := verify(t, ts, adminTelegramID, "admin")
	userToken, _ := verify(t, ts, 2001, "user")

	t.Run("Каталог отдается страницей с items/total/pages", func(t *testing.T) {
		resp, data := doJSON(t, ts, http.MethodGet, "/api/v1/models", userToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var page struct {
			Items []domain.Model `json:"items"`
			Total int            `json:"total"`
			Pages int            `json:"pages"`
		}
		require.NoError(t, json.Unmarshal(data, &page))
		assert.Equal(t, len(page.Items), page.Total)
		assert.GreaterOrEqual(t, page.Pages, 1)
	})

	t.Run("Фильтр is_active скрывает неактивные модели", func(t *testing.T) {
		resp, data := doJSON(t, ts, http.MethodGet, "/api/v1/models?is_active=true", userToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var page struct {
			Items []domain.Model `json:"items"`
		}
		require.NoError(t, json.Unmarshal(data, &page))
		for _, m := range page.Items {
			assert.True(t, m.IsActive)
		}
	})

	t.Run("Мутации каталога запрещены не-администратору", func(t *testing.T) {
		resp, _ := doJSON(t, ts, http.MethodPost, "/api/v1/models", userToken, map[string]any{"name": "X"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp, _ = doJSON(t, ts, http.MethodDelete, "/api/v1/models/1", userToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("Администратор создает, обновляет и удаляет модель", func(t *testing.T) {
		resp, data := doJSON(t, ts, http.MethodPost, "/api/v1/models", adminToken, map[string]any{
			"name": "TestModel", "code": "tm-1", "is_active": true,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var created domain.Model
		require.NoError(t, json.Unmarshal(data, &created))
		require.NotZero(t, created.ID)

		resp, data = doJSON(t, ts, http.MethodPut, fmt.Sprintf("/api/v1/models/%d", created.ID), adminToken, map[string]any{
			"name": "TestModel v2", "is_active": false,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var updated domain.Model
		require.NoError(t, json.Unmarshal(data, &updated))
		assert.Equal(t, "TestModel v2", updated.Name)
		assert.NotNil(t, updated.UpdatedAt)

		resp, _ = doJSON(t, ts, http.MethodDelete, fmt.Sprintf("/api/v1/models/%d", created.ID), adminToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/v1/models/%d", created.ID), adminToken, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Создание модели без названия отклоняется", func(t *testing.T) {
		resp, _ := doJSON(t, ts, http.MethodPost, "/api/v1/models", adminToken, map[string]any{"name": "  "})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestTickets(t *testing.T) {
	ts := newTestServer(t, false)
	adminToken, _ := verify(t, ts, adminTelegramID, "admin")
	ownerToken, _ := verify(t, ts, 3001, "owner")
	otherToken, _ := verify(t, ts, 3002, "other")

	// Владелец создает тикет
	resp, data := doJSON(t, ts, http.MethodPost, "/api/v1/tickets", ownerToken, map[string]any{
		"subject": "Не включается", "description": "После падения не работает", "priority": "high",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var ticket domain.Ticket
	require.NoError(t, json.Unmarshal(data, &ticket))
	require.Equal(t, domain.StatusOpen, ticket.Status)

	ticketPath := fmt.Sprintf("/api/v1/tickets/%d", ticket.ID)

	t.Run("Чужой тикет не виден обычному пользователю", func(t *testing.T) {
		resp, _ := doJSON(t, ts, http.MethodGet, ticketPath, otherToken, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Администратор видит любой тикет", func(t *testing.T) {
		resp, _ := doJSON(t, ts, http.MethodGet, ticketPath, adminToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Смена статуса доступна только администратору", func(t *testing.T) {
		resp, _ := doJSON(t, ts, http.MethodPut, ticketPath, ownerToken, map[string]any{"status": "resolved"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp, data := doJSON(t, ts, http.MethodPut, ticketPath, adminToken, map[string]any{"status": "resolved"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var updated domain.Ticket
		require.NoError(t, json.Unmarshal(data, &updated))
		assert.Equal(t, domain.StatusResolved, updated.Status)
		assert.NotNil(t, updated.ClosedAt)
	})

	t.Run("Внутренние заметки скрыты от владельца", func(t *testing.T) {
		resp, _ := doJSON(t, ts, http.MethodPost, ticketPath+"/messages", ownerToken, map[string]any{"body": "Видимое сообщение"})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp, _ = doJSON(t, ts, http.MethodPost, ticketPath+"/messages", adminToken, map[string]any{"body": "Служебная заметка", "is_internal_note": true})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		// Владелец видит только обычное сообщение
		_, data := doJSON(t, ts, http.MethodGet, ticketPath+"/messages", ownerToken, nil)
		var page struct {
			Items []domain.TicketMessage `json:"items"`
		}
		require.NoError(t, json.Unmarshal(data, &page))
		require.Len(t, page.Items, 1)
		assert.Equal(t, "Видимое сообщение", page.Items[0].Body)

		// Администратор видит оба
		_, data = doJSON(t, ts, http.MethodGet, ticketPath+"/messages", adminToken, nil)
		require.NoError(t, json.Unmarshal(data, &page))
		assert.Len(t, page.Items, 2)
	})

	t.Run("Заметку не может оставить обычный пользователь", func(t *testing.T) {
		resp, _ := doJSON(t, ts, http.MethodPost, ticketPath+"/messages", ownerToken, map[string]any{"body": "x", "is_internal_note": true})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("Статистика тикетов считается по владельцу", func(t *testing.T) {
		_, data := doJSON(t, ts, http.MethodGet, "/api/v1/tickets/stats", ownerToken, nil)
		var stats domain.TicketStats
		require.NoError(t, json.Unmarshal(data, &stats))
		assert.Equal(t, 1, stats.Total)
		assert.Equal(t, 1, stats.Resolved)

		_, data = doJSON(t, ts, http.MethodGet, "/api/v1/tickets/stats", otherToken, nil)
		require.NoError(t, json.Unmarshal(data, &stats))
		assert.Equal(t, 0, stats.Total)
	})
}

func TestAdmin(t *testing.T) {
	ts := newTestServer(t, false)
	adminToken, _ := verify(t, ts, adminTelegramID, "admin")
	userToken, user := verify(t, ts, 4001, "victim")

	t.Run("Админ-консоль закрыта для обычного пользователя", func(t *testing.T) {
		resp, data := doJSON(t, ts, http.MethodGet, "/api/v1/admin/users", userToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Contains(t, string(data), "detail")
	})

	t.Run("Блокировка пользователя отзывает его токены", func(t *testing.T) {
		resp, data := doJSON(t, ts, http.MethodPut, fmt.Sprintf("/api/v1/admin/users/%d", user.ID), adminToken, map[string]any{"is_blocked": true})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var updated domain.User
		require.NoError(t, json.Unmarshal(data, &updated))
		assert.True(t, updated.IsBlocked)

		// Старый токен больше не работает
		resp, _ = doJSON(t, ts, http.MethodGet, "/api/v1/auth/me", userToken, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		// И новый вход тоже запрещен
		body, _ := json.Marshal(map[string]string{"init_data": makeInitData(4001, "victim")})
		post, err := http.Post(ts.URL+"/api/v1/auth/verify", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		post.Body.Close()
		assert.Equal(t, http.StatusForbidden, post.StatusCode)
	})

	t.Run("Недопустимая роль отклоняется", func(t *testing.T) {
		resp, _ := doJSON(t, ts, http.MethodPut, fmt.Sprintf("/api/v1/admin/users/%d", user.ID), adminToken, map[string]any{"role": "superuser"})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("Сводная статистика", func(t *testing.T) {
		_, data := doJSON(t, ts, http.MethodGet, "/api/v1/admin/stats", adminToken, nil)
		var stats domain.AdminStats
		require.NoError(t, json.Unmarshal(data, &stats))
		assert.GreaterOrEqual(t, stats.UsersTotal, 2)
		assert.GreaterOrEqual(t, stats.ModelsTotal, 3)
		assert.Equal(t, 1, stats.UsersBlocked)
	})
}

func TestLegacyShapes(t *testing.T) {
	ts := newTestServer(t, true)
	token, _ := verify(t, ts, 5001, "legacy")

	// За несколько запросов ответ принимает все исторические формы
	seen := map[string]bool{}
	for i := 0; i < 6; i++ {
		_, data := doJSON(t, ts, http.MethodGet, "/api/v1/models", token, nil)

		trimmed := bytes.TrimSpace(data)
		switch {
		case bytes.HasPrefix(trimmed, []byte("[")):
			seen["array"] = true
		case bytes.Contains(trimmed, []byte(`"models"`)):
			seen["models"] = true
		case bytes.Contains(trimmed, []byte(`"items"`)):
			seen["items"] = true
		}
	}
	assert.True(t, seen["array"], "должен встретиться голый массив")
	assert.True(t, seen["models"], "должен встретиться конверт models")
	assert.True(t, seen["items"], "должен встретиться конверт items")
}
