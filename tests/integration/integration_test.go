package integration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"

	"telegram-miniapp-client/internal/api"
	"telegram-miniapp-client/internal/controllers"
	"telegram-miniapp-client/internal/devserver"
	"telegram-miniapp-client/internal/domain"
	"telegram-miniapp-client/internal/pkg/config"
	"telegram-miniapp-client/internal/query"
	"telegram-miniapp-client/internal/session"
	"telegram-miniapp-client/internal/telegram"
)

// mockHostUserID — telegram id пользователя из заглушки хост-платформы.
const mockHostUserID int64 = 123456789

// env — собранный для теста стек: dev-сервер в httptest и полный
// клиент поверх него (кэш, менеджер сессии, HTTP-клиент).
type env struct {
	srv     *httptest.Server
	cache   *query.Cache
	storage *session.FileTokenStorage
	manager *session.Manager
	client  *api.Client
}

// newEnv поднимает dev-сервер в памяти и связывает с ним клиентский стек
// тем же способом, что и cmd/app: менеджер — источник токена клиента,
// клиент — транспорт менеджера.
func newEnv(t *testing.T, legacyShapes bool, adminIDs []int64) *env {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{}
	cfg.DevServer.LegacyShapes = legacyShapes

	store := devserver.NewStore(adminIDs)
	srv := httptest.NewServer(devserver.New(cfg, store, logger).Handler())
	t.Cleanup(srv.Close)

	cache := query.NewCache(30*time.Second, logger)
	storage := session.NewFileTokenStorage(filepath.Join(t.TempDir(), "token"))
	manager := session.NewManager(telegram.NewMockHost(), storage, cache, logger)
	client := api.NewClient(srv.URL+"/api/v1", 5*time.Second, manager, logger)
	manager.BindClient(client)

	return &env{srv: srv, cache: cache, storage: storage, manager: manager, client: client}
}

// Этот интеграционный тест симулирует полный цикл работы приложения:
// аутентификация через заглушку хост-платформы, каталог, тикет с перепиской
// и админ-консоль — все через контроллеры поверх настоящего HTTP.
func TestFullApplicationFlow(t *testing.T) {
	// Загружаем переменные окружения; без .env тест работает на значениях по умолчанию
	if err := godotenv.Load("../../.env"); err != nil {
		t.Log("Файл .env не найден, используем конфигурацию по умолчанию")
	}

	e := newEnv(t, false, []int64{mockHostUserID})
	ctx := context.Background()

	// 1. Аутентификация: обмен init data на токен сессии
	if err := e.manager.Bootstrap(ctx); err != nil {
		t.Fatalf("Не удалось выполнить bootstrap сессии: %v", err)
	}
	if !e.manager.IsAuthenticated() {
		t.Fatal("Ожидалась аутентифицированная сессия")
	}
	user := e.manager.CurrentUser()
	if user == nil || user.Role != domain.RoleAdmin {
		t.Fatalf("Ожидался администратор из списка admin_chat_ids, получено %+v", user)
	}

	// 2. Каталог: в демо-данных две активные модели
	catalog := controllers.NewModelsListController(e.client, e.cache)
	page, err := catalog.Load(ctx)
	if err != nil {
		t.Fatalf("Не удалось загрузить каталог: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("Ожидались 2 активные модели, получено %d", page.Total)
	}
	first := page.Items[0]

	model, err := catalog.GetModel(ctx, first.ID)
	if err != nil {
		t.Fatalf("Не удалось загрузить модель %d: %v", first.ID, err)
	}
	if model.Name != first.Name {
		t.Errorf("Ожидалась модель '%s', получено '%s'", first.Name, model.Name)
	}

	// 3. Тикет: создание, переписка, смена статуса администратором
	form := controllers.NewCreateTicketController(e.client, e.cache)
	ticket, err := form.Submit(ctx, controllers.TicketForm{
		Subject:     "Не включается",
		Description: "После падения не реагирует на кнопку питания",
		ModelID:     &first.ID,
	})
	if err != nil {
		t.Fatalf("Не удалось создать тикет: %v", err)
	}
	if ticket.Status != domain.StatusOpen {
		t.Errorf("Новый тикет должен быть открыт, получен статус '%s'", ticket.Status)
	}

	thread := controllers.NewTicketThreadController(e.client, e.cache, ticket.ID)
	if _, err := thread.SendMessage(ctx, "Добавлю: гарантия еще действует"); err != nil {
		t.Fatalf("Не удалось отправить сообщение в тикет: %v", err)
	}
	messages, err := thread.Messages(ctx)
	if err != nil {
		t.Fatalf("Не удалось загрузить переписку: %v", err)
	}
	if len(messages) == 0 {
		t.Error("Ожидалось хотя бы одно сообщение в переписке")
	}

	updated, err := thread.UpdateStatus(ctx, domain.StatusInProgress)
	if err != nil {
		t.Fatalf("Не удалось сменить статус тикета: %v", err)
	}
	if updated.Status != domain.StatusInProgress {
		t.Errorf("Ожидался статус '%s', получен '%s'", domain.StatusInProgress, updated.Status)
	}

	// 4. Админ-консоль: менеджер сессии подтверждает роль
	dashboard := controllers.NewAdminDashboardController(e.client, e.cache, e.manager)
	stats, err := dashboard.Stats(ctx)
	if err != nil {
		t.Fatalf("Не удалось загрузить сводку админ-консоли: %v", err)
	}
	if stats.TicketsTotal < 1 {
		t.Errorf("Сводка должна учитывать созданный тикет, получено %d", stats.TicketsTotal)
	}
}

// Сохраненный токен переживает перезапуск приложения, а блокировка
// пользователя обрывает сессию: 401 сбрасывает токен и кэш целиком.
func TestSessionRestoreAndReset(t *testing.T) {
	e := newEnv(t, false, []int64{mockHostUserID})
	ctx := context.Background()

	if err := e.manager.Bootstrap(ctx); err != nil {
		t.Fatalf("Не удалось выполнить bootstrap сессии: %v", err)
	}
	token, err := e.storage.Load()
	if err != nil || token == "" {
		t.Fatalf("Токен должен быть сохранен на диск, получено '%s' (err=%v)", token, err)
	}

	// Перезапуск: новый менеджер и кэш поверх того же хранилища токена
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache2 := query.NewCache(30*time.Second, logger)
	manager2 := session.NewManager(telegram.NewMockHost(), e.storage, cache2, logger)
	client2 := api.NewClient(e.srv.URL+"/api/v1", 5*time.Second, manager2, logger)
	manager2.BindClient(client2)

	if err := manager2.Bootstrap(ctx); err != nil {
		t.Fatalf("Не удалось восстановить сессию из сохраненного токена: %v", err)
	}
	if manager2.Token() != token {
		t.Error("После восстановления должен использоваться сохраненный токен")
	}
	user := manager2.CurrentUser()
	if user == nil {
		t.Fatal("После восстановления должен быть известен пользователь")
	}

	// Блокировка отзывает все токены пользователя на сервере
	blocked := true
	if _, err := client2.AdminUpdateUser(ctx, user.ID, api.UserUpdateInput{IsBlocked: &blocked}); err != nil {
		t.Fatalf("Не удалось заблокировать пользователя: %v", err)
	}

	_, err = client2.Me(ctx)
	if !errors.Is(err, api.ErrAuthExpired) {
		t.Fatalf("После блокировки ожидался сброс сессии по 401, получено %v", err)
	}
	if manager2.IsAuthenticated() {
		t.Error("После 401 сессия должна быть сброшена")
	}
	if token, _ := e.storage.Load(); token != "" {
		t.Errorf("После сброса токен должен быть удален с диска, получено '%s'", token)
	}
}

// Dev-сервер в режиме legacy_shapes чередует исторические формы списков;
// клиент обязан приводить каждую к одному и тому же виду.
func TestLegacyListShapes(t *testing.T) {
	e := newEnv(t, true, []int64{mockHostUserID})
	ctx := context.Background()

	if err := e.manager.Bootstrap(ctx); err != nil {
		t.Fatalf("Не удалось выполнить bootstrap сессии: %v", err)
	}

	// Три запроса подряд получают три разные формы ответа
	for i := 0; i < 3; i++ {
		page, err := e.client.ListModels(ctx, api.ModelListParams{Page: 1, PageSize: 20, ActiveOnly: true})
		if err != nil {
			t.Fatalf("Запрос %d: не удалось загрузить каталог: %v", i+1, err)
		}
		if len(page.Items) != 2 {
			t.Errorf("Запрос %d: ожидались 2 модели независимо от формы ответа, получено %d", i+1, len(page.Items))
		}
		if page.Total != 2 {
			t.Errorf("Запрос %d: ожидался total=2, получено %d", i+1, page.Total)
		}
	}
}

// Без init data сессия остается неаутентифицированной, но это не ошибка:
// приложение показывает экран входа, а не падает.
func TestBootstrapWithoutInitData(t *testing.T) {
	t.Setenv("TELEGRAM_INIT_DATA", "")

	e := newEnv(t, false, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := session.NewManager(telegram.NewEnvHost(), e.storage, e.cache, logger)
	manager.BindClient(e.client)

	if err := manager.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap без init data не должен возвращать ошибку: %v", err)
	}
	if manager.State() != session.StateUnauthenticated {
		t.Errorf("Ожидалось состояние unauthenticated, получено %s", manager.State())
	}
}

// Обычный пользователь не проходит в админ-консоль: контроллер отказывает
// до сетевого запроса, сервер — на своей стороне.
func TestNonAdminAccess(t *testing.T) {
	// Список администраторов пуст: пользователь заглушки получает роль user
	e := newEnv(t, false, nil)
	ctx := context.Background()

	if err := e.manager.Bootstrap(ctx); err != nil {
		t.Fatalf("Не удалось выполнить bootstrap сессии: %v", err)
	}
	if user := e.manager.CurrentUser(); user == nil || user.Role != domain.RoleUser {
		t.Fatalf("Ожидалась роль user, получено %+v", user)
	}

	dashboard := controllers.NewAdminDashboardController(e.client, e.cache, e.manager)
	if _, err := dashboard.Stats(ctx); !errors.Is(err, controllers.ErrAccessDenied) {
		t.Errorf("Ожидался отказ в доступе, получено %v", err)
	}

	// Прямой вызов API мимо контроллера упирается в серверную проверку
	var apiErr *api.APIError
	_, err := e.client.AdminStats(ctx)
	if !errors.As(err, &apiErr) || apiErr.Status != 403 {
		t.Errorf("Сервер должен вернуть 403 для не-администратора, получено %v", err)
	}
}
