package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"telegram-miniapp-client/internal/api"
	"telegram-miniapp-client/internal/controllers"
	"telegram-miniapp-client/internal/domain"
	"telegram-miniapp-client/internal/export"
	"telegram-miniapp-client/internal/log"
	"telegram-miniapp-client/internal/pkg/config"
	"telegram-miniapp-client/internal/pkg/term"
	"telegram-miniapp-client/internal/query"
	"telegram-miniapp-client/internal/session"
	"telegram-miniapp-client/internal/telegram"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}

// app связывает все слои клиента: API, кэш, сессию и контроллеры.
type app struct {
	cfg     *config.Config
	client  *api.Client
	cache   *query.Cache
	manager *session.Manager
	term    *term.Terminal
}

// run инкапсулирует всю логику инициализации и запуска приложения.
func run() error {
	flag.Parse()

	// 1. Загрузка и валидация конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		// Логгер еще не инициализирован, выводим в stderr
		_, _ = fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Инициализация логгера с маскировкой секретов
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
	logger := log.NewMaskedLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// 3. Валидация конфигурации (после инициализации логгера)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Сборка слоев клиента
	cache := query.NewCache(cfg.CacheTTL(), logger)
	cache.StartCleanupTicker(ctx, cfg.CacheCleanupInterval())

	var host telegram.Host
	if cfg.Telegram.MockHost {
		host = telegram.NewMockHost()
	} else {
		host = telegram.NewEnvHost()
	}

	storage := session.NewFileTokenStorage(cfg.Session.TokenFile)
	manager := session.NewManager(host, storage, cache, logger)
	client := api.NewClient(cfg.API.BaseURL, cfg.APITimeout(), manager, logger)
	manager.BindClient(client)

	a := &app{
		cfg:     cfg,
		client:  client,
		cache:   cache,
		manager: manager,
		term:    term.NewTerminal(),
	}

	// 5. Аутентификация
	if err := manager.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	if !manager.IsAuthenticated() {
		return fmt.Errorf("нет данных для входа: откройте приложение из Telegram или задайте TELEGRAM_INIT_DATA")
	}

	args := flag.Args()
	if len(args) == 0 {
		return a.cmdHome(ctx)
	}
	return a.dispatch(ctx, args[0], args[1:])
}

// dispatch выполняет подкоманду.
func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "home":
		return a.cmdHome(ctx)
	case "whoami":
		return a.cmdWhoami()
	case "logout":
		a.manager.Logout()
		fmt.Println("Сессия завершена.")
		return nil
	case "models":
		return a.cmdModels(ctx, args)
	case "model":
		return a.cmdModel(ctx, args)
	case "tickets":
		return a.cmdTickets(ctx, args)
	case "ticket":
		return a.cmdTicket(ctx, args)
	case "send":
		return a.cmdSend(ctx, args)
	case "new-ticket":
		return a.cmdNewTicket(ctx, args)
	case "admin":
		return a.cmdAdmin(ctx, args)
	default:
		return fmt.Errorf("неизвестная команда %q", cmd)
	}
}

func (a *app) cmdWhoami() error {
	user := a.manager.CurrentUser()
	if user == nil {
		fmt.Println("Не аутентифицирован.")
		return nil
	}
	fmt.Printf("%s (id %d, роль %s)\n", user.FullName(), user.ID, user.Role)
	return nil
}

// cmdHome показывает стартовый экран: свежие модели и сводку по тикетам.
func (a *app) cmdHome(ctx context.Context) error {
	home := controllers.NewHomeController(a.client, a.cache)

	models, err := home.RecentModels(ctx)
	if err != nil {
		return err
	}
	fmt.Println("Новое в каталоге:")
	for _, m := range models {
		fmt.Printf("  [%d] %s %s\n", m.ID, m.Name, m.YearRange())
	}

	stats, err := home.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Ваши тикеты: всего %d, открыто %d, в работе %d\n", stats.Total, stats.Open, stats.InProgress)
	return nil
}

// cmdModels показывает каталог. Состояние фильтров целиком задается
// query string, как в адресной строке приложения:
//
//	app models "q=bosch&page=2"
func (a *app) cmdModels(ctx context.Context, args []string) error {
	c := controllers.NewModelsListController(a.client, a.cache)
	if len(args) > 0 {
		values, err := url.ParseQuery(args[0])
		if err != nil {
			return fmt.Errorf("недопустимая query string: %w", err)
		}
		c.ApplyQueryString(values)
	}

	page, err := c.Load(ctx)
	if err != nil {
		return err
	}
	for _, m := range page.Items {
		active := ""
		if !m.IsActive {
			active = " (скрыта)"
		}
		fmt.Printf("  [%d] %s — %s %s%s\n", m.ID, m.Name, m.Brand, m.YearRange(), active)
	}
	fmt.Printf("Всего %d, страниц %d. Текущее состояние: ?%s\n", page.Total, page.Pages, c.QueryString().Encode())
	return nil
}

func (a *app) cmdModel(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: model <id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("недопустимый идентификатор модели: %w", err)
	}

	c := controllers.NewModelsListController(a.client, a.cache)
	m, err := c.GetModel(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s)\n", m.Name, m.Code)
	if m.Brand != "" {
		fmt.Printf("Бренд: %s\n", m.Brand)
	}
	if yr := m.YearRange(); yr != "" {
		fmt.Printf("Годы выпуска: %s\n", yr)
	}
	if m.Description != "" {
		fmt.Println(m.Description)
	}

	files, err := c.ModelFiles(ctx, id)
	if err != nil {
		return err
	}
	if len(files) > 0 {
		fmt.Println("Файлы:")
		for _, f := range files {
			fmt.Printf("  [%d] %s (%d байт)\n", f.ID, f.Filename, f.SizeBytes)
		}
	}
	return nil
}

func (a *app) cmdTickets(ctx context.Context, args []string) error {
	c := controllers.NewTicketsListController(a.client, a.cache)
	if len(args) > 0 {
		values, err := url.ParseQuery(args[0])
		if err != nil {
			return fmt.Errorf("недопустимая query string: %w", err)
		}
		c.ApplyQueryString(values)
	}

	page, err := c.Load(ctx)
	if err != nil {
		return err
	}
	for _, t := range page.Items {
		fmt.Printf("  [%d] %s — %s/%s\n", t.ID, t.Subject, t.Status, t.Priority)
	}
	fmt.Printf("Всего %d, страниц %d\n", page.Total, page.Pages)
	return nil
}

func (a *app) cmdTicket(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: ticket <id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("недопустимый идентификатор тикета: %w", err)
	}

	c := controllers.NewTicketThreadController(a.client, a.cache, id)
	t, err := c.Ticket(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("[%d] %s — %s/%s\n%s\n\n", t.ID, t.Subject, t.Status, t.Priority, t.Description)

	msgs, err := c.Messages(ctx)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		fmt.Printf("%s | %s: %s\n", m.CreatedAt.Format("02.01 15:04"), m.Author.FullName, m.Body)
	}
	return nil
}

func (a *app) cmdSend(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: send <ticket-id> <text>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("недопустимый идентификатор тикета: %w", err)
	}

	c := controllers.NewTicketThreadController(a.client, a.cache, id)
	msg, err := c.SendMessage(ctx, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Printf("Сообщение %d отправлено.\n", msg.ID)
	return nil
}

func (a *app) cmdNewTicket(ctx context.Context, args []string) error {
	c := controllers.NewCreateTicketController(a.client, a.cache)

	form := controllers.TicketForm{}
	if len(args) > 0 {
		form.Subject = args[0]
	} else {
		form.Subject, _ = a.term.ReadLine("Тема")
	}
	if len(args) > 1 {
		form.Description = strings.Join(args[1:], " ")
	} else {
		form.Description, _ = a.term.ReadLine("Описание")
	}

	ticket, err := c.Submit(ctx, form)
	if err != nil {
		return err
	}
	fmt.Printf("Тикет %d создан.\n", ticket.ID)
	return nil
}

// cmdAdmin — операции админ-консоли.
func (a *app) cmdAdmin(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: admin <stats|users|block|unblock|role|new-model|delete-model|export>")
	}

	dash := controllers.NewAdminDashboardController(a.client, a.cache, a.manager)

	switch args[0] {
	case "stats":
		stats, err := dash.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Пользователи: %d (заблокировано %d)\n", stats.UsersTotal, stats.UsersBlocked)
		fmt.Printf("Модели: %d (активных %d)\n", stats.ModelsTotal, stats.ModelsActive)
		fmt.Printf("Тикеты: %d (открыто %d)\n", stats.TicketsTotal, stats.TicketsOpen)
		fmt.Printf("Файлы: %d, сообщения: %d\n", stats.FilesTotal, stats.MessagesTotal)
		return nil

	case "users":
		if len(args) > 1 {
			values, err := url.ParseQuery(args[1])
			if err != nil {
				return fmt.Errorf("недопустимая query string: %w", err)
			}
			dash.ApplyUsersQueryString(values)
		}
		page, err := dash.Users(ctx)
		if err != nil {
			return err
		}
		for _, u := range page.Items {
			blocked := ""
			if u.IsBlocked {
				blocked = " [заблокирован]"
			}
			fmt.Printf("  [%d] %s — %s%s\n", u.ID, u.FullName(), u.Role, blocked)
		}
		fmt.Printf("Всего %d\n", page.Total)
		return nil

	case "block", "unblock":
		if len(args) < 2 {
			return fmt.Errorf("usage: admin %s <user-id>", args[0])
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("недопустимый идентификатор пользователя: %w", err)
		}
		u, err := dash.SetUserBlocked(ctx, id, args[0] == "block")
		if err != nil {
			return err
		}
		fmt.Printf("Пользователь %d: заблокирован=%v\n", u.ID, u.IsBlocked)
		return nil

	case "role":
		if len(args) < 3 {
			return fmt.Errorf("usage: admin role <user-id> <user|admin>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("недопустимый идентификатор пользователя: %w", err)
		}
		u, err := dash.SetUserRole(ctx, id, domain.Role(args[2]))
		if err != nil {
			return err
		}
		fmt.Printf("Пользователь %d: роль %s\n", u.ID, u.Role)
		return nil

	case "new-model":
		form := controllers.ModelForm{IsActive: true}
		form.Name, _ = a.term.ReadLine("Название")
		form.Code, _ = a.term.ReadLine("Код")
		form.Brand, _ = a.term.ReadLine("Бренд")

		c := controllers.NewModelFormController(a.client, a.cache, a.term)
		m, err := c.Submit(ctx, form)
		if err != nil {
			return err
		}
		fmt.Printf("Модель %d создана.\n", m.ID)
		return nil

	case "delete-model":
		if len(args) < 2 {
			return fmt.Errorf("usage: admin delete-model <id>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("недопустимый идентификатор модели: %w", err)
		}
		c := controllers.NewModelFormController(a.client, a.cache, a.term)
		if _, err := c.LoadModel(ctx, id); err != nil {
			return err
		}
		if err := c.Delete(ctx); err != nil {
			if err == controllers.ErrDeclined {
				fmt.Println("Удаление отменено.")
				return nil
			}
			return err
		}
		fmt.Printf("Модель %d удалена.\n", id)
		return nil

	case "export":
		return a.cmdAdminExport(ctx, args[1:])

	default:
		return fmt.Errorf("неизвестная админ-команда %q", args[0])
	}
}

// cmdAdminExport выгружает каталог или тикеты в xlsx-файл рядом с приложением.
func (a *app) cmdAdminExport(ctx context.Context, args []string) error {
	if len(args) < 1 || (args[0] != "models" && args[0] != "tickets") {
		return fmt.Errorf("usage: admin export <models|tickets>")
	}

	// Роль подтверждена сервером при аутентификации
	if user := a.manager.CurrentUser(); user == nil || !user.IsAdmin() {
		return controllers.ErrAccessDenied
	}

	var (
		buf  *bytes.Buffer
		name string
	)
	switch args[0] {
	case "models":
		models, err := a.fetchAllModels(ctx)
		if err != nil {
			return err
		}
		if buf, err = export.ModelsReport(models); err != nil {
			return err
		}
		name = export.ReportFileName("models")
	case "tickets":
		tickets, err := a.fetchAllTickets(ctx)
		if err != nil {
			return err
		}
		if buf, err = export.TicketsReport(tickets); err != nil {
			return err
		}
		name = export.ReportFileName("tickets")
	}

	if err := os.WriteFile(name, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("не удалось записать файл выгрузки: %w", err)
	}
	fmt.Printf("Выгрузка сохранена в %s\n", name)
	return nil
}

// fetchAllModels собирает все страницы каталога, включая скрытые модели.
func (a *app) fetchAllModels(ctx context.Context) ([]domain.Model, error) {
	var all []domain.Model
	page := 1
	for {
		result, err := a.client.ListModels(ctx, api.ModelListParams{Page: page, PageSize: 100})
		if err != nil {
			return nil, fmt.Errorf("failed to get models page %d: %w", page, err)
		}
		all = append(all, result.Items...)
		if page >= result.Pages {
			break
		}
		page++
	}
	return all, nil
}

// fetchAllTickets собирает все страницы тикетов.
func (a *app) fetchAllTickets(ctx context.Context) ([]domain.Ticket, error) {
	var all []domain.Ticket
	page := 1
	for {
		result, err := a.client.ListTickets(ctx, api.TicketListParams{Page: page, PageSize: 100})
		if err != nil {
			return nil, fmt.Errorf("failed to get tickets page %d: %w", page, err)
		}
		all = append(all, result.Items...)
		if page >= result.Pages {
			break
		}
		page++
	}
	return all, nil
}
