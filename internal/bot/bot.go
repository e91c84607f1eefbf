// Package bot реализует Telegram-бота, открывающего Mini App
// и отдающего администраторам быстрые сводки по каталогу и тикетам.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-miniapp-client/cmd/bot/config"
	"telegram-miniapp-client/internal/api"
	"telegram-miniapp-client/internal/domain"
	"telegram-miniapp-client/internal/export"
	"telegram-miniapp-client/internal/view"
)

const (
	startCommand         = "start"
	appCommand           = "app"
	modelsCommand        = "models"
	ticketsCommand       = "tickets"
	exportModelsCommand  = "export_models"
	exportTicketsCommand = "export_tickets"
)

// Bot представляет собой основной объект Telegram-бота.
type Bot struct {
	api    *tgbotapi.BotAPI
	cfg    config.BotConfig
	client *api.Client
	logger *slog.Logger
}

// NewBot создает и инициализирует новый экземпляр бота.
func NewBot(cfg config.BotConfig, client *api.Client, logger *slog.Logger) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api: %w", err)
	}

	logger.Info("Authorized on account", slog.String("username", botAPI.Self.UserName))

	return &Bot{
		api:    botAPI,
		cfg:    cfg,
		client: client,
		logger: logger,
	}, nil
}

// Start запускает основной цикл обработки обновлений от Telegram.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Context cancelled, stopping bot...")
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	// Вся работа идет в Mini App, бот лишь открывает его
	reply := tgbotapi.NewMessage(msg.Chat.ID, "Откройте приложение кнопкой ниже или командой /app.")
	reply.ReplyMarkup = b.webAppKeyboard()
	b.sendMessage(reply)
}

// handleCommand обрабатывает команды.
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case startCommand:
		replyText := "Добро пожаловать! Здесь каталог моделей и поддержка.\n\n" +
			"• Каталог и инструкции — в приложении.\n" +
			"• Вопрос мастеру — через тикет в приложении.\n\n" +
			"Нажмите кнопку ниже, чтобы открыть приложение."
		reply := tgbotapi.NewMessage(msg.Chat.ID, replyText)
		reply.ReplyMarkup = b.webAppKeyboard()
		b.sendMessage(reply)

	case appCommand:
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Открыть приложение:")
		reply.ReplyMarkup = b.webAppInlineKeyboard()
		b.sendMessage(reply)

	case modelsCommand:
		b.handleModels(ctx, msg.Chat.ID)

	case ticketsCommand:
		if !b.isAdmin(msg.Chat.ID) {
			b.sendMessage(tgbotapi.NewMessage(msg.Chat.ID, "Команда доступна только администраторам."))
			return
		}
		b.handleTickets(ctx, msg.Chat.ID)

	case exportModelsCommand:
		if !b.isAdmin(msg.Chat.ID) {
			b.sendMessage(tgbotapi.NewMessage(msg.Chat.ID, "Команда доступна только администраторам."))
			return
		}
		b.handleExportModels(ctx, msg.Chat.ID)

	case exportTicketsCommand:
		if !b.isAdmin(msg.Chat.ID) {
			b.sendMessage(tgbotapi.NewMessage(msg.Chat.ID, "Команда доступна только администраторам."))
			return
		}
		b.handleExportTickets(ctx, msg.Chat.ID)

	default:
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Я не знаю такой команды.")
		b.sendMessage(reply)
	}
}

// webAppKeyboard — reply-клавиатура с кнопкой Mini App.
func (b *Bot) webAppKeyboard() tgbotapi.ReplyKeyboardMarkup {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.KeyboardButton{
				Text:   "Открыть приложение",
				WebApp: &tgbotapi.WebAppInfo{URL: b.cfg.WebAppURL},
			},
		),
	)
	keyboard.ResizeKeyboard = true
	return keyboard
}

// webAppInlineKeyboard — инлайн-кнопка с Mini App.
func (b *Bot) webAppInlineKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.InlineKeyboardButton{
				Text:   "Открыть приложение",
				WebApp: &tgbotapi.WebAppInfo{URL: b.cfg.WebAppURL},
			},
		),
	)
}

// isAdmin проверяет chat id по списку администраторов из конфигурации.
func (b *Bot) isAdmin(chatID int64) bool {
	for _, id := range b.cfg.AdminChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

func (b *Bot) sendMessage(msg tgbotapi.Chattable) {
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send message", slog.String("error", err.Error()))
	}
}

// handleModels отправляет таблицу свежих моделей каталога.
func (b *Bot) handleModels(ctx context.Context, chatID int64) {
	page, err := b.client.ListModels(ctx, api.ModelListParams{Page: 1, PageSize: 10, ActiveOnly: true})
	if err != nil {
		b.logger.Error("failed to list models", slog.String("error", err.Error()))
		b.sendMessage(tgbotapi.NewMessage(chatID, "Не удалось получить каталог. Попробуйте позже."))
		return
	}
	if len(page.Items) == 0 {
		b.sendMessage(tgbotapi.NewMessage(chatID, "Каталог пока пуст."))
		return
	}

	reply := tgbotapi.NewMessage(chatID, view.ModelsTable(page.Items))
	reply.ParseMode = tgbotapi.ModeHTML
	b.sendMessage(reply)
}

// handleTickets отправляет таблицу последних тикетов.
func (b *Bot) handleTickets(ctx context.Context, chatID int64) {
	page, err := b.client.ListTickets(ctx, api.TicketListParams{Page: 1, PageSize: 10})
	if err != nil {
		b.logger.Error("failed to list tickets", slog.String("error", err.Error()))
		b.sendMessage(tgbotapi.NewMessage(chatID, "Не удалось получить тикеты. Попробуйте позже."))
		return
	}
	if len(page.Items) == 0 {
		b.sendMessage(tgbotapi.NewMessage(chatID, "Тикетов нет."))
		return
	}

	reply := tgbotapi.NewMessage(chatID, view.TicketsTable(page.Items))
	reply.ParseMode = tgbotapi.ModeHTML
	b.sendMessage(reply)
}

// handleExportModels выгружает весь каталог в xlsx и отправляет файлом.
func (b *Bot) handleExportModels(ctx context.Context, chatID int64) {
	models, err := b.fetchAllModels(ctx)
	if err != nil {
		b.logger.Error("failed to fetch models for export", slog.String("error", err.Error()))
		b.sendMessage(tgbotapi.NewMessage(chatID, "Не удалось выгрузить каталог. Попробуйте позже."))
		return
	}

	buf, err := export.ModelsReport(models)
	if err != nil {
		b.logger.Error("failed to build models report", slog.String("error", err.Error()))
		b.sendMessage(tgbotapi.NewMessage(chatID, "Не удалось сгенерировать Excel-файл."))
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  export.ReportFileName("models"),
		Bytes: buf.Bytes(),
	})
	doc.Caption = fmt.Sprintf("Каталог: %d моделей.", len(models))
	b.sendMessage(doc)
}

// handleExportTickets выгружает тикеты в xlsx и отправляет файлом.
func (b *Bot) handleExportTickets(ctx context.Context, chatID int64) {
	tickets, err := b.fetchAllTickets(ctx)
	if err != nil {
		b.logger.Error("failed to fetch tickets for export", slog.String("error", err.Error()))
		b.sendMessage(tgbotapi.NewMessage(chatID, "Не удалось выгрузить тикеты. Попробуйте позже."))
		return
	}

	buf, err := export.TicketsReport(tickets)
	if err != nil {
		b.logger.Error("failed to build tickets report", slog.String("error", err.Error()))
		b.sendMessage(tgbotapi.NewMessage(chatID, "Не удалось сгенерировать Excel-файл."))
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  export.ReportFileName("tickets"),
		Bytes: buf.Bytes(),
	})
	doc.Caption = fmt.Sprintf("Выгружено %d тикетов.", len(tickets))
	b.sendMessage(doc)
}

// fetchAllModels собирает все страницы каталога.
func (b *Bot) fetchAllModels(ctx context.Context) ([]domain.Model, error) {
	var all []domain.Model
	page := 1
	for {
		result, err := b.client.ListModels(ctx, api.ModelListParams{Page: page, PageSize: 100})
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
func (b *Bot) fetchAllTickets(ctx context.Context) ([]domain.Ticket, error) {
	var all []domain.Ticket
	page := 1
	for {
		result, err := b.client.ListTickets(ctx, api.TicketListParams{Page: page, PageSize: 100})
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
