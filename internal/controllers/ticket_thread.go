package controllers

import (
	"context"
	"strings"

	"telegram-miniapp-client/internal/api"
	"telegram-miniapp-client/internal/domain"
	"telegram-miniapp-client/internal/query"
)

// TicketThreadController управляет представлением одного тикета
// и его переписки.
type TicketThreadController struct {
	apiClient *api.Client
	cache     *query.Cache
	ticketID  int64
}

// NewTicketThreadController создает контроллер переписки по тикету.
func NewTicketThreadController(apiClient *api.Client, cache *query.Cache, ticketID int64) *TicketThreadController {
	return &TicketThreadController{
		apiClient: apiClient,
		cache:     cache,
		ticketID:  ticketID,
	}
}

// Ticket загружает сам тикет.
func (c *TicketThreadController) Ticket(ctx context.Context) (*domain.Ticket, error) {
	return query.Fetch(ctx, c.cache, query.TicketKey(c.ticketID), func(ctx context.Context) (*domain.Ticket, error) {
		return c.apiClient.GetTicket(ctx, c.ticketID)
	})
}

// Messages загружает переписку тикета. Порядок — по времени создания
// по возрастанию, он зафиксирован на границе приема данных и здесь
// не пересортировывается.
func (c *TicketThreadController) Messages(ctx context.Context) ([]domain.TicketMessage, error) {
	return query.Fetch(ctx, c.cache, query.TicketMessagesKey(c.ticketID), func(ctx context.Context) ([]domain.TicketMessage, error) {
		return c.apiClient.ListTicketMessages(ctx, c.ticketID)
	})
}

// SendMessage отправляет сообщение в переписку. Пустое тело отклоняется
// клиентской валидацией без сетевого запроса. При успехе переписка
// помечается устаревшей и перечитывается при следующем обращении.
func (c *TicketThreadController) SendMessage(ctx context.Context, body string) (*domain.TicketMessage, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ValidationError{"body": "сообщение не может быть пустым"}
	}

	data, err := c.cache.Mutate(ctx, func(ctx context.Context) (any, error) {
		return c.apiClient.CreateTicketMessage(ctx, c.ticketID, api.MessageInput{Body: body})
	}, query.MutationOpts{
		Invalidates: []query.Key{
			query.TicketMessagesKey(c.ticketID),
			query.TicketKey(c.ticketID),
		},
	})
	if err != nil {
		return nil, err
	}
	return data.(*domain.TicketMessage), nil
}

// UpdateStatus меняет статус тикета (доступно сотрудникам поддержки).
func (c *TicketThreadController) UpdateStatus(ctx context.Context, status domain.TicketStatus) (*domain.Ticket, error) {
	if !status.Valid() {
		return nil, ValidationError{"status": "недопустимый статус"}
	}

	data, err := c.cache.Mutate(ctx, func(ctx context.Context) (any, error) {
		return c.apiClient.UpdateTicket(ctx, c.ticketID, api.TicketUpdateInput{Status: &status})
	}, query.MutationOpts{
		Invalidates: []query.Key{
			query.TicketKey(c.ticketID),
			query.TicketStatsKey(),
			query.AdminTicketsKey(),
		},
		InvalidatePrefixes: []string{query.PrefixTickets},
	})
	if err != nil {
		return nil, err
	}
	return data.(*domain.Ticket), nil
}
