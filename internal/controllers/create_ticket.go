package controllers

import (
	"context"
	"strings"

	"telegram-miniapp-client/internal/api"
	"telegram-miniapp-client/internal/domain"
	"telegram-miniapp-client/internal/query"
)

// TicketForm — поля формы создания тикета.
type TicketForm struct {
	Subject     string
	Description string
	Priority    domain.TicketPriority
	ModelID     *int64
}

// CreateTicketController управляет формой создания тикета.
// Тикет может быть привязан к модели из каталога.
type CreateTicketController struct {
	apiClient *api.Client
	cache     *query.Cache
}

// NewCreateTicketController создает контроллер формы тикета.
func NewCreateTicketController(apiClient *api.Client, cache *query.Cache) *CreateTicketController {
	return &CreateTicketController{apiClient: apiClient, cache: cache}
}

// Model загружает модель, к которой привязывается тикет (для шапки формы).
func (c *CreateTicketController) Model(ctx context.Context, id int64) (*domain.Model, error) {
	return query.Fetch(ctx, c.cache, query.ModelKey(id), func(ctx context.Context) (*domain.Model, error) {
		return c.apiClient.GetModel(ctx, id)
	})
}

// Validate проверяет форму до отправки. Ошибки отображаются
// рядом с полями и не порождают сетевых запросов.
func (c *CreateTicketController) Validate(form TicketForm) ValidationError {
	errs := ValidationError{}
	if strings.TrimSpace(form.Subject) == "" {
		errs["subject"] = "тема обязательна"
	}
	if strings.TrimSpace(form.Description) == "" {
		errs["description"] = "описание обязательно"
	}
	if form.Priority != "" && !form.Priority.Valid() {
		errs["priority"] = "недопустимый приоритет"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Submit создает тикет. При успехе списки тикетов и статистика
// помечаются устаревшими — следующий их показ увидит новый тикет.
func (c *CreateTicketController) Submit(ctx context.Context, form TicketForm) (*domain.Ticket, error) {
	if errs := c.Validate(form); errs != nil {
		return nil, errs
	}

	priority := form.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}

	data, err := c.cache.Mutate(ctx, func(ctx context.Context) (any, error) {
		return c.apiClient.CreateTicket(ctx, api.TicketInput{
			Subject:     strings.TrimSpace(form.Subject),
			Description: strings.TrimSpace(form.Description),
			Priority:    priority,
			ModelID:     form.ModelID,
		})
	}, query.MutationOpts{
		Invalidates: []query.Key{
			query.TicketStatsKey(),
			query.AdminTicketsKey(),
			query.AdminStatsKey(),
		},
		InvalidatePrefixes: []string{query.PrefixTickets},
	})
	if err != nil {
		return nil, err
	}

	ticket := data.(*domain.Ticket)
	c.cache.Set(query.TicketKey(ticket.ID), ticket)
	return ticket, nil
}
