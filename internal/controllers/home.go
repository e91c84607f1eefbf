package controllers

import (
	"context"
	"net/url"

	"telegram-miniapp-client/internal/api"
	"telegram-miniapp-client/internal/domain"
	"telegram-miniapp-client/internal/query"
)

// HomeController управляет стартовым экраном: свежие модели каталога
// и сводка по тикетам пользователя.
type HomeController struct {
	apiClient *api.Client
	cache     *query.Cache
}

// NewHomeController создает контроллер стартового экрана.
func NewHomeController(apiClient *api.Client, cache *query.Cache) *HomeController {
	return &HomeController{apiClient: apiClient, cache: cache}
}

// RecentModels загружает несколько свежих активных моделей.
func (c *HomeController) RecentModels(ctx context.Context) ([]domain.Model, error) {
	params := api.ModelListParams{Page: 1, PageSize: 5, ActiveOnly: true}
	key := query.ModelsKey(url.Values{"recent": {"true"}})
	page, err := query.Fetch(ctx, c.cache, key, func(ctx context.Context) (domain.Page[domain.Model], error) {
		return c.apiClient.ListModels(ctx, params)
	})
	return page.Items, err
}

// MyTickets загружает последние тикеты пользователя.
func (c *HomeController) MyTickets(ctx context.Context) ([]domain.Ticket, error) {
	params := api.TicketListParams{Page: 1, PageSize: 5}
	page, err := query.Fetch(ctx, c.cache, query.TicketsKey(params.Values()), func(ctx context.Context) (domain.Page[domain.Ticket], error) {
		return c.apiClient.ListTickets(ctx, params)
	})
	return page.Items, err
}

// Stats загружает статистику тикетов пользователя.
func (c *HomeController) Stats(ctx context.Context) (*domain.TicketStats, error) {
	return query.Fetch(ctx, c.cache, query.TicketStatsKey(), func(ctx context.Context) (*domain.TicketStats, error) {
		return c.apiClient.TicketStats(ctx)
	})
}
