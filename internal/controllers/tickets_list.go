package controllers

import (
	"context"
	"net/url"
	"strconv"
	"sync"

	"telegram-miniapp-client/internal/api"
	"telegram-miniapp-client/internal/domain"
	"telegram-miniapp-client/internal/query"
)

// TicketsListController управляет состоянием списка тикетов:
// фильтры по статусу и приоритету, пагинация.
type TicketsListController struct {
	apiClient *api.Client
	cache     *query.Cache

	mu      sync.Mutex
	params  api.TicketListParams
	seq     uint64
	current domain.Page[domain.Ticket]
}

// NewTicketsListController создает контроллер списка тикетов.
func NewTicketsListController(apiClient *api.Client, cache *query.Cache) *TicketsListController {
	return &TicketsListController{
		apiClient: apiClient,
		cache:     cache,
		params:    api.TicketListParams{Page: 1, PageSize: defaultPageSize},
	}
}

// ApplyQueryString выводит состояние контроллера из query string URL.
// Недопустимые значения enum-фильтров игнорируются, а не проносятся
// в запрос как есть.
func (c *TicketsListController) ApplyQueryString(values url.Values) {
	c.mu.Lock()
	defer c.mu.Unlock()

	page, _ := strconv.Atoi(values.Get("page"))
	if page < 1 {
		page = 1
	}
	params := api.TicketListParams{Page: page, PageSize: defaultPageSize}
	if s := domain.TicketStatus(values.Get("status")); s.Valid() {
		params.Status = s
	}
	if p := domain.TicketPriority(values.Get("priority")); p.Valid() {
		params.Priority = p
	}
	c.params = params
	c.seq++
}

// QueryString возвращает каноническое представление состояния для URL.
func (c *TicketsListController) QueryString() url.Values {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := url.Values{}
	if c.params.Status != "" {
		v.Set("status", string(c.params.Status))
	}
	if c.params.Priority != "" {
		v.Set("priority", string(c.params.Priority))
	}
	if c.params.Page > 1 {
		v.Set("page", strconv.Itoa(c.params.Page))
	}
	return v
}

// SetStatusFilter меняет фильтр статуса и сбрасывает страницу.
func (c *TicketsListController) SetStatusFilter(s domain.TicketStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == "" || s.Valid() {
		c.params.Status = s
		c.params.Page = 1
		c.seq++
	}
}

// SetPriorityFilter меняет фильтр приоритета и сбрасывает страницу.
func (c *TicketsListController) SetPriorityFilter(p domain.TicketPriority) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p == "" || p.Valid() {
		c.params.Priority = p
		c.params.Page = 1
		c.seq++
	}
}

// SetPage переходит на указанную страницу.
func (c *TicketsListController) SetPage(page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if page < 1 {
		page = 1
	}
	c.params.Page = page
	c.seq++
}

// Load загружает страницу тикетов для текущих параметров.
// Результаты, пришедшие после смены параметров, отбрасываются.
func (c *TicketsListController) Load(ctx context.Context) (domain.Page[domain.Ticket], error) {
	c.mu.Lock()
	p := c.params
	seq := c.seq
	c.mu.Unlock()

	key := query.TicketsKey(p.Values())
	page, err := query.Fetch(ctx, c.cache, key, func(ctx context.Context) (domain.Page[domain.Ticket], error) {
		return c.apiClient.ListTickets(ctx, p)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		return domain.Page[domain.Ticket]{}, ErrSuperseded
	}
	if err == nil {
		c.current = page
	}
	return page, err
}

// Current возвращает последнюю примененную страницу тикетов.
func (c *TicketsListController) Current() domain.Page[domain.Ticket] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Stats загружает статистику тикетов пользователя.
func (c *TicketsListController) Stats(ctx context.Context) (*domain.TicketStats, error) {
	return query.Fetch(ctx, c.cache, query.TicketStatsKey(), func(ctx context.Context) (*domain.TicketStats, error) {
		return c.apiClient.TicketStats(ctx)
	})
}
