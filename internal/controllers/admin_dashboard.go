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

// AdminDashboardController управляет админ-панелью: сводная статистика,
// последние модели и тикеты, управление пользователями.
// Доступ определяется ролью из профиля, подтвержденного сервером;
// клиентских паролей и локальных флагов разблокировки нет.
type AdminDashboardController struct {
	apiClient *api.Client
	cache     *query.Cache
	session   SessionInfo

	mu         sync.Mutex
	userParams api.UserListParams
	seq        uint64
}

// NewAdminDashboardController создает контроллер админ-панели.
func NewAdminDashboardController(apiClient *api.Client, cache *query.Cache, session SessionInfo) *AdminDashboardController {
	return &AdminDashboardController{
		apiClient:  apiClient,
		cache:      cache,
		session:    session,
		userParams: api.UserListParams{Page: 1, PageSize: defaultPageSize},
	}
}

// ensureAdmin проверяет, что текущая сессия принадлежит администратору.
// Сервер проверит роль еще раз и ответит 403; эта проверка лишь не дает
// представлению начать загрузку, которая заведомо не будет показана.
func (c *AdminDashboardController) ensureAdmin() error {
	user := c.session.CurrentUser()
	if user == nil || !user.IsAdmin() {
		return ErrAccessDenied
	}
	return nil
}

// Stats загружает сводку админ-панели.
func (c *AdminDashboardController) Stats(ctx context.Context) (*domain.AdminStats, error) {
	if err := c.ensureAdmin(); err != nil {
		return nil, err
	}
	return query.Fetch(ctx, c.cache, query.AdminStatsKey(), func(ctx context.Context) (*domain.AdminStats, error) {
		return c.apiClient.AdminStats(ctx)
	})
}

// RecentModels загружает последние модели для админ-панели,
// включая неактивные.
func (c *AdminDashboardController) RecentModels(ctx context.Context) ([]domain.Model, error) {
	if err := c.ensureAdmin(); err != nil {
		return nil, err
	}
	page, err := query.Fetch(ctx, c.cache, query.AdminModelsKey(), func(ctx context.Context) (domain.Page[domain.Model], error) {
		return c.apiClient.ListModels(ctx, api.ModelListParams{Page: 1, PageSize: 10})
	})
	return page.Items, err
}

// RecentTickets загружает последние тикеты для админ-панели.
func (c *AdminDashboardController) RecentTickets(ctx context.Context) ([]domain.Ticket, error) {
	if err := c.ensureAdmin(); err != nil {
		return nil, err
	}
	page, err := query.Fetch(ctx, c.cache, query.AdminTicketsKey(), func(ctx context.Context) (domain.Page[domain.Ticket], error) {
		return c.apiClient.ListTickets(ctx, api.TicketListParams{Page: 1, PageSize: 10})
	})
	return page.Items, err
}

// ApplyUsersQueryString выводит параметры списка пользователей из URL.
func (c *AdminDashboardController) ApplyUsersQueryString(values url.Values) {
	c.mu.Lock()
	defer c.mu.Unlock()

	page, _ := strconv.Atoi(values.Get("page"))
	if page < 1 {
		page = 1
	}
	c.userParams = api.UserListParams{
		Page:     page,
		PageSize: defaultPageSize,
		Query:    values.Get("q"),
	}
	c.seq++
}

// Users загружает страницу пользователей для текущих параметров.
func (c *AdminDashboardController) Users(ctx context.Context) (domain.Page[domain.User], error) {
	if err := c.ensureAdmin(); err != nil {
		return domain.Page[domain.User]{}, err
	}

	c.mu.Lock()
	p := c.userParams
	seq := c.seq
	c.mu.Unlock()

	page, err := query.Fetch(ctx, c.cache, query.AdminUsersKey(p.Values()), func(ctx context.Context) (domain.Page[domain.User], error) {
		return c.apiClient.AdminListUsers(ctx, p)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		return domain.Page[domain.User]{}, ErrSuperseded
	}
	return page, err
}

// SetUserBlocked блокирует или разблокирует пользователя.
func (c *AdminDashboardController) SetUserBlocked(ctx context.Context, userID int64, blocked bool) (*domain.User, error) {
	if err := c.ensureAdmin(); err != nil {
		return nil, err
	}

	data, err := c.cache.Mutate(ctx, func(ctx context.Context) (any, error) {
		return c.apiClient.AdminUpdateUser(ctx, userID, api.UserUpdateInput{IsBlocked: &blocked})
	}, query.MutationOpts{
		Invalidates:        []query.Key{query.AdminStatsKey()},
		InvalidatePrefixes: []string{query.PrefixAdminUsers},
	})
	if err != nil {
		return nil, err
	}
	return data.(*domain.User), nil
}

// SetUserRole меняет роль пользователя.
func (c *AdminDashboardController) SetUserRole(ctx context.Context, userID int64, role domain.Role) (*domain.User, error) {
	if err := c.ensureAdmin(); err != nil {
		return nil, err
	}
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return nil, ValidationError{"role": "недопустимая роль"}
	}

	data, err := c.cache.Mutate(ctx, func(ctx context.Context) (any, error) {
		return c.apiClient.AdminUpdateUser(ctx, userID, api.UserUpdateInput{Role: &role})
	}, query.MutationOpts{
		Invalidates:        []query.Key{query.AdminStatsKey()},
		InvalidatePrefixes: []string{query.PrefixAdminUsers},
	})
	if err != nil {
		return nil, err
	}
	return data.(*domain.User), nil
}
