package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"telegram-miniapp-client/internal/domain"
)

// UserListParams — параметры пагинации списка пользователей в админ-консоли.
type UserListParams struct {
	Page     int
	PageSize int
	Query    string
}

// Values преобразует параметры в query string.
func (p UserListParams) Values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(p.PageSize))
	}
	if p.Query != "" {
		v.Set("q", p.Query)
	}
	return v
}

// UserUpdateInput — частичное обновление пользователя администратором.
type UserUpdateInput struct {
	IsBlocked *bool        `json:"is_blocked,omitempty"`
	Role      *domain.Role `json:"role,omitempty"`
}

// AdminListUsers возвращает страницу пользователей.
// Доступ контролируется сервером: не-администратор получит 403.
func (c *Client) AdminListUsers(ctx context.Context, p UserListParams) (domain.Page[domain.User], error) {
	raw, err := c.Request(ctx, http.MethodGet, "/admin/users", nil, p.Values())
	if err != nil {
		return domain.Page[domain.User]{}, err
	}
	return DecodeList[domain.User](raw)
}

// AdminUpdateUser блокирует пользователя или меняет его роль.
func (c *Client) AdminUpdateUser(ctx context.Context, id int64, in UserUpdateInput) (*domain.User, error) {
	raw, err := c.Request(ctx, http.MethodPut, fmt.Sprintf("/admin/users/%d", id), in, nil)
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.User](raw)
}

// AdminStats возвращает сводную статистику для админ-панели.
func (c *Client) AdminStats(ctx context.Context) (*domain.AdminStats, error) {
	raw, err := c.Request(ctx, http.MethodGet, "/admin/stats", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.AdminStats](raw)
}
