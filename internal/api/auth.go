package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"telegram-miniapp-client/internal/domain"
)

// verifyRequest — тело запроса обмена init data на токен сессии.
type verifyRequest struct {
	InitData string `json:"init_data"`
}

// verifyResponse — ответ бэкенда на /auth/verify.
// Токен приходит вложенным объектом, наружу отдается плоская Session.
type verifyResponse struct {
	Token struct {
		AccessToken string `json:"access_token"`
	} `json:"token"`
	User domain.User `json:"user"`
}

// Verify обменивает init data хост-платформы на токен сессии и пользователя.
func (c *Client) Verify(ctx context.Context, initData string) (*domain.Session, error) {
	raw, err := c.Request(ctx, http.MethodPost, "/auth/verify", verifyRequest{InitData: initData}, nil)
	if err != nil {
		return nil, err
	}

	var resp verifyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("не удалось декодировать ответ аутентификации: %w", err)
	}
	if resp.Token.AccessToken == "" {
		return nil, fmt.Errorf("бэкенд вернул пустой токен сессии")
	}

	return &domain.Session{
		Token: resp.Token.AccessToken,
		User:  resp.User,
	}, nil
}

// Me возвращает профиль текущего пользователя по токену сессии.
func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	raw, err := c.Request(ctx, http.MethodGet, "/auth/me", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.User](raw)
}
