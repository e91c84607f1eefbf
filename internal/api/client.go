// Package api реализует HTTP-клиент для REST API бэкенда Mini App.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout используется, когда таймаут не задан в конфигурации.
// Исходная система таймаут не специфицировала, значение выбрано явно.
const DefaultTimeout = 15 * time.Second

// TokenSource предоставляет текущий токен сессии.
// Пустая строка означает, что токена нет и заголовок Authorization не ставится.
type TokenSource interface {
	Token() string
}

// Client — клиент для взаимодействия с API бэкенда.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokens         TokenSource
	onUnauthorized func()
	logger         *slog.Logger
}

// NewClient создает новый экземпляр Client.
// baseURL указывается без завершающего слеша, например "http://localhost:8000/api/v1".
func NewClient(baseURL string, timeout time.Duration, tokens TokenSource, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tokens: tokens,
		logger: logger,
	}
}

// SetUnauthorizedHandler регистрирует обработчик ответа 401.
// Обработчик обязан сбросить токен, кэш и состояние сессии —
// это безусловный побочный эффект, запрос с тем же токеном не повторяется.
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.onUnauthorized = fn
}

// Request выполняет запрос к API и возвращает сырое тело успешного ответа.
// Токен сессии, если он есть, добавляется в заголовок Authorization.
func (c *Client) Request(ctx context.Context, method, path string, body any, query url.Values) (json.RawMessage, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("не удалось сериализовать тело запроса: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path, query), reqBody)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать запрос: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req)
}

// RequestMultipart выполняет загрузку файла через multipart-форму.
func (c *Client) RequestMultipart(ctx context.Context, path string, fields map[string]string, fileField, filename string, content io.Reader) (json.RawMessage, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile(fileField, filename)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать файл формы для %s: %w", filename, err)
	}
	if _, err = io.Copy(fw, content); err != nil {
		return nil, fmt.Errorf("не удалось записать содержимое файла %s: %w", filename, err)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("не удалось записать поле формы %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("не удалось закрыть multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(path, nil), &b)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать запрос: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return c.do(req)
}

// do выполняет подготовленный запрос: ставит служебные заголовки,
// нормализует ошибки и обрабатывает 401.
func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Warn("получен 401, сессия сбрасывается",
			slog.String("method", req.Method), slog.String("path", req.URL.Path))
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return nil, ErrAuthExpired
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			Status:  resp.StatusCode,
			Message: serverMessage(respBody, resp.StatusCode),
		}
	}

	return respBody, nil
}

// buildURL собирает полный URL запроса из базового пути и query-параметров.
func (c *Client) buildURL(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// serverMessage извлекает сообщение об ошибке из тела ответа.
// Бэкенд присылает ошибки в виде {"detail": "..."}; при любом
// отклонении от этой формы используется общее сообщение.
func serverMessage(body []byte, status int) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return fmt.Sprintf("сервер вернул ошибку (%s)", http.StatusText(status))
}
