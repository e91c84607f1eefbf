package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticTokens — тестовый источник токена с изменяемым значением.
type staticTokens struct {
	token string
}

func (s *staticTokens) Token() string { return s.token }

func TestClientRequest(t *testing.T) {
	t.Run("Токен добавляется в заголовок Authorization", func(t *testing.T) {
		var gotAuth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, time.Second, &staticTokens{token: "secret"}, nil)
		_, err := c.Request(context.Background(), http.MethodGet, "/models", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "Bearer secret", gotAuth)
	})

	t.Run("Без токена заголовок Authorization отсутствует", func(t *testing.T) {
		var hasAuth bool
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, hasAuth = r.Header["Authorization"]
			w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, time.Second, &staticTokens{}, nil)
		_, err := c.Request(context.Background(), http.MethodGet, "/models", nil, nil)
		require.NoError(t, err)
		assert.False(t, hasAuth)
	})

	t.Run("Каждый запрос несет X-Request-ID", func(t *testing.T) {
		var gotID string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotID = r.Header.Get("X-Request-ID")
			w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, time.Second, &staticTokens{}, nil)
		_, err := c.Request(context.Background(), http.MethodGet, "/models", nil, nil)
		require.NoError(t, err)
		assert.NotEmpty(t, gotID)
	})

	t.Run("401 вызывает обработчик сброса и возвращает ErrAuthExpired", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		tokens := &staticTokens{token: "stale"}
		c := NewClient(srv.URL, time.Second, tokens, nil)
		resetCalled := false
		c.SetUnauthorizedHandler(func() {
			resetCalled = true
			tokens.token = ""
		})

		_, err := c.Request(context.Background(), http.MethodGet, "/tickets", nil, nil)
		assert.ErrorIs(t, err, ErrAuthExpired)
		assert.True(t, resetCalled)
		// После сброса токен не должен уходить на сервер
		assert.Empty(t, tokens.Token())
	})

	t.Run("Ошибка сервера с detail превращается в APIError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"Модель не найдена"}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, time.Second, &staticTokens{}, nil)
		_, err := c.Request(context.Background(), http.MethodGet, "/models/999", nil, nil)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
		assert.Equal(t, "Модель не найдена", apiErr.Message)
	})

	t.Run("Ошибка сервера без detail получает общее сообщение", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`oops`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, time.Second, &staticTokens{}, nil)
		_, err := c.Request(context.Background(), http.MethodGet, "/models", nil, nil)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
		assert.NotEmpty(t, apiErr.Message)
	})

	t.Run("Недоступный сервер дает NetworkError", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:1", 200*time.Millisecond, &staticTokens{}, nil)
		_, err := c.Request(context.Background(), http.MethodGet, "/models", nil, nil)

		var netErr *NetworkError
		assert.ErrorAs(t, err, &netErr)
	})

	t.Run("Query-параметры попадают в URL", func(t *testing.T) {
		var gotQuery url.Values
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query()
			w.Write([]byte(`{"items":[]}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, time.Second, &staticTokens{}, nil)
		q := url.Values{}
		q.Set("page", "2")
		q.Set("q", "дрель")
		_, err := c.Request(context.Background(), http.MethodGet, "/models", nil, q)
		require.NoError(t, err)
		assert.Equal(t, "2", gotQuery.Get("page"))
		assert.Equal(t, "дрель", gotQuery.Get("q"))
	})

	t.Run("Multipart-загрузка передает файл и поля", func(t *testing.T) {
		var gotFilename, gotComment, gotContent string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseMultipartForm(1<<20))
			file, header, err := r.FormFile("file")
			require.NoError(t, err)
			defer file.Close()
			buf := new(strings.Builder)
			_, _ = io.Copy(buf, file)
			gotContent = buf.String()
			gotFilename = header.Filename
			gotComment = r.FormValue("comment")
			w.Write([]byte(`{"id":1}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, time.Second, &staticTokens{}, nil)
		_, err := c.RequestMultipart(context.Background(), "/models/1/files",
			map[string]string{"comment": "схема"}, "file", "manual.pdf", strings.NewReader("content"))
		require.NoError(t, err)
		assert.Equal(t, "manual.pdf", gotFilename)
		assert.Equal(t, "схема", gotComment)
		assert.Equal(t, "content", gotContent)
	})
}
