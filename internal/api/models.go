package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"telegram-miniapp-client/internal/domain"
)

// ModelListParams — параметры фильтрации и пагинации каталога моделей.
type ModelListParams struct {
	Page       int
	PageSize   int
	Query      string
	Brand      string
	Category   string
	ActiveOnly bool
}

// Values преобразует параметры в query string.
// Пустые фильтры опускаются, чтобы ключ кэша был каноничным.
func (p ModelListParams) Values() url.Values {
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
	if p.Brand != "" {
		v.Set("brand", p.Brand)
	}
	if p.Category != "" {
		v.Set("category", p.Category)
	}
	if p.ActiveOnly {
		v.Set("is_active", "true")
	}
	return v
}

// ModelInput — данные формы создания/редактирования модели.
type ModelInput struct {
	Name        string `json:"name"`
	Code        string `json:"code,omitempty"`
	Brand       string `json:"brand,omitempty"`
	Category    string `json:"category,omitempty"`
	YearFrom    *int   `json:"year_from,omitempty"`
	YearTo      *int   `json:"year_to,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	IsActive    bool   `json:"is_active"`
}

// ListModels возвращает страницу каталога моделей.
func (c *Client) ListModels(ctx context.Context, p ModelListParams) (domain.Page[domain.Model], error) {
	raw, err := c.Request(ctx, http.MethodGet, "/models", nil, p.Values())
	if err != nil {
		return domain.Page[domain.Model]{}, err
	}
	return DecodeList[domain.Model](raw)
}

// GetModel возвращает одну модель по идентификатору.
func (c *Client) GetModel(ctx context.Context, id int64) (*domain.Model, error) {
	raw, err := c.Request(ctx, http.MethodGet, fmt.Sprintf("/models/%d", id), nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Model](raw)
}

// CreateModel создает новую модель.
func (c *Client) CreateModel(ctx context.Context, in ModelInput) (*domain.Model, error) {
	raw, err := c.Request(ctx, http.MethodPost, "/models", in, nil)
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Model](raw)
}

// UpdateModel обновляет существующую модель.
func (c *Client) UpdateModel(ctx context.Context, id int64, in ModelInput) (*domain.Model, error) {
	raw, err := c.Request(ctx, http.MethodPut, fmt.Sprintf("/models/%d", id), in, nil)
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Model](raw)
}

// DeleteModel удаляет модель.
func (c *Client) DeleteModel(ctx context.Context, id int64) error {
	_, err := c.Request(ctx, http.MethodDelete, fmt.Sprintf("/models/%d", id), nil, nil)
	return err
}

// ListModelFiles возвращает список файлов модели.
func (c *Client) ListModelFiles(ctx context.Context, modelID int64) (domain.Page[domain.ModelFile], error) {
	raw, err := c.Request(ctx, http.MethodGet, fmt.Sprintf("/models/%d/files", modelID), nil, nil)
	if err != nil {
		return domain.Page[domain.ModelFile]{}, err
	}
	return DecodeList[domain.ModelFile](raw)
}

// UploadModelFile загружает файл для модели.
func (c *Client) UploadModelFile(ctx context.Context, modelID int64, filename string, content io.Reader, comment string) (*domain.ModelFile, error) {
	fields := map[string]string{}
	if comment != "" {
		fields["comment"] = comment
	}
	raw, err := c.RequestMultipart(ctx, fmt.Sprintf("/models/%d/files", modelID), fields, "file", filename, content)
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.ModelFile](raw)
}

// DeleteModelFile удаляет файл модели.
func (c *Client) DeleteModelFile(ctx context.Context, modelID, fileID int64) error {
	_, err := c.Request(ctx, http.MethodDelete, fmt.Sprintf("/models/%d/files/%d", modelID, fileID), nil, nil)
	return err
}
