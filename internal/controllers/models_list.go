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

// defaultPageSize — размер страницы каталога, как в исходном приложении.
const defaultPageSize = 20

// ModelsListController управляет состоянием каталога моделей:
// поиск, фильтры по бренду и категории, пагинация.
type ModelsListController struct {
	apiClient *api.Client
	cache     *query.Cache

	mu      sync.Mutex
	params  api.ModelListParams
	seq     uint64
	current domain.Page[domain.Model]
}

// NewModelsListController создает контроллер каталога.
func NewModelsListController(apiClient *api.Client, cache *query.Cache) *ModelsListController {
	return &ModelsListController{
		apiClient: apiClient,
		cache:     cache,
		params: api.ModelListParams{
			Page:       1,
			PageSize:   defaultPageSize,
			ActiveOnly: true,
		},
	}
}

// ApplyQueryString выводит состояние контроллера из query string URL.
// Навигация назад/вперед и переход по ссылке воспроизводят то же
// представление, потому что другого состояния фильтров нет.
func (c *ModelsListController) ApplyQueryString(values url.Values) {
	c.mu.Lock()
	defer c.mu.Unlock()

	page, _ := strconv.Atoi(values.Get("page"))
	if page < 1 {
		page = 1
	}
	c.params = api.ModelListParams{
		Page:       page,
		PageSize:   defaultPageSize,
		Query:      values.Get("q"),
		Brand:      values.Get("brand"),
		Category:   values.Get("category"),
		ActiveOnly: true,
	}
	c.seq++
}

// QueryString возвращает каноническое представление состояния для URL.
func (c *ModelsListController) QueryString() url.Values {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := url.Values{}
	if c.params.Query != "" {
		v.Set("q", c.params.Query)
	}
	if c.params.Brand != "" {
		v.Set("brand", c.params.Brand)
	}
	if c.params.Category != "" {
		v.Set("category", c.params.Category)
	}
	if c.params.Page > 1 {
		v.Set("page", strconv.Itoa(c.params.Page))
	}
	return v
}

// SetSearch меняет поисковый запрос и сбрасывает страницу на первую.
func (c *ModelsListController) SetSearch(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params.Query = q
	c.params.Page = 1
	c.seq++
}

// SetFilters меняет фильтры бренда и категории и сбрасывает страницу.
func (c *ModelsListController) SetFilters(brand, category string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params.Brand = brand
	c.params.Category = category
	c.params.Page = 1
	c.seq++
}

// SetPage переходит на указанную страницу.
func (c *ModelsListController) SetPage(page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if page < 1 {
		page = 1
	}
	c.params.Page = page
	c.seq++
}

// ClearFilters сбрасывает поиск и фильтры.
func (c *ModelsListController) ClearFilters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params = api.ModelListParams{Page: 1, PageSize: defaultPageSize, ActiveOnly: true}
	c.seq++
}

// Load загружает страницу каталога для текущих параметров.
// Если за время запроса параметры изменились, результат отбрасывается
// и возвращается ErrSuperseded — представление его не отрисует.
func (c *ModelsListController) Load(ctx context.Context) (domain.Page[domain.Model], error) {
	c.mu.Lock()
	p := c.params
	seq := c.seq
	c.mu.Unlock()

	key := query.ModelsKey(p.Values())
	page, err := query.Fetch(ctx, c.cache, key, func(ctx context.Context) (domain.Page[domain.Model], error) {
		return c.apiClient.ListModels(ctx, p)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		return domain.Page[domain.Model]{}, ErrSuperseded
	}
	if err == nil {
		c.current = page
	}
	return page, err
}

// Current возвращает последнюю примененную страницу каталога.
func (c *ModelsListController) Current() domain.Page[domain.Model] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// GetModel загружает одну модель для детального представления.
func (c *ModelsListController) GetModel(ctx context.Context, id int64) (*domain.Model, error) {
	return query.Fetch(ctx, c.cache, query.ModelKey(id), func(ctx context.Context) (*domain.Model, error) {
		return c.apiClient.GetModel(ctx, id)
	})
}

// ModelFiles загружает список файлов модели для детального представления.
func (c *ModelsListController) ModelFiles(ctx context.Context, modelID int64) ([]domain.ModelFile, error) {
	page, err := query.Fetch(ctx, c.cache, query.ModelFilesKey(modelID), func(ctx context.Context) (domain.Page[domain.ModelFile], error) {
		return c.apiClient.ListModelFiles(ctx, modelID)
	})
	return page.Items, err
}
