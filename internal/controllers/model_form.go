package controllers

import (
	"context"
	"fmt"
	"io"
	"strings"

	"telegram-miniapp-client/internal/api"
	"telegram-miniapp-client/internal/domain"
	"telegram-miniapp-client/internal/query"
)

// ModelForm — поля формы создания/редактирования модели.
type ModelForm struct {
	Name        string
	Code        string
	Brand       string
	Category    string
	YearFrom    int
	YearTo      int
	Description string
	ImageURL    string
	IsActive    bool
}

// ModelFormController управляет формой модели в админ-консоли,
// включая вложенный подресурс файлов.
type ModelFormController struct {
	apiClient *api.Client
	cache     *query.Cache
	confirmer Confirmer

	// modelID задан в режиме редактирования, nil — при создании.
	modelID *int64
}

// NewModelFormController создает контроллер формы для новой модели.
func NewModelFormController(apiClient *api.Client, cache *query.Cache, confirmer Confirmer) *ModelFormController {
	return &ModelFormController{
		apiClient: apiClient,
		cache:     cache,
		confirmer: confirmer,
	}
}

// LoadModel переводит форму в режим редактирования и возвращает
// заполненную из модели форму.
func (c *ModelFormController) LoadModel(ctx context.Context, id int64) (ModelForm, error) {
	model, err := query.Fetch(ctx, c.cache, query.ModelKey(id), func(ctx context.Context) (*domain.Model, error) {
		return c.apiClient.GetModel(ctx, id)
	})
	if err != nil {
		return ModelForm{}, err
	}

	c.modelID = &model.ID
	return ModelForm{
		Name:        model.Name,
		Code:        model.Code,
		Brand:       model.Brand,
		Category:    model.Category,
		YearFrom:    model.YearFrom,
		YearTo:      model.YearTo,
		Description: model.Description,
		ImageURL:    model.ImageURL,
		IsActive:    model.IsActive,
	}, nil
}

// Validate проверяет форму до отправки.
func (c *ModelFormController) Validate(form ModelForm) ValidationError {
	errs := ValidationError{}
	if strings.TrimSpace(form.Name) == "" {
		errs["name"] = "название обязательно"
	}
	if strings.TrimSpace(form.Code) == "" {
		errs["code"] = "код обязателен"
	}
	if form.YearFrom < 0 || form.YearTo < 0 {
		errs["year_from"] = "год не может быть отрицательным"
	}
	if form.YearFrom > 0 && form.YearTo > 0 && form.YearFrom > form.YearTo {
		errs["year_to"] = "конечный год раньше начального"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Submit сохраняет форму: создает новую модель или обновляет существующую.
// При успехе каталог, админский список и сама модель помечаются
// устаревшими; при ошибке кэш не меняется, и форма сохраняет ввод
// для повторной отправки.
func (c *ModelFormController) Submit(ctx context.Context, form ModelForm) (*domain.Model, error) {
	if errs := c.Validate(form); errs != nil {
		return nil, errs
	}

	in := api.ModelInput{
		Name:        strings.TrimSpace(form.Name),
		Code:        strings.TrimSpace(form.Code),
		Brand:       strings.TrimSpace(form.Brand),
		Category:    form.Category,
		Description: form.Description,
		ImageURL:    form.ImageURL,
		IsActive:    form.IsActive,
	}
	if form.YearFrom > 0 {
		y := form.YearFrom
		in.YearFrom = &y
	}
	if form.YearTo > 0 {
		y := form.YearTo
		in.YearTo = &y
	}

	invalidates := []query.Key{query.AdminModelsKey(), query.AdminStatsKey()}
	if c.modelID != nil {
		invalidates = append(invalidates, query.ModelKey(*c.modelID))
	}

	data, err := c.cache.Mutate(ctx, func(ctx context.Context) (any, error) {
		if c.modelID != nil {
			return c.apiClient.UpdateModel(ctx, *c.modelID, in)
		}
		return c.apiClient.CreateModel(ctx, in)
	}, query.MutationOpts{
		Invalidates:        invalidates,
		InvalidatePrefixes: []string{query.PrefixModels},
	})
	if err != nil {
		return nil, err
	}

	model := data.(*domain.Model)
	c.modelID = &model.ID
	c.cache.Set(query.ModelKey(model.ID), model)
	return model, nil
}

// Delete удаляет модель. Без явного подтверждения пользователя
// мутация не запускается.
func (c *ModelFormController) Delete(ctx context.Context) error {
	if c.modelID == nil {
		return fmt.Errorf("модель еще не сохранена, удалять нечего")
	}
	id := *c.modelID

	ok, err := c.confirmer.Confirm(fmt.Sprintf("Удалить модель %d? Действие необратимо.", id))
	if err != nil {
		return fmt.Errorf("не удалось запросить подтверждение: %w", err)
	}
	if !ok {
		return ErrDeclined
	}

	_, err = c.cache.Mutate(ctx, func(ctx context.Context) (any, error) {
		return nil, c.apiClient.DeleteModel(ctx, id)
	}, query.MutationOpts{
		Invalidates: []query.Key{
			query.ModelKey(id),
			query.ModelFilesKey(id),
			query.AdminModelsKey(),
			query.AdminStatsKey(),
		},
		InvalidatePrefixes: []string{query.PrefixModels},
	})
	return err
}

// Files загружает список файлов редактируемой модели.
func (c *ModelFormController) Files(ctx context.Context) ([]domain.ModelFile, error) {
	if c.modelID == nil {
		return nil, nil
	}
	id := *c.modelID
	page, err := query.Fetch(ctx, c.cache, query.ModelFilesKey(id), func(ctx context.Context) (domain.Page[domain.ModelFile], error) {
		return c.apiClient.ListModelFiles(ctx, id)
	})
	return page.Items, err
}

// UploadFile загружает файл к редактируемой модели и помечает
// список файлов устаревшим.
func (c *ModelFormController) UploadFile(ctx context.Context, filename string, content io.Reader, comment string) (*domain.ModelFile, error) {
	if c.modelID == nil {
		return nil, fmt.Errorf("модель еще не сохранена, сначала сохраните форму")
	}
	if strings.TrimSpace(filename) == "" {
		return nil, ValidationError{"file": "файл не выбран"}
	}
	id := *c.modelID

	data, err := c.cache.Mutate(ctx, func(ctx context.Context) (any, error) {
		return c.apiClient.UploadModelFile(ctx, id, filename, content, comment)
	}, query.MutationOpts{
		Invalidates: []query.Key{
			query.ModelFilesKey(id),
			query.ModelKey(id),
		},
	})
	if err != nil {
		return nil, err
	}
	return data.(*domain.ModelFile), nil
}

// DeleteFile удаляет файл модели после явного подтверждения.
func (c *ModelFormController) DeleteFile(ctx context.Context, fileID int64) error {
	if c.modelID == nil {
		return fmt.Errorf("модель еще не сохранена")
	}
	id := *c.modelID

	ok, err := c.confirmer.Confirm(fmt.Sprintf("Удалить файл %d? Действие необратимо.", fileID))
	if err != nil {
		return fmt.Errorf("не удалось запросить подтверждение: %w", err)
	}
	if !ok {
		return ErrDeclined
	}

	_, err = c.cache.Mutate(ctx, func(ctx context.Context) (any, error) {
		return nil, c.apiClient.DeleteModelFile(ctx, id, fileID)
	}, query.MutationOpts{
		Invalidates: []query.Key{
			query.ModelFilesKey(id),
			query.ModelKey(id),
		},
	})
	return err
}
