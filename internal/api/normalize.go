package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"telegram-miniapp-client/internal/domain"
)

// listEnvelope описывает все наблюдавшиеся формы конверта списочного ответа.
// Контракт бэкенда менялся со временем: старые сборки возвращали чистый
// массив или конверт {"models": [...]}, текущие — {"items", "total", "pages"}.
type listEnvelope struct {
	Items  json.RawMessage `json:"items"`
	Total  *int            `json:"total"`
	Pages  *int            `json:"pages"`
	Models json.RawMessage `json:"models"`
}

// DecodeList приводит любой допустимый списочный ответ к каноническому виду.
// Порядок проверки форм имеет значение: items проверяется раньше models,
// так как переходный конверт может содержать оба поля одновременно.
// Гарантируется pages >= 1 и ненулевой срез items.
func DecodeList[T any](raw json.RawMessage) (domain.Page[T], error) {
	page := domain.Page[T]{Items: []T{}, Pages: 1}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return page, nil
	}

	// Форма 1: чистый массив.
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &page.Items); err != nil {
			return page, fmt.Errorf("не удалось декодировать массив элементов: %w", err)
		}
		page.Total = len(page.Items)
		return page, nil
	}

	var env listEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return page, fmt.Errorf("не удалось декодировать конверт списка: %w", err)
	}

	switch {
	// Форма 2: текущий конверт {items, total, pages}.
	case rawPresent(env.Items):
		if err := json.Unmarshal(env.Items, &page.Items); err != nil {
			return page, fmt.Errorf("не удалось декодировать поле items: %w", err)
		}
		if env.Total != nil {
			page.Total = *env.Total
		} else {
			page.Total = len(page.Items)
		}
		if env.Pages != nil {
			page.Pages = *env.Pages
		}
	// Форма 3: устаревший конверт {models: [...]}.
	case rawPresent(env.Models):
		if err := json.Unmarshal(env.Models, &page.Items); err != nil {
			return page, fmt.Errorf("не удалось декодировать поле models: %w", err)
		}
		page.Total = len(page.Items)
	// Форма 4: неизвестный объект — пустой результат, не ошибка.
	default:
	}

	if page.Items == nil {
		page.Items = []T{}
	}
	if page.Pages < 1 {
		page.Pages = 1
	}
	return page, nil
}

// decodeOne декодирует ответ с одиночной сущностью.
// Такие ответы уже имеют стабильный контракт и не нормализуются.
func decodeOne[T any](raw json.RawMessage) (*T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("не удалось декодировать ответ: %w", err)
	}
	return &v, nil
}

// rawPresent сообщает, присутствует ли поле в JSON и не равно ли оно null.
func rawPresent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
