// Package query реализует кэш сущностей с дедупликацией запросов
// и инвалидацией по результатам мутаций.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Key — стабильный ключ кэша: тип сущности плюс канонические параметры
// фильтра/страницы, например "models:page=1&q=bosch".
type Key string

// FetchFunc загружает значение для ключа кэша.
type FetchFunc func(ctx context.Context) (any, error)

// Result — итог обращения к кэшу.
// При ошибке обновления Data содержит последние удачные данные (stale-while-error).
type Result struct {
	Data  any
	Err   error
	Stale bool
}

// call — один выполняющийся сетевой запрос, разделяемый конкурентными
// обращениями с одинаковым ключом.
type call struct {
	done chan struct{}
	err  error
}

// entry — состояние одного ключа кэша.
type entry struct {
	data       any
	err        error
	hasData    bool
	stale      bool
	fetchedAt  time.Time
	lastAccess time.Time
	// generation растет при каждой инвалидации; завершившийся запрос,
	// стартовавший при старом поколении, не записывает свой результат.
	generation uint64
	inflight   *call
}

// Cache — кэш сущностей. Создается явно в точке сборки приложения
// и передается контроллерам как зависимость; глобального экземпляра нет.
type Cache struct {
	mu        sync.Mutex
	entries   map[Key]*entry
	ttl       time.Duration
	retention time.Duration
	logger    *slog.Logger
}

// NewCache создает новый экземпляр Cache.
// ttl — окно свежести: в его пределах повторное обращение обслуживается
// из кэша без сетевого запроса.
func NewCache(ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		entries:   make(map[Key]*entry),
		ttl:       ttl,
		retention: 10 * ttl,
		logger:    logger,
	}
}

// Query возвращает значение для ключа: свежий кэш — сразу, иначе загружает.
// Конкурентные обращения с одинаковым ключом не порождают дублирующих
// запросов — второй вызов дожидается результата первого.
// Неудачная загрузка повторяется ровно один раз; последующая ошибка
// возвращается вместе с последними удачными данными, кэш не очищается.
func (c *Cache) Query(ctx context.Context, key Key, fetch FetchFunc) Result {
	c.mu.Lock()
	e := c.ensureEntry(key)
	e.lastAccess = time.Now()

	// Свежее попадание.
	if e.hasData && !e.stale && time.Since(e.fetchedAt) < c.ttl {
		res := Result{Data: e.data}
		c.mu.Unlock()
		return res
	}

	// Запрос уже в полете — присоединяемся к нему.
	if e.inflight != nil {
		cl := e.inflight
		c.mu.Unlock()
		select {
		case <-cl.done:
		case <-ctx.Done():
			return Result{Err: ctx.Err()}
		}
		return c.snapshot(key, cl.err)
	}

	// Становимся владельцем запроса.
	cl := &call{done: make(chan struct{})}
	e.inflight = cl
	gen := e.generation
	c.mu.Unlock()

	data, err := fetch(ctx)
	if err != nil && ctx.Err() == nil {
		// Один автоматический повтор; дальше ошибка отдается вызывающему.
		c.logger.Debug("повтор неудачного запроса", slog.String("key", string(key)), slog.String("error", err.Error()))
		data, err = fetch(ctx)
	}

	c.mu.Lock()
	cur, ok := c.entries[key]
	if ok && cur == e {
		if e.inflight == cl {
			e.inflight = nil
		}
		if e.generation == gen {
			if err == nil {
				e.data = data
				e.hasData = true
				e.stale = false
				e.err = nil
				e.fetchedAt = time.Now()
			} else {
				e.err = err
			}
		} else {
			// Ключ был инвалидирован, пока запрос выполнялся:
			// результат устарел еще до прибытия и отбрасывается.
			c.logger.Debug("результат отброшен: поколение ключа сменилось", slog.String("key", string(key)))
		}
	}
	c.mu.Unlock()

	cl.err = err
	close(cl.done)

	return c.snapshot(key, err)
}

// Peek возвращает закэшированные данные без сетевого запроса.
func (c *Cache) Peek(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !e.hasData {
		return nil, false
	}
	return e.data, true
}

// MutationOpts — параметры мутации: какие ключи пометить устаревшими
// после успеха и что сделать с результатом.
type MutationOpts struct {
	Invalidates        []Key
	InvalidatePrefixes []string
	OnSuccess          func(data any)
}

// Mutate выполняет мутацию. При успехе перечисленные ключи помечаются
// устаревшими и будут перечитаны при следующем обращении; при ошибке
// кэш остается нетронутым, чтобы пользователь мог повторить тот же ввод.
func (c *Cache) Mutate(ctx context.Context, fetch FetchFunc, opts MutationOpts) (any, error) {
	data, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.Invalidate(opts.Invalidates...)
	for _, prefix := range opts.InvalidatePrefixes {
		c.InvalidatePrefix(prefix)
	}
	if opts.OnSuccess != nil {
		opts.OnSuccess(data)
	}
	return data, nil
}

// Invalidate помечает ключи устаревшими и поднимает их поколение,
// чтобы результаты запросов, начатых до инвалидации, были отброшены.
func (c *Cache) Invalidate(keys ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		if e, ok := c.entries[key]; ok {
			e.stale = true
			e.generation++
		}
	}
}

// InvalidatePrefix помечает устаревшими все ключи с данным префиксом,
// например все страницы каталога после создания модели.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if strings.HasPrefix(string(key), prefix) {
			e.stale = true
			e.generation++
		}
	}
}

// Set кладет значение в кэш напрямую, минуя загрузку.
// Используется, когда мутация уже вернула свежую сущность.
func (c *Cache) Set(key Key, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.ensureEntry(key)
	e.data = data
	e.hasData = true
	e.stale = false
	e.err = nil
	e.generation++
	e.fetchedAt = time.Now()
	e.lastAccess = time.Now()
}

// Clear полностью очищает кэш. Вызывается при 401 и выходе из сессии.
// Запросы в полете завершатся в осиротевшие записи и не оживят данные.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]*entry)
}

// CleanupExpired удаляет записи, к которым давно не обращались.
func (c *Cache) CleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for key, e := range c.entries {
		if e.inflight == nil && now.Sub(e.lastAccess) > c.retention {
			delete(c.entries, key)
		}
	}
}

// StartCleanupTicker запускает периодическую очистку давно не используемых записей.
func (c *Cache) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.CleanupExpired()
			}
		}
	}()
}

// ensureEntry возвращает запись для ключа, создавая ее при необходимости.
// Вызывается под мьютексом.
func (c *Cache) ensureEntry(key Key) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

// snapshot собирает Result из текущего состояния записи.
func (c *Cache) snapshot(key Key, err error) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Result{Err: err}
	}
	return Result{
		Data:  e.data,
		Err:   err,
		Stale: err != nil && e.hasData,
	}
}

// Fetch — типизированная обертка над Query: снаружи кэша нетипизированные
// данные не появляются.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fn func(ctx context.Context) (T, error)) (T, error) {
	res := c.Query(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	var zero T
	if res.Data == nil {
		return zero, res.Err
	}
	v, ok := res.Data.(T)
	if !ok {
		return zero, fmt.Errorf("в кэше по ключу %q лежит значение типа %T", key, res.Data)
	}
	return v, res.Err
}
