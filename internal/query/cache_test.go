package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheQuery(t *testing.T) {
	t.Run("Повторное обращение в окне свежести не делает запрос", func(t *testing.T) {
		c := NewCache(time.Minute, nil)
		var calls atomic.Int32
		fetch := func(ctx context.Context) (any, error) {
			calls.Add(1)
			return "данные", nil
		}

		res1 := c.Query(context.Background(), "k", fetch)
		res2 := c.Query(context.Background(), "k", fetch)

		require.NoError(t, res1.Err)
		require.NoError(t, res2.Err)
		assert.Equal(t, "данные", res2.Data)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("Конкурентные одинаковые запросы дают один сетевой вызов", func(t *testing.T) {
		c := NewCache(time.Minute, nil)
		var calls atomic.Int32
		started := make(chan struct{})
		release := make(chan struct{})
		fetch := func(ctx context.Context) (any, error) {
			if calls.Add(1) == 1 {
				close(started)
			}
			<-release
			return 42, nil
		}

		var wg sync.WaitGroup
		results := make([]Result, 5)
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = c.Query(context.Background(), "same", fetch)
			}(i)
		}

		<-started
		// Даем остальным горутинам присоединиться к запросу в полете
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		assert.Equal(t, int32(1), calls.Load())
		for _, res := range results {
			require.NoError(t, res.Err)
			assert.Equal(t, 42, res.Data)
		}
	})

	t.Run("Неудачная загрузка повторяется ровно один раз", func(t *testing.T) {
		c := NewCache(time.Minute, nil)
		var calls atomic.Int32
		fetch := func(ctx context.Context) (any, error) {
			calls.Add(1)
			return nil, errors.New("сервер недоступен")
		}

		res := c.Query(context.Background(), "k", fetch)

		assert.Error(t, res.Err)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("Stale-while-error: старые данные переживают неудачное обновление", func(t *testing.T) {
		c := NewCache(time.Nanosecond, nil) // моментально устаревает
		calls := 0
		fetch := func(ctx context.Context) (any, error) {
			calls++
			if calls == 1 {
				return "старые данные", nil
			}
			return nil, errors.New("сбой обновления")
		}

		res1 := c.Query(context.Background(), "k", fetch)
		require.NoError(t, res1.Err)

		time.Sleep(time.Millisecond)
		res2 := c.Query(context.Background(), "k", fetch)

		assert.Error(t, res2.Err)
		assert.Equal(t, "старые данные", res2.Data)
		assert.True(t, res2.Stale)
	})

	t.Run("Инвалидация приводит к перечитыванию при следующем обращении", func(t *testing.T) {
		c := NewCache(time.Minute, nil)
		var calls atomic.Int32
		fetch := func(ctx context.Context) (any, error) {
			return int(calls.Add(1)), nil
		}

		res1 := c.Query(context.Background(), "k", fetch)
		assert.Equal(t, 1, res1.Data)

		c.Invalidate("k")

		res2 := c.Query(context.Background(), "k", fetch)
		assert.Equal(t, 2, res2.Data)
	})

	t.Run("Результат запроса, начатого до инвалидации, отбрасывается", func(t *testing.T) {
		c := NewCache(time.Minute, nil)
		inFetch := make(chan struct{})
		release := make(chan struct{})
		fetch := func(ctx context.Context) (any, error) {
			close(inFetch)
			<-release
			return "устаревший результат", nil
		}

		done := make(chan Result)
		go func() {
			done <- c.Query(context.Background(), "k", fetch)
		}()

		<-inFetch
		c.Invalidate("k") // ключ инвалидирован, пока запрос в полете
		close(release)
		<-done

		// Кэш не должен был сохранить отброшенный результат как свежий
		_, found := c.Peek("k")
		assert.False(t, found)
	})

	t.Run("Отмена контекста у ожидающего не ломает владельца запроса", func(t *testing.T) {
		c := NewCache(time.Minute, nil)
		inFetch := make(chan struct{})
		release := make(chan struct{})
		fetch := func(ctx context.Context) (any, error) {
			close(inFetch)
			<-release
			return "ок", nil
		}

		ownerDone := make(chan Result)
		go func() {
			ownerDone <- c.Query(context.Background(), "k", fetch)
		}()
		<-inFetch

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		waiter := c.Query(ctx, "k", fetch)
		assert.ErrorIs(t, waiter.Err, context.Canceled)

		close(release)
		owner := <-ownerDone
		require.NoError(t, owner.Err)
		assert.Equal(t, "ок", owner.Data)
	})

	t.Run("Clear удаляет все записи", func(t *testing.T) {
		c := NewCache(time.Minute, nil)
		c.Set("a", 1)
		c.Set("b", 2)

		c.Clear()

		_, foundA := c.Peek("a")
		_, foundB := c.Peek("b")
		assert.False(t, foundA)
		assert.False(t, foundB)
	})
}

func TestCacheMutate(t *testing.T) {
	t.Run("Успешная мутация инвалидирует перечисленные ключи", func(t *testing.T) {
		c := NewCache(time.Minute, nil)
		var listCalls atomic.Int32
		list := func(ctx context.Context) (any, error) {
			return int(listCalls.Add(1)), nil
		}

		c.Query(context.Background(), "models:page=1", list)
		c.Query(context.Background(), "admin-models", list)

		_, err := c.Mutate(context.Background(), func(ctx context.Context) (any, error) {
			return "создано", nil
		}, MutationOpts{
			Invalidates:        []Key{"admin-models"},
			InvalidatePrefixes: []string{"models:"},
		})
		require.NoError(t, err)

		res := c.Query(context.Background(), "models:page=1", list)
		assert.Equal(t, 3, res.Data, "страница каталога должна быть перечитана")
		res = c.Query(context.Background(), "admin-models", list)
		assert.Equal(t, 4, res.Data, "админский список должен быть перечитан")
	})

	t.Run("Неудачная мутация не трогает кэш", func(t *testing.T) {
		c := NewCache(time.Minute, nil)
		c.Set("models:page=1", "прежние данные")

		_, err := c.Mutate(context.Background(), func(ctx context.Context) (any, error) {
			return nil, errors.New("валидация на сервере не прошла")
		}, MutationOpts{InvalidatePrefixes: []string{"models:"}})
		assert.Error(t, err)

		data, found := c.Peek("models:page=1")
		require.True(t, found)
		assert.Equal(t, "прежние данные", data)
	})

	t.Run("OnSuccess получает результат мутации", func(t *testing.T) {
		c := NewCache(time.Minute, nil)
		var got any
		_, err := c.Mutate(context.Background(), func(ctx context.Context) (any, error) {
			return "сущность", nil
		}, MutationOpts{OnSuccess: func(data any) { got = data }})
		require.NoError(t, err)
		assert.Equal(t, "сущность", got)
	})
}

func TestCacheCleanup(t *testing.T) {
	c := NewCache(10*time.Millisecond, nil)
	c.Set("old", 1)

	time.Sleep(150 * time.Millisecond) // retention = 10*ttl
	c.CleanupExpired()

	_, found := c.Peek("old")
	assert.False(t, found)
}

func TestFetchTyped(t *testing.T) {
	t.Run("Типизированное чтение", func(t *testing.T) {
		c := NewCache(time.Minute, nil)
		got, err := Fetch(context.Background(), c, "k", func(ctx context.Context) (string, error) {
			return "значение", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "значение", got)
	})

	t.Run("Несовпадение типа — ошибка, а не паника", func(t *testing.T) {
		c := NewCache(time.Minute, nil)
		c.Set("k", 123)
		_, err := Fetch(context.Background(), c, "k", func(ctx context.Context) (string, error) {
			return "", nil
		})
		assert.Error(t, err)
	})
}
