package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"plantkeeper/internal/app/client/cache"
	"plantkeeper/internal/app/client/queue"
	"plantkeeper/internal/app/client/remote"
)

var (
	ErrNoOfflineData = errors.New("no data available offline")
	ErrNotFound      = errors.New("entity not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrNoUser        = errors.New("no signed in user")
)

// Online - часть монитора связи, которую спрашивают хранилища.
type Online interface {
	IsOnline() bool
}

// Deps - общие зависимости хранилищ одного пользователя.
type Deps struct {
	Remote  remote.Store
	Cache   *cache.Cache
	Queue   *queue.Queue
	Monitor Online
	Log     *slog.Logger
}

// base - общее у хранилищ растений и локаций: выбор между сервером и очередью
// и запись в кэш.
type base struct {
	// mu сериализует чтение-изменение-запись модели: подтверждение временного id
	// синхронизацией не должно вклиниться между get и upsert
	mu sync.Mutex

	entity  queue.EntityType
	queue   *queue.Queue
	monitor Online
	log     *slog.Logger
	now     func() time.Time
}

// queued - мутация id (со ссылками refs) идет через очередь: нет связи, у сущности
// уже есть мутации в очереди или она ссылается на еще не подтвержденную сущность.
func (b *base) queued(id string, refs ...string) bool {
	if !b.monitor.IsOnline() {
		return true
	}
	if id != "" && (queue.IsTempID(id) || b.queue.HasEntity(b.entity, id)) {
		return true
	}
	for _, ref := range refs {
		if queue.IsTempID(ref) {
			return true
		}
	}
	return false
}

// fallback разбирает ошибку прямого запроса: при потере связи мутация уходит
// в очередь, остальное возвращается вызывающему.
func (b *base) fallback(op string, err error) error {
	if remote.IsConnectivity(err) {
		b.log.Info("remote unavailable, mutation queued", "op", op, "error", err)
		return nil
	}
	return fmt.Errorf("%s %s: %w", op, b.entity, err)
}

func (b *base) enqueue(ctx context.Context, m queue.Mutation, payload any) (queue.Mutation, error) {
	m.EntityType = b.entity
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return queue.Mutation{}, fmt.Errorf("encode %s %s: %w", b.entity, m.Action, err)
		}
		m.Payload = raw
	}
	return b.queue.Enqueue(ctx, m)
}

// collection - модель чтения одного типа сущностей в памяти с копией в кэше.
type collection[T any] struct {
	mu      sync.RWMutex
	items   []T
	loaded  bool
	loading bool
	err     error

	key   string
	id    func(T) string
	cache *cache.Cache
	log   *slog.Logger
}

func newCollection[T any](key string, id func(T) string, c *cache.Cache, log *slog.Logger) *collection[T] {
	return &collection[T]{key: key, id: id, cache: c, log: log}
}

func (c *collection[T]) all() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

func (c *collection[T]) get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.items {
		if c.id(it) == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

func (c *collection[T]) upsert(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.id(item)
	for i := range c.items {
		if c.id(c.items[i]) == id {
			c.items[i] = item
			return
		}
	}
	c.items = append(c.items, item)
}

// mutate применяет fn к каждому элементу, fn сообщает, изменила ли она его.
func (c *collection[T]) mutate(fn func(*T) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for i := range c.items {
		if fn(&c.items[i]) {
			n++
		}
	}
	return n
}

func (c *collection[T]) remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.id(c.items[i]) == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

func (c *collection[T]) replaceAll(items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
	c.loaded = true
}

// save пишет текущее состояние в кэш. Вызывается до того, как мутация вернет успех.
func (c *collection[T]) save(ctx context.Context) {
	items := c.all()
	if err := c.cache.Save(ctx, c.key, items); err != nil {
		c.log.Error("cache write failed", "key", c.key, "error", err)
	}
}

// restore загружает снимок из кэша и накладывает на него очередь: снимок мог
// записать другой процесс, который еще не видел свежих мутаций.
func (c *collection[T]) restore(ctx context.Context, overlay func([]T) []T) bool {
	items, _, ok := cache.LoadAs[[]T](ctx, c.cache, c.key)
	if !ok {
		return false
	}
	c.replaceAll(overlay(items))
	return true
}

// has - есть ли среди items элемент с id.
func (c *collection[T]) has(items []T, id string) bool {
	for _, it := range items {
		if c.id(it) == id {
			return true
		}
	}
	return false
}

func (c *collection[T]) setLoading(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = v
}

func (c *collection[T]) isLoading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

func (c *collection[T]) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *collection[T]) lastErr() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

func (c *collection[T]) isLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

func ptr[T any](v T) *T {
	return &v
}
