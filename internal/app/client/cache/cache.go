package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slog"
)

// Ключи снимков сущностей.
const (
	KeyPlants    = "plants"
	KeyLocations = "locations"
)

// Snapshot - последняя известная коллекция по ключу.
type Snapshot struct {
	Key     string          `json:"key"`
	Data    json.RawMessage `json:"data"`
	SavedAt time.Time       `json:"saved_at"`
}

// Backend хранит снимки. found=false без ошибки - снимка нет.
type Backend interface {
	SaveSnapshot(ctx context.Context, namespace, key string, data []byte, savedAt time.Time) error
	LoadSnapshot(ctx context.Context, namespace, key string) (data []byte, savedAt time.Time, found bool, err error)
	DeleteSnapshots(ctx context.Context, namespace string) error
}

// Cache - кэш коллекций сущностей в рамках namespace пользователя.
// Запись всегда попадает в память, хранилище отключается до конца сессии после первой ошибки.
type Cache struct {
	mu        sync.RWMutex
	namespace string
	mem       map[string]Snapshot
	backend   Backend
	degraded  bool
	log       *slog.Logger
	now       func() time.Time
}

// New создает кэш namespace. С nil backend снимки живут только в памяти.
func New(backend Backend, namespace string, log *slog.Logger) *Cache {
	return &Cache{
		namespace: namespace,
		mem:       make(map[string]Snapshot),
		backend:   backend,
		degraded:  backend == nil,
		log:       log.With("component", "cache", "namespace", namespace),
		now:       time.Now,
	}
}

// Save сериализует data и перезаписывает снимок key.
// Возвращается только ошибка сериализации, сбои хранилища поглощаются.
func (c *Cache) Save(ctx context.Context, key string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{Key: key, Data: raw, SavedAt: c.now().UTC()}
	c.mem[key] = snap

	if c.degraded {
		return nil
	}
	if err := c.backend.SaveSnapshot(ctx, c.namespace, key, raw, snap.SavedAt); err != nil {
		c.degrade("save", err)
	}
	return nil
}

// Load возвращает снимок key. Пока хранилище доступно, читается оно: снимок мог
// записать другой процесс. Битый снимок считается отсутствующим.
func (c *Cache) Load(ctx context.Context, key string) (Snapshot, bool) {
	c.mu.RLock()
	snap, ok := c.mem[key]
	degraded := c.degraded
	c.mu.RUnlock()
	if degraded {
		return snap, ok
	}

	data, savedAt, found, err := c.backend.LoadSnapshot(ctx, c.namespace, key)
	if err != nil {
		c.mu.Lock()
		c.degrade("load", err)
		c.mu.Unlock()
		return snap, ok
	}
	if !found {
		c.mu.Lock()
		delete(c.mem, key)
		c.mu.Unlock()
		return Snapshot{}, false
	}
	if !json.Valid(data) {
		c.log.Warn("corrupt snapshot ignored", "key", key)
		return Snapshot{}, false
	}

	snap = Snapshot{Key: key, Data: data, SavedAt: savedAt}
	c.mu.Lock()
	c.mem[key] = snap
	c.mu.Unlock()
	return snap, true
}

// Clear удаляет все снимки namespace.
func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mem = make(map[string]Snapshot)
	if c.degraded {
		return
	}
	if err := c.backend.DeleteSnapshots(ctx, c.namespace); err != nil {
		c.degrade("clear", err)
	}
}

// Degraded - кэш работает только в памяти до конца сессии.
func (c *Cache) Degraded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.degraded
}

// degrade вызывается под mu.
func (c *Cache) degrade(op string, err error) {
	if c.degraded {
		return
	}
	c.degraded = true
	c.log.Warn("cache persistence failed, continuing in memory",
		"op", op,
		"error", err,
	)
}

// LoadAs декодирует снимок key в новое T. Неразбираемые данные считаются отсутствующими.
func LoadAs[T any](ctx context.Context, c *Cache, key string) (T, time.Time, bool) {
	var zero T
	snap, ok := c.Load(ctx, key)
	if !ok {
		return zero, time.Time{}, false
	}

	var v T
	if err := json.Unmarshal(snap.Data, &v); err != nil {
		c.log.Warn("snapshot does not decode, ignored", "key", key, "error", err)
		return zero, time.Time{}, false
	}
	return v, snap.SavedAt, true
}
