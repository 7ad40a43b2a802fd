package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slog"
)

var (
	ErrNotFound        = errors.New("mutation not found")
	ErrInvalidMutation = errors.New("invalid mutation")
)

// Backend хранит очередь. Порядок вставки внутри namespace должен сохраняться.
type Backend interface {
	LoadQueue(ctx context.Context, namespace string) ([]Mutation, error)
	AppendMutation(ctx context.Context, namespace string, m Mutation) error
	UpdateMutation(ctx context.Context, namespace string, m Mutation) error
	DeleteMutation(ctx context.Context, namespace, id string) error
	ClearQueue(ctx context.Context, namespace string) error
}

// Queue - сохраняемый FIFO-журнал мутаций, еще не подтвержденных сервером.
// Пока хранилище доступно, источник истины - оно: очередь того же пользователя
// может менять другой процесс (CLI рядом с демоном), поэтому каждая операция
// перечитывает журнал. После первой ошибки хранилища очередь живет в памяти.
type Queue struct {
	mu        sync.Mutex
	namespace string
	items     []Mutation
	backend   Backend
	degraded  bool
	log       *slog.Logger
	now       func() time.Time
}

// New загружает очередь namespace из backend. С nil backend очередь только в памяти.
func New(ctx context.Context, backend Backend, namespace string, log *slog.Logger) *Queue {
	q := &Queue{
		namespace: namespace,
		backend:   backend,
		log:       log.With("component", "queue", "namespace", namespace),
		now:       time.Now,
	}

	if backend == nil {
		q.degraded = true
		return q
	}

	q.reload(ctx)
	if n := len(q.items); n > 0 {
		q.log.Info("pending mutations restored", "count", n)
	}
	return q
}

// Enqueue добавляет m в конец очереди и возвращает ее с id и временем создания.
func (q *Queue) Enqueue(ctx context.Context, m Mutation) (Mutation, error) {
	if err := m.validate(); err != nil {
		return Mutation{}, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if m.ID == "" {
		m.ID = newMutationID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = q.now().UTC()
	}
	q.reload(ctx)
	q.items = append(q.items, m)
	q.persist("append", func() error {
		return q.backend.AppendMutation(ctx, q.namespace, m)
	})

	q.log.Debug("mutation enqueued",
		"id", m.ID,
		"entity", m.EntityType,
		"action", m.Action,
		"entity_id", m.EntityID,
	)
	return m, nil
}

// Dequeue удаляет подтвержденную мутацию.
func (q *Queue) Dequeue(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reload(ctx)
	idx := q.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	q.items = append(q.items[:idx], q.items[idx+1:]...)
	q.persist("delete", func() error {
		return q.backend.DeleteMutation(ctx, q.namespace, id)
	})
	return nil
}

func (q *Queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reload(context.Background())
	return len(q.items)
}

// All возвращает копию очереди в порядке добавления.
func (q *Queue) All() []Mutation {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reload(context.Background())
	out := make([]Mutation, len(q.items))
	copy(out, q.items)
	return out
}

func (q *Queue) Get(id string) (Mutation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reload(context.Background())
	idx := q.indexOf(id)
	if idx < 0 {
		return Mutation{}, false
	}
	return q.items[idx], true
}

// PendingCreate ищет отложенное создание сущности с временным id.
func (q *Queue) PendingCreate(entityType EntityType, tempID string) (Mutation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reload(context.Background())
	for _, m := range q.items {
		if m.Action == ActionCreate && m.Targets(entityType, tempID) {
			return m, true
		}
	}
	return Mutation{}, false
}

// HasEntity сообщает, остались ли в очереди мутации сущности.
func (q *Queue) HasEntity(entityType EntityType, id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reload(context.Background())
	for _, m := range q.items {
		if m.Targets(entityType, id) {
			return true
		}
	}
	return false
}

// Replace меняет мутацию на месте, не трогая ее позицию.
func (q *Queue) Replace(ctx context.Context, id string, fn func(*Mutation) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reload(ctx)
	idx := q.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	m := q.items[idx]
	if err := fn(&m); err != nil {
		return err
	}
	m.ID = q.items[idx].ID
	if err := m.validate(); err != nil {
		return err
	}
	q.items[idx] = m
	q.persist("update", func() error {
		return q.backend.UpdateMutation(ctx, q.namespace, m)
	})
	return nil
}

// RemoveEntity убирает все мутации сущности и возвращает их число.
func (q *Queue) RemoveEntity(ctx context.Context, entityType EntityType, id string) int {
	return q.remove(ctx, func(m Mutation) bool {
		return m.Targets(entityType, id)
	})
}

// RemoveChanges убирает изменения и удаления сущности, оставляя ее создание.
// Удаление сущности делает их бессмысленными, в том числе отклоненные сервером.
func (q *Queue) RemoveChanges(ctx context.Context, entityType EntityType, id string) int {
	return q.remove(ctx, func(m Mutation) bool {
		return m.Action != ActionCreate && m.Targets(entityType, id)
	})
}

func (q *Queue) remove(ctx context.Context, match func(Mutation) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reload(ctx)
	kept := q.items[:0]
	var removed []string
	for _, m := range q.items {
		if match(m) {
			removed = append(removed, m.ID)
			continue
		}
		kept = append(kept, m)
	}
	q.items = kept

	for _, mid := range removed {
		q.persist("delete", func() error {
			return q.backend.DeleteMutation(ctx, q.namespace, mid)
		})
	}
	return len(removed)
}

// RewriteReferences заменяет oldID на newID в id сущностей и ссылках payload.
// Пустой newID снимает ссылки на oldID.
func (q *Queue) RewriteReferences(ctx context.Context, oldID, newID string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reload(ctx)
	var (
		n    int
		errs []error
	)
	for i := range q.items {
		m := q.items[i]
		changed, err := m.rewrite(oldID, newID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !changed {
			continue
		}
		q.items[i] = m
		n++
		q.persist("update", func() error {
			return q.backend.UpdateMutation(ctx, q.namespace, m)
		})
	}
	return n, errors.Join(errs...)
}

// MarkFailed учитывает неудачную попытку. Мутация остается в очереди.
func (q *Queue) MarkFailed(ctx context.Context, id string, cause error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reload(ctx)
	idx := q.indexOf(id)
	if idx < 0 {
		return
	}
	q.items[idx].Attempts++
	if cause != nil {
		q.items[idx].LastError = cause.Error()
	}
	m := q.items[idx]
	q.persist("update", func() error {
		return q.backend.UpdateMutation(ctx, q.namespace, m)
	})
}

// Clear очищает namespace целиком (выход пользователя).
func (q *Queue) Clear(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = nil
	q.persist("clear", func() error {
		return q.backend.ClearQueue(ctx, q.namespace)
	})
}

// Degraded - очередь потеряла хранилище до конца сессии.
func (q *Queue) Degraded() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.degraded
}

func (q *Queue) indexOf(id string) int {
	for i, m := range q.items {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// reload перечитывает журнал из хранилища. Вызывается под mu.
func (q *Queue) reload(ctx context.Context) {
	if q.degraded {
		return
	}
	items, err := q.backend.LoadQueue(ctx, q.namespace)
	if err != nil {
		q.degrade("load", err)
		return
	}
	q.items = items
}

// persist пишет изменение в хранилище, пока очередь не перешла в память.
func (q *Queue) persist(op string, fn func() error) {
	if q.degraded {
		return
	}
	if err := fn(); err != nil {
		q.degrade(op, err)
	}
}

func (q *Queue) degrade(op string, err error) {
	q.degraded = true
	q.log.Warn("queue persistence failed, continuing in memory",
		"op", op,
		"error", err,
	)
}
