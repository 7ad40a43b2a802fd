// Package sync отправляет очередь мутаций на сервер.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"golang.org/x/exp/slog"

	"plantkeeper/internal/app/client/connectivity"
	"plantkeeper/internal/app/client/queue"
	"plantkeeper/internal/app/client/remote"
)

var (
	ErrSyncInProgress      = errors.New("sync already in progress")
	ErrUnresolvedReference = errors.New("unresolved temporary reference")
)

// DefaultStatusWindow - сколько показывается итоговый статус перед возвратом в idle.
const DefaultStatusWindow = 3 * time.Second

type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Target - хранилище сущностей, в которое применяются мутации очереди.
type Target interface {
	EntityType() queue.EntityType
	// Apply отправляет m на сервер и для создания возвращает серверный id.
	Apply(ctx context.Context, m queue.Mutation) (string, error)
	// ReplaceID заменяет подтвержденный временный id в локальных данных и кэше.
	ReplaceID(ctx context.Context, tempID, serverID string)
	Refresh(ctx context.Context) error
}

// Lease исключает одновременную синхронизацию одной очереди из разных процессов.
// Acquire берет или продлевает аренду, false - она у другого процесса.
type Lease interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Error ошибка применения мутации
type Error struct {
	MutationID string           `json:"mutation_id"`
	EntityType queue.EntityType `json:"entity_type"`
	Action     queue.Action     `json:"action"`
	EntityID   string           `json:"entity_id"`
	Err        string           `json:"error"`
	Timestamp  time.Time        `json:"timestamp"`
}

// Result результат синхронизации
type Result struct {
	Status    Status        `json:"status"`
	Applied   int           `json:"applied"`
	Failed    int           `json:"failed"`
	Blocked   int           `json:"blocked"`
	Dropped   int           `json:"dropped"`
	Remaining int           `json:"remaining"`
	Errors    []Error       `json:"errors"`
	Duration  time.Duration `json:"duration"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
}

// Stats статистика синхронизации
type Stats struct {
	TotalSyncs      int       `json:"total_syncs"`
	LastSuccessful  time.Time `json:"last_successful"`
	LastFailed      time.Time `json:"last_failed"`
	TotalApplied    int       `json:"total_applied"`
	TotalErrors     int       `json:"total_errors"`
	AvgSyncDuration float64   `json:"avg_sync_duration"`
}

// Service управляет отправкой очереди на сервер
type Service struct {
	queue   *queue.Queue
	targets map[queue.EntityType]Target
	order   []Target
	log     *slog.Logger
	metrics *Metrics
	window  time.Duration
	now     func() time.Time

	lease Lease

	mu         gosync.RWMutex
	isSyncing  bool
	gen        uint64
	status     Status
	lastResult *Result
	stats      Stats
	resetTimer *time.Timer
	listeners  []func(Status)
}

type Option func(*Service)

// WithStatusWindow задает окно показа итогового статуса.
func WithStatusWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithLease включает межпроцессную аренду синхронизации.
func WithLease(l Lease) Option {
	return func(s *Service) { s.lease = l }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewService создает синхронизацию очереди q. После разгрузки targets обновляются в заданном порядке.
func NewService(q *queue.Queue, log *slog.Logger, targets []Target, opts ...Option) *Service {
	s := &Service{
		queue:   q,
		targets: make(map[queue.EntityType]Target, len(targets)),
		order:   targets,
		log:     log.With("component", "sync"),
		metrics: NewMetrics(nil),
		window:  DefaultStatusWindow,
		now:     time.Now,
		status:  StatusIdle,
	}
	for _, t := range targets {
		s.targets[t.EntityType()] = t
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics.setPending(q.Count())
	return s
}

func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Service) IsSyncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isSyncing
}

// LastResult возвращает результат последней синхронизации.
func (s *Service) LastResult() (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastResult == nil {
		return Result{}, false
	}
	return *s.lastResult, true
}

func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// OnStatus подписывает fn на смену статуса.
func (s *Service) OnStatus(fn func(Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Sync разгружает снимок очереди на момент старта. Мутации, добавленные во время
// прогона, ждут следующего. Пока идет синхронизация (в этом или другом процессе),
// повторный вызов возвращает ErrSyncInProgress.
func (s *Service) Sync(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if s.isSyncing {
		s.mu.Unlock()
		return Result{}, ErrSyncInProgress
	}
	s.isSyncing = true
	s.mu.Unlock()

	if !s.acquire(ctx) {
		s.mu.Lock()
		s.isSyncing = false
		s.mu.Unlock()
		return Result{}, ErrSyncInProgress
	}
	defer s.release()

	s.mu.Lock()
	s.gen++
	if s.resetTimer != nil {
		s.resetTimer.Stop()
		s.resetTimer = nil
	}
	s.mu.Unlock()
	s.setStatus(StatusSyncing)

	result := Result{StartTime: s.now()}
	s.log.Info("sync started", "pending", s.queue.Count())

	s.drain(ctx, &result)

	for _, t := range s.order {
		if err := t.Refresh(ctx); err != nil {
			s.log.Warn("refresh after sync failed", "entity", t.EntityType(), "error", err)
		}
	}

	result.EndTime = s.now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.Remaining = s.queue.Count()
	result.Status = StatusSuccess
	if result.Failed > 0 || result.Blocked > 0 {
		result.Status = StatusError
	}

	s.finish(result)

	s.log.Info("sync finished",
		"status", result.Status,
		"applied", result.Applied,
		"failed", result.Failed,
		"blocked", result.Blocked,
		"remaining", result.Remaining,
		"duration", result.Duration,
	)
	return result, nil
}

func (s *Service) drain(ctx context.Context, result *Result) {
	snapshot := s.queue.All()
	if len(snapshot) == 0 {
		return
	}
	p := buildPlan(snapshot)
	// failed[i] - мутация i не применена: ее зависимые блокируются
	failed := make([]bool, len(snapshot))

	for _, i := range p.order {
		if ctx.Err() != nil {
			s.log.Warn("sync interrupted", "error", ctx.Err())
			return
		}
		// аренда продлевается на каждой мутации; потеряли - разгрузку продолжает другой процесс
		if !s.acquire(ctx) {
			s.log.Warn("sync lease lost, stopping drain")
			return
		}

		// ссылки могли быть переписаны после подтверждения создания
		m, ok := s.queue.Get(snapshot[i].ID)
		if !ok {
			continue
		}

		if p.unresolved[i] || blockedBy(p, failed, i) {
			failed[i] = true
			result.Blocked++
			s.record(result, m, ErrUnresolvedReference)
			s.metrics.observeMutation(m, "blocked")
			continue
		}

		if m.Action == queue.ActionReorder {
			s.log.Warn("dropping queued reorder", "mutation_id", m.ID)
			if err := s.queue.Dequeue(ctx, m.ID); err != nil && !errors.Is(err, queue.ErrNotFound) {
				s.log.Error("dequeue reorder", "mutation_id", m.ID, "error", err)
			}
			result.Dropped++
			s.metrics.observeMutation(m, "dropped")
			continue
		}

		target, ok := s.targets[m.EntityType]
		if !ok {
			failed[i] = true
			result.Failed++
			s.record(result, m, fmt.Errorf("%w: entity %s", queue.ErrInvalidMutation, m.EntityType))
			continue
		}

		serverID, err := target.Apply(ctx, m)
		if err != nil {
			failed[i] = true
			result.Failed++
			s.queue.MarkFailed(ctx, m.ID, err)
			s.record(result, m, err)
			s.metrics.observeMutation(m, "failed")
			if remote.IsConnectivity(err) {
				s.log.Warn("remote unreachable, stopping drain", "mutation_id", m.ID, "error", err)
				return
			}
			s.log.Error("mutation rejected", "mutation_id", m.ID, "entity", m.EntityType, "action", m.Action, "error", err)
			continue
		}

		if m.Action == queue.ActionCreate && serverID != "" && serverID != m.EntityID {
			s.reconcile(ctx, m.EntityID, serverID)
		}
		if err := s.queue.Dequeue(ctx, m.ID); err != nil && !errors.Is(err, queue.ErrNotFound) {
			s.log.Error("dequeue applied mutation", "mutation_id", m.ID, "error", err)
		}
		result.Applied++
		s.metrics.observeMutation(m, "applied")
	}
}

// reconcile заменяет подтвержденный временный id везде до того, как создание уйдет из очереди.
func (s *Service) reconcile(ctx context.Context, tempID, serverID string) {
	for _, t := range s.order {
		t.ReplaceID(ctx, tempID, serverID)
	}
	n, err := s.queue.RewriteReferences(ctx, tempID, serverID)
	if err != nil {
		s.log.Error("rewrite queued references", "temp_id", tempID, "error", err)
	}
	s.log.Debug("temporary id reconciled", "temp_id", tempID, "server_id", serverID, "rewritten", n)
}

// acquire берет аренду. Без аренды или при сбое хранилища синхронизация не блокируется.
func (s *Service) acquire(ctx context.Context) bool {
	if s.lease == nil {
		return true
	}
	ok, err := s.lease.Acquire(ctx)
	if err != nil {
		s.log.Warn("sync lease unavailable, continuing without it", "error", err)
		return true
	}
	return ok
}

func (s *Service) release() {
	if s.lease == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.lease.Release(ctx); err != nil {
		s.log.Warn("failed to release sync lease", "error", err)
	}
}

func blockedBy(p plan, failed []bool, i int) bool {
	for _, d := range p.deps[i] {
		if failed[d] {
			return true
		}
	}
	return false
}

func (s *Service) record(result *Result, m queue.Mutation, err error) {
	result.Errors = append(result.Errors, Error{
		MutationID: m.ID,
		EntityType: m.EntityType,
		Action:     m.Action,
		EntityID:   m.EntityID,
		Err:        err.Error(),
		Timestamp:  s.now(),
	})
}

func (s *Service) finish(result Result) {
	s.mu.Lock()
	s.isSyncing = false
	s.lastResult = &result
	s.stats.TotalSyncs++
	s.stats.TotalApplied += result.Applied
	s.stats.TotalErrors += len(result.Errors)
	if result.Status == StatusSuccess {
		s.stats.LastSuccessful = result.EndTime
	} else {
		s.stats.LastFailed = result.EndTime
	}
	n := float64(s.stats.TotalSyncs)
	s.stats.AvgSyncDuration = (s.stats.AvgSyncDuration*(n-1) + result.Duration.Seconds()) / n
	gen := s.gen
	s.resetTimer = time.AfterFunc(s.window, func() { s.resetIdle(gen) })
	s.mu.Unlock()

	s.metrics.observeRun(result.Status, result.Duration)
	s.metrics.setPending(result.Remaining)
	s.setStatus(result.Status)
}

// resetIdle возвращает статус в idle, если с прогона gen не начался новый.
func (s *Service) resetIdle(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.isSyncing || s.status == StatusIdle {
		s.mu.Unlock()
		return
	}
	s.resetTimer = nil
	s.mu.Unlock()
	s.setStatus(StatusIdle)
}

func (s *Service) setStatus(st Status) {
	s.mu.Lock()
	if s.status == st {
		s.mu.Unlock()
		return
	}
	s.status = st
	listeners := make([]func(Status), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
}

// Stop отменяет таймер возврата в idle.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resetTimer != nil {
		s.resetTimer.Stop()
		s.resetTimer = nil
	}
}

// Watch запускает Sync при каждом WentOnline, если очередь не пуста.
// Завершается по ctx или при закрытии подписки.
func (s *Service) Watch(ctx context.Context, events <-chan connectivity.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev != connectivity.WentOnline || s.queue.Count() == 0 {
				continue
			}
			s.log.Info("connectivity restored, syncing", "pending", s.queue.Count())
			if _, err := s.Sync(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) {
				s.log.Error("sync on reconnect", "error", err)
			}
		}
	}
}
