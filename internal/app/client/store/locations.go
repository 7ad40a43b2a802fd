package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"plantkeeper/internal/app/client/cache"
	"plantkeeper/internal/app/client/queue"
	"plantkeeper/internal/app/client/remote"
	"plantkeeper/internal/domain/location"
)

type Location struct {
	location.Location
	IsOffline   bool `json:"is_offline,omitempty"`
	PendingSync bool `json:"pending_sync,omitempty"`
}

// DependentClearer снимает ссылки на локацию перед ее удалением.
type DependentClearer interface {
	ClearLocation(ctx context.Context, locationID string) error
}

type LocationStore struct {
	base
	items      *collection[Location]
	remote     remote.Locations
	dependents DependentClearer
}

func NewLocationStore(ctx context.Context, deps Deps, dependents DependentClearer) *LocationStore {
	log := deps.Log.With("component", "locations")
	s := &LocationStore{
		base: base{
			entity:  queue.EntityLocation,
			queue:   deps.Queue,
			monitor: deps.Monitor,
			log:     log,
			now:     time.Now,
		},
		items:      newCollection(cache.KeyLocations, func(l Location) string { return l.ID }, deps.Cache, log),
		remote:     deps.Remote,
		dependents: dependents,
	}
	s.items.restore(ctx, s.overlay)
	return s
}

func (s *LocationStore) EntityType() queue.EntityType {
	return queue.EntityLocation
}

// Entities возвращает локации по порядку отображения.
func (s *LocationStore) Entities() []Location {
	items := s.items.all()
	sortLocations(items)
	return items
}

func (s *LocationStore) Get(id string) (Location, bool) {
	return s.items.get(id)
}

func (s *LocationStore) Loading() bool {
	return s.items.isLoading()
}

func (s *LocationStore) Err() error {
	return s.items.lastErr()
}

// Fetch загружает локации, см. PlantStore.Fetch.
func (s *LocationStore) Fetch(ctx context.Context) ([]Location, error) {
	s.items.setLoading(true)
	defer s.items.setLoading(false)

	var fetchErr error
	if s.monitor.IsOnline() {
		rows, err := s.remote.ListLocations(ctx)
		if err == nil {
			items := make([]Location, 0, len(rows))
			for _, r := range rows {
				items = append(items, Location{Location: r})
			}

			s.mu.Lock()
			items = s.overlay(items)
			s.items.replaceAll(items)
			s.items.save(ctx)
			s.mu.Unlock()

			s.items.setErr(nil)
			return items, nil
		}
		fetchErr = err
		s.log.Warn("fetch failed, using cache", "error", err)
	}

	s.mu.Lock()
	restored := s.items.restore(ctx, s.overlay)
	s.mu.Unlock()
	if restored {
		s.items.setErr(fetchErr)
		return s.Entities(), nil
	}

	err := ErrNoOfflineData
	if fetchErr != nil {
		err = fmt.Errorf("%w: %w", ErrNoOfflineData, fetchErr)
	}
	s.items.setErr(err)
	return nil, err
}

func (s *LocationStore) Refresh(ctx context.Context) error {
	_, err := s.Fetch(ctx)
	return err
}

// overlay накладывает мутации локаций из очереди на items и сортирует результат.
func (s *LocationStore) overlay(items []Location) []Location {
	for _, m := range s.queue.All() {
		if m.EntityType != queue.EntityLocation {
			continue
		}
		switch m.Action {
		case queue.ActionCreate:
			if s.items.has(items, m.EntityID) {
				continue
			}
			var req location.CreateRequest
			if err := m.DecodePayload(&req); err != nil {
				s.log.Warn("skip undecodable queued create", "mutation", m.ID, "error", err)
				continue
			}
			items = append(items, Location{
				Location:    req.Build(m.EntityID, nextSortIndex(items), m.CreatedAt),
				IsOffline:   true,
				PendingSync: true,
			})
		case queue.ActionUpdate:
			var req location.UpdateRequest
			if err := m.DecodePayload(&req); err != nil {
				s.log.Warn("skip undecodable queued update", "mutation", m.ID, "error", err)
				continue
			}
			for i := range items {
				if items[i].ID == m.EntityID {
					req.Apply(&items[i].Location)
					items[i].PendingSync = true
				}
			}
		case queue.ActionDelete:
			for i := range items {
				if items[i].ID == m.EntityID {
					items = append(items[:i], items[i+1:]...)
					break
				}
			}
		}
	}
	sortLocations(items)
	return items
}

func (s *LocationStore) Create(ctx context.Context, in location.CreateRequest) (Location, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Location{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := uuid.NewString()

	if !s.queued("") {
		l, err := s.remote.CreateLocation(ctx, key, in)
		if err == nil {
			item := Location{Location: l}
			s.items.upsert(item)
			s.items.save(ctx)
			return item, nil
		}
		if err := s.fallback("create", err); err != nil {
			return Location{}, err
		}
	}

	// сервер отклонит дубль при синхронизации, лучше сказать об этом сразу
	if s.nameTaken(in.Name, "") {
		return Location{}, fmt.Errorf("%w: location %q already exists", ErrInvalidInput, in.Name)
	}

	// позиция фиксируется в создании: и локальный список, и сервер видят одну и ту же
	if in.SortIndex == nil {
		in.SortIndex = ptr(nextSortIndex(s.items.all()))
	}

	tmp := queue.NewTempID()
	m, err := s.enqueue(ctx, queue.Mutation{ID: key, Action: queue.ActionCreate, EntityID: tmp, TempID: tmp}, in)
	if err != nil {
		return Location{}, err
	}

	item := Location{
		Location:    in.Build(tmp, *in.SortIndex, m.CreatedAt),
		IsOffline:   true,
		PendingSync: true,
	}
	s.items.upsert(item)
	s.items.save(ctx)
	return item, nil
}

func (s *LocationStore) Update(ctx context.Context, id string, patch location.UpdateRequest) (Location, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return Location{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, known := s.items.get(id)
	if patch.IsEmpty() {
		if !known {
			return Location{}, fmt.Errorf("%w: location %s", ErrNotFound, id)
		}
		return cur, nil
	}

	if queue.IsTempID(id) {
		return s.coalesce(ctx, id, patch)
	}

	if !s.queued(id) {
		l, err := s.remote.UpdateLocation(ctx, id, patch)
		if err == nil {
			item := Location{Location: l}
			s.items.upsert(item)
			s.items.save(ctx)
			return item, nil
		}
		if err := s.fallback("update", err); err != nil {
			return Location{}, err
		}
	}

	if !known {
		return Location{}, fmt.Errorf("%w: location %s", ErrNotFound, id)
	}
	if _, err := s.enqueue(ctx, queue.Mutation{Action: queue.ActionUpdate, EntityID: id}, patch); err != nil {
		return Location{}, err
	}

	patch.Apply(&cur.Location)
	cur.PendingSync = true
	cur.UpdatedAt = s.now().UTC()
	s.items.upsert(cur)
	s.items.save(ctx)
	return cur, nil
}

// coalesce вызывается под s.mu.
func (s *LocationStore) coalesce(ctx context.Context, id string, patch location.UpdateRequest) (Location, error) {
	cur, ok := s.items.get(id)
	pending, queued := s.queue.PendingCreate(queue.EntityLocation, id)
	if !ok || !queued {
		return Location{}, fmt.Errorf("%w: location %s", ErrNotFound, id)
	}

	err := s.queue.Replace(ctx, pending.ID, func(m *queue.Mutation) error {
		var req location.CreateRequest
		if err := m.DecodePayload(&req); err != nil {
			return err
		}
		patch.Merge(&req)
		return m.SetPayload(req)
	})
	if err != nil {
		return Location{}, fmt.Errorf("update location: %w", err)
	}

	patch.Apply(&cur.Location)
	cur.UpdatedAt = s.now().UTC()
	s.items.upsert(cur)
	s.items.save(ctx)
	return cur, nil
}

// Delete удаляет локацию, предварительно сняв ее с растений.
func (s *LocationStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items.get(id); !ok && queue.IsTempID(id) {
		return fmt.Errorf("%w: location %s", ErrNotFound, id)
	}

	if s.dependents != nil {
		if err := s.dependents.ClearLocation(ctx, id); err != nil {
			return fmt.Errorf("delete location: %w", err)
		}
	}

	if queue.IsTempID(id) {
		s.queue.RemoveEntity(ctx, queue.EntityLocation, id)
		// ссылки на локацию, которой никогда не было на сервере, снимаются
		if _, err := s.queue.RewriteReferences(ctx, id, ""); err != nil {
			s.log.Warn("failed to clear references in queue", "location", id, "error", err)
		}
		s.items.remove(id)
		s.items.save(ctx)
		return nil
	}

	if n := s.queue.RemoveChanges(ctx, queue.EntityLocation, id); n > 0 {
		s.log.Info("queued changes superseded by delete", "location", id, "count", n)
	}

	if !s.queued(id) {
		err := s.remote.DeleteLocation(ctx, id)
		if err == nil || remote.IsNotFound(err) {
			s.items.remove(id)
			s.items.save(ctx)
			return nil
		}
		if err := s.fallback("delete", err); err != nil {
			return err
		}
	}

	if _, err := s.enqueue(ctx, queue.Mutation{Action: queue.ActionDelete, EntityID: id}, nil); err != nil {
		return err
	}
	s.items.remove(id)
	s.items.save(ctx)
	return nil
}

// Reorder задает порядок отображения. Локально он меняется сразу, при связи новые
// индексы отправляются по одному. Без связи в очередь ничего не ставится: после
// восстановления связи побеждает последний записавший.
func (s *LocationStore) Reorder(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.Entities()
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, dup := pos[id]; dup {
			return fmt.Errorf("%w: location %s listed twice", ErrInvalidInput, id)
		}
		pos[id] = i
	}
	for id := range pos {
		if _, ok := s.items.get(id); !ok {
			return fmt.Errorf("%w: location %s", ErrNotFound, id)
		}
	}

	// перечисленные идут первыми в заданном порядке, остальные сохраняют относительный порядок
	sort.SliceStable(items, func(i, j int) bool {
		pi, iok := pos[items[i].ID]
		pj, jok := pos[items[j].ID]
		switch {
		case iok && jok:
			return pi < pj
		case iok != jok:
			return iok
		default:
			return false
		}
	})

	changed := make(map[string]int)
	for i := range items {
		if items[i].SortIndex != i {
			items[i].SortIndex = i
			changed[items[i].ID] = i
		}
	}
	s.items.replaceAll(items)
	s.items.save(ctx)

	if len(changed) == 0 || !s.monitor.IsOnline() {
		return nil
	}

	for _, l := range items {
		idx, ok := changed[l.ID]
		if !ok {
			continue
		}
		if queue.IsTempID(l.ID) {
			// индекс уедет на сервер вместе с отложенным созданием
			if _, err := s.coalesce(ctx, l.ID, location.UpdateRequest{SortIndex: ptr(idx)}); err != nil {
				s.log.Warn("reorder of pending location failed", "location", l.ID, "error", err)
			}
			continue
		}
		if _, err := s.remote.UpdateLocation(ctx, l.ID, location.UpdateRequest{SortIndex: ptr(idx)}); err != nil {
			if remote.IsConnectivity(err) {
				s.log.Warn("reorder interrupted, keeping local order", "error", err)
				return nil
			}
			return fmt.Errorf("reorder locations: %w", err)
		}
	}
	return nil
}

// Apply отправляет мутацию локации на сервер и для создания возвращает серверный id.
func (s *LocationStore) Apply(ctx context.Context, m queue.Mutation) (string, error) {
	switch m.Action {
	case queue.ActionCreate:
		var req location.CreateRequest
		if err := m.DecodePayload(&req); err != nil {
			return "", err
		}
		l, err := s.remote.CreateLocation(ctx, m.ID, req)
		if err != nil {
			return "", err
		}
		return l.ID, nil
	case queue.ActionUpdate:
		var req location.UpdateRequest
		if err := m.DecodePayload(&req); err != nil {
			return "", err
		}
		_, err := s.remote.UpdateLocation(ctx, m.EntityID, req)
		return "", err
	case queue.ActionDelete:
		err := s.remote.DeleteLocation(ctx, m.EntityID)
		if remote.IsNotFound(err) {
			return "", nil
		}
		return "", err
	default:
		return "", fmt.Errorf("%w: location %s", queue.ErrInvalidMutation, m.Action)
	}
}

// ReplaceID заменяет tempID на serverID в id локаций.
func (s *LocationStore) ReplaceID(ctx context.Context, tempID, serverID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// снимок в кэше мог обновить другой процесс
	s.items.restore(ctx, s.overlay)
	n := s.items.mutate(func(l *Location) bool {
		if l.ID != tempID {
			return false
		}
		l.ID = serverID
		l.IsOffline = false
		l.PendingSync = false
		return true
	})
	if n > 0 {
		s.items.save(ctx)
	}
}

func (s *LocationStore) nameTaken(name, except string) bool {
	for _, l := range s.items.all() {
		if l.ID != except && strings.EqualFold(l.Name, name) {
			return true
		}
	}
	return false
}

// nextSortIndex - позиция в конце списка, то же правило использует сервер.
func nextSortIndex(items []Location) int {
	next := 0
	for _, l := range items {
		if l.SortIndex >= next {
			next = l.SortIndex + 1
		}
	}
	return next
}

func sortLocations(items []Location) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].SortIndex < items[j].SortIndex
	})
}
