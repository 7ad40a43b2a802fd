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
	"plantkeeper/internal/domain/plant"
)

// Plant - растение в модели чтения. Photo - сжатое фото, еще не отправленное на сервер.
type Plant struct {
	plant.Plant
	IsOffline   bool   `json:"is_offline,omitempty"`
	PendingSync bool   `json:"pending_sync,omitempty"`
	Photo       []byte `json:"photo,omitempty"`
}

// PlantView - растение со статусом ухода на момент чтения.
type PlantView struct {
	Plant
	Care plant.CareStatus `json:"care"`
}

type PlantStore struct {
	base
	items  *collection[Plant]
	remote remote.Plants
}

func NewPlantStore(ctx context.Context, deps Deps) *PlantStore {
	log := deps.Log.With("component", "plants")
	s := &PlantStore{
		base: base{
			entity:  queue.EntityPlant,
			queue:   deps.Queue,
			monitor: deps.Monitor,
			log:     log,
			now:     time.Now,
		},
		items:  newCollection(cache.KeyPlants, func(p Plant) string { return p.ID }, deps.Cache, log),
		remote: deps.Remote,
	}
	s.items.restore(ctx, s.overlay)
	return s
}

func (s *PlantStore) EntityType() queue.EntityType {
	return queue.EntityPlant
}

// Entities возвращает текущую модель чтения.
func (s *PlantStore) Entities() []Plant {
	return s.items.all()
}

func (s *PlantStore) Get(id string) (Plant, bool) {
	return s.items.get(id)
}

func (s *PlantStore) Loading() bool {
	return s.items.isLoading()
}

// Err - ошибка последней загрузки, nil если она удалась.
func (s *PlantStore) Err() error {
	return s.items.lastErr()
}

// Views возвращает растения со статусом ухода на момент now.
func (s *PlantStore) Views(now time.Time) []PlantView {
	items := s.items.all()
	out := make([]PlantView, 0, len(items))
	for _, p := range items {
		out = append(out, PlantView{Plant: p, Care: plant.Care(p.Plant, now)})
	}
	return out
}

// Due возвращает растения, которым нужен полив или подкормка, самые просроченные первыми.
func (s *PlantStore) Due(now time.Time) []PlantView {
	var due []PlantView
	for _, v := range s.Views(now) {
		if v.Care.NeedsCare() {
			due = append(due, v)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].Care.DaysOverdue > due[j].Care.DaysOverdue
	})
	return due
}

// Fetch при наличии связи загружает растения с сервера, накладывает мутации из
// очереди и пишет результат в кэш. Без связи или при ошибке берется снимок из кэша.
func (s *PlantStore) Fetch(ctx context.Context) ([]Plant, error) {
	s.items.setLoading(true)
	defer s.items.setLoading(false)

	var fetchErr error
	if s.monitor.IsOnline() {
		rows, err := s.remote.ListPlants(ctx)
		if err == nil {
			items := make([]Plant, 0, len(rows))
			for _, r := range rows {
				items = append(items, Plant{Plant: r})
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
		return s.items.all(), nil
	}

	err := ErrNoOfflineData
	if fetchErr != nil {
		err = fmt.Errorf("%w: %w", ErrNoOfflineData, fetchErr)
	}
	s.items.setErr(err)
	return nil, err
}

// Refresh перезагружает растения, результат не нужен.
func (s *PlantStore) Refresh(ctx context.Context) error {
	_, err := s.Fetch(ctx)
	return err
}

// overlay накладывает мутации растений из очереди на items. Создание, которое
// уже есть в items, не дублируется.
func (s *PlantStore) overlay(items []Plant) []Plant {
	for _, m := range s.queue.All() {
		if m.EntityType != queue.EntityPlant {
			continue
		}
		switch m.Action {
		case queue.ActionCreate:
			if s.items.has(items, m.EntityID) {
				continue
			}
			var req plant.CreateRequest
			if err := m.DecodePayload(&req); err != nil {
				s.log.Warn("skip undecodable queued create", "mutation", m.ID, "error", err)
				continue
			}
			items = append(items, Plant{
				Plant:       req.Build(m.EntityID, m.CreatedAt),
				IsOffline:   true,
				PendingSync: true,
				Photo:       req.Photo,
			})
		case queue.ActionUpdate:
			var req plant.UpdateRequest
			if err := m.DecodePayload(&req); err != nil {
				s.log.Warn("skip undecodable queued update", "mutation", m.ID, "error", err)
				continue
			}
			for i := range items {
				if items[i].ID == m.EntityID {
					req.Apply(&items[i].Plant)
					items[i].PendingSync = true
					if len(req.Photo) > 0 {
						items[i].Photo = req.Photo
					}
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
	return items
}

// Create добавляет растение. При связи оно создается на сервере и возвращается
// серверная строка, иначе получает временный id и отложенное создание.
func (s *PlantStore) Create(ctx context.Context, in plant.CreateRequest) (Plant, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Plant{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// ключ идемпотентности один и для прямой вставки, и для мутации в очереди
	key := uuid.NewString()

	if !s.queued("", locationRef(in.LocationID)...) {
		p, err := s.remote.CreatePlant(ctx, key, in)
		if err == nil {
			item := Plant{Plant: p}
			s.items.upsert(item)
			s.items.save(ctx)
			return item, nil
		}
		if err := s.fallback("create", err); err != nil {
			return Plant{}, err
		}
	}

	tmp := queue.NewTempID()
	m, err := s.enqueue(ctx, queue.Mutation{ID: key, Action: queue.ActionCreate, EntityID: tmp, TempID: tmp}, in)
	if err != nil {
		return Plant{}, err
	}

	item := Plant{
		Plant:       in.Build(tmp, m.CreatedAt),
		IsOffline:   true,
		PendingSync: true,
		Photo:       in.Photo,
	}
	s.items.upsert(item)
	s.items.save(ctx)
	return item, nil
}

// Update применяет patch к растению. Изменения растения, чье создание еще в очереди,
// вливаются в это создание.
func (s *PlantStore) Update(ctx context.Context, id string, patch plant.UpdateRequest) (Plant, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return Plant{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, known := s.items.get(id)
	if patch.IsEmpty() {
		if !known {
			return Plant{}, fmt.Errorf("%w: plant %s", ErrNotFound, id)
		}
		return cur, nil
	}

	if queue.IsTempID(id) {
		return s.coalesce(ctx, id, patch)
	}

	if !s.queued(id, locationRef(patch.LocationID)...) {
		p, err := s.remote.UpdatePlant(ctx, id, patch)
		if err == nil {
			item := Plant{Plant: p}
			s.items.upsert(item)
			s.items.save(ctx)
			return item, nil
		}
		if err := s.fallback("update", err); err != nil {
			return Plant{}, err
		}
	}

	if !known {
		return Plant{}, fmt.Errorf("%w: plant %s", ErrNotFound, id)
	}
	if _, err := s.enqueue(ctx, queue.Mutation{Action: queue.ActionUpdate, EntityID: id}, patch); err != nil {
		return Plant{}, err
	}

	patch.Apply(&cur.Plant)
	cur.PendingSync = true
	cur.UpdatedAt = s.now().UTC()
	if len(patch.Photo) > 0 {
		cur.Photo = patch.Photo
	}
	s.items.upsert(cur)
	s.items.save(ctx)
	return cur, nil
}

// coalesce вызывается под s.mu.
func (s *PlantStore) coalesce(ctx context.Context, id string, patch plant.UpdateRequest) (Plant, error) {
	cur, ok := s.items.get(id)
	pending, queued := s.queue.PendingCreate(queue.EntityPlant, id)
	if !ok || !queued {
		return Plant{}, fmt.Errorf("%w: plant %s", ErrNotFound, id)
	}

	err := s.queue.Replace(ctx, pending.ID, func(m *queue.Mutation) error {
		var req plant.CreateRequest
		if err := m.DecodePayload(&req); err != nil {
			return err
		}
		patch.Merge(&req)
		return m.SetPayload(req)
	})
	if err != nil {
		return Plant{}, fmt.Errorf("update plant: %w", err)
	}

	patch.Apply(&cur.Plant)
	cur.UpdatedAt = s.now().UTC()
	if len(patch.Photo) > 0 {
		cur.Photo = patch.Photo
	}
	s.items.upsert(cur)
	s.items.save(ctx)
	return cur, nil
}

// Delete удаляет растение. У растения, не дошедшего до сервера, просто убирается
// отложенное создание. Отложенные изменения удаляемого растения больше не нужны.
func (s *PlantStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if queue.IsTempID(id) {
		removed := s.queue.RemoveEntity(ctx, queue.EntityPlant, id)
		if !s.items.remove(id) && removed == 0 {
			return fmt.Errorf("%w: plant %s", ErrNotFound, id)
		}
		s.items.save(ctx)
		return nil
	}

	if n := s.queue.RemoveChanges(ctx, queue.EntityPlant, id); n > 0 {
		s.log.Info("queued changes superseded by delete", "plant", id, "count", n)
	}

	if !s.queued(id) {
		err := s.remote.DeletePlant(ctx, id)
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

// Water отмечает полив в момент at.
func (s *PlantStore) Water(ctx context.Context, id string, at time.Time) (Plant, error) {
	at = at.UTC()
	return s.Update(ctx, id, plant.UpdateRequest{LastWateredAt: &at})
}

// Fertilize отмечает подкормку в момент at.
func (s *PlantStore) Fertilize(ctx context.Context, id string, at time.Time) (Plant, error) {
	at = at.UTC()
	return s.Update(ctx, id, plant.UpdateRequest{LastFertilizedAt: &at})
}

// ClearLocation снимает локацию со всех растений перед ее удалением.
func (s *PlantStore) ClearLocation(ctx context.Context, locationID string) error {
	for _, p := range s.items.all() {
		if p.LocationID == nil || *p.LocationID != locationID {
			continue
		}
		if _, err := s.Update(ctx, p.ID, plant.UpdateRequest{LocationID: ptr("")}); err != nil {
			return fmt.Errorf("clear location of plant %s: %w", p.ID, err)
		}
	}
	return nil
}

// Apply отправляет мутацию растения на сервер и для создания возвращает серверный id.
func (s *PlantStore) Apply(ctx context.Context, m queue.Mutation) (string, error) {
	switch m.Action {
	case queue.ActionCreate:
		var req plant.CreateRequest
		if err := m.DecodePayload(&req); err != nil {
			return "", err
		}
		p, err := s.remote.CreatePlant(ctx, m.ID, req)
		if err != nil {
			return "", err
		}
		return p.ID, nil
	case queue.ActionUpdate:
		var req plant.UpdateRequest
		if err := m.DecodePayload(&req); err != nil {
			return "", err
		}
		_, err := s.remote.UpdatePlant(ctx, m.EntityID, req)
		return "", err
	case queue.ActionDelete:
		err := s.remote.DeletePlant(ctx, m.EntityID)
		if remote.IsNotFound(err) {
			return "", nil
		}
		return "", err
	default:
		return "", fmt.Errorf("%w: plant %s", queue.ErrInvalidMutation, m.Action)
	}
}

// ReplaceID заменяет tempID на serverID в id растений и ссылках на локации.
func (s *PlantStore) ReplaceID(ctx context.Context, tempID, serverID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// снимок в кэше мог обновить другой процесс
	s.items.restore(ctx, s.overlay)
	n := s.items.mutate(func(p *Plant) bool {
		changed := false
		if p.ID == tempID {
			p.ID = serverID
			p.IsOffline = false
			p.PendingSync = false
			p.Photo = nil
			changed = true
		}
		if p.LocationID != nil && *p.LocationID == tempID {
			p.LocationID = ptr(serverID)
			changed = true
		}
		return changed
	})
	if n > 0 {
		s.items.save(ctx)
	}
}

func locationRef(id *string) []string {
	if id == nil || *id == "" {
		return nil
	}
	return []string{*id}
}
