// Package remotetest содержит сервер в памяти для тестов ядра синхронизации.
package remotetest

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"plantkeeper/internal/app/client/remote"
	"plantkeeper/internal/domain/location"
	"plantkeeper/internal/domain/plant"
)

const (
	OpListPlants     = "ListPlants"
	OpCreatePlant    = "CreatePlant"
	OpUpdatePlant    = "UpdatePlant"
	OpDeletePlant    = "DeletePlant"
	OpListLocations  = "ListLocations"
	OpCreateLocation = "CreateLocation"
	OpUpdateLocation = "UpdateLocation"
	OpDeleteLocation = "DeleteLocation"
)

// Call один записанный запрос.
type Call struct {
	Op  string
	ID  string
	Key string
}

// Fake ведет себя как сервер plantkeeper: идемпотентные create, проверка внешних ключей,
// уникальные имена локаций, ON DELETE SET NULL для локации растения.
type Fake struct {
	mu        sync.Mutex
	plants    map[string]plant.Plant
	locations map[string]location.Location
	idem      map[string]string
	offline   bool
	failures  map[string][]error
	calls     []Call
	now       func() time.Time

	// BeforeCall вызывается перед каждым запросом вне блокировки.
	BeforeCall func(op string)
}

var _ remote.Store = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		plants:    make(map[string]plant.Plant),
		locations: make(map[string]location.Location),
		idem:      make(map[string]string),
		failures:  make(map[string][]error),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetOffline заставляет все вызовы возвращать remote.ErrUnavailable.
func (f *Fake) SetOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

// FailNext ставит err результатом следующего вызова op.
func (f *Fake) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = append(f.failures[op], err)
}

func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallCount считает вызовы op, включая неудачные.
func (f *Fake) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (f *Fake) Plants() []plant.Plant {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listPlants()
}

func (f *Fake) Locations() []location.Location {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listLocations()
}

// SeedLocation добавляет строку напрямую, минуя внедрение ошибок.
func (f *Fake) SeedLocation(name string) location.Location {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	l := location.Location{ID: uuid.NewString(), Name: name, SortIndex: len(f.locations), CreatedAt: now, UpdatedAt: now}
	f.locations[l.ID] = l
	return l
}

// SeedPlant добавляет строку напрямую, минуя внедрение ошибок.
func (f *Fake) SeedPlant(p plant.Plant) plant.Plant {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = f.now()
		p.UpdatedAt = p.CreatedAt
	}
	f.plants[p.ID] = p
	return p
}

func (f *Fake) begin(op, id, key string) error {
	if hook := f.BeforeCall; hook != nil {
		hook(op)
	}

	f.mu.Lock()
	f.calls = append(f.calls, Call{Op: op, ID: id, Key: key})
	if f.offline {
		return fmt.Errorf("%w: connection refused", remote.ErrUnavailable)
	}
	if errs := f.failures[op]; len(errs) > 0 {
		f.failures[op] = errs[1:]
		return errs[0]
	}
	return nil
}

func rejected(status int, format string, args ...any) error {
	return &remote.RejectedError{Status: status, Message: fmt.Sprintf(format, args...)}
}

func (f *Fake) ListPlants(_ context.Context) ([]plant.Plant, error) {
	err := f.begin(OpListPlants, "", "")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.listPlants(), nil
}

func (f *Fake) CreatePlant(_ context.Context, key string, req plant.CreateRequest) (plant.Plant, error) {
	err := f.begin(OpCreatePlant, "", key)
	defer f.mu.Unlock()
	if err != nil {
		return plant.Plant{}, err
	}

	if id, ok := f.idem["plant/"+key]; ok && key != "" {
		return f.plants[id], nil
	}
	if req.Name == "" {
		return plant.Plant{}, rejected(http.StatusUnprocessableEntity, "name is required")
	}
	if req.LocationID != nil && *req.LocationID != "" {
		if _, ok := f.locations[*req.LocationID]; !ok {
			return plant.Plant{}, rejected(http.StatusUnprocessableEntity, "unknown location %s", *req.LocationID)
		}
	}

	p := req.Build(uuid.NewString(), f.now())
	if p.WateringIntervalDays == 0 {
		p.WateringIntervalDays = plant.DefaultWateringIntervalDays
	}
	if p.FertilizingIntervalDays == 0 {
		p.FertilizingIntervalDays = plant.DefaultFertilizingIntervalDays
	}
	if len(req.Photo) > 0 {
		p.PhotoKey = "plants/" + p.ID
	}
	f.plants[p.ID] = p
	if key != "" {
		f.idem["plant/"+key] = p.ID
	}
	return p, nil
}

func (f *Fake) UpdatePlant(_ context.Context, id string, req plant.UpdateRequest) (plant.Plant, error) {
	err := f.begin(OpUpdatePlant, id, "")
	defer f.mu.Unlock()
	if err != nil {
		return plant.Plant{}, err
	}

	p, ok := f.plants[id]
	if !ok {
		return plant.Plant{}, rejected(http.StatusNotFound, "plant not found")
	}
	if req.LocationID != nil && *req.LocationID != "" {
		if _, ok := f.locations[*req.LocationID]; !ok {
			return plant.Plant{}, rejected(http.StatusUnprocessableEntity, "unknown location %s", *req.LocationID)
		}
	}
	req.Apply(&p)
	if len(req.Photo) > 0 {
		p.PhotoKey = "plants/" + p.ID
	}
	p.UpdatedAt = f.now()
	f.plants[id] = p
	return p, nil
}

func (f *Fake) DeletePlant(_ context.Context, id string) error {
	err := f.begin(OpDeletePlant, id, "")
	defer f.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := f.plants[id]; !ok {
		return rejected(http.StatusNotFound, "plant not found")
	}
	delete(f.plants, id)
	return nil
}

func (f *Fake) ListLocations(_ context.Context) ([]location.Location, error) {
	err := f.begin(OpListLocations, "", "")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.listLocations(), nil
}

func (f *Fake) CreateLocation(_ context.Context, key string, req location.CreateRequest) (location.Location, error) {
	err := f.begin(OpCreateLocation, "", key)
	defer f.mu.Unlock()
	if err != nil {
		return location.Location{}, err
	}

	if id, ok := f.idem["location/"+key]; ok && key != "" {
		return f.locations[id], nil
	}
	if req.Name == "" {
		return location.Location{}, rejected(http.StatusUnprocessableEntity, "name is required")
	}
	if f.nameTaken(req.Name, "") {
		return location.Location{}, rejected(http.StatusConflict, "location %q already exists", req.Name)
	}

	l := req.Build(uuid.NewString(), len(f.locations), f.now())
	f.locations[l.ID] = l
	if key != "" {
		f.idem["location/"+key] = l.ID
	}
	return l, nil
}

func (f *Fake) UpdateLocation(_ context.Context, id string, req location.UpdateRequest) (location.Location, error) {
	err := f.begin(OpUpdateLocation, id, "")
	defer f.mu.Unlock()
	if err != nil {
		return location.Location{}, err
	}

	l, ok := f.locations[id]
	if !ok {
		return location.Location{}, rejected(http.StatusNotFound, "location not found")
	}
	if req.Name != nil && f.nameTaken(*req.Name, id) {
		return location.Location{}, rejected(http.StatusConflict, "location %q already exists", *req.Name)
	}
	req.Apply(&l)
	l.UpdatedAt = f.now()
	f.locations[id] = l
	return l, nil
}

func (f *Fake) DeleteLocation(_ context.Context, id string) error {
	err := f.begin(OpDeleteLocation, id, "")
	defer f.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := f.locations[id]; !ok {
		return rejected(http.StatusNotFound, "location not found")
	}
	delete(f.locations, id)
	for pid, p := range f.plants {
		if p.LocationID != nil && *p.LocationID == id {
			p.LocationID = nil
			f.plants[pid] = p
		}
	}
	return nil
}

func (f *Fake) nameTaken(name, except string) bool {
	for id, l := range f.locations {
		if id != except && l.Name == name {
			return true
		}
	}
	return false
}

func (f *Fake) listPlants() []plant.Plant {
	out := make([]plant.Plant, 0, len(f.plants))
	for _, p := range f.plants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (f *Fake) listLocations() []location.Location {
	out := make([]location.Location, 0, len(f.locations))
	for _, l := range f.locations {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortIndex == out[j].SortIndex {
			return out[i].Name < out[j].Name
		}
		return out[i].SortIndex < out[j].SortIndex
	})
	return out
}
