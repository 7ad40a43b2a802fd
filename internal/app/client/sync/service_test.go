package sync

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantkeeper/internal/app/client/cache"
	"plantkeeper/internal/app/client/connectivity"
	"plantkeeper/internal/app/client/queue"
	"plantkeeper/internal/app/client/remote"
	"plantkeeper/internal/app/client/remote/remotetest"
	"plantkeeper/internal/app/client/store"
	"plantkeeper/internal/domain/location"
	"plantkeeper/internal/domain/plant"
	"plantkeeper/internal/utils/logger"
)

type testEnv struct {
	fake      *remotetest.Fake
	monitor   *connectivity.Monitor
	queue     *queue.Queue
	cache     *cache.Cache
	plants    *store.PlantStore
	locations *store.LocationStore
	metrics   *Metrics
	svc       *Service
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	ctx := context.Background()
	log := logger.Discard()

	e := &testEnv{
		fake:    remotetest.New(),
		monitor: connectivity.NewMonitor(false, log),
		queue:   queue.New(ctx, nil, "u1", log),
		cache:   cache.New(nil, "u1", log),
		metrics: NewMetrics(prometheus.NewRegistry()),
	}
	e.fake.SetOffline(true)
	deps := store.Deps{Remote: e.fake, Cache: e.cache, Queue: e.queue, Monitor: e.monitor, Log: log}
	e.plants = store.NewPlantStore(ctx, deps)
	e.locations = store.NewLocationStore(ctx, deps, e.plants)

	opts = append([]Option{WithMetrics(e.metrics)}, opts...)
	e.svc = NewService(e.queue, log, []Target{e.locations, e.plants}, opts...)
	t.Cleanup(e.svc.Stop)
	return e
}

func (e *testEnv) goOnline() {
	e.fake.SetOffline(false)
	e.monitor.Set(true)
}

func (e *testEnv) goOffline() {
	e.monitor.Set(false)
	e.fake.SetOffline(true)
}

func TestSync_EmptyQueue(t *testing.T) {
	e := newTestEnv(t)
	e.goOnline()

	res, err := e.svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Zero(t, res.Applied)
	assert.Equal(t, StatusSuccess, e.svc.Status())
}

func TestSync_AppliesInFIFOOrder(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	for _, name := range []string{"Basil", "Mint", "Sage"} {
		_, err := e.plants.Create(ctx, plant.CreateRequest{Name: name})
		require.NoError(t, err)
	}
	require.Equal(t, 3, e.queue.Count())
	var queued []string
	for _, m := range e.queue.All() {
		queued = append(queued, m.ID)
	}

	e.goOnline()
	res, err := e.svc.Sync(ctx)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 3, res.Applied)
	assert.Zero(t, e.queue.Count())

	var created []string
	for _, c := range e.fake.Calls() {
		if c.Op == remotetest.OpCreatePlant {
			created = append(created, c.Key)
		}
	}
	assert.Equal(t, queued, created)
	assert.Len(t, e.fake.Plants(), 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(e.metrics.mutations.WithLabelValues("plant", "create", "applied")))
	assert.Equal(t, 0.0, testutil.ToFloat64(e.metrics.pending))
}

func TestSync_ReconcilesTemporaryLocation(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	loc, err := e.locations.Create(ctx, location.CreateRequest{Name: "Kitchen"})
	require.NoError(t, err)
	tempID := loc.ID
	require.True(t, queue.IsTempID(tempID))

	p, err := e.plants.Create(ctx, plant.CreateRequest{Name: "Basil", LocationID: &tempID})
	require.NoError(t, err)
	_, err = e.plants.Water(ctx, p.ID, time.Now())
	require.NoError(t, err)

	e.goOnline()
	res, err := e.svc.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, res.Status)
	assert.Zero(t, e.queue.Count())

	serverLocs := e.fake.Locations()
	require.Len(t, serverLocs, 1)
	serverID := serverLocs[0].ID

	serverPlants := e.fake.Plants()
	require.Len(t, serverPlants, 1)
	require.NotNil(t, serverPlants[0].LocationID)
	assert.Equal(t, serverID, *serverPlants[0].LocationID)
	assert.NotNil(t, serverPlants[0].LastWateredAt)

	for _, l := range e.locations.Entities() {
		assert.NotEqual(t, tempID, l.ID)
		assert.False(t, l.PendingSync)
	}
	for _, sp := range e.plants.Entities() {
		assert.False(t, queue.IsTempID(sp.ID))
		require.NotNil(t, sp.LocationID)
		assert.Equal(t, serverID, *sp.LocationID)
	}

	cachedPlants, _, ok := cache.LoadAs[[]store.Plant](ctx, e.cache, cache.KeyPlants)
	require.True(t, ok)
	cachedLocs, _, ok := cache.LoadAs[[]store.Location](ctx, e.cache, cache.KeyLocations)
	require.True(t, ok)
	for _, sp := range cachedPlants {
		require.NotNil(t, sp.LocationID)
		assert.Equal(t, serverID, *sp.LocationID)
	}
	for _, l := range cachedLocs {
		assert.Equal(t, serverID, l.ID)
	}
}

func TestSync_CoalescedCreateWaitsForLocation(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	// растение поставлено в очередь раньше локации, на которую потом сослалось
	p, err := e.plants.Create(ctx, plant.CreateRequest{Name: "Fern"})
	require.NoError(t, err)
	loc, err := e.locations.Create(ctx, location.CreateRequest{Name: "Hall"})
	require.NoError(t, err)
	_, err = e.plants.Update(ctx, p.ID, plant.UpdateRequest{LocationID: &loc.ID})
	require.NoError(t, err)
	require.Equal(t, 2, e.queue.Count())

	e.goOnline()
	res, err := e.svc.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, res.Status, "%+v", res.Errors)

	var ops []string
	for _, c := range e.fake.Calls() {
		if c.Op == remotetest.OpCreatePlant || c.Op == remotetest.OpCreateLocation {
			ops = append(ops, c.Op)
		}
	}
	assert.Equal(t, []string{remotetest.OpCreateLocation, remotetest.OpCreatePlant}, ops)

	serverPlants := e.fake.Plants()
	require.Len(t, serverPlants, 1)
	require.NotNil(t, serverPlants[0].LocationID)
	assert.Equal(t, e.fake.Locations()[0].ID, *serverPlants[0].LocationID)
}

func TestSync_FailedLocationBlocksDependents(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	loc, err := e.locations.Create(ctx, location.CreateRequest{Name: "Balcony"})
	require.NoError(t, err)
	_, err = e.plants.Create(ctx, plant.CreateRequest{Name: "Rosemary", LocationID: &loc.ID})
	require.NoError(t, err)
	_, err = e.plants.Create(ctx, plant.CreateRequest{Name: "Cactus"})
	require.NoError(t, err)

	e.goOnline()
	e.fake.FailNext(remotetest.OpCreateLocation, &remote.RejectedError{Status: http.StatusUnprocessableEntity, Message: "bad name"})

	res, err := e.svc.Sync(ctx)
	require.NoError(t, err)

	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Blocked)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 2, e.queue.Count())

	// независимое растение ушло, зависимое нет
	serverPlants := e.fake.Plants()
	require.Len(t, serverPlants, 1)
	assert.Equal(t, "Cactus", serverPlants[0].Name)

	var blocked *Error
	for i := range res.Errors {
		if res.Errors[i].EntityType == queue.EntityPlant {
			blocked = &res.Errors[i]
		}
	}
	require.NotNil(t, blocked)
	assert.Contains(t, blocked.Err, ErrUnresolvedReference.Error())

	pending := e.queue.All()
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Contains(t, pending[0].LastError, "bad name")
	assert.Zero(t, pending[1].Attempts)

	// следующий прогон проходит
	res, err = e.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Zero(t, e.queue.Count())
}

func TestSync_StopsOnConnectivityError(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	for _, name := range []string{"A", "B"} {
		_, err := e.plants.Create(ctx, plant.CreateRequest{Name: name})
		require.NoError(t, err)
	}

	e.goOnline()
	e.fake.FailNext(remotetest.OpCreatePlant, fmt.Errorf("%w: connection reset", remote.ErrUnavailable))

	res, err := e.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, 1, res.Failed)
	assert.Zero(t, res.Applied)
	assert.Equal(t, 1, e.fake.CallCount(remotetest.OpCreatePlant))
	assert.Equal(t, 2, e.queue.Count())
	assert.Equal(t, 2, res.Remaining)
}

func TestSync_ReentrancyGuard(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	_, err := e.plants.Create(ctx, plant.CreateRequest{Name: "Aloe"})
	require.NoError(t, err)
	e.goOnline()

	started := make(chan struct{})
	release := make(chan struct{})
	var once gosync.Once
	e.fake.BeforeCall = func(op string) {
		if op != remotetest.OpCreatePlant {
			return
		}
		once.Do(func() {
			close(started)
			<-release
		})
	}

	done := make(chan error, 1)
	go func() {
		_, err := e.svc.Sync(ctx)
		done <- err
	}()

	<-started
	assert.True(t, e.svc.IsSyncing())
	assert.Equal(t, StatusSyncing, e.svc.Status())
	_, err = e.svc.Sync(ctx)
	assert.ErrorIs(t, err, ErrSyncInProgress)
	close(release)

	require.NoError(t, <-done)
	assert.Equal(t, 1, e.fake.CallCount(remotetest.OpCreatePlant))
	assert.Len(t, e.fake.Plants(), 1)
	assert.Zero(t, e.queue.Count())
}

func TestSync_IdempotentRetriedCreate(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	_, err := e.plants.Create(ctx, plant.CreateRequest{Name: "Ivy"})
	require.NoError(t, err)
	m := e.queue.All()[0]

	// сервер уже принял запрос, но ответ потерялся
	e.fake.SetOffline(false)
	var req plant.CreateRequest
	require.NoError(t, m.DecodePayload(&req))
	first, err := e.fake.CreatePlant(ctx, m.ID, req)
	require.NoError(t, err)

	e.monitor.Set(true)
	res, err := e.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)

	serverPlants := e.fake.Plants()
	require.Len(t, serverPlants, 1)
	assert.Equal(t, first.ID, serverPlants[0].ID)
	got, ok := e.plants.Get(first.ID)
	require.True(t, ok)
	assert.False(t, got.PendingSync)
}

func TestSync_DeleteOfMissingRowSucceeds(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	seeded := e.fake.SeedPlant(plant.Plant{Name: "Old"})
	e.goOnline()
	_, err := e.plants.Fetch(ctx)
	require.NoError(t, err)

	e.goOffline()
	require.NoError(t, e.plants.Delete(ctx, seeded.ID))
	require.Equal(t, 1, e.queue.Count())

	e.goOnline()
	require.NoError(t, e.fake.DeletePlant(ctx, seeded.ID))

	res, err := e.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 1, res.Applied)
	assert.Zero(t, e.queue.Count())
}

func TestSync_DropsQueuedReorder(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	m := queue.Mutation{
		EntityType: queue.EntityLocation,
		Action:     queue.ActionReorder,
		EntityID:   "loc-1",
	}
	require.NoError(t, m.SetPayload(map[string]any{"sort_index": 2}))
	_, err := e.queue.Enqueue(ctx, m)
	require.NoError(t, err)

	e.goOnline()
	res, err := e.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 1, res.Dropped)
	assert.Zero(t, e.queue.Count())
	assert.Zero(t, e.fake.CallCount(remotetest.OpUpdateLocation))
}

func TestSync_StatusReturnsToIdle(t *testing.T) {
	e := newTestEnv(t, WithStatusWindow(30*time.Millisecond))
	e.goOnline()

	var (
		mu   gosync.Mutex
		seen []Status
	)
	e.svc.OnStatus(func(s Status) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	})

	_, err := e.svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, e.svc.Status())

	assert.Eventually(t, func() bool {
		return e.svc.Status() == StatusIdle
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusSyncing, StatusSuccess, StatusIdle}, seen)

	stats := e.svc.Stats()
	assert.Equal(t, 1, stats.TotalSyncs)
	assert.False(t, stats.LastSuccessful.IsZero())
	last, ok := e.svc.LastResult()
	require.True(t, ok)
	assert.Equal(t, StatusSuccess, last.Status)
}

func TestWatch_SyncsOnReconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := newTestEnv(t)

	_, err := e.plants.Create(ctx, plant.CreateRequest{Name: "Pothos"})
	require.NoError(t, err)

	events, unsubscribe := e.monitor.Subscribe()
	defer unsubscribe()
	go e.svc.Watch(ctx, events)

	e.goOnline()

	assert.Eventually(t, func() bool {
		return e.queue.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, e.fake.Plants(), 1)
	assert.Equal(t, 1, e.svc.Stats().TotalSyncs)
}

func TestWatch_IgnoresReconnectWithEmptyQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := newTestEnv(t)

	events, unsubscribe := e.monitor.Subscribe()
	defer unsubscribe()
	done := make(chan struct{})
	go func() {
		e.svc.Watch(ctx, events)
		close(done)
	}()

	e.goOnline()
	e.goOffline()
	e.goOnline()
	cancel()
	<-done

	assert.Zero(t, e.svc.Stats().TotalSyncs)
}

func TestSync_ExampleScenario(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	p, err := e.plants.Create(ctx, plant.CreateRequest{Name: "Tomat"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.ID, queue.TempPrefix))
	assert.True(t, p.PendingSync)

	items, err := e.plants.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, p.ID, items[0].ID)

	e.goOnline()
	_, err = e.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Zero(t, e.queue.Count())

	items, err = e.plants.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, queue.IsTempID(items[0].ID))
	assert.Equal(t, "Tomat", items[0].Name)
	assert.False(t, items[0].PendingSync)
}

func TestBuildPlan(t *testing.T) {
	tempLoc := queue.NewTempID()
	tempPlant := queue.NewTempID()

	mk := func(entity queue.EntityType, action queue.Action, id string, payload map[string]any) queue.Mutation {
		m := queue.Mutation{ID: queue.NewTempID(), EntityType: entity, Action: action, EntityID: id}
		require.NoError(t, m.SetPayload(payload))
		return m
	}

	tests := []struct {
		name       string
		snapshot   []queue.Mutation
		order      []int
		unresolved []int
	}{
		{
			name: "fifo without dependencies",
			snapshot: []queue.Mutation{
				mk(queue.EntityPlant, queue.ActionUpdate, "p1", map[string]any{"name": "a"}),
				mk(queue.EntityPlant, queue.ActionUpdate, "p2", map[string]any{"name": "b"}),
			},
			order: []int{0, 1},
		},
		{
			name: "reference to later create",
			snapshot: []queue.Mutation{
				mk(queue.EntityPlant, queue.ActionCreate, tempPlant, map[string]any{"name": "a", "location_id": tempLoc}),
				mk(queue.EntityLocation, queue.ActionCreate, tempLoc, map[string]any{"name": "b"}),
			},
			order: []int{1, 0},
		},
		{
			name: "missing create",
			snapshot: []queue.Mutation{
				mk(queue.EntityPlant, queue.ActionUpdate, "p1", map[string]any{"location_id": tempLoc}),
			},
			order:      []int{0},
			unresolved: []int{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := buildPlan(tt.snapshot)
			assert.Equal(t, tt.order, p.order)
			for i, u := range p.unresolved {
				assert.Equal(t, contains(tt.unresolved, i), u, "mutation %d", i)
			}
		})
	}
}

func TestSync_DeleteUnsticksRejectedRename(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.goOnline()
	e.fake.SeedLocation("Kitchen")
	balcony := e.fake.SeedLocation("Balcony")
	_, err := e.locations.Fetch(ctx)
	require.NoError(t, err)

	e.goOffline()
	name := "Kitchen"
	_, err = e.locations.Update(ctx, balcony.ID, location.UpdateRequest{Name: &name})
	require.NoError(t, err)

	e.goOnline()
	res, err := e.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, e.queue.Count())

	require.NoError(t, e.locations.Delete(ctx, balcony.ID))
	assert.Zero(t, e.queue.Count())

	res, err = e.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Len(t, e.fake.Locations(), 1)
}

// stubLease - аренда другого процесса: held держит ее, grants ограничивает число выдач.
type stubLease struct {
	mu       gosync.Mutex
	held     bool
	grants   int
	acquired int
	released int
}

func (l *stubLease) Acquire(context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held || (l.grants > 0 && l.acquired >= l.grants) {
		return false, nil
	}
	l.acquired++
	return true, nil
}

func (l *stubLease) Release(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released++
	return nil
}

func TestSync_LeaseHeldByOtherProcess(t *testing.T) {
	ctx := context.Background()
	lease := &stubLease{held: true}
	e := newTestEnv(t, WithLease(lease))

	_, err := e.plants.Create(ctx, plant.CreateRequest{Name: "Tomat"})
	require.NoError(t, err)
	e.goOnline()

	_, err = e.svc.Sync(ctx)
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.Equal(t, StatusIdle, e.svc.Status())
	assert.False(t, e.svc.IsSyncing())
	assert.Equal(t, 1, e.queue.Count())
	assert.Zero(t, lease.released)

	lease.mu.Lock()
	lease.held = false
	lease.mu.Unlock()

	res, err := e.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 1, lease.released)
}

func TestSync_LostLeaseStopsDrain(t *testing.T) {
	ctx := context.Background()
	// старт и первая мутация, вторую уже разгружает другой процесс
	lease := &stubLease{grants: 2}
	e := newTestEnv(t, WithLease(lease))

	_, err := e.plants.Create(ctx, plant.CreateRequest{Name: "Tomat"})
	require.NoError(t, err)
	_, err = e.plants.Create(ctx, plant.CreateRequest{Name: "Basil"})
	require.NoError(t, err)
	e.goOnline()

	res, err := e.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 1, res.Remaining)
	assert.Equal(t, 1, e.fake.CallCount(remotetest.OpCreatePlant))
}

func TestSync_StaleIdleTimerIsIgnored(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, WithStatusWindow(time.Hour))
	e.goOnline()

	_, err := e.svc.Sync(ctx)
	require.NoError(t, err)
	_, err = e.svc.Sync(ctx)
	require.NoError(t, err)

	// таймер первого прогона сработал уже после завершения второго
	e.svc.resetIdle(1)
	assert.Equal(t, StatusSuccess, e.svc.Status())

	e.svc.resetIdle(2)
	assert.Equal(t, StatusIdle, e.svc.Status())
}
