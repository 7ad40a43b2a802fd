package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantkeeper/internal/utils/logger"
)

type row struct {
	data    []byte
	savedAt time.Time
}

type memBackend struct {
	rows    map[string]row
	failing bool
	saves   int
}

func newMemBackend() *memBackend {
	return &memBackend{rows: map[string]row{}}
}

func (b *memBackend) SaveSnapshot(_ context.Context, ns, key string, data []byte, savedAt time.Time) error {
	if b.failing {
		return errors.New("quota exceeded")
	}
	b.saves++
	b.rows[ns+"/"+key] = row{data: data, savedAt: savedAt}
	return nil
}

func (b *memBackend) LoadSnapshot(_ context.Context, ns, key string) ([]byte, time.Time, bool, error) {
	if b.failing {
		return nil, time.Time{}, false, errors.New("io error")
	}
	r, ok := b.rows[ns+"/"+key]
	return r.data, r.savedAt, ok, nil
}

func (b *memBackend) DeleteSnapshots(_ context.Context, ns string) error {
	if b.failing {
		return errors.New("io error")
	}
	for k := range b.rows {
		if len(k) > len(ns) && k[:len(ns)+1] == ns+"/" {
			delete(b.rows, k)
		}
	}
	return nil
}

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestCache_SaveLoad(t *testing.T) {
	ctx := context.Background()
	c := New(newMemBackend(), "u1", logger.Discard())

	data := []item{{ID: "1", Name: "Fern"}}
	require.NoError(t, c.Save(ctx, KeyPlants, data))

	got, savedAt, ok := LoadAs[[]item](ctx, c, KeyPlants)
	require.True(t, ok)
	assert.Equal(t, data, got)
	assert.False(t, savedAt.IsZero())
}

func TestCache_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	c := New(newMemBackend(), "u1", logger.Discard())

	first := []item{{ID: "1", Name: "Fern"}}
	second := []item{{ID: "2", Name: "Cactus"}}
	require.NoError(t, c.Save(ctx, KeyPlants, first))
	require.NoError(t, c.Save(ctx, KeyPlants, second))

	got, _, ok := LoadAs[[]item](ctx, c, KeyPlants)
	require.True(t, ok)
	assert.Equal(t, second, got)
}

func TestCache_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()

	require.NoError(t, New(backend, "u1", logger.Discard()).Save(ctx, KeyLocations, []item{{ID: "l1"}}))

	restarted := New(backend, "u1", logger.Discard())
	got, _, ok := LoadAs[[]item](ctx, restarted, KeyLocations)
	require.True(t, ok)
	assert.Equal(t, "l1", got[0].ID)

	_, ok = New(backend, "u2", logger.Discard()).Load(ctx, KeyLocations)
	assert.False(t, ok)
}

func TestCache_Absent(t *testing.T) {
	c := New(newMemBackend(), "u1", logger.Discard())
	_, ok := c.Load(context.Background(), KeyPlants)
	assert.False(t, ok)
}

func TestCache_CorruptSnapshotIsAbsent(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	backend.rows["u1/"+KeyPlants] = row{data: []byte(`[{"id":`), savedAt: time.Now()}

	c := New(backend, "u1", logger.Discard())
	_, ok := c.Load(ctx, KeyPlants)
	assert.False(t, ok)

	backend.rows["u1/"+KeyLocations] = row{data: []byte(`{"id":"x"}`), savedAt: time.Now()}
	_, _, ok = LoadAs[[]item](ctx, c, KeyLocations)
	assert.False(t, ok, "wrong shape must not decode partially")
}

func TestCache_DegradesToMemory(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	backend.failing = true
	c := New(backend, "u1", logger.Discard())

	require.NoError(t, c.Save(ctx, KeyPlants, []item{{ID: "1"}}))
	assert.True(t, c.Degraded())

	backend.failing = false
	require.NoError(t, c.Save(ctx, KeyPlants, []item{{ID: "2"}}))
	assert.Zero(t, backend.saves, "degraded cache must not touch the backend again")

	got, _, ok := LoadAs[[]item](ctx, c, KeyPlants)
	require.True(t, ok)
	assert.Equal(t, "2", got[0].ID)
}

func TestCache_Clear(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	c := New(backend, "u1", logger.Discard())
	other := New(backend, "u2", logger.Discard())

	require.NoError(t, c.Save(ctx, KeyPlants, []item{{ID: "1"}}))
	require.NoError(t, other.Save(ctx, KeyPlants, []item{{ID: "9"}}))

	c.Clear(ctx)

	_, ok := c.Load(ctx, KeyPlants)
	assert.False(t, ok)
	_, ok = New(backend, "u2", logger.Discard()).Load(ctx, KeyPlants)
	assert.True(t, ok)
}

func TestCache_SharedBackendIsSourceOfTruth(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	daemon := New(backend, "u1", logger.Discard())
	cli := New(backend, "u1", logger.Discard())

	require.NoError(t, daemon.Save(ctx, KeyPlants, []item{{ID: "1", Name: "Fern"}}))
	_, _, ok := LoadAs[[]item](ctx, daemon, KeyPlants)
	require.True(t, ok)

	require.NoError(t, cli.Save(ctx, KeyPlants, []item{{ID: "1", Name: "Fern"}, {ID: "tmp_2", Name: "Tomat"}}))

	got, _, ok := LoadAs[[]item](ctx, daemon, KeyPlants)
	require.True(t, ok)
	assert.Len(t, got, 2, "a snapshot written by another process must not be shadowed")

	cli.Clear(ctx)
	_, ok = daemon.Load(ctx, KeyPlants)
	assert.False(t, ok)
}

func TestCache_LoadFailureFallsBackToMemory(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	c := New(backend, "u1", logger.Discard())
	require.NoError(t, c.Save(ctx, KeyPlants, []item{{ID: "1"}}))

	backend.failing = true
	got, _, ok := LoadAs[[]item](ctx, c, KeyPlants)
	require.True(t, ok)
	assert.Equal(t, "1", got[0].ID)
	assert.True(t, c.Degraded())
}

func TestCache_NilBackend(t *testing.T) {
	ctx := context.Background()
	c := New(nil, "u1", logger.Discard())
	require.NoError(t, c.Save(ctx, KeyPlants, []item{{ID: "1"}}))
	_, ok := c.Load(ctx, KeyPlants)
	assert.True(t, ok)
}
