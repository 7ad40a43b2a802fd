package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantkeeper/internal/app/client/cache"
	"plantkeeper/internal/app/client/queue"
	"plantkeeper/internal/utils/logger"
)

func openTestStorage(t *testing.T) (*SQLiteStorage, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestSQLiteStorage_Snapshots(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStorage(t)

	_, _, found, err := s.LoadSnapshot(ctx, "u1", "plants")
	require.NoError(t, err)
	assert.False(t, found)

	now := time.Date(2026, 5, 1, 12, 0, 0, 123, time.UTC)
	require.NoError(t, s.SaveSnapshot(ctx, "u1", "plants", []byte(`[1]`), now))
	require.NoError(t, s.SaveSnapshot(ctx, "u1", "plants", []byte(`[2]`), now.Add(time.Second)))
	require.NoError(t, s.SaveSnapshot(ctx, "u2", "plants", []byte(`[3]`), now))

	data, savedAt, found, err := s.LoadSnapshot(ctx, "u1", "plants")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `[2]`, string(data))
	assert.True(t, savedAt.Equal(now.Add(time.Second)))

	require.NoError(t, s.DeleteSnapshots(ctx, "u1"))
	_, _, found, err = s.LoadSnapshot(ctx, "u1", "plants")
	require.NoError(t, err)
	assert.False(t, found)

	_, _, found, err = s.LoadSnapshot(ctx, "u2", "plants")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestSQLiteStorage_Queue(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStorage(t)

	created := time.Now().UTC().Truncate(time.Microsecond)
	m1 := queue.Mutation{ID: "m1", EntityType: queue.EntityLocation, Action: queue.ActionCreate, EntityID: "tmp_a", TempID: "tmp_a", Payload: json.RawMessage(`{"name":"Hall"}`), CreatedAt: created}
	m2 := queue.Mutation{ID: "m2", EntityType: queue.EntityPlant, Action: queue.ActionDelete, EntityID: "p1", CreatedAt: created}
	m3 := queue.Mutation{ID: "m3", EntityType: queue.EntityPlant, Action: queue.ActionDelete, EntityID: "p2", CreatedAt: created}

	for _, m := range []queue.Mutation{m1, m2, m3} {
		require.NoError(t, s.AppendMutation(ctx, "u1", m))
	}
	require.NoError(t, s.AppendMutation(ctx, "u2", queue.Mutation{ID: "other", EntityType: queue.EntityPlant, Action: queue.ActionDelete, EntityID: "p", CreatedAt: created}))

	m1.Attempts = 2
	m1.LastError = "timeout"
	m1.EntityID = "srv"
	require.NoError(t, s.UpdateMutation(ctx, "u1", m1))
	require.NoError(t, s.DeleteMutation(ctx, "u1", "m2"))

	got, err := s.LoadQueue(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, "srv", got[0].EntityID)
	assert.Equal(t, 2, got[0].Attempts)
	assert.Equal(t, "timeout", got[0].LastError)
	assert.JSONEq(t, `{"name":"Hall"}`, string(got[0].Payload))
	assert.True(t, got[0].CreatedAt.Equal(created))
	assert.Equal(t, "m3", got[1].ID)
	assert.Nil(t, got[1].Payload)

	require.NoError(t, s.ClearQueue(ctx, "u1"))
	got, err = s.LoadQueue(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.LoadQueue(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSQLiteStorage_BacksCacheAndQueue(t *testing.T) {
	ctx := context.Background()
	s, path := openTestStorage(t)
	log := logger.Discard()

	c := cache.New(s, "u1", log)
	require.NoError(t, c.Save(ctx, cache.KeyPlants, []string{"fern"}))

	q := queue.New(ctx, s, "u1", log)
	_, err := q.Enqueue(ctx, queue.Mutation{EntityType: queue.EntityPlant, Action: queue.ActionDelete, EntityID: "p1"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, _, ok := cache.LoadAs[[]string](ctx, cache.New(reopened, "u1", log), cache.KeyPlants)
	require.True(t, ok)
	assert.Equal(t, []string{"fern"}, got)
	assert.Equal(t, 1, queue.New(ctx, reopened, "u1", log).Count())
}

func TestLease_ExcludesOtherProcess(t *testing.T) {
	ctx := context.Background()
	s, path := openTestStorage(t)
	other, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = other.Close() })

	daemon := s.Lease("u1", "daemon", time.Minute)
	cli := other.Lease("u1", "cli", time.Minute)

	ok, err := daemon.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cli.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "lease is held by the daemon")

	ok, err = daemon.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "holder extends its own lease")

	ok, err = other.Lease("u2", "cli", time.Minute).Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "namespaces are independent")

	require.NoError(t, daemon.Release(ctx))
	ok, err = cli.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLease_ExpiredLeaseIsTaken(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStorage(t)

	crashed := s.Lease("u1", "crashed", time.Minute)
	crashed.now = func() time.Time { return time.Now().Add(-time.Hour) }
	ok, err := crashed.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Lease("u1", "cli", time.Minute).Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, crashed.Release(ctx))
	ok, err = s.Lease("u1", "daemon", time.Minute).Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "release by a former holder must not free the lease")
}
