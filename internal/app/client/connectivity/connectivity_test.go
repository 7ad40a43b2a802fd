package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantkeeper/internal/utils/logger"
)

func TestMonitor_EdgesOnly(t *testing.T) {
	m := NewMonitor(false, logger.Discard())
	events, cancel := m.Subscribe()
	defer cancel()

	m.Set(false)
	m.Set(true)
	m.Set(true)
	m.Set(false)

	assert.Equal(t, WentOnline, <-events)
	assert.Equal(t, WentOffline, <-events)
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %v", ev)
	default:
	}
	assert.False(t, m.IsOnline())
}

func TestMonitor_Unsubscribe(t *testing.T) {
	m := NewMonitor(true, logger.Discard())
	events, cancel := m.Subscribe()
	cancel()
	cancel()

	m.Set(false)
	_, ok := <-events
	assert.False(t, ok, "channel must be closed after cancel")
}

func TestMonitor_FanOut(t *testing.T) {
	m := NewMonitor(true, logger.Discard())
	a, cancelA := m.Subscribe()
	defer cancelA()
	b, cancelB := m.Subscribe()
	defer cancelB()

	m.Set(false)
	assert.Equal(t, WentOffline, <-a)
	assert.Equal(t, WentOffline, <-b)
}

type presenceServer struct {
	reject atomic.Bool
	token  atomic.Value

	mu   sync.Mutex
	drop chan struct{}
}

func (s *presenceServer) dropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.drop)
	s.drop = make(chan struct{})
}

func (s *presenceServer) dropCh() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drop
}

func (s *presenceServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.reject.Load() {
		http.Error(w, "down", http.StatusServiceUnavailable)
		return
	}
	s.token.Store(r.Header.Get("Authorization"))
	drop := s.dropCh()
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-drop:
			return
		case <-ticker.C:
			if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"heartbeat"}`)); err != nil {
				return
			}
		}
	}
}

func TestPresenceSource_FollowsConnection(t *testing.T) {
	srv := &presenceServer{drop: make(chan struct{})}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	m := NewMonitor(false, logger.Discard())
	source := NewPresenceSource("ws"+strings.TrimPrefix(ts.URL, "http"), m, logger.Discard(),
		WithReadTimeout(200*time.Millisecond),
		WithBackoff(10*time.Millisecond, 50*time.Millisecond),
		WithToken("secret"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- source.Run(ctx) }()

	require.Eventually(t, m.IsOnline, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Bearer secret", srv.token.Load())

	srv.reject.Store(true)
	srv.dropAll()
	require.Eventually(t, func() bool { return !m.IsOnline() }, 2*time.Second, 10*time.Millisecond)

	srv.reject.Store(false)
	require.Eventually(t, m.IsOnline, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("presence source did not stop")
	}
}

func TestPresenceSource_ServerMissesHeartbeat(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		// соединение живо, но heartbeat не приходит
		<-conn.CloseRead(r.Context()).Done()
	}))
	defer ts.Close()

	m := NewMonitor(false, logger.Discard())
	events, unsubscribe := m.Subscribe()
	defer unsubscribe()

	source := NewPresenceSource("ws"+strings.TrimPrefix(ts.URL, "http"), m, logger.Discard(),
		WithReadTimeout(50*time.Millisecond),
		WithBackoff(time.Second, time.Second),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = source.Run(ctx) }()

	assert.Equal(t, WentOnline, waitEvent(t, events))
	assert.Equal(t, WentOffline, waitEvent(t, events))
}

func waitEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no connectivity event")
		return WentOffline
	}
}
