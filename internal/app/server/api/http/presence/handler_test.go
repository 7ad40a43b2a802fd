package presence

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestHandler_Heartbeats(t *testing.T) {
	h := NewHandler(20*time.Millisecond, prometheus.NewRegistry(), slog.Default())
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		typ, msg, err := conn.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, websocket.MessageText, typ)
		assert.JSONEq(t, `{"type":"heartbeat"}`, string(msg))
	}
	assert.Equal(t, int64(1), h.Active())

	conn.Close(websocket.StatusNormalClosure, "bye")
	assert.Eventually(t, func() bool { return h.Active() == 0 }, time.Second, 10*time.Millisecond)
}
