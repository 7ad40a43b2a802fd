package presence

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/exp/slog"
)

const Path = "/api/v1/ws"

var heartbeat = []byte(`{"type":"heartbeat"}`)

// Handler держит websocket-соединение открытым и шлет heartbeat.
// Клиент считает себя онлайн, пока соединение живо.
type Handler struct {
	interval  time.Duration
	connected prometheus.Gauge
	active    atomic.Int64
	log       *slog.Logger
}

func NewHandler(interval time.Duration, reg prometheus.Registerer, log *slog.Logger) *Handler {
	h := &Handler{
		interval: interval,
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "plantkeeper",
			Subsystem: "presence",
			Name:      "connections",
			Help:      "Open presence websocket connections.",
		}),
		log: log.With("component", "presence"),
	}
	if reg != nil {
		reg.MustRegister(h.connected)
	}
	return h
}

// Active возвращает число открытых соединений.
func (h *Handler) Active() int64 {
	return h.active.Load()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	h.active.Add(1)
	h.connected.Inc()
	defer func() {
		h.active.Add(-1)
		h.connected.Dec()
	}()

	// клиент ничего не шлет, CloseRead обрабатывает control-фреймы и закрытие
	ctx := conn.CloseRead(r.Context())

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.write(ctx, conn); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-ticker.C:
			if err := h.write(ctx, conn); err != nil {
				h.log.Debug("presence connection closed", "error", err)
				return
			}
		}
	}
}

func (h *Handler) write(ctx context.Context, conn *websocket.Conn) error {
	wctx, cancel := context.WithTimeout(ctx, h.interval)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, heartbeat)
}
