package connectivity

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/exp/slog"
)

const (
	defaultReadTimeout = 45 * time.Second
	defaultMinBackoff  = time.Second
	defaultMaxBackoff  = 30 * time.Second
)

// PresenceSource держит websocket-соединение с сервером и переводит его
// состояние в уведомления монитора: соединение есть - онлайн, оборвалось - офлайн.
type PresenceSource struct {
	url         string
	monitor     *Monitor
	header      http.Header
	readTimeout time.Duration
	minBackoff  time.Duration
	maxBackoff  time.Duration
	log         *slog.Logger
}

type PresenceOption func(*PresenceSource)

// WithReadTimeout задает, сколько ждать heartbeat до признания соединения мертвым.
func WithReadTimeout(d time.Duration) PresenceOption {
	return func(p *PresenceSource) { p.readTimeout = d }
}

func WithBackoff(minDelay, maxDelay time.Duration) PresenceOption {
	return func(p *PresenceSource) {
		p.minBackoff = minDelay
		p.maxBackoff = maxDelay
	}
}

// WithToken добавляет bearer-токен к запросу на подключение.
func WithToken(token string) PresenceOption {
	return func(p *PresenceSource) {
		if token != "" {
			p.header.Set("Authorization", "Bearer "+token)
		}
	}
}

func NewPresenceSource(url string, monitor *Monitor, log *slog.Logger, opts ...PresenceOption) *PresenceSource {
	p := &PresenceSource{
		url:         url,
		monitor:     monitor,
		header:      http.Header{},
		readTimeout: defaultReadTimeout,
		minBackoff:  defaultMinBackoff,
		maxBackoff:  defaultMaxBackoff,
		log:         log.With("component", "presence"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run подключается и переподключается до отмены ctx.
func (p *PresenceSource) Run(ctx context.Context) error {
	backoff := p.minBackoff

	for {
		err := p.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.monitor.Set(false)

		if err == nil {
			// соединение было установлено - начинаем отсчет заново
			backoff = p.minBackoff
		}
		p.log.Debug("presence connection lost", "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		if err != nil {
			backoff *= 2
			if backoff > p.maxBackoff {
				backoff = p.maxBackoff
			}
		}
	}
}

// session возвращает ошибку только если подключиться не удалось.
func (p *PresenceSource) session(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, p.readTimeout)
	conn, _, err := websocket.Dial(dialCtx, p.url, &websocket.DialOptions{HTTPHeader: p.header})
	cancel()
	if err != nil {
		return err
	}
	defer conn.CloseNow()

	p.monitor.Set(true)

	for {
		readCtx, cancel := context.WithTimeout(ctx, p.readTimeout)
		_, _, err := conn.Read(readCtx)
		cancel()
		if err != nil {
			if ctx.Err() == nil {
				p.log.Debug("presence read failed", "error", err)
			}
			return nil
		}
	}
}
