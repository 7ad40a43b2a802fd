package connectivity

import (
	"sync"

	"golang.org/x/exp/slog"
)

type Event int

const (
	WentOffline Event = iota
	WentOnline
)

func (e Event) String() string {
	if e == WentOnline {
		return "online"
	}
	return "offline"
}

const subscriberBuffer = 16

// Monitor хранит текущее состояние сети и рассылает только переходы.
type Monitor struct {
	mu     sync.RWMutex
	online bool
	subs   map[int]chan Event
	nextID int
	log    *slog.Logger
}

// NewMonitor создает монитор с начальным состоянием (результат проверки при старте).
func NewMonitor(online bool, log *slog.Logger) *Monitor {
	return &Monitor{
		online: online,
		subs:   make(map[int]chan Event),
		log:    log.With("component", "connectivity"),
	}
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Set принимает уведомление платформы. Повтор текущего состояния событий не порождает.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.online == online {
		return
	}
	m.online = online

	ev := WentOffline
	if online {
		ev = WentOnline
	}
	m.log.Info("connectivity changed", "state", ev.String())

	for id, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			m.log.Warn("subscriber is slow, event dropped", "subscriber", id, "event", ev.String())
		}
	}
}

// Subscribe возвращает канал переходов и функцию отписки.
func (m *Monitor) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan Event, subscriberBuffer)
	m.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}
