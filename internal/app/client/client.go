package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/exp/slog"

	"plantkeeper/internal/app/client/cache"
	"plantkeeper/internal/app/client/config"
	"plantkeeper/internal/app/client/connectivity"
	"plantkeeper/internal/app/client/queue"
	"plantkeeper/internal/app/client/remote"
	"plantkeeper/internal/app/client/storage"
	"plantkeeper/internal/app/client/store"
	"plantkeeper/internal/app/client/sync"
	"plantkeeper/internal/domain/user"
)

// ErrOffline возвращается ручной синхронизацией без связи с сервером.
var ErrOffline = errors.New("offline")

// syncLeaseTTL - срок аренды синхронизации; продлевается на каждой мутации.
const syncLeaseTTL = time.Minute

// Backend хранит кэш и очередь на диске.
type Backend interface {
	cache.Backend
	queue.Backend
}

// leaser - локальное хранилище, умеющее выдавать межпроцессную аренду синхронизации.
type leaser interface {
	Lease(namespace, holder string, ttl time.Duration) *storage.Lease
}

type App struct {
	// instance отличает этот процесс от других, работающих с той же базой
	instance string
	config   *config.Config
	log      *slog.Logger
	http     *remote.HTTPClient
	remote   remote.Store
	health   func(ctx context.Context) error
	backend  Backend
	closer   func() error
	monitor  *connectivity.Monitor
	registry *prometheus.Registry
	metrics  *sync.Metrics

	mu        gosync.Mutex
	state     *AppState
	workspace *Workspace
}

// AppState хранит текущего пользователя между запусками
type AppState struct {
	UserID   int       `json:"user_id"`
	Login    string    `json:"login"`
	Token    string    `json:"token"`
	LastSync time.Time `json:"last_sync"`
}

// Workspace - кэш, очередь, хранилища и синхронизация одного пользователя.
type Workspace struct {
	UserID    int
	Cache     *cache.Cache
	Queue     *queue.Queue
	Plants    *store.PlantStore
	Locations *store.LocationStore
	Sync      *sync.Service
}

type Option func(*App)

// WithRemote подменяет удаленное хранилище данных (используется в тестах).
func WithRemote(r remote.Store) Option {
	return func(a *App) { a.remote = r }
}

// WithHealthCheck подменяет проверку доступности сервера при старте.
func WithHealthCheck(fn func(ctx context.Context) error) Option {
	return func(a *App) { a.health = fn }
}

// WithBackend подменяет локальное хранилище. nil - только память.
func WithBackend(b Backend) Option {
	return func(a *App) {
		a.backend = b
		a.closer = nil
	}
}

func New(ctx context.Context, cfg *config.Config, log *slog.Logger, opts ...Option) (*App, error) {
	state, err := loadAppState(cfg)
	if err != nil {
		log.Warn("failed to load client state", "error", err)
		state = &AppState{}
	}

	httpCl := remote.NewHTTPClient(cfg.BaseURL(), cfg.RequestTimeout, log)
	httpCl.SetToken(state.Token)

	registry := prometheus.NewRegistry()
	app := &App{
		instance: uuid.NewString(),
		config:   cfg,
		log:      log,
		http:     httpCl,
		remote:   httpCl,
		health:   httpCl.HealthCheck,
		registry: registry,
		metrics:  sync.NewMetrics(registry),
		state:    state,
	}

	// Локальное хранилище: при ошибке работаем в памяти
	sqlite, err := storage.NewSQLiteStorage(cfg.DataPath)
	if err != nil {
		log.Warn("local storage unavailable, running in memory", "path", cfg.DataPath, "error", err)
	} else {
		app.backend = sqlite
		app.closer = sqlite.Close
	}

	for _, opt := range opts {
		opt(app)
	}

	// Начальное состояние сети - одна проверка при старте
	checkCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	online := app.health(checkCtx) == nil
	app.monitor = connectivity.NewMonitor(online, log)

	log.Debug("client initialized", "server", cfg.ServerAddress, "online", online, "user_id", state.UserID)
	return app, nil
}

func loadAppState(cfg *config.Config) (*AppState, error) {
	data, err := os.ReadFile(cfg.StatePath())
	if errors.Is(err, os.ErrNotExist) {
		return &AppState{}, nil
	}
	if err != nil {
		return nil, err
	}

	var state AppState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (a *App) saveAppState() error {
	data, err := json.MarshalIndent(a.state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(a.config.StatePath(), data, 0600)
}

// Close освобождает локальное хранилище.
func (a *App) Close() error {
	a.mu.Lock()
	if a.workspace != nil {
		a.workspace.Sync.Stop()
	}
	a.mu.Unlock()

	if a.closer != nil {
		return a.closer()
	}
	return nil
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) Monitor() *connectivity.Monitor {
	return a.monitor
}

func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// IsAuthenticated проверяет, есть ли текущий пользователь
func (a *App) IsAuthenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.UserID != 0 && a.state.Token != ""
}

// CurrentUser возвращает логин текущего пользователя.
func (a *App) CurrentUser() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.UserID == 0 {
		return "", false
	}
	return a.state.Login, true
}

// Workspace возвращает данные текущего пользователя, создавая их при первом обращении.
func (a *App) Workspace(ctx context.Context) (*Workspace, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.UserID == 0 {
		return nil, store.ErrNoUser
	}
	if a.workspace != nil && a.workspace.UserID == a.state.UserID {
		return a.workspace, nil
	}
	if a.workspace != nil {
		a.workspace.Sync.Stop()
	}

	ns := strconv.Itoa(a.state.UserID)
	var (
		cb cache.Backend
		qb queue.Backend
	)
	if a.backend != nil {
		cb, qb = a.backend, a.backend
	}

	ws := &Workspace{
		UserID: a.state.UserID,
		Cache:  cache.New(cb, ns, a.log),
		Queue:  queue.New(ctx, qb, ns, a.log),
	}
	deps := store.Deps{
		Remote:  a.remote,
		Cache:   ws.Cache,
		Queue:   ws.Queue,
		Monitor: a.monitor,
		Log:     a.log,
	}
	ws.Plants = store.NewPlantStore(ctx, deps)
	ws.Locations = store.NewLocationStore(ctx, deps, ws.Plants)
	opts := []sync.Option{
		sync.WithStatusWindow(a.config.SyncStatusWindow),
		sync.WithMetrics(a.metrics),
	}
	// демон и команды CLI делят одну базу: разгружать очередь может только один из них
	if l, ok := a.backend.(leaser); ok {
		opts = append(opts, sync.WithLease(l.Lease(ns, a.instance, syncLeaseTTL)))
	}
	// локации раньше растений: после синхронизации ссылки уже актуальны
	ws.Sync = sync.NewService(ws.Queue, a.log, []sync.Target{ws.Locations, ws.Plants}, opts...)
	ws.Sync.OnStatus(func(s sync.Status) {
		a.log.Debug("sync status changed", "status", s)
	})

	a.workspace = ws
	a.log.Info("workspace opened", "user_id", ws.UserID, "pending", ws.Queue.Count())
	return ws, nil
}

func (a *App) Plants(ctx context.Context) (*store.PlantStore, error) {
	ws, err := a.Workspace(ctx)
	if err != nil {
		return nil, err
	}
	return ws.Plants, nil
}

func (a *App) Locations(ctx context.Context) (*store.LocationStore, error) {
	ws, err := a.Workspace(ctx)
	if err != nil {
		return nil, err
	}
	return ws.Locations, nil
}

func (a *App) IsOnline() bool {
	return a.monitor.IsOnline()
}

// SyncStatus возвращает статус синхронизации (idle без пользователя).
func (a *App) SyncStatus(ctx context.Context) sync.Status {
	ws, err := a.Workspace(ctx)
	if err != nil {
		return sync.StatusIdle
	}
	return ws.Sync.Status()
}

// PendingCount возвращает число неотправленных изменений.
func (a *App) PendingCount(ctx context.Context) int {
	ws, err := a.Workspace(ctx)
	if err != nil {
		return 0
	}
	return ws.Queue.Count()
}

// SyncNow отправляет очередь на сервер. Повторный вызов во время синхронизации ничего не делает.
func (a *App) SyncNow(ctx context.Context) (sync.Result, error) {
	ws, err := a.Workspace(ctx)
	if err != nil {
		return sync.Result{}, err
	}
	if !a.monitor.IsOnline() {
		return sync.Result{Status: ws.Sync.Status(), Remaining: ws.Queue.Count()}, ErrOffline
	}

	result, err := ws.Sync.Sync(ctx)
	if errors.Is(err, sync.ErrSyncInProgress) {
		a.log.Debug("sync already running, skipping")
		return sync.Result{Status: sync.StatusSyncing, Remaining: ws.Queue.Count()}, nil
	}
	if err != nil {
		return result, err
	}

	a.mu.Lock()
	a.state.LastSync = result.EndTime
	if err := a.saveAppState(); err != nil {
		a.log.Warn("failed to save client state", "error", err)
	}
	a.mu.Unlock()
	return result, nil
}

// Refetch перечитывает локации и растения.
func (a *App) Refetch(ctx context.Context) error {
	ws, err := a.Workspace(ctx)
	if err != nil {
		return err
	}
	_, lerr := ws.Locations.Fetch(ctx)
	_, perr := ws.Plants.Fetch(ctx)
	return errors.Join(lerr, perr)
}

// Discard убирает мутацию из очереди по решению пользователя, например отклоненную
// сервером. Отмена создания убирает и саму сущность вместе со ссылками на нее.
func (a *App) Discard(ctx context.Context, mutationID string) error {
	ws, err := a.Workspace(ctx)
	if err != nil {
		return err
	}
	m, ok := ws.Queue.Get(mutationID)
	if !ok {
		return fmt.Errorf("%w: %s", queue.ErrNotFound, mutationID)
	}

	if m.Action == queue.ActionCreate && queue.IsTempID(m.EntityID) {
		switch m.EntityType {
		case queue.EntityPlant:
			err = ws.Plants.Delete(ctx, m.EntityID)
		case queue.EntityLocation:
			err = ws.Locations.Delete(ctx, m.EntityID)
		default:
			err = ws.Queue.Dequeue(ctx, m.ID)
		}
		if err != nil {
			return fmt.Errorf("discard %s: %w", m.ID, err)
		}
		a.log.Info("pending create discarded", "mutation_id", m.ID, "entity", m.EntityType, "entity_id", m.EntityID)
		return nil
	}

	if err := ws.Queue.Dequeue(ctx, m.ID); err != nil {
		return fmt.Errorf("discard %s: %w", m.ID, err)
	}
	a.log.Info("mutation discarded", "mutation_id", m.ID, "entity", m.EntityType, "action", m.Action)

	// без связи локальная модель сохраняет отброшенное изменение до следующей загрузки
	if a.monitor.IsOnline() {
		if err := a.Refetch(ctx); err != nil {
			a.log.Warn("refetch after discard failed", "error", err)
		}
	}
	return nil
}

// Register регистрирует нового пользователя
func (a *App) Register(ctx context.Context, creds user.Credentials) error {
	if _, err := a.http.Register(ctx, creds); err != nil {
		return err
	}
	a.log.Info("user registered", "login", creds.Login)
	return nil
}

// Login выполняет вход и делает пользователя текущим.
func (a *App) Login(ctx context.Context, creds user.Credentials) error {
	token, userID, err := a.http.Login(ctx, creds)
	if err != nil {
		return err
	}
	a.monitor.Set(true)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.UserID != 0 && a.state.UserID != userID {
		a.log.Info("switching user", "from", a.state.UserID, "to", userID)
	}
	a.http.SetToken(token)
	a.state = &AppState{UserID: userID, Login: creds.Login, Token: token}
	if err := a.saveAppState(); err != nil {
		return fmt.Errorf("ошибка сохранения состояния: %w", err)
	}

	a.log.Info("user logged in", "login", creds.Login, "user_id", userID)
	return nil
}

// SignOut очищает кэш и очередь пользователя и забывает токен.
func (a *App) SignOut(ctx context.Context) error {
	ws, err := a.Workspace(ctx)
	if err != nil && !errors.Is(err, store.ErrNoUser) {
		return err
	}
	if ws != nil {
		if n := ws.Queue.Count(); n > 0 {
			a.log.Warn("discarding unsynced mutations on sign-out", "count", n)
		}
		ws.Sync.Stop()
		ws.Queue.Clear(ctx)
		ws.Cache.Clear(ctx)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.workspace = nil
	a.state = &AppState{}
	a.http.SetToken("")
	if err := a.saveAppState(); err != nil {
		return fmt.Errorf("ошибка сохранения состояния: %w", err)
	}
	return nil
}

// PlantPhoto возвращает фото растения: еще не отправленное - из локальных данных, иначе с сервера.
func (a *App) PlantPhoto(ctx context.Context, id string) ([]byte, string, error) {
	plants, err := a.Plants(ctx)
	if err != nil {
		return nil, "", err
	}
	p, ok := plants.Get(id)
	if !ok {
		return nil, "", store.ErrNotFound
	}
	if len(p.Photo) > 0 {
		return p.Photo, http.DetectContentType(p.Photo), nil
	}
	if queue.IsTempID(id) || p.PhotoKey == "" {
		return nil, "", store.ErrNotFound
	}
	return a.http.PlantPhoto(ctx, id)
}
