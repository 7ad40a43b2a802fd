package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/exp/slog"

	"plantkeeper/internal/app/server/api"
	"plantkeeper/internal/app/server/config"
	"plantkeeper/internal/domain/location"
	"plantkeeper/internal/domain/plant"
	"plantkeeper/internal/domain/session"
	"plantkeeper/internal/domain/user"
	"plantkeeper/internal/infrastructure/blob"
	"plantkeeper/internal/infrastructure/migration"
	"plantkeeper/internal/infrastructure/storage/postgres"
)

// App — серверное приложение: HTTP API поверх Postgres и хранилища фото
type App struct {
	cfg      *config.Config
	log      *slog.Logger
	storage  *postgres.Storage
	sessions *session.Service
	server   *http.Server
}

func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if err := migration.NewMigration(cfg.DB, migration.DefaultEngine, log).Up(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	storage, err := postgres.New(ctx, cfg.DB.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	photos, err := blob.Open(ctx, blob.Config{
		Driver: cfg.Blob.Driver,
		FSRoot: cfg.Blob.FSRoot,
		S3: blob.S3Config{
			Region:    cfg.Blob.S3Region,
			Bucket:    cfg.Blob.S3Bucket,
			Endpoint:  cfg.Blob.S3Endpoint,
			PathStyle: cfg.Blob.S3PathStyle,
		},
	})
	if err != nil {
		storage.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	sessions := session.NewService(postgres.NewSessionRepository(storage, log), cfg.Session.TTL, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mux := api.New(api.Services{
		Users:     user.NewService(postgres.NewUserRepository(storage, log), user.NewPasswordValidator(user.StrictPolicy), log),
		Sessions:  sessions,
		Plants:    plant.NewService(postgres.NewPlantRepository(storage, log), photos, log),
		Locations: location.NewService(postgres.NewLocationRepository(storage, log), log),
		DB:        storage,
	}, api.Options{
		PresenceInterval: cfg.Server.PresenceInterval,
		Registry:         reg,
	}, log)

	return &App{
		cfg:      cfg,
		log:      log,
		storage:  storage,
		sessions: sessions,
		server: &http.Server{
			Addr:              cfg.Server.RunAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Run слушает адрес до отмены ctx, затем корректно останавливает сервер
func (a *App) Run(ctx context.Context) error {
	defer a.storage.Close()

	go a.sessions.Cleanup(ctx, time.Hour)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server started", "address", a.cfg.Server.RunAddress)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
