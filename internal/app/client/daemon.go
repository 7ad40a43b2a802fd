package client

import (
	"context"
	"errors"
	"net/http"
	gosync "sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"plantkeeper/internal/app/client/connectivity"
	"plantkeeper/internal/app/client/sync"
)

// Run работает в фоне до отмены ctx: держит presence-соединение, синхронизирует
// очередь при восстановлении связи и по таймеру, отдает метрики.
func (a *App) Run(ctx context.Context) error {
	ws, err := a.Workspace(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg gosync.WaitGroup

	presence := connectivity.NewPresenceSource(a.config.WebsocketURL(), a.monitor, a.log,
		connectivity.WithToken(a.http.Token()),
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := presence.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("presence stopped", "error", err)
		}
	}()

	events, unsubscribe := a.monitor.Subscribe()
	defer unsubscribe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		ws.Sync.Watch(ctx, events)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.startSync(ctx, ws)
	}()

	if addr := a.config.MetricsAddress; addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.serveMetrics(ctx, addr)
		}()
	}

	a.log.Info("client daemon started",
		"server", a.config.ServerAddress,
		"env", a.config.Env,
		"pending", ws.Queue.Count(),
	)

	<-ctx.Done()
	wg.Wait()
	a.log.Info("client daemon stopped")
	return nil
}

// startSync периодически отправляет очередь, если есть связь и есть что отправлять.
func (a *App) startSync(ctx context.Context, ws *Workspace) {
	ticker := time.NewTicker(a.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !a.monitor.IsOnline() || ws.Queue.Count() == 0 {
				continue
			}
			if _, err := ws.Sync.Sync(ctx); err != nil && !errors.Is(err, sync.ErrSyncInProgress) {
				a.log.Error("periodic sync failed", "error", err)
			}
		}
	}
}

func (a *App) serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.log.Info("metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.log.Error("metrics endpoint failed", "error", err)
	}
}
