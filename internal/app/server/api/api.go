// GET    /api/v1/health            # Проба доступности (публичный)
// GET    /api/v1/ws                # Presence websocket (публичный)
// POST   /api/v1/user/register     # Регистрация (публичный)
// POST   /api/v1/user/login        # Логин (публичный)
// GET    /api/v1/plants            # Список растений (auth)
// POST   /api/v1/plants            # Создать растение, Idempotency-Key (auth)
// GET    /api/v1/plants/{id}       # Получить растение (auth)
// PUT    /api/v1/plants/{id}       # Обновить растение (auth)
// DELETE /api/v1/plants/{id}       # Удалить растение (auth)
// GET    /api/v1/plants/{id}/photo # Фото растения (auth)
// GET    /api/v1/locations         # Список локаций (auth)
// POST   /api/v1/locations         # Создать локацию, Idempotency-Key (auth)
// PUT    /api/v1/locations/{id}    # Обновить локацию (auth)
// DELETE /api/v1/locations/{id}    # Удалить локацию (auth)
// GET    /metrics                  # Prometheus

package api

import (
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/exp/slog"

	healthAPI "plantkeeper/internal/app/server/api/http/health"
	locationAPI "plantkeeper/internal/app/server/api/http/location"
	"plantkeeper/internal/app/server/api/http/middleware"
	"plantkeeper/internal/app/server/api/http/middleware/auth"
	"plantkeeper/internal/app/server/api/http/middleware/logger"
	"plantkeeper/internal/app/server/api/http/middleware/metrics"
	plantAPI "plantkeeper/internal/app/server/api/http/plant"
	"plantkeeper/internal/app/server/api/http/presence"
	userAPI "plantkeeper/internal/app/server/api/http/user"
	"plantkeeper/internal/domain/location"
	"plantkeeper/internal/domain/plant"
	"plantkeeper/internal/domain/session"
	"plantkeeper/internal/domain/user"
)

// Services — доменные сервисы, которые обслуживает API
type Services struct {
	Users     user.Servicer
	Sessions  session.Servicer
	Plants    plant.Servicer
	Locations location.Servicer
	DB        healthAPI.Pinger
}

type Options struct {
	PresenceInterval time.Duration
	Registry         *prometheus.Registry
}

// New создает *chi.Mux со всеми операциями через huma.Register
func New(svc Services, opts Options, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	config := huma.DefaultConfig("Plantkeeper API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, config)

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	authMW := auth.New(svc.Sessions, log)
	loggerMW := logger.New(log)
	metricsMW := metrics.New(reg)
	mws := middleware.NewContainer()

	mws.Add(metricsMW.Middleware(), loggerMW.Middleware())
	healthAPI.NewHandler(svc.DB, log, mws.GetAllAndClear()).SetupRoutes(API)

	mws.Add(metricsMW.Middleware(), loggerMW.Middleware())
	userAPI.NewHandler(svc.Users, svc.Sessions, log, mws.GetAllAndClear()).SetupRoutes(API)

	mws.Add(metricsMW.Middleware(), loggerMW.Middleware(), authMW.Middleware())
	plantAPI.NewHandler(svc.Plants, log, mws.GetAllAndClear()).SetupRoutes(API)

	mws.Add(metricsMW.Middleware(), loggerMW.Middleware(), authMW.Middleware())
	locationAPI.NewHandler(svc.Locations, log, mws.GetAllAndClear()).SetupRoutes(API)

	mux.Handle(presence.Path, presence.NewHandler(opts.PresenceInterval, reg, log))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return mux
}
