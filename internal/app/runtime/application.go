// Package runtime wires the serving core together and manages the process
// lifecycle.
package runtime

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/satyarajmoily/market-predictor/internal/api/httpserver"
	"github.com/satyarajmoily/market-predictor/internal/api/httpserver/router"
	"github.com/satyarajmoily/market-predictor/internal/cache"
	"github.com/satyarajmoily/market-predictor/internal/config"
	"github.com/satyarajmoily/market-predictor/internal/metrics"
	"github.com/satyarajmoily/market-predictor/internal/middleware"
	"github.com/satyarajmoily/market-predictor/internal/model"
	"github.com/satyarajmoily/market-predictor/internal/services/health"
	predictionsvc "github.com/satyarajmoily/market-predictor/internal/services/prediction"
	"github.com/satyarajmoily/market-predictor/internal/services/sysprobe"
	"github.com/satyarajmoily/market-predictor/internal/system"
	"github.com/satyarajmoily/market-predictor/pkg/logger"
)

// Application owns every component and the HTTP server.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	manager    *system.Manager
	httpServer *httpserver.Server

	healthSvc     *health.Service
	predictionSvc *predictionsvc.Service
}

// NewApplication builds a fully wired application from the process
// configuration.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewApplicationWithConfig(cfg)
}

// NewApplicationWithConfig wires the application from an explicit config.
// Used by tests.
func NewApplicationWithConfig(cfg *config.Config) (*Application, error) {
	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	}).WithField("service", config.ServiceName)

	registry := metrics.NewRegistry("predictor")
	healthSvc := health.NewService(cfg.HealthGracePeriod(), log.WithField("component", "health"))

	predictionCache := cache.New(cache.Options{
		MaxEntries:     cfg.Cache.MaxEntries,
		ComputeTimeout: cfg.ComputeTimeout(),
		Log:            log.WithField("component", "cache"),
	})

	mdl, err := model.Select(cfg.Model, log.WithField("component", "model"))
	if err != nil {
		return nil, fmt.Errorf("configure model: %w", err)
	}

	predictionSvc := predictionsvc.New(predictionCache, mdl, registry, healthSvc, predictionsvc.Options{
		TTL:           cfg.CacheTTL(),
		MaxDataPoints: cfg.Model.MaxDataPoints,
	}, log.WithField("component", "prediction"))

	probe := sysprobe.NewProbe(registry, cfg.HealthCheckInterval(), log.WithField("component", "sysprobe"))

	manager := system.NewManager()
	services := []system.Service{
		predictionSvc,
		cache.NewSweeper(predictionCache, cfg.Cache.SweepSchedule, log.WithField("component", "cache-sweeper")),
		health.NewWatchdog(healthSvc, registry, cfg.HealthCheckInterval(), log.WithField("component", "health-watchdog")),
		probe,
	}
	for _, svc := range services {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	handler := router.New(router.Options{
		Config:     cfg,
		Log:        log.WithField("component", "router"),
		Registry:   registry,
		Health:     healthSvc,
		Prediction: predictionSvc,
		Probe:      probe,
	})

	interceptors := []middleware.Interceptor{
		middleware.RequestID(),
		middleware.NewCORS([]string{"*"}).Handler,
	}
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log.WithField("component", "ratelimit"))
		interceptors = append(interceptors, limiter.Handler)
	}
	interceptors = append(interceptors, func(next http.Handler) http.Handler {
		return metrics.Instrument(registry, next)
	})

	chained := middleware.Chain(handler, interceptors...)
	httpSrv := httpserver.New(cfg.Server, log.WithField("component", "httpserver"), chained)

	return &Application{
		cfg:           cfg,
		log:           log,
		manager:       manager,
		httpServer:    httpSrv,
		healthSvc:     healthSvc,
		predictionSvc: predictionSvc,
	}, nil
}

// Run starts background services and the HTTP server, blocking until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.manager.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.httpServer.Addr())
		if err := a.httpServer.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown drains the HTTP server and stops background services in reverse
// order.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(a.cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("http server shutdown")
	}
	return a.manager.Stop(shutdownCtx)
}

// Health exposes the monitor for tests and embedding.
func (a *Application) Health() *health.Service { return a.healthSvc }
