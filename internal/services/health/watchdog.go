package health

import (
	"context"
	"sync"
	"time"

	"github.com/satyarajmoily/market-predictor/internal/metrics"
	"github.com/satyarajmoily/market-predictor/internal/system"
	"github.com/satyarajmoily/market-predictor/pkg/logger"
)

var _ system.Service = (*Watchdog)(nil)

// Watchdog periodically re-evaluates the overall status so grace-period
// expiry and recovery transitions surface promptly even without traffic, and
// mirrors the status into a gauge for the scrape pipeline.
type Watchdog struct {
	service  *Service
	registry *metrics.Registry
	interval time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewWatchdog creates a watchdog evaluating every interval.
func NewWatchdog(service *Service, registry *metrics.Registry, interval time.Duration, log *logger.Logger) *Watchdog {
	if log == nil {
		log = logger.NewDefault("health-watchdog")
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Watchdog{
		service:  service,
		registry: registry,
		interval: interval,
		log:      log,
	}
}

func (w *Watchdog) Name() string { return "health-watchdog" }

func (w *Watchdog) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.evaluate()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				w.evaluate()
			}
		}
	}()

	w.log.Info("health watchdog started")
	return nil
}

func (w *Watchdog) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.log.Info("health watchdog stopped")
	return nil
}

func (w *Watchdog) evaluate() {
	overall := w.service.Overall()
	if w.registry != nil {
		w.registry.SetGauge(metrics.MetricHealthStateGauge, nil, stateValue(overall))
	}
}

func stateValue(overall OverallStatus) float64 {
	switch overall {
	case OverallHealthy:
		return 1
	case OverallDegraded:
		return 2
	case OverallUnhealthy:
		return 3
	}
	return 0
}
