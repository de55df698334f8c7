// Package sysprobe samples process resource usage for the status document
// and the runtime gauges.
package sysprobe

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/satyarajmoily/market-predictor/internal/metrics"
	"github.com/satyarajmoily/market-predictor/internal/system"
	"github.com/satyarajmoily/market-predictor/pkg/logger"
)

var _ system.Service = (*Probe)(nil)

// Usage is a point-in-time resource snapshot.
type Usage struct {
	MemoryMB   float64 `json:"memory_mb"`
	CPUPercent float64 `json:"cpu_percent"`
	Goroutines int     `json:"goroutines"`
}

// Probe periodically samples the running process via gopsutil.
type Probe struct {
	registry *metrics.Registry
	interval time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	usage   Usage
	sampled bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewProbe creates a probe sampling every interval.
func NewProbe(registry *metrics.Registry, interval time.Duration, log *logger.Logger) *Probe {
	if log == nil {
		log = logger.NewDefault("sysprobe")
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Probe{registry: registry, interval: interval, log: log}
}

func (p *Probe) Name() string { return "sysprobe" }

func (p *Probe) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.sample()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				p.sample()
			}
		}
	}()

	return nil
}

func (p *Probe) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Usage returns the latest sample; ok is false before the first one lands.
func (p *Probe) Usage() (Usage, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.usage, p.sampled
}

func (p *Probe) sample() {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		p.log.WithError(err).Debug("process handle unavailable")
		return
	}

	usage := Usage{Goroutines: runtime.NumGoroutine()}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		usage.MemoryMB = float64(mem.RSS) / (1024 * 1024)
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		usage.CPUPercent = cpu
	}

	p.mu.Lock()
	p.usage = usage
	p.sampled = true
	p.mu.Unlock()

	if p.registry != nil {
		p.registry.SetGauge("process_memory_mb", nil, usage.MemoryMB)
		p.registry.SetGauge("process_cpu_percent", nil, usage.CPUPercent)
		p.registry.SetGauge("process_goroutines", nil, float64(usage.Goroutines))
	}
}
