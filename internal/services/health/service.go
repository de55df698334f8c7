// Package health aggregates per-component liveness signals into the single
// externally observable service status driving /health and /status.
package health

import (
	"sync"
	"time"

	"github.com/satyarajmoily/market-predictor/pkg/logger"
)

// ComponentStatus is a per-subsystem health signal.
type ComponentStatus string

const (
	StatusOK       ComponentStatus = "ok"
	StatusDegraded ComponentStatus = "degraded"
	StatusFailed   ComponentStatus = "failed"
	// StatusPending marks a registered component that has not reported yet.
	// It only appears in snapshots, never in reports.
	StatusPending ComponentStatus = "pending"
)

// OverallStatus is the aggregated service status.
type OverallStatus string

const (
	OverallStarting  OverallStatus = "starting"
	OverallHealthy   OverallStatus = "healthy"
	OverallDegraded  OverallStatus = "degraded"
	OverallUnhealthy OverallStatus = "unhealthy"
)

// ComponentState is a point-in-time view of one component.
type ComponentState struct {
	Status       ComponentStatus `json:"status"`
	Detail       string          `json:"detail,omitempty"`
	LastReportAt *time.Time      `json:"last_report_at,omitempty"`
}

// Snapshot is the full status document served by /status.
type Snapshot struct {
	Overall          OverallStatus             `json:"status"`
	Components       map[string]ComponentState `json:"components"`
	UptimeSeconds    float64                   `json:"uptime_seconds"`
	LastTransitionAt time.Time                 `json:"last_transition_at"`
	Timestamp        time.Time                 `json:"timestamp"`
}

type componentRecord struct {
	status     ComponentStatus
	detail     string
	reported   bool
	lastReport time.Time
}

// Service tracks component reports and derives the overall status. Overall
// is a pure function of the current component states: any failed component
// makes the service unhealthy, else any degraded one makes it degraded. The
// service stays in starting until every registered component has reported
// once; a component silent past the grace period counts as failed.
type Service struct {
	mu             sync.Mutex
	log            *logger.Logger
	now            func() time.Time
	grace          time.Duration
	startedAt      time.Time
	components     map[string]*componentRecord
	lastOverall    OverallStatus
	lastTransition time.Time
}

// NewService creates a monitor with the given silent-component grace period.
func NewService(grace time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("health")
	}
	if grace <= 0 {
		grace = 30 * time.Second
	}
	now := time.Now()
	return &Service{
		log:            log,
		now:            time.Now,
		grace:          grace,
		startedAt:      now,
		components:     make(map[string]*componentRecord),
		lastOverall:    OverallStarting,
		lastTransition: now,
	}
}

// Register declares a required component. The service will not leave the
// starting state until it reports, and treats it as failed if it stays
// silent past the grace period.
func (s *Service) Register(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.components[name]; !exists {
		s.components[name] = &componentRecord{status: StatusPending}
	}
}

// Report records a component signal. Unknown components are registered
// implicitly.
func (s *Service) Report(name string, status ComponentStatus, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.components[name]
	if !exists {
		rec = &componentRecord{}
		s.components[name] = rec
	}
	rec.status = status
	rec.detail = detail
	rec.reported = true
	rec.lastReport = s.now()

	s.transitionLocked()
}

// Overall recomputes and returns the aggregated status.
func (s *Service) Overall() OverallStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked()
}

// Healthy reports whether the service should answer /health with 200.
func (s *Service) Healthy() bool {
	overall := s.Overall()
	return overall == OverallHealthy || overall == OverallDegraded
}

// Snapshot returns the full status document. It never fails; that is the
// point of a status endpoint.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	overall := s.transitionLocked()
	components := make(map[string]ComponentState, len(s.components))
	for name, rec := range s.components {
		state := ComponentState{Status: rec.status, Detail: rec.detail}
		if rec.reported {
			t := rec.lastReport
			state.LastReportAt = &t
		} else if now.Sub(s.startedAt) > s.grace {
			state.Status = StatusFailed
			state.Detail = "no report received within grace period"
		}
		components[name] = state
	}

	return Snapshot{
		Overall:          overall,
		Components:       components,
		UptimeSeconds:    now.Sub(s.startedAt).Seconds(),
		LastTransitionAt: s.lastTransition,
		Timestamp:        now,
	}
}

// transitionLocked computes the overall status and records transitions.
func (s *Service) transitionLocked() OverallStatus {
	now := s.now()
	overall := s.computeLocked(now)
	if overall != s.lastOverall {
		s.log.WithField("from", string(s.lastOverall)).
			WithField("to", string(overall)).
			Info("health status transition")
		s.lastOverall = overall
		s.lastTransition = now
	}
	return overall
}

func (s *Service) computeLocked(now time.Time) OverallStatus {
	anyDegraded := false
	anyPendingInGrace := false
	for _, rec := range s.components {
		if !rec.reported {
			if now.Sub(s.startedAt) > s.grace {
				return OverallUnhealthy
			}
			anyPendingInGrace = true
			continue
		}
		switch rec.status {
		case StatusFailed:
			return OverallUnhealthy
		case StatusDegraded:
			anyDegraded = true
		}
	}
	if anyPendingInGrace {
		return OverallStarting
	}
	if anyDegraded {
		return OverallDegraded
	}
	return OverallHealthy
}
