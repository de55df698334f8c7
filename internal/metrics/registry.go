// Package metrics collects operational counters, histograms and gauges and
// exposes them in the Prometheus text format. Label sets are bounded by
// design: callers only pass values from fixed enumerations (method, path
// template, status class, outcome), never request-scoped identifiers.
package metrics

import (
	"bytes"
	"net/http"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// Registry owns the process-wide collectors. All mutating methods are safe
// for unbounded concurrent callers; the hot path is a prometheus vector
// lookup plus an atomic update.
type Registry struct {
	namespace string
	reg       *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
}

// NewRegistry creates a registry with process and Go runtime collectors
// pre-registered.
func NewRegistry(namespace string) *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return &Registry{
		namespace:  namespace,
		reg:        reg,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}
}

// IncrCounter increments the named counter. The label keys of the first call
// for a name fix that metric's label schema.
func (r *Registry) IncrCounter(name string, labels prometheus.Labels) {
	if labels == nil {
		labels = prometheus.Labels{}
	}
	r.counterVec(name, labelKeys(labels)).With(labels).Inc()
}

// ObserveHistogram records a value in the named histogram.
func (r *Registry) ObserveHistogram(name string, labels prometheus.Labels, value float64) {
	if labels == nil {
		labels = prometheus.Labels{}
	}
	r.histogramVec(name, labelKeys(labels)).With(labels).Observe(value)
}

// SetGauge sets the named gauge to the last observed value.
func (r *Registry) SetGauge(name string, labels prometheus.Labels, value float64) {
	if labels == nil {
		labels = prometheus.Labels{}
	}
	r.gaugeVec(name, labelKeys(labels)).With(labels).Set(value)
}

// AddGauge adds delta to the named gauge. Used for in-flight tracking.
func (r *Registry) AddGauge(name string, labels prometheus.Labels, delta float64) {
	if labels == nil {
		labels = prometheus.Labels{}
	}
	r.gaugeVec(name, labelKeys(labels)).With(labels).Add(delta)
}

// Snapshot renders every registered metric in the text exposition format.
// Writers are never blocked beyond the point-in-time gather.
func (r *Registry) Snapshot() (string, error) {
	families, err := r.reg.Gather()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// Handler returns the HTTP handler serving the exposition endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) counterVec(name string, keys []string) *prometheus.CounterVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.counters[name]; ok {
		return vec
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      name,
		Help:      name,
	}, keys)
	r.reg.MustRegister(vec)
	r.counters[name] = vec
	return vec
}

func (r *Registry) histogramVec(name string, keys []string) *prometheus.HistogramVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.histograms[name]; ok {
		return vec
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Name:      name,
		Help:      name,
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
	}, keys)
	r.reg.MustRegister(vec)
	r.histograms[name] = vec
	return vec
}

func (r *Registry) gaugeVec(name string, keys []string) *prometheus.GaugeVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.gauges[name]; ok {
		return vec
	}
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: r.namespace,
		Name:      name,
		Help:      name,
	}, keys)
	r.reg.MustRegister(vec)
	r.gauges[name] = vec
	return vec
}

func labelKeys(labels prometheus.Labels) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
