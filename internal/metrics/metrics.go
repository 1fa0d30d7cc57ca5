// Package metrics defines the Prometheus collectors for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	domainerrors "github.com/mmynk/giftwiser/internal/errors"
	"github.com/mmynk/giftwiser/internal/resilience"
)

const namespace = "giftwiser"

// Metrics holds every engine collector. A nil *Metrics records nothing.
type Metrics struct {
	operations   *prometheus.CounterVec
	assignments  *prometheus.CounterVec
	retries      *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
}

// Ensure Metrics can observe guards
var _ resilience.Observer = (*Metrics)(nil)

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Engine operations by name and result code.",
		}, []string{"operation", "code"}),
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_made_total",
			Help:      "Random assignments written, by kind.",
		}, []string{"kind"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dependency_retries_total",
			Help:      "Retries of dependency calls, by dependency and failure category.",
		}, []string{"dependency", "category"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_open",
			Help:      "1 when the dependency's circuit breaker is open or half-open, 0 when closed.",
		}, []string{"dependency"}),
	}
	reg.MustRegister(m.operations, m.assignments, m.retries, m.breakerState)
	return m
}

// ObserveOperation counts an operation outcome. Successful calls are recorded as "OK".
func (m *Metrics) ObserveOperation(operation string, err error) {
	if m == nil {
		return
	}
	code := "OK"
	if err != nil {
		code = string(domainerrors.CodeOf(err))
	}
	m.operations.WithLabelValues(operation, code).Inc()
}

// AddAssignments counts assignments written by an assignment run.
func (m *Metrics) AddAssignments(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.assignments.WithLabelValues(kind).Add(float64(n))
}

// Retried implements resilience.Observer.
func (m *Metrics) Retried(dependency string, category resilience.Category) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(dependency, string(category)).Inc()
}

// StateChanged implements resilience.Observer.
func (m *Metrics) StateChanged(dependency string, _, to resilience.State) {
	if m == nil {
		return
	}
	v := 1.0
	if to == resilience.StateClosed {
		v = 0
	}
	m.breakerState.WithLabelValues(dependency).Set(v)
}
