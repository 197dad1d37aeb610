// Package metrics exposes Prometheus counters for registry, directory and
// ledger activity.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sakif/resumiro/internal/apperror"
	"github.com/sakif/resumiro/internal/model"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing,
// so components built without metrics need no special casing.
type Metrics struct {
	Registry *prometheus.Registry

	Transitions     *prometheus.CounterVec
	Failures        *prometheus.CounterVec
	MutationLatency *prometheus.HistogramVec
	ForwardFailures prometheus.Counter
}

// New registers every collector on a fresh registry, so tests can build as
// many instances as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "resumiro_state_transitions_total",
			Help: "Committed state transitions by event kind",
		}, []string{"kind"}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "resumiro_mutation_failures_total",
			Help: "Rejected or failed mutations by operation and error kind",
		}, []string{"op", "reason"}),
		MutationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "resumiro_mutation_duration_seconds",
			Help:    "Duration of mutating operations, checks included",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}, []string{"op"}),
		ForwardFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "resumiro_event_forward_failures_total",
			Help: "Audit events that could not be forwarded to the redis stream",
		}),
	}
}

// IncTransition counts one committed event.
func (m *Metrics) IncTransition(kind model.EventKind) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(string(kind)).Inc()
}

// ObserveMutation records how long op took and, when err is non-nil, why it
// failed. Call with time.Now() taken before the operation.
func (m *Metrics) ObserveMutation(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.MutationLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		m.Failures.WithLabelValues(op, Reason(err)).Inc()
	}
}

// IncForwardFailure counts an event the stream forwarder dropped.
func (m *Metrics) IncForwardFailure() {
	if m == nil {
		return
	}
	m.ForwardFailures.Inc()
}

var reasons = []struct {
	kind  error
	label string
}{
	{apperror.ErrUnauthorized, "unauthorized"},
	{apperror.ErrNotSelf, "not_self"},
	{apperror.ErrNotOwned, "not_owned"},
	{apperror.ErrNotCreator, "not_creator"},
	{apperror.ErrNotRecruiter, "not_recruiter"},
	{apperror.ErrNotVerifier, "not_verifier"},
	{apperror.ErrNotPending, "not_pending"},
	{apperror.ErrNotFound, "not_found"},
	{apperror.ErrAlreadyExists, "already_exists"},
	{apperror.ErrValidation, "validation"},
}

// Reason maps err to a bounded label value. Anything that is not a domain
// kind is "internal".
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.kind) {
			return r.label
		}
	}
	return "internal"
}
