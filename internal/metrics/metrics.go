// Package metrics exposes evaluation and oracle telemetry to Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Evaluation kinds
const (
	KindFields      = "fields"
	KindDocuments   = "documents"
	KindConstraints = "constraints"
	KindExpression  = "expression"
)

// Collector receives telemetry from the HTTP service. Calls are made inline
// with request handling and must be cheap.
type Collector interface {
	ObserveEvaluation(kind string, d time.Duration)
	ObserveCascade(passes int, converged bool)
	ObserveOracleCall(result bool, err error, d time.Duration)
}

type noopCollector struct{}

// Noop returns a collector that discards everything
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) ObserveEvaluation(string, time.Duration)      {}
func (noopCollector) ObserveCascade(int, bool)                     {}
func (noopCollector) ObserveOracleCall(bool, error, time.Duration) {}

// PrometheusCollector records telemetry as Prometheus metrics
type PrometheusCollector struct {
	evaluations  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	passes       prometheus.Histogram
	notConverged prometheus.Counter
	oracleCalls  *prometheus.CounterVec
	oracleTime   prometheus.Histogram
}

// NewPrometheusCollector registers the metrics with reg, or the default
// registerer when reg is nil. Registering twice reuses the existing metrics.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	var (
		p   PrometheusCollector
		err error
	)

	if p.evaluations, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "formrules_evaluations_total",
		Help: "Number of evaluations served, by kind.",
	}, []string{"kind"})); err != nil {
		return nil, err
	}

	if p.latency, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "formrules_evaluation_duration_seconds",
		Help:    "Time spent evaluating, by kind.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"kind"})); err != nil {
		return nil, err
	}

	if p.passes, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "formrules_cascade_passes",
		Help:    "Number of cascade passes per field evaluation.",
		Buckets: prometheus.LinearBuckets(1, 1, 10),
	})); err != nil {
		return nil, err
	}

	if p.notConverged, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "formrules_cascade_not_converged_total",
		Help: "Number of field evaluations that hit the pass bound before settling.",
	})); err != nil {
		return nil, err
	}

	if p.oracleCalls, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "formrules_oracle_calls_total",
		Help: "Number of SQL conditions sent to the oracle, by outcome.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}

	if p.oracleTime, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "formrules_oracle_duration_seconds",
		Help:    "Oracle call latency.",
		Buckets: prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}

	return &p, nil
}

// register registers c, returning the already registered collector of the
// same type when there is one
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

func (p *PrometheusCollector) ObserveEvaluation(kind string, d time.Duration) {
	if p == nil {
		return
	}
	p.evaluations.WithLabelValues(kind).Inc()
	p.latency.WithLabelValues(kind).Observe(d.Seconds())
}

func (p *PrometheusCollector) ObserveCascade(passes int, converged bool) {
	if p == nil {
		return
	}
	p.passes.Observe(float64(passes))
	if !converged {
		p.notConverged.Inc()
	}
}

// ObserveOracleCall records one oracle answer; outcome is "true", "false" or "error"
func (p *PrometheusCollector) ObserveOracleCall(result bool, err error, d time.Duration) {
	if p == nil {
		return
	}
	outcome := "false"
	switch {
	case err != nil:
		outcome = "error"
	case result:
		outcome = "true"
	}
	p.oracleCalls.WithLabelValues(outcome).Inc()
	p.oracleTime.Observe(d.Seconds())
}
