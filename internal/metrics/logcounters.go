package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/liamcoop/formrules/internal/logger"
)

// RegisterLogCounters exposes the logger's warning, error and HTTP status
// counters as Prometheus counters. Registering twice is not an error.
func RegisterLogCounters(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	counters := []struct {
		name, help string
		value      *atomic.Int64
	}{
		{"formrules_log_errors_total", "Number of error records logged, before sampling.", &logger.TotalErrors},
		{"formrules_log_warnings_total", "Number of warning records logged, before sampling.", &logger.TotalWarnings},
		{"formrules_http_5xx_responses_total", "Number of HTTP responses with a 5xx status.", &logger.Total5xxErrors},
		{"formrules_http_4xx_responses_total", "Number of HTTP responses with a 4xx status.", &logger.Total4xxErrors},
	}

	for _, c := range counters {
		value := c.value
		if _, err := register(reg, prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: c.name,
			Help: c.help,
		}, func() float64 { return float64(value.Load()) })); err != nil {
			return err
		}
	}
	return nil
}
