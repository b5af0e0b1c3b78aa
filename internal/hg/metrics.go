package hg

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricNamespace = "mergekeeper"

const (
	subcommandLabel = "subcommand"
	resultLabel     = "result"
)

type resultLabelVal string

const (
	resultLabelSuccess resultLabelVal = "success"
	resultLabelFailure resultLabelVal = "failure"
	resultLabelError   resultLabelVal = "error"
)

type metricCollector struct {
	commands *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		commands: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      "hg_commands_total",
				Help:      "count of executed hg commands",
			},
			[]string{subcommandLabel, resultLabel},
		),
		duration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricNamespace,
				Name:      "hg_command_duration_seconds",
				Help:      "execution duration of hg commands",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{subcommandLabel},
		),
	}
}

func (m *metricCollector) commandFinished(subcommand string, result resultLabelVal, d time.Duration) {
	m.commands.WithLabelValues(subcommand, string(result)).Inc()
	m.duration.WithLabelValues(subcommand).Observe(d.Seconds())
}

// Collectors returns the prometheus collectors of the package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{metrics.commands, metrics.duration}
}
