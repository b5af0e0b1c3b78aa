package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricNamespace = "mergekeeper"

const resultLabel = "result"

type resultLabelVal string

const (
	resultLabelMerged            resultLabelVal = "merged"
	resultLabelAlreadyIntegrated resultLabelVal = "already_integrated"
	resultLabelMissing           resultLabelVal = "missing"
	resultLabelFailure           resultLabelVal = "failure"
)

type metricCollector struct {
	upmergeSteps   *prometheus.CounterVec
	gatekeeperRuns *prometheus.CounterVec
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		upmergeSteps: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      "upmerge_steps_total",
				Help:      "count of release branch slots processed by the upmerge walk",
			},
			[]string{resultLabel},
		),
		gatekeeperRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      "gatekeeper_runs_total",
				Help:      "count of gatekeeper executions",
			},
			[]string{resultLabel},
		),
	}
}

func (m *metricCollector) upmergeStep(result resultLabelVal) {
	m.upmergeSteps.WithLabelValues(string(result)).Inc()
}

func (m *metricCollector) gatekeeperRun(result resultLabelVal) {
	m.gatekeeperRuns.WithLabelValues(string(result)).Inc()
}

// Collectors returns the prometheus collectors of the package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{metrics.upmergeSteps, metrics.gatekeeperRuns}
}
