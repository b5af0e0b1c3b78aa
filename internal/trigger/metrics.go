package trigger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricNamespace = "mergekeeper"

const resultLabel = "result"

type resultLabelVal string

const (
	resultLabelAccepted    resultLabelVal = "accepted"
	resultLabelIgnored     resultLabelVal = "ignored"
	resultLabelInvalid     resultLabelVal = "invalid"
	resultLabelLookupError resultLabelVal = "lookup_error"
	resultLabelDropped     resultLabelVal = "dropped"
)

type metricCollector struct {
	events *prometheus.CounterVec
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		events: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      "trigger_events_total",
				Help:      "count of received tracker events",
			},
			[]string{resultLabel},
		),
	}
}

func (m *metricCollector) eventProcessed(result resultLabelVal) {
	m.events.WithLabelValues(string(result)).Inc()
}
