package monitor

import (
	"net/http"
	"time"
)

// MonitorClient is a metrics backend. Unknown tags are logged and dropped rather than returned as errors, a metric
// must never fail the operation it measures.
type MonitorClient interface {
	GetMetricHttpHandler() http.Handler
	GetMetricType() MetricType
	MonitorHttpRequestDuration(duration time.Duration, labels HTTPRequestLabels)
	MonitorCounters(tag MetricTag, labels map[string]string)
	MonitorDuration(duration time.Duration, tag MetricTag, labels map[string]string)
	MonitorGauge(tag MetricTag, labels map[string]string, value float64)
}
