package monitor

import (
	"net/http"
	"time"
)

// NoopMonitorService records nothing. It's used where metrics are optional.
type NoopMonitorService struct{}

var _ MonitorServiceInterface = NoopMonitorService{}

func (NoopMonitorService) Start(MetricOptions) error          { return nil }
func (NoopMonitorService) GetMetricType() (MetricType, error) { return "", errClientNotInitialized }
func (NoopMonitorService) GetMetricHttpHandler() (http.Handler, error) {
	return nil, errClientNotInitialized
}
func (NoopMonitorService) MonitorHttpRequestDuration(time.Duration, HTTPRequestLabels) error {
	return nil
}
func (NoopMonitorService) MonitorCounters(MetricTag, map[string]string) error { return nil }
func (NoopMonitorService) MonitorDuration(time.Duration, MetricTag, map[string]string) error {
	return nil
}
func (NoopMonitorService) MonitorGauge(MetricTag, map[string]string, float64) error { return nil }
