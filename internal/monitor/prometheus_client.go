package monitor

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stellar/go-stellar-sdk/support/log"
)

type prometheusClient struct {
	httpHandler http.Handler
	metrics     *prometheusMetrics
}

func (prometheusClient) GetMetricType() MetricType {
	return MetricTypePrometheus
}

func (p *prometheusClient) GetMetricHttpHandler() http.Handler {
	return p.httpHandler
}

func (p *prometheusClient) MonitorHttpRequestDuration(duration time.Duration, labels HTTPRequestLabels) {
	p.MonitorDuration(duration, HttpRequestDurationTag, labels.ToMap())
}

func (p *prometheusClient) MonitorDuration(duration time.Duration, tag MetricTag, labels map[string]string) {
	summaryVec, ok := p.metrics.summaryVecs[tag]
	if !ok {
		log.Errorf("metric not registered in Prometheus summary metrics: %s", tag)
		return
	}
	summaryVec.With(labels).Observe(duration.Seconds())
}

func (p *prometheusClient) MonitorCounters(tag MetricTag, labels map[string]string) {
	counterVec, ok := p.metrics.counterVecs[tag]
	if !ok {
		log.Errorf("metric not registered in Prometheus counter metrics: %s", tag)
		return
	}
	counterVec.With(labels).Inc()
}

func (p *prometheusClient) MonitorGauge(tag MetricTag, labels map[string]string, value float64) {
	gaugeVec, ok := p.metrics.gaugeVecs[tag]
	if !ok {
		log.Errorf("metric not registered in Prometheus gauge metrics: %s", tag)
		return
	}
	gaugeVec.With(labels).Set(value)
}

func NewPrometheusClient(opts MetricOptions) (*prometheusClient, error) {
	metricsRegistry := prometheus.NewRegistry()
	metrics := newPrometheusMetrics(opts)

	var metricTag MetricTag
	for _, tag := range metricTag.ListAll() {
		collector, ok := metrics.collector(tag)
		if !ok {
			return nil, fmt.Errorf("metric not registered in prometheus metrics: %s", tag)
		}
		metricsRegistry.MustRegister(collector)
	}

	return &prometheusClient{
		httpHandler: promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}),
		metrics:     metrics,
	}, nil
}

var _ MonitorClient = (*prometheusClient)(nil)
