package monitor

import (
	"fmt"
	"strings"
)

type MetricType string

const MetricTypePrometheus MetricType = "PROMETHEUS"

func ParseMetricType(metricTypeStr string) (MetricType, error) {
	switch mType := MetricType(strings.ToUpper(strings.TrimSpace(metricTypeStr))); mType {
	case MetricTypePrometheus:
		return mType, nil
	default:
		return "", fmt.Errorf("invalid metric type %q", mType)
	}
}

// MetricOptions configure the client. Environment and ServiceName become constant labels of every metric when set,
// so several control plane deployments can share a Prometheus.
type MetricOptions struct {
	MetricType  MetricType
	Environment string
	ServiceName string
}

func (o MetricOptions) constLabels() map[string]string {
	labels := map[string]string{}
	if o.Environment != "" {
		labels["environment"] = o.Environment
	}
	if o.ServiceName != "" {
		labels["service"] = o.ServiceName
	}
	return labels
}

func GetClient(opts MetricOptions) (MonitorClient, error) {
	switch opts.MetricType {
	case MetricTypePrometheus:
		return NewPrometheusClient(opts)
	default:
		return nil, fmt.Errorf("unknown metric type: %q", opts.MetricType)
	}
}
