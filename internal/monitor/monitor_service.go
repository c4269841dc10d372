package monitor

import (
	"errors"
	"net/http"
	"time"
)

type MonitorServiceInterface interface {
	Start(opts MetricOptions) error
	GetMetricType() (MetricType, error)
	GetMetricHttpHandler() (http.Handler, error)
	MonitorHttpRequestDuration(duration time.Duration, labels HTTPRequestLabels) error
	MonitorCounters(tag MetricTag, labels map[string]string) error
	MonitorDuration(duration time.Duration, tag MetricTag, labels map[string]string) error
	MonitorGauge(tag MetricTag, labels map[string]string, value float64) error
}

var _ MonitorServiceInterface = (*MonitorService)(nil)

// MonitorService forwards to the client created by Start. Until then every call fails with
// errClientNotInitialized, which callers log at debug level.
type MonitorService struct {
	MonitorClient MonitorClient
}

var errClientNotInitialized = errors.New("client was not initialized")

func (m *MonitorService) Start(opts MetricOptions) error {
	if m.MonitorClient != nil {
		return errors.New("service already initialized")
	}

	monitorClient, err := GetClient(opts)
	if err != nil {
		return errors.Join(errors.New("creating monitor client"), err)
	}

	m.MonitorClient = monitorClient
	return nil
}

func (m *MonitorService) client() (MonitorClient, error) {
	if m.MonitorClient == nil {
		return nil, errClientNotInitialized
	}
	return m.MonitorClient, nil
}

func (m *MonitorService) GetMetricType() (MetricType, error) {
	client, err := m.client()
	if err != nil {
		return "", err
	}
	return client.GetMetricType(), nil
}

func (m *MonitorService) GetMetricHttpHandler() (http.Handler, error) {
	client, err := m.client()
	if err != nil {
		return nil, err
	}
	return client.GetMetricHttpHandler(), nil
}

func (m *MonitorService) MonitorHttpRequestDuration(duration time.Duration, labels HTTPRequestLabels) error {
	client, err := m.client()
	if err == nil {
		client.MonitorHttpRequestDuration(duration, labels)
	}
	return err
}

func (m *MonitorService) MonitorCounters(tag MetricTag, labels map[string]string) error {
	client, err := m.client()
	if err == nil {
		client.MonitorCounters(tag, labels)
	}
	return err
}

func (m *MonitorService) MonitorDuration(duration time.Duration, tag MetricTag, labels map[string]string) error {
	client, err := m.client()
	if err == nil {
		client.MonitorDuration(duration, tag, labels)
	}
	return err
}

func (m *MonitorService) MonitorGauge(tag MetricTag, labels map[string]string, value float64) error {
	client, err := m.client()
	if err == nil {
		client.MonitorGauge(tag, labels, value)
	}
	return err
}
