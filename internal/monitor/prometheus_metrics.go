package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "tenant_core"

// prometheusMetrics holds the collectors of one registry. Collectors are built per client so independent clients
// (and tests) never share counters.
type prometheusMetrics struct {
	summaryVecs map[MetricTag]*prometheus.SummaryVec
	counterVecs map[MetricTag]*prometheus.CounterVec
	gaugeVecs   map[MetricTag]*prometheus.GaugeVec
}

func newPrometheusMetrics(opts MetricOptions) *prometheusMetrics {
	constLabels := prometheus.Labels(opts.constLabels())

	counterVec := func(subsystem string, tag MetricTag, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: subsystem, Name: string(tag), Help: help, ConstLabels: constLabels,
		}, labels)
	}
	summaryVec := func(subsystem string, tag MetricTag, help string, labels ...string) *prometheus.SummaryVec {
		return prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Namespace: metricsNamespace, Subsystem: subsystem, Name: string(tag), Help: help, ConstLabels: constLabels,
		}, labels)
	}

	gaugeVec := func(subsystem string, tag MetricTag, help string, labels ...string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: subsystem, Name: string(tag), Help: help, ConstLabels: constLabels,
		}, labels)
	}

	return &prometheusMetrics{
		summaryVecs: map[MetricTag]*prometheus.SummaryVec{
			HttpRequestDurationTag:   summaryVec("http", HttpRequestDurationTag, "HTTP requests durations, sliding window = 10m", "status", "route", "method"),
			EventHandlingDurationTag: summaryVec("events", EventHandlingDurationTag, "Duration of event handler executions", "topic", "handler", "status"),
			DBQueryDurationTag:       summaryVec("db", DBQueryDurationTag, "Duration of the queries run on tenant databases", "query_type", "status", "realm"),
		},
		counterVecs: map[MetricTag]*prometheus.CounterVec{
			RouteResolutionsCounterTag:        counterVec("router", RouteResolutionsCounterTag, "Data source resolutions by outcome", "outcome"),
			RouteRegistrationsCounterTag:      counterVec("router", RouteRegistrationsCounterTag, "Route registrations and removals", "outcome"),
			GuardAcquisitionsCounterTag:       counterVec("idempotency", GuardAcquisitionsCounterTag, "Idempotency guard acquisition attempts by outcome", "outcome"),
			RevocationChecksCounterTag:        counterVec("revocation", RevocationChecksCounterTag, "Token revocation checks", "revoked"),
			EventsConsumedCounterTag:          counterVec("events", EventsConsumedCounterTag, "Events handled by outcome", "topic", "handler", "status"),
			EventsDeadLetteredCounterTag:      counterVec("events", EventsDeadLetteredCounterTag, "Events sent to a dead letter topic", "topic", "handler", "status"),
			ProvisioningTransitionsCounterTag: counterVec("provisioning", ProvisioningTransitionsCounterTag, "Tenant resource status transitions", "from", "to"),
		},
		gaugeVecs: map[MetricTag]*prometheus.GaugeVec{
			RoutedTenantsGaugeTag: gaugeVec("router", RoutedTenantsGaugeTag, "Tenants with a registered data source"),
		},
	}
}

func (p *prometheusMetrics) collector(tag MetricTag) (prometheus.Collector, bool) {
	if summaryVec, ok := p.summaryVecs[tag]; ok {
		return summaryVec, true
	}
	if counterVec, ok := p.counterVecs[tag]; ok {
		return counterVec, true
	}
	if gaugeVec, ok := p.gaugeVecs[tag]; ok {
		return gaugeVec, true
	}
	return nil, false
}
