package monitor

type MetricTag string

const (
	HttpRequestDurationTag MetricTag = "requests_duration_seconds"
	// Routing:
	RouteResolutionsCounterTag   MetricTag = "route_resolutions_total"
	RouteRegistrationsCounterTag MetricTag = "route_registrations_total"
	RoutedTenantsGaugeTag        MetricTag = "routed_tenants"
	// Guards and caches:
	GuardAcquisitionsCounterTag MetricTag = "guard_acquisitions_total"
	RevocationChecksCounterTag  MetricTag = "revocation_checks_total"
	// Events:
	EventsConsumedCounterTag     MetricTag = "events_consumed_total"
	EventsDeadLetteredCounterTag MetricTag = "events_dead_lettered_total"
	EventHandlingDurationTag     MetricTag = "event_handling_duration_seconds"
	// Provisioning:
	ProvisioningTransitionsCounterTag MetricTag = "status_transitions_total"
	// Databases:
	DBQueryDurationTag MetricTag = "query_duration_seconds"
)

func (m MetricTag) ListAll() []MetricTag {
	return []MetricTag{
		HttpRequestDurationTag,
		RouteResolutionsCounterTag,
		RouteRegistrationsCounterTag,
		RoutedTenantsGaugeTag,
		GuardAcquisitionsCounterTag,
		RevocationChecksCounterTag,
		EventsConsumedCounterTag,
		EventsDeadLetteredCounterTag,
		EventHandlingDurationTag,
		ProvisioningTransitionsCounterTag,
		DBQueryDurationTag,
	}
}
