package monitor

type HTTPRequestLabels struct {
	Status string
	Route  string
	Method string
}

func (h HTTPRequestLabels) ToMap() map[string]string {
	return map[string]string{
		"status": h.Status,
		"route":  h.Route,
		"method": h.Method,
	}
}

// RouteLabels describe a routing decision. Outcome is one of the RouteOutcome* values.
type RouteLabels struct {
	Outcome string
}

const (
	RouteOutcomeTenant   = "tenant"
	RouteOutcomeDefault  = "default"
	RouteOutcomeNoRoute  = "no_route"
	RouteOutcomeRegister = "register"
	RouteOutcomeRemove   = "deregister"
)

func (r RouteLabels) ToMap() map[string]string {
	return map[string]string{"outcome": r.Outcome}
}

type GuardLabels struct {
	Outcome string
}

const (
	GuardOutcomeAcquired  = "acquired"
	GuardOutcomeContended = "contended"
	GuardOutcomeError     = "error"
)

func (g GuardLabels) ToMap() map[string]string {
	return map[string]string{"outcome": g.Outcome}
}

type RevocationLabels struct {
	Revoked bool
}

func (r RevocationLabels) ToMap() map[string]string {
	if r.Revoked {
		return map[string]string{"revoked": "true"}
	}
	return map[string]string{"revoked": "false"}
}

type EventLabels struct {
	Topic   string
	Handler string
	Status  string
}

const (
	EventStatusSuccess = "success"
	EventStatusError   = "error"
)

func (e EventLabels) ToMap() map[string]string {
	return map[string]string{
		"topic":   e.Topic,
		"handler": e.Handler,
		"status":  e.Status,
	}
}

type TransitionLabels struct {
	From string
	To   string
}

func (t TransitionLabels) ToMap() map[string]string {
	return map[string]string{"from": t.From, "to": t.To}
}

// DBQueryLabels describe a query run on a tenant database. Realm is DBQueryUnscopedRealm for queries run outside a
// tenant context.
type DBQueryLabels struct {
	QueryType string
	Status    string
	Realm     string
}

const (
	DBQueryStatusSuccess = "success"
	DBQueryStatusError   = "error"
	DBQueryUnscopedRealm = "none"
)

func (d DBQueryLabels) ToMap() map[string]string {
	return map[string]string{
		"query_type": d.QueryType,
		"status":     d.Status,
		"realm":      d.Realm,
	}
}
