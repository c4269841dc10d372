package httphandler

import (
	"context"
	"net/http"
	"strings"

	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"
	"golang.org/x/sync/errgroup"

	"github.com/stellar/stellar-tenant-control-plane/db"
	"github.com/stellar/stellar-tenant-control-plane/internal/events"
)

type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
)

// HealthResponse is the body of GET /health, shaped after the IETF draft "Health Check Response Format for HTTP
// APIs" (draft-inadarei-api-health-check-06).
type HealthResponse struct {
	Status    Status            `json:"status"`
	Version   string            `json:"version,omitempty"`
	ServiceID string            `json:"service_id,omitempty"`
	ReleaseID string            `json:"release_id,omitempty"`
	Services  map[string]Status `json:"services,omitempty"`
}

// HealthHandler pings the registry database and, unless it's in memory, the event broker. Any failed dependency
// turns the response into a 503 so orchestrators stop routing traffic to the instance.
type HealthHandler struct {
	Version          string
	ServiceID        string
	ReleaseID        string
	DBConnectionPool db.DBConnectionPool
	Producer         events.Producer
}

type dependency struct {
	name string
	ping func(context.Context) error
}

func (h HealthHandler) dependencies() []dependency {
	deps := []dependency{{name: "database", ping: h.DBConnectionPool.Ping}}
	if h.Producer != nil && h.Producer.BrokerType() != events.InMemoryEventBrokerType {
		deps = append(deps, dependency{name: strings.ToLower(string(h.Producer.BrokerType())), ping: h.Producer.Ping})
	}
	return deps
}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deps := h.dependencies()

	statuses := make([]Status, len(deps))
	var g errgroup.Group
	for i, dep := range deps {
		g.Go(func() error {
			statuses[i] = StatusPass
			if err := dep.ping(ctx); err != nil {
				log.Ctx(ctx).Warnf("health check of %s failed: %v", dep.name, err)
				statuses[i] = StatusFail
			}
			return nil
		})
	}
	_ = g.Wait()

	response := HealthResponse{
		Status:    StatusPass,
		Version:   h.Version,
		ServiceID: h.ServiceID,
		ReleaseID: h.ReleaseID,
		Services:  make(map[string]Status, len(deps)),
	}
	for i, dep := range deps {
		response.Services[dep.name] = statuses[i]
		if statuses[i] == StatusFail {
			response.Status = StatusFail
		}
	}

	statusCode := http.StatusOK
	if response.Status == StatusFail {
		statusCode = http.StatusServiceUnavailable
	}
	httpjson.RenderStatus(w, statusCode, response, httpjson.JSON)
}
