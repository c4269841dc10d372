package serve

import (
	"fmt"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	supporthttp "github.com/stellar/go-stellar-sdk/support/http"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/stellar/stellar-tenant-control-plane/db"
	"github.com/stellar/stellar-tenant-control-plane/internal/cache"
	"github.com/stellar/stellar-tenant-control-plane/internal/crashtracker"
	"github.com/stellar/stellar-tenant-control-plane/internal/events"
	"github.com/stellar/stellar-tenant-control-plane/internal/monitor"
	"github.com/stellar/stellar-tenant-control-plane/internal/provisioning"
	"github.com/stellar/stellar-tenant-control-plane/internal/revocation"
	"github.com/stellar/stellar-tenant-control-plane/internal/serve/httperror"
	"github.com/stellar/stellar-tenant-control-plane/internal/serve/httphandler"
	"github.com/stellar/stellar-tenant-control-plane/internal/serve/middleware"
	"github.com/stellar/stellar-tenant-control-plane/pkg/tenant"
)

const (
	ServiceID = "serve"

	adminRequestLimit  = 60
	adminRequestWindow = time.Minute
)

type HTTPServerInterface interface {
	Run(conf supporthttp.Config)
}

type HTTPServer struct{}

func (h *HTTPServer) Run(conf supporthttp.Config) {
	supporthttp.Run(conf)
}

type ServeOptions struct {
	Environment        string
	GitCommit          string
	Port               int
	Version            string
	CorsAllowedOrigins []string
	AdminAccount       string
	AdminAPIKey        string

	MonitorService      monitor.MonitorServiceInterface
	CrashTrackerClient  crashtracker.CrashTrackerClient
	AdminDBPool         db.DBConnectionPool
	Router              *tenant.ConnectionRouter
	TenantManager       tenant.ManagerInterface
	ProvisioningService provisioning.ServiceInterface
	Producer            events.Producer
	Revocations         *revocation.Cache
	// Cache is optional. It holds short-lived tenant-scoped lookups.
	Cache cache.Store
}

func (opts ServeOptions) Validate() error {
	switch {
	case opts.MonitorService == nil:
		return fmt.Errorf("monitor service cannot be nil")
	case opts.CrashTrackerClient == nil:
		return fmt.Errorf("crash tracker client cannot be nil")
	case opts.AdminDBPool == nil:
		return fmt.Errorf("admin database pool cannot be nil")
	case opts.Router == nil:
		return fmt.Errorf("connection router cannot be nil")
	case opts.TenantManager == nil:
		return fmt.Errorf("tenant manager cannot be nil")
	case opts.ProvisioningService == nil:
		return fmt.Errorf("provisioning service cannot be nil")
	case opts.Revocations == nil:
		return fmt.Errorf("revocation cache cannot be nil")
	}
	return nil
}

// Serve runs the HTTP server until the process is asked to stop. The pools, the producer and the stores are owned
// by the caller and are not closed here.
func Serve(opts ServeOptions, httpServer HTTPServerInterface) error {
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("validating serve options: %w", err)
	}

	// Set crash tracker LogAndReportErrors as DefaultReportErrorFunc
	httperror.SetDefaultReportErrorFunc(opts.CrashTrackerClient.LogAndReportErrors)

	listenAddr := fmt.Sprintf(":%d", opts.Port)
	serverConfig := supporthttp.Config{
		ListenAddr:          listenAddr,
		Handler:             handleHTTP(opts),
		TCPKeepAlive:        time.Minute * 3,
		ShutdownGracePeriod: time.Second * 50,
		ReadTimeout:         time.Second * 5,
		WriteTimeout:        time.Second * 35,
		IdleTimeout:         time.Minute * 2,
		OnStarting: func() {
			log.Info("Starting Tenant Control Plane Server")
			log.Infof("Listening on %s", listenAddr)
		},
		OnStopping: func() {
			log.Info("Stopping Tenant Control Plane Server")
		},
	}
	httpServer.Run(serverConfig)
	return nil
}

func handleHTTP(o ServeOptions) *chi.Mux {
	mux := chi.NewMux()

	mux.Use(middleware.CorsMiddleware(o.CorsAllowedOrigins))
	mux.Use(chimiddleware.RequestID)
	mux.Use(chimiddleware.RealIP)
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.RecoverHandler)
	mux.Use(middleware.MetricsRequestHandler(o.MonitorService))

	mux.Get("/health", httphandler.HealthHandler{
		ReleaseID:        o.GitCommit,
		ServiceID:        ServiceID,
		Version:          o.Version,
		DBConnectionPool: o.AdminDBPool,
		Producer:         o.Producer,
	}.ServeHTTP)

	if metricsHandler, err := o.MonitorService.GetMetricHttpHandler(); err != nil {
		log.Warnf("metrics are not exposed: %v", err)
	} else {
		mux.Handle("/metrics", metricsHandler)
	}

	// Tenant scoped routes
	mux.Group(func(r chi.Router) {
		r.Use(middleware.TenantHeaderMiddleware(o.Router))
		r.Use(middleware.RevokedTokenMiddleware(o.Revocations))

		tenantHandler := httphandler.TenantHandler{Router: o.Router, Cache: o.Cache}
		if routedPool, err := db.NewConnectionPoolWithRouter(o.Router); err != nil {
			log.Warnf("tenant schema checks are disabled: %v", err)
		} else {
			tenantHandler.DBConnectionPool = routedPool
		}

		r.With(middleware.EnsureTenantMiddleware).Get("/tenant", tenantHandler.ServeHTTP)
		r.Post("/tokens/revoke", httphandler.RevokeTokenHandler{Revocations: o.Revocations}.ServeHTTP)
	})

	// Admin routes
	mux.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(adminRequestLimit, adminRequestWindow))
		r.Use(middleware.BasicAuthMiddleware(o.AdminAccount, o.AdminAPIKey))

		r.Route("/tenants", func(r chi.Router) {
			tenantsHandler := httphandler.TenantsHandler{Manager: o.TenantManager, Service: o.ProvisioningService}
			r.Get("/", tenantsHandler.GetAll)
			r.Post("/", tenantsHandler.Post)
			r.Get("/{realm}", tenantsHandler.GetByRealm)
			r.Delete("/{realm}", tenantsHandler.Delete)
		})
	})

	return mux
}
