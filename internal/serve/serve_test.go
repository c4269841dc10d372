package serve

import (
	"context"
	"net/http"
	"testing"
	"time"

	supporthttp "github.com/stellar/go-stellar-sdk/support/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stellar/stellar-tenant-control-plane/db"
	"github.com/stellar/stellar-tenant-control-plane/internal/cache"
	"github.com/stellar/stellar-tenant-control-plane/internal/crashtracker"
	"github.com/stellar/stellar-tenant-control-plane/internal/monitor"
	"github.com/stellar/stellar-tenant-control-plane/internal/provisioning"
	"github.com/stellar/stellar-tenant-control-plane/internal/revocation"
	"github.com/stellar/stellar-tenant-control-plane/internal/serve/middleware"
	"github.com/stellar/stellar-tenant-control-plane/internal/testutils"
	"github.com/stellar/stellar-tenant-control-plane/pkg/tenant"
)

type mockHTTPServer struct {
	mock.Mock
}

func (m *mockHTTPServer) Run(conf supporthttp.Config) {
	m.Called(conf)
}

var _ HTTPServerInterface = new(mockHTTPServer)

func newTestServeOptions(t *testing.T) (ServeOptions, *db.MockDBConnectionPool) {
	t.Helper()

	store, err := cache.NewMemoryStore()
	require.NoError(t, err)
	revocations, err := revocation.NewCache(store)
	require.NoError(t, err)

	adminPool := db.NewMockDBConnectionPool(t, "admin")
	return ServeOptions{
		Environment:         "test",
		GitCommit:           "1234567890abcdef",
		Port:                8003,
		Version:             "x.y.z",
		AdminAccount:        "admin",
		AdminAPIKey:         "secret",
		MonitorService:      monitor.NoopMonitorService{},
		CrashTrackerClient:  crashtracker.NewMockCrashTrackerClient(t),
		AdminDBPool:         adminPool,
		Router:              tenant.NewConnectionRouter(),
		TenantManager:       tenant.NewInMemoryManagerFixture(t, "postgres://postgres@localhost:5432/control_plane?sslmode=disable"),
		ProvisioningService: provisioning.NewMockService(t),
		Revocations:         revocations,
	}, adminPool
}

func Test_ServeOptions_Validate(t *testing.T) {
	opts, _ := newTestServeOptions(t)
	require.NoError(t, opts.Validate())

	opts.Router = nil
	assert.EqualError(t, opts.Validate(), "connection router cannot be nil")

	opts, _ = newTestServeOptions(t)
	opts.Revocations = nil
	assert.EqualError(t, opts.Validate(), "revocation cache cannot be nil")
}

func Test_Serve(t *testing.T) {
	opts, _ := newTestServeOptions(t)

	mHTTPServer := mockHTTPServer{}
	mHTTPServer.On("Run", mock.AnythingOfType("http.Config")).Run(func(args mock.Arguments) {
		conf, ok := args.Get(0).(supporthttp.Config)
		require.True(t, ok, "should be of type supporthttp.Config")
		assert.Equal(t, ":8003", conf.ListenAddr)
		assert.Equal(t, time.Minute*3, conf.TCPKeepAlive)
		assert.Equal(t, time.Second*50, conf.ShutdownGracePeriod)
		assert.Equal(t, time.Second*5, conf.ReadTimeout)
		assert.Equal(t, time.Second*35, conf.WriteTimeout)
		assert.Equal(t, time.Minute*2, conf.IdleTimeout)
		assert.Nil(t, conf.TLS)
		assert.NotNil(t, conf.Handler)
		conf.OnStopping()
	}).Once()

	err := Serve(opts, &mHTTPServer)
	require.NoError(t, err)
	mHTTPServer.AssertExpectations(t)

	t.Run("invalid options", func(t *testing.T) {
		err := Serve(ServeOptions{}, &mockHTTPServer{})
		assert.EqualError(t, err, "validating serve options: monitor service cannot be nil")
	})
}

func Test_handleHTTP_routes(t *testing.T) {
	opts, adminPool := newTestServeOptions(t)
	adminPool.On("Ping", mock.Anything).Return(nil).Once()
	mux := handleHTTP(opts)

	testCases := []struct {
		name           string
		method         string
		path           string
		basicAuth      bool
		tenantHeader   string
		wantStatusCode int
	}{
		{name: "health is public", method: http.MethodGet, path: "/health", wantStatusCode: http.StatusOK},
		{name: "metrics are not exposed without a client", method: http.MethodGet, path: "/metrics", wantStatusCode: http.StatusNotFound},
		{name: "admin routes require basic auth", method: http.MethodGet, path: "/tenants", wantStatusCode: http.StatusUnauthorized},
		{name: "admin routes with basic auth", method: http.MethodGet, path: "/tenants", basicAuth: true, wantStatusCode: http.StatusOK},
		{name: "tenant route requires the header", method: http.MethodGet, path: "/tenant", wantStatusCode: http.StatusBadRequest},
		{name: "tenant route without a connection", method: http.MethodGet, path: "/tenant", tenantHeader: "acme", wantStatusCode: http.StatusNotFound},
		{name: "token revocation without a token", method: http.MethodPost, path: "/tokens/revoke", wantStatusCode: http.StatusUnauthorized},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var reqOpts []testutils.RequestOption
			if tc.basicAuth {
				reqOpts = append(reqOpts, testutils.WithBasicAuth(opts.AdminAccount, opts.AdminAPIKey))
			}
			if tc.tenantHeader != "" {
				reqOpts = append(reqOpts, testutils.WithHeader(middleware.TenantHeaderKey, tc.tenantHeader))
			}
			rr := testutils.ServeRequest(t, context.Background(), mux, tc.method, tc.path, nil, reqOpts...)
			assert.Equal(t, tc.wantStatusCode, rr.Code)
		})
	}
}
