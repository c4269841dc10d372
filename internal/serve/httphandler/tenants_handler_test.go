package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stellar/stellar-tenant-control-plane/internal/provisioning"
	"github.com/stellar/stellar-tenant-control-plane/internal/serve/httpresponse"
	"github.com/stellar/stellar-tenant-control-plane/internal/testutils"
	"github.com/stellar/stellar-tenant-control-plane/pkg/tenant"
)

const testAdminDSN = "postgres://postgres@localhost:5432/control_plane?sslmode=disable"

func newTenantsRouter(h TenantsHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/tenants", func(r chi.Router) {
		r.Get("/", h.GetAll)
		r.Post("/", h.Post)
		r.Get("/{realm}", h.GetByRealm)
		r.Delete("/{realm}", h.Delete)
	})
	return r
}

func serveRequest(t *testing.T, r *chi.Mux, method, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	return testutils.ServeRequest(t, context.Background(), r, method, url, strings.NewReader(body))
}

func Test_TenantsHandler_GetAll(t *testing.T) {
	manager := tenant.NewInMemoryManagerFixture(t, testAdminDSN)
	r := newTenantsRouter(TenantsHandler{Manager: manager, Service: provisioning.NewMockService(t)})

	t.Run("empty registry", func(t *testing.T) {
		rr := serveRequest(t, r, http.MethodGet, "/tenants", "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"pagination": {"pages": 0, "total": 0}, "data": []}`, rr.Body.String())
	})

	for _, realm := range []string{"acme", "globex", "initech"} {
		tenant.CreateTenantFixture(t, manager, realm, tenant.Active)
	}
	tenant.CreateTenantFixture(t, manager, "umbrella", tenant.ProvisioningFailed)

	t.Run("paginates", func(t *testing.T) {
		rr := serveRequest(t, r, http.MethodGet, "/tenants?page=2&page_limit=3", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var response httpresponse.PaginatedResponse[map[string]any]
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
		assert.Equal(t, 2, response.Pagination.Pages)
		assert.Equal(t, 4, response.Pagination.Total)
		assert.Equal(t, "/tenants?page=1&page_limit=3", response.Pagination.Prev)
		assert.Empty(t, response.Pagination.Next)

		summaries := response.Data
		require.Len(t, summaries, 1)
		assert.Equal(t, "umbrella", summaries[0]["realm"])
		assert.Equal(t, string(tenant.ProvisioningFailedTenantStatus), summaries[0]["status"])
		assert.NotContains(t, summaries[0], "secret")
	})

	t.Run("filters by status", func(t *testing.T) {
		rr := serveRequest(t, r, http.MethodGet, "/tenants?status=active", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var response httpresponse.PaginatedResponse[map[string]any]
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
		assert.Equal(t, 3, response.Pagination.Total)
	})

	t.Run("invalid query", func(t *testing.T) {
		rr := serveRequest(t, r, http.MethodGet, "/tenants?page=0&page_limit=500", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{
			"error": "The request was invalid in some way.",
			"extras": {
				"page": "page must be a positive integer",
				"page_limit": "page_limit must be between 1 and 100"
			}
		}`, rr.Body.String())

		rr = serveRequest(t, r, http.MethodGet, "/tenants?status=UNKNOWN", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func Test_TenantsHandler_GetByRealm(t *testing.T) {
	manager := tenant.NewInMemoryManagerFixture(t, testAdminDSN)
	tnt := tenant.CreateTenantFixture(t, manager, "acme", tenant.ProvisioningPostActionsInProgress)
	r := newTenantsRouter(TenantsHandler{Manager: manager, Service: provisioning.NewMockService(t)})

	rr := serveRequest(t, r, http.MethodGet, "/tenants/ACME", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var summary map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, tnt.ID.String(), summary["id"])
	assert.Equal(t, string(tenant.ProvisioningPostActionsInProgress), summary["resource_status"])
	assert.Equal(t, string(tenant.ProvisioningInProgressTenantStatus), summary["status"])

	rr = serveRequest(t, r, http.MethodGet, "/tenants/globex", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serveRequest(t, r, http.MethodGet, "/tenants/bad%20realm", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func Test_TenantsHandler_Post(t *testing.T) {
	manager := tenant.NewInMemoryManagerFixture(t, testAdminDSN)

	t.Run("invalid body", func(t *testing.T) {
		r := newTenantsRouter(TenantsHandler{Manager: manager, Service: provisioning.NewMockService(t)})

		rr := serveRequest(t, r, http.MethodPost, "/tenants", `{"realm":`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{"error": "Invalid request body.", "error_code": "400_0"}`, rr.Body.String())

		rr = serveRequest(t, r, http.MethodPost, "/tenants", `{"realm": "a b"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{
			"error": "The request was invalid in some way.",
			"extras": {
				"realm": "realm must match [a-z0-9][a-z0-9_-]{0,62}",
				"name": "name is required"
			}
		}`, rr.Body.String())

		rr = serveRequest(t, r, http.MethodPost, "/tenants", `{"realm": "acme", "name": "Acme Corp", "admin_email": "admin@"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{
			"error": "The request was invalid in some way.",
			"extras": {"admin_email": "the provided email is not valid"}
		}`, rr.Body.String())
	})

	t.Run("starts the provisioning", func(t *testing.T) {
		service := provisioning.NewMockService(t)
		created := &tenant.Tenant{Realm: "acme", Name: "Acme Corp", ResourceStatus: tenant.ProvisioningInitiated}
		service.
			On("InitiateTenantCreation", mock.Anything, tenant.NewTenant{
				Realm:  "acme",
				Name:   "Acme Corp",
				Secret: []byte("s3cr3t"),
				Configuration: tenant.TenantConfiguration{
					PasswordPolicy:         tenant.PasswordPolicy{MinLength: 12, RequireSymbols: true},
					UserRegistrationPolicy: tenant.UserRegistrationPolicy{SelfRegistrationEnabled: true},
				},
			}, "admin@acme.test").
			Return(created, nil).
			Once()
		r := newTenantsRouter(TenantsHandler{Manager: manager, Service: service})

		rr := serveRequest(t, r, http.MethodPost, "/tenants", `{
			"realm": "acme",
			"name": "Acme Corp",
			"secret": "s3cr3t",
			"tenant_configuration": {
				"passwordPolicy": {"minLength": 12, "requireSymbols": true},
				"userRegistrationPolicy": {"selfRegistrationEnabled": true}
			},
			"admin_email": "admin@acme.test"
		}`)
		require.Equal(t, http.StatusCreated, rr.Code)
		var summary map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
		assert.Equal(t, "acme", summary["realm"])
		assert.Equal(t, string(tenant.ProvisioningInProgressTenantStatus), summary["status"])
	})

	testCases := []struct {
		name           string
		tnt            *tenant.Tenant
		err            error
		wantStatusCode int
	}{
		{name: "duplicated realm", err: fmt.Errorf("adding tenant: %w", tenant.ErrDuplicatedTenantRealm), wantStatusCode: http.StatusConflict},
		{name: "registry error", err: errors.New("connection reset"), wantStatusCode: http.StatusInternalServerError},
		{name: "event not published", tnt: &tenant.Tenant{Realm: "acme"}, err: errors.New("broker down"), wantStatusCode: http.StatusServiceUnavailable},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			service := provisioning.NewMockService(t)
			service.On("InitiateTenantCreation", mock.Anything, mock.Anything, "").Return(tc.tnt, tc.err).Once()
			r := newTenantsRouter(TenantsHandler{Manager: manager, Service: service})

			rr := serveRequest(t, r, http.MethodPost, "/tenants", `{"realm": "acme", "name": "Acme Corp"}`)
			assert.Equal(t, tc.wantStatusCode, rr.Code)
		})
	}
}

func Test_TenantsHandler_Delete(t *testing.T) {
	manager := tenant.NewInMemoryManagerFixture(t, testAdminDSN)

	t.Run("starts the shutdown", func(t *testing.T) {
		service := provisioning.NewMockService(t)
		service.
			On("InitiateTenantShutdown", mock.Anything, "acme", "churned").
			Return(&tenant.Tenant{Realm: "acme", ResourceStatus: tenant.ShutdownInitiated}, nil).
			Once()
		r := newTenantsRouter(TenantsHandler{Manager: manager, Service: service})

		rr := serveRequest(t, r, http.MethodDelete, "/tenants/acme", `{"reason": "churned"}`)
		require.Equal(t, http.StatusAccepted, rr.Code)
		var summary map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
		assert.Equal(t, string(tenant.DeactivationInProgressTenantStatus), summary["status"])
	})

	t.Run("without body", func(t *testing.T) {
		service := provisioning.NewMockService(t)
		service.On("InitiateTenantShutdown", mock.Anything, "acme", "").Return(&tenant.Tenant{Realm: "acme"}, nil).Once()
		r := newTenantsRouter(TenantsHandler{Manager: manager, Service: service})

		rr := serveRequest(t, r, http.MethodDelete, "/tenants/acme", "")
		assert.Equal(t, http.StatusAccepted, rr.Code)
	})

	testCases := []struct {
		name           string
		err            error
		wantStatusCode int
	}{
		{name: "unknown tenant", err: fmt.Errorf("getting tenant acme: %w", tenant.ErrTenantDoesNotExist), wantStatusCode: http.StatusNotFound},
		{name: "not in a status that can be shut down", err: fmt.Errorf("transitioning: %w", tenant.ErrInvalidTransition), wantStatusCode: http.StatusConflict},
		{name: "unexpected error", err: context.DeadlineExceeded, wantStatusCode: http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			service := provisioning.NewMockService(t)
			service.On("InitiateTenantShutdown", mock.Anything, "acme", "").Return(nil, tc.err).Once()
			r := newTenantsRouter(TenantsHandler{Manager: manager, Service: service})

			rr := serveRequest(t, r, http.MethodDelete, "/tenants/acme", "")
			assert.Equal(t, tc.wantStatusCode, rr.Code)
		})
	}
}
