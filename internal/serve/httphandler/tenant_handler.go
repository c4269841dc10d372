package httphandler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/stellar/stellar-tenant-control-plane/db"
	"github.com/stellar/stellar-tenant-control-plane/internal/cache"
	"github.com/stellar/stellar-tenant-control-plane/internal/rowfilter"
	"github.com/stellar/stellar-tenant-control-plane/internal/serve/httperror"
	"github.com/stellar/stellar-tenant-control-plane/internal/tenantcontext"
	"github.com/stellar/stellar-tenant-control-plane/pkg/tenant"
)

// TenantResponse describes the tenant a request was routed to.
type TenantResponse struct {
	Realm    string `json:"realm"`
	TenantID string `json:"tenant_id,omitempty"`
	Routed   bool   `json:"routed"`
	Schema   string `json:"schema,omitempty"`
}

const (
	currentSchemaQuery = "SELECT current_schema()"
	schemaCacheKey     = "schema"
	schemaCacheTTL     = time.Minute
)

// TenantHandler echoes the tenant resolved for the request. It's used to check that a realm routes to its
// database.
type TenantHandler struct {
	Router *tenant.ConnectionRouter
	// DBConnectionPool resolves through Router on every call. When set, the handler reports the schema the tenant's
	// filtered transactions run in.
	DBConnectionPool db.DBConnectionPool
	// Cache keeps the schema of each realm for a short while. Optional.
	Cache cache.Store
}

func (h TenantHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	realm, err := tenantcontext.RequireRealm(ctx)
	if err != nil {
		httperror.FromTenantError(ctx, err, "").Render(w)
		return
	}

	if _, err = h.Router.Resolve(ctx); err != nil {
		httperror.FromTenantError(ctx, err, "Cannot resolve the tenant route.").Render(w)
		return
	}

	response := TenantResponse{Realm: realm, Routed: h.Router.Has(realm)}
	// Resolve fills in the tenant ID of the scope when the router knows it.
	if tenantID, ok := tenantcontext.TenantID(ctx); ok && tenantID != uuid.Nil {
		response.TenantID = tenantID.String()
	}

	if h.DBConnectionPool != nil {
		response.Schema, err = h.tenantSchema(ctx, realm)
		if err != nil {
			httperror.InternalError(ctx, "Cannot reach the tenant database.", err, nil).Render(w)
			return
		}
	}
	httpjson.RenderStatus(w, http.StatusOK, response, httpjson.JSON)
}

// tenantSchema reads the schema the tenant's filtered transactions run in, going through Cache when it's set. Cache
// failures are logged and the database is queried instead.
func (h TenantHandler) tenantSchema(ctx context.Context, realm string) (string, error) {
	var key string
	if h.Cache != nil {
		var keyErr error
		if key, keyErr = cache.TenantScopedKey(realm, schemaCacheKey); keyErr != nil {
			return "", fmt.Errorf("building schema cache key: %w", keyErr)
		}
		cached, found, getErr := h.Cache.Get(ctx, key)
		if getErr != nil {
			log.Ctx(ctx).Warnf("reading cached schema of %s: %v", realm, getErr)
		} else if found {
			return string(cached), nil
		}
	}

	schema, err := rowfilter.RunInTenantTransaction(ctx, h.DBConnectionPool, func(dbTx db.DBTransaction) (string, error) {
		var schema string
		if queryErr := dbTx.GetContext(ctx, &schema, currentSchemaQuery); queryErr != nil {
			return "", fmt.Errorf("querying current schema: %w", queryErr)
		}
		return schema, nil
	})
	if err != nil {
		return "", err
	}

	if h.Cache != nil {
		if setErr := h.Cache.Set(ctx, key, []byte(schema), schemaCacheTTL); setErr != nil {
			log.Ctx(ctx).Warnf("caching schema of %s: %v", realm, setErr)
		}
	}
	return schema, nil
}
