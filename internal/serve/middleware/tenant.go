package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/stellar/stellar-tenant-control-plane/internal/serve/httperror"
	"github.com/stellar/stellar-tenant-control-plane/internal/tenantcontext"
	"github.com/stellar/stellar-tenant-control-plane/internal/utils"
	"github.com/stellar/stellar-tenant-control-plane/pkg/tenant"
)

// TenantHeaderKey carries the realm of the tenant a request is executed for.
const TenantHeaderKey = "Tenant-Id"

// requestRealm returns the realm named by the Tenant-Id header or, without the header, by the subdomain of the
// host. An empty realm without error means the request has no tenant.
func requestRealm(req *http.Request) (string, error) {
	if header := req.Header.Get(TenantHeaderKey); strings.TrimSpace(header) != "" {
		return utils.SanitizeRealm(header)
	}
	if realm, err := utils.ExtractRealmFromHostName(req.Host); err == nil {
		return realm, nil
	}
	return "", nil
}

// TenantHeaderMiddleware starts the tenant scope of a request. Any scope inherited from the base context is
// dropped first. A present but invalid header is rejected with a 400. The tenant ID is completed from the router's
// realm mapping, an unmapped realm keeps the nil ID.
func TenantHeaderMiddleware(router *tenant.ConnectionRouter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			ctx := tenantcontext.Clear(req.Context())

			realm, err := requestRealm(req)
			if err != nil {
				httperror.BadRequest(fmt.Sprintf("Invalid %s header.", TenantHeaderKey), err, nil).
					WithErrorCode(httperror.Code400_1).Render(rw)
				return
			}
			if realm != "" {
				tenantID, _ := router.TenantIDForRealm(realm)
				ctx = tenantcontext.Set(ctx, realm, tenantID)
			}

			next.ServeHTTP(rw, req.WithContext(ctx))
		})
	}
}

// EnsureTenantMiddleware rejects requests that carry no tenant.
func EnsureTenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if _, err := tenantcontext.RequireRealm(req.Context()); err != nil {
			httperror.BadRequest(fmt.Sprintf("The %s header is required.", TenantHeaderKey), err, nil).
				WithErrorCode(httperror.Code400_1).Render(rw)
			return
		}
		next.ServeHTTP(rw, req)
	})
}
