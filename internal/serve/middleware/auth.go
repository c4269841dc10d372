package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/stellar/stellar-tenant-control-plane/internal/revocation"
	"github.com/stellar/stellar-tenant-control-plane/internal/serve/httperror"
)

// RevokedTokenMiddleware rejects requests whose bearer token was revoked. Requests without a bearer token pass
// through, authenticating them is left to the services behind this boundary.
func RevokedTokenMiddleware(revocations *revocation.Cache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			token, ok := BearerToken(req)
			if ok && revocations.IsRevoked(req.Context(), token) {
				log.Ctx(req.Context()).Warn("rejected request with a revoked token")
				httperror.Unauthorized("The token was revoked.", nil, nil).
					WithErrorCode(httperror.Code401_1).Render(rw)
				return
			}
			next.ServeHTTP(rw, req)
		})
	}
}

// BearerToken returns the bearer token of the Authorization header of req, if any.
func BearerToken(req *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(req.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// BasicAuthMiddleware protects the admin routes with a single account and API key. Both are compared in constant
// time.
func BasicAuthMiddleware(adminAccount, adminAPIKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			ctx := req.Context()
			if adminAccount == "" || adminAPIKey == "" {
				httperror.InternalError(ctx, "Admin account and API key are not set", nil, nil).Render(rw)
				return
			}

			account, apiKey, ok := req.BasicAuth()
			accountMatches := subtle.ConstantTimeCompare([]byte(account), []byte(adminAccount)) == 1
			keyMatches := subtle.ConstantTimeCompare([]byte(apiKey), []byte(adminAPIKey)) == 1
			if !ok || !accountMatches || !keyMatches {
				httperror.Unauthorized("", nil, nil).Render(rw)
				return
			}

			log.Ctx(ctx).Debugf("admin request authenticated for account %s", account)
			next.ServeHTTP(rw, req)
		})
	}
}
