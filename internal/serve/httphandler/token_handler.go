package httphandler

import (
	"net/http"

	"github.com/stellar/stellar-tenant-control-plane/internal/revocation"
	"github.com/stellar/stellar-tenant-control-plane/internal/serve/httperror"
	"github.com/stellar/stellar-tenant-control-plane/internal/serve/middleware"
)

// RevokeTokenHandler revokes the bearer token of the request, so it is refused until it expires.
type RevokeTokenHandler struct {
	Revocations *revocation.Cache
}

func (h RevokeTokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token, ok := middleware.BearerToken(r)
	if !ok {
		httperror.Unauthorized("", nil, nil).WithErrorCode(httperror.Code401_0).Render(w)
		return
	}

	if err := h.Revocations.Revoke(ctx, token); err != nil {
		httperror.InternalError(ctx, "Cannot revoke the token.", err, nil).Render(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
