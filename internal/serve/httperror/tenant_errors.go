package httperror

import (
	"context"
	"errors"

	"github.com/stellar/stellar-tenant-control-plane/internal/tenantcontext"
	"github.com/stellar/stellar-tenant-control-plane/internal/utils"
	"github.com/stellar/stellar-tenant-control-plane/pkg/tenant"
)

// FromTenantError maps the errors of the tenants registry and its workflows to a response. Anything it doesn't know
// is an internal error reported with internalMsg.
func FromTenantError(ctx context.Context, err error, internalMsg string) *HTTPError {
	switch {
	case errors.Is(err, utils.ErrInvalidRealm), errors.Is(err, utils.ErrRealmNotFound):
		return BadRequest("Invalid realm.", err, nil).WithErrorCode(Code400_2)
	case errors.Is(err, tenant.ErrTenantDoesNotExist):
		return NotFound("The tenant does not exist.", err, nil).WithErrorCode(Code404_1)
	case errors.Is(err, tenant.ErrNoRouteForTenant):
		return NotFound("The tenant has no registered route.", err, nil).WithErrorCode(Code404_0)
	case errors.Is(err, tenant.ErrDuplicatedTenantRealm):
		return Conflict("A tenant with this realm already exists.", err, nil).WithErrorCode(Code409_0)
	case errors.Is(err, tenant.ErrInvalidTransition), errors.Is(err, tenant.ErrConcurrentStatusUpdate):
		return Conflict("The tenant can't move to the requested status from its current one.", err, nil).WithErrorCode(Code409_1)
	case errors.Is(err, tenantcontext.ErrMissingTenantContext):
		return InternalError(ctx, "Cannot retrieve the tenant from the context.", err, nil).WithErrorCode(Code500_1)
	default:
		return InternalError(ctx, internalMsg, err, nil)
	}
}
