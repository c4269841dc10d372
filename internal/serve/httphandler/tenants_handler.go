package httphandler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/stellar/stellar-tenant-control-plane/internal/provisioning"
	"github.com/stellar/stellar-tenant-control-plane/internal/serve/httperror"
	"github.com/stellar/stellar-tenant-control-plane/internal/serve/httpresponse"
	"github.com/stellar/stellar-tenant-control-plane/internal/utils"
	"github.com/stellar/stellar-tenant-control-plane/pkg/tenant"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// TenantsHandler is the admin surface of the tenants registry: it lists tenants and starts their provisioning and
// shutdown workflows.
type TenantsHandler struct {
	Manager tenant.ManagerInterface
	Service provisioning.ServiceInterface
}

type TenantSummary struct {
	tenant.Tenant
	Status tenant.TenantStatus `json:"status"`
}

type CreateTenantRequest struct {
	Realm               string                     `json:"realm"`
	Name                string                     `json:"name"`
	Secret              string                     `json:"secret"`
	TenantConfiguration tenant.TenantConfiguration `json:"tenant_configuration"`
	AdminEmail          string                     `json:"admin_email"`
}

func (r CreateTenantRequest) Validate() map[string]interface{} {
	extras := map[string]interface{}{}
	if _, err := utils.SanitizeRealm(r.Realm); err != nil {
		extras["realm"] = "realm must match [a-z0-9][a-z0-9_-]{0,62}"
	}
	if r.Name == "" {
		extras["name"] = "name is required"
	}
	if r.AdminEmail != "" {
		if err := utils.ValidateEmail(r.AdminEmail); err != nil {
			extras["admin_email"] = err.Error()
		}
	}
	return extras
}

func (r CreateTenantRequest) NewTenant() tenant.NewTenant {
	nt := tenant.NewTenant{Realm: r.Realm, Name: r.Name, Configuration: r.TenantConfiguration}
	if r.Secret != "" {
		nt.Secret = []byte(r.Secret)
	}
	return nt
}

type DeleteTenantRequest struct {
	Reason string `json:"reason"`
}

func (h TenantsHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, pageLimit, extras := parsePagination(r)
	if len(extras) > 0 {
		httperror.BadRequest("The request was invalid in some way.", nil, extras).Render(w)
		return
	}

	var statuses []tenant.ResourceStatus
	if rawStatus := r.URL.Query().Get("status"); rawStatus != "" {
		status, err := tenant.ToResourceStatus(rawStatus)
		if err != nil {
			httperror.BadRequest("Invalid status.", err, map[string]interface{}{"status": err.Error()}).Render(w)
			return
		}
		statuses = append(statuses, status)
	}

	tnts, err := h.Manager.GetAllTenants(ctx, statuses...)
	if err != nil {
		httperror.InternalError(ctx, "Cannot list tenants.", err, nil).Render(w)
		return
	}
	summaries := make([]TenantSummary, 0, len(tnts))
	for _, tnt := range tnts {
		summaries = append(summaries, TenantSummary{Tenant: tnt, Status: tnt.Status(ctx)})
	}

	response, err := httpresponse.Paginate(r, summaries, page, pageLimit)
	if err != nil {
		httperror.InternalError(ctx, "Cannot write paginated response.", err, nil).Render(w)
		return
	}
	httpjson.RenderStatus(w, http.StatusOK, response, httpjson.JSON)
}

func (h TenantsHandler) GetByRealm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	realm, err := utils.SanitizeRealm(chi.URLParam(r, "realm"))
	if err != nil {
		httperror.FromTenantError(ctx, err, "").Render(w)
		return
	}

	tnt, err := h.Manager.GetTenantByRealm(ctx, realm)
	if err != nil {
		httperror.FromTenantError(ctx, err, "Cannot get tenant.").Render(w)
		return
	}

	httpjson.RenderStatus(w, http.StatusOK, TenantSummary{Tenant: *tnt, Status: tnt.Status(ctx)}, httpjson.JSON)
}

func (h TenantsHandler) Post(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqBody CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		httperror.BadRequest("Invalid request body.", err, nil).WithErrorCode(httperror.Code400_0).Render(w)
		return
	}
	if extras := reqBody.Validate(); len(extras) > 0 {
		httperror.BadRequest("The request was invalid in some way.", nil, extras).Render(w)
		return
	}

	tnt, err := h.Service.InitiateTenantCreation(ctx, reqBody.NewTenant(), reqBody.AdminEmail)
	if err != nil {
		if tnt == nil {
			httperror.FromTenantError(ctx, err, "Cannot create tenant.").Render(w)
			return
		}
		// The tenant is registered but the workflow event was not published, it stays in PROVISIONING_INITIATED.
		log.Ctx(ctx).Errorf("tenant %s was created but its provisioning could not be started: %v", tnt.Realm, err)
		httperror.ServiceUnavailable("The tenant was created but its provisioning could not be started.", err, nil).
			WithErrorCode(httperror.Code503_0).Render(w)
		return
	}

	httpjson.RenderStatus(w, http.StatusCreated, TenantSummary{Tenant: *tnt, Status: tnt.Status(ctx)}, httpjson.JSON)
}

func (h TenantsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	realm, err := utils.SanitizeRealm(chi.URLParam(r, "realm"))
	if err != nil {
		httperror.FromTenantError(ctx, err, "").Render(w)
		return
	}

	var reqBody DeleteTenantRequest
	if r.ContentLength > 0 {
		if err = json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			httperror.BadRequest("Invalid request body.", err, nil).WithErrorCode(httperror.Code400_0).Render(w)
			return
		}
	}

	tnt, err := h.Service.InitiateTenantShutdown(ctx, realm, reqBody.Reason)
	if err != nil {
		httperror.FromTenantError(ctx, err, "Cannot shut down tenant.").Render(w)
		return
	}

	httpjson.RenderStatus(w, http.StatusAccepted, TenantSummary{Tenant: *tnt, Status: tnt.Status(ctx)}, httpjson.JSON)
}

func parsePagination(r *http.Request) (page, pageLimit int, extras map[string]interface{}) {
	extras = map[string]interface{}{}
	page, pageLimit = 1, DefaultPageLimit

	query := r.URL.Query()
	if raw := query.Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			extras["page"] = "page must be a positive integer"
		} else {
			page = parsed
		}
	}
	if raw := query.Get("page_limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > MaxPageLimit {
			extras["page_limit"] = "page_limit must be between 1 and 100"
		} else {
			pageLimit = parsed
		}
	}
	return page, pageLimit, extras
}
