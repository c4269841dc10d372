package provisioning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/stellar/stellar-tenant-control-plane/db"
	"github.com/stellar/stellar-tenant-control-plane/db/router"
	"github.com/stellar/stellar-tenant-control-plane/internal/cache"
	"github.com/stellar/stellar-tenant-control-plane/internal/events"
	"github.com/stellar/stellar-tenant-control-plane/internal/events/schemas"
	"github.com/stellar/stellar-tenant-control-plane/internal/idempotency"
	"github.com/stellar/stellar-tenant-control-plane/internal/tenantcontext"
	"github.com/stellar/stellar-tenant-control-plane/pkg/tenant"
)

var (
	ErrRealmMismatch = errors.New("realm does not match the tenant")
	ErrRealmNotReady = errors.New("tenant realm is not provisioned yet")
)

type ServiceOptions struct {
	TenantManager       tenant.ManagerInterface
	Transitioner        *StatusTransitioner
	DatabaseProvisioner DatabaseProvisioner
	RealmProvisioner    RealmProvisioner
	Publisher           *events.Publisher
	Router              *tenant.ConnectionRouter
	Opener              db.OpenerFunc
	Guard               *idempotency.Guard
}

func (o ServiceOptions) Validate() error {
	switch {
	case o.TenantManager == nil:
		return fmt.Errorf("tenant manager cannot be nil")
	case o.Transitioner == nil:
		return fmt.Errorf("status transitioner cannot be nil")
	case o.DatabaseProvisioner == nil:
		return fmt.Errorf("database provisioner cannot be nil")
	case o.RealmProvisioner == nil:
		return fmt.Errorf("realm provisioner cannot be nil")
	case o.Publisher == nil:
		return fmt.Errorf("publisher cannot be nil")
	case o.Router == nil:
		return fmt.Errorf("connection router cannot be nil")
	case o.Opener == nil:
		return fmt.Errorf("opener cannot be nil")
	case o.Guard == nil:
		return fmt.Errorf("idempotency guard cannot be nil")
	}
	return nil
}

// ServiceInterface is what the event handlers use to drive the workflow.
type ServiceInterface interface {
	InitiateTenantCreation(ctx context.Context, nt tenant.NewTenant, adminEmail string) (*tenant.Tenant, error)
	InitiateTenantShutdown(ctx context.Context, realm, reason string) (*tenant.Tenant, error)
	ProvisionDatabase(ctx context.Context, ref schemas.TenantRef) error
	CompletePostProvisioning(ctx context.Context, ref schemas.TenantRef) error
	ActivateTenant(ctx context.Context, ref schemas.TenantRef) error
	ShutdownTenant(ctx context.Context, ref schemas.TenantRef) error
	ApplyIdentityProvider(ctx context.Context, ref schemas.TenantRef, idp IdentityProvider, remove bool) error
}

var _ ServiceInterface = (*Service)(nil)

// Service runs the provisioning workflow. Every step reads the stored status first so a redelivered event resumes
// where the previous delivery stopped instead of repeating finished work.
type Service struct {
	ServiceOptions
	now func() time.Time
}

func NewService(opts ServiceOptions) (*Service, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("validating provisioning service options: %w", err)
	}
	return &Service{ServiceOptions: opts, now: time.Now}, nil
}

// InitiateTenantCreation registers the tenant in PROVISIONING_INITIATED and publishes the event that starts the
// workflow.
func (s *Service) InitiateTenantCreation(ctx context.Context, nt tenant.NewTenant, adminEmail string) (*tenant.Tenant, error) {
	t, err := s.TenantManager.AddTenant(ctx, nt)
	if err != nil {
		return nil, fmt.Errorf("adding tenant: %w", err)
	}

	ctx = tenantcontext.Set(ctx, t.Realm, t.ID)
	data := schemas.EventTenantCreateData{
		TenantRef:           tenantRef(t),
		Name:                t.Name,
		Secret:              t.Secret,
		TenantConfiguration: t.Configuration,
		AdminEmail:          adminEmail,
	}
	if err = s.Publisher.Publish(ctx, events.TenantLifecycleTopic, t.Realm, events.TenantCreateType, data); err != nil {
		return t, fmt.Errorf("starting provisioning of tenant %s: %w", t.Realm, err)
	}

	log.Ctx(ctx).Infof("provisioning of tenant %s initiated", t.Realm)
	return t, nil
}

// InitiateTenantShutdown moves the tenant to SHUTDOWN_INITIATED and publishes the event that tears it down.
func (s *Service) InitiateTenantShutdown(ctx context.Context, realm, reason string) (*tenant.Tenant, error) {
	t, err := s.TenantManager.GetTenantByRealm(ctx, realm)
	if err != nil {
		return nil, fmt.Errorf("getting tenant %s: %w", realm, err)
	}

	if t, err = s.Transitioner.transition(ctx, t, tenant.ShutdownInitiated); err != nil {
		return nil, err
	}

	ctx = tenantcontext.Set(ctx, t.Realm, t.ID)
	data := schemas.EventTenantShutdownData{TenantRef: tenantRef(t), Reason: reason}
	if err = s.Publisher.Publish(ctx, events.TenantLifecycleTopic, t.Realm, events.TenantShutdownType, data); err != nil {
		return t, fmt.Errorf("starting shutdown of tenant %s: %w", t.Realm, err)
	}

	log.Ctx(ctx).Infof("shutdown of tenant %s initiated", t.Realm)
	return t, nil
}

// ProvisionDatabase handles the creation event: it creates the tenant database and announces it.
func (s *Service) ProvisionDatabase(ctx context.Context, ref schemas.TenantRef) error {
	t, err := s.getTenant(ctx, ref)
	if err != nil {
		return err
	}

	if t.ResourceStatus == tenant.ProvisioningInitiated {
		if t, err = s.Transitioner.transition(ctx, t, tenant.ProvisioningInProgress); err != nil {
			return err
		}
	}

	if t.ResourceStatus == tenant.ProvisioningInProgress {
		if _, err = s.DatabaseProvisioner.ProvisionDatabase(ctx, t.Realm); err != nil {
			return s.fail(ctx, t, tenant.ProvisioningFailed, fmt.Errorf("provisioning database of tenant %s: %w", t.Realm, err))
		}
		if t, err = s.Transitioner.transition(ctx, t, tenant.ProvisioningCompleted); err != nil {
			return err
		}
	}

	// A delivery that stopped right after the transition above publishes again.
	if t.ResourceStatus != tenant.ProvisioningCompleted {
		log.Ctx(ctx).Infof("tenant %s is %s, database provisioning already done", t.Realm, t.ResourceStatus)
		return nil
	}

	data := schemas.EventTenantDatabaseProvisionedData{
		TenantRef:     tenantRef(t),
		SchemaName:    router.SchemaNameForRealm(t.Realm),
		ProvisionedAt: s.now().UTC(),
	}
	if err = s.Publisher.Publish(ctx, events.TenantDatabaseProvisionedTopic, t.Realm, events.TenantDatabaseProvisionedType, data); err != nil {
		return fmt.Errorf("announcing database of tenant %s: %w", t.Realm, err)
	}
	return nil
}

// CompletePostProvisioning handles the database-provisioned event. Only one worker runs it per realm at a time: the
// tenant's route is registered, then the database sync and the realm provisioning run in parallel.
func (s *Service) CompletePostProvisioning(ctx context.Context, ref schemas.TenantRef) error {
	err := s.Guard.Run(ctx, cache.PostProvisioningKey(ref.Realm), func(ctx context.Context) error {
		return s.completePostProvisioning(ctx, ref)
	})
	if errors.Is(err, idempotency.ErrAlreadyInProgress) {
		log.Ctx(ctx).Infof("post provisioning of tenant %s is already running on another worker", ref.Realm)
		return nil
	}
	return err
}

func (s *Service) completePostProvisioning(ctx context.Context, ref schemas.TenantRef) error {
	t, err := s.getTenant(ctx, ref)
	if err != nil {
		return err
	}

	if t.ResourceStatus == tenant.ProvisioningCompleted {
		if t, err = s.Transitioner.transition(ctx, t, tenant.ProvisioningPostActionsInitiated); err != nil {
			return err
		}
	}

	if isRoutable(t.ResourceStatus) {
		if err = tenant.RegisterTenant(ctx, s.Router, s.TenantManager, s.Opener, *t); err != nil {
			return fmt.Errorf("registering route of tenant %s: %w", t.Realm, err)
		}
		log.Ctx(ctx).Infof("tenant %s is routable", t.Realm)
	}

	if t.ResourceStatus == tenant.ProvisioningPostActionsInitiated {
		if t, err = s.Transitioner.transition(ctx, t, tenant.ProvisioningPostActionsInProgress); err != nil {
			return err
		}
	}

	if t.ResourceStatus == tenant.ProvisioningPostActionsInProgress {
		current := *t
		err = RunPostActions(ctx,
			PostAction{Name: "database sync", Run: func(ctx context.Context) error {
				return s.DatabaseProvisioner.SyncDatabase(ctx, current.Realm)
			}},
			PostAction{Name: "realm provisioning", Run: func(ctx context.Context) error {
				return s.RealmProvisioner.ProvisionRealm(ctx, current)
			}},
		)
		if err != nil {
			return s.fail(ctx, t, tenant.ProvisioningPostActionsFailed, err)
		}
		if t, err = s.Transitioner.transition(ctx, t, tenant.ProvisioningPostActionsCompleted); err != nil {
			return err
		}
	}

	if t.ResourceStatus != tenant.ProvisioningPostActionsCompleted {
		log.Ctx(ctx).Infof("tenant %s is %s, post provisioning already done", t.Realm, t.ResourceStatus)
		return nil
	}

	data := schemas.EventTenantRealmProvisionedData{TenantRef: tenantRef(t), ProvisionedAt: s.now().UTC()}
	if err = s.Publisher.Publish(ctx, events.TenantRealmProvisionedTopic, t.Realm, events.TenantRealmProvisionedType, data); err != nil {
		return fmt.Errorf("announcing realm of tenant %s: %w", t.Realm, err)
	}
	return nil
}

// ActivateTenant handles the realm-provisioned event.
func (s *Service) ActivateTenant(ctx context.Context, ref schemas.TenantRef) error {
	tenantID, err := uuid.Parse(ref.TenantID)
	if err != nil {
		return fmt.Errorf("parsing tenant id: %w", err)
	}

	t, skipped, err := s.Transitioner.TransitionOrSkip(ctx, tenantID, tenant.ProvisioningPostActionsCompleted, tenant.Active)
	if err != nil {
		return err
	}
	if skipped {
		return nil
	}

	return s.notify(ctx, t, fmt.Sprintf("Tenant %s is active", t.Name), "Your tenant is ready to be used.")
}

// ShutdownTenant handles the shutdown event: the route is removed before the tenant's resources are deleted.
func (s *Service) ShutdownTenant(ctx context.Context, ref schemas.TenantRef) error {
	t, err := s.getTenant(ctx, ref)
	if err != nil {
		return err
	}

	if t.ResourceStatus.CanTransitionTo(tenant.ShutdownInitiated) {
		if t, err = s.Transitioner.transition(ctx, t, tenant.ShutdownInitiated); err != nil {
			return err
		}
	}

	if t.ResourceStatus == tenant.ShutdownInitiated {
		if t, err = s.Transitioner.transition(ctx, t, tenant.ShutdownInProgress); err != nil {
			return err
		}
	}

	if t.ResourceStatus == tenant.ShutdownInProgress {
		if err = s.teardown(ctx, t); err != nil {
			return s.fail(ctx, t, tenant.ShutdownFailed, err)
		}
		if t, err = s.Transitioner.transition(ctx, t, tenant.ShutdownCompleted); err != nil {
			return err
		}
	}

	if t.ResourceStatus != tenant.ShutdownCompleted {
		log.Ctx(ctx).Infof("tenant %s is %s, nothing to shut down", t.Realm, t.ResourceStatus)
		return nil
	}

	if t, err = s.Transitioner.transition(ctx, t, tenant.Deactivated); err != nil {
		return err
	}
	return s.notify(ctx, t, fmt.Sprintf("Tenant %s was deactivated", t.Name), "Your tenant was shut down.")
}

// ApplyIdentityProvider forwards an identity provider change to the tenant's realm. The realm exists once post
// provisioning completed, earlier events fail with ErrRealmNotReady so they are retried.
func (s *Service) ApplyIdentityProvider(ctx context.Context, ref schemas.TenantRef, idp IdentityProvider, remove bool) error {
	t, err := s.getTenant(ctx, ref)
	if err != nil {
		return err
	}
	if t.ResourceStatus != tenant.ProvisioningPostActionsCompleted && t.ResourceStatus != tenant.Active {
		return fmt.Errorf("tenant %s is %s: %w", t.Realm, t.ResourceStatus, ErrRealmNotReady)
	}

	if remove {
		return s.RealmProvisioner.DeleteIdentityProvider(ctx, t.Realm, idp.Alias)
	}
	return s.RealmProvisioner.SyncIdentityProvider(ctx, t.Realm, idp)
}

func (s *Service) teardown(ctx context.Context, t *tenant.Tenant) error {
	removed, err := s.Router.Deregister(t.Realm)
	if err != nil {
		return fmt.Errorf("removing route of tenant %s: %w", t.Realm, err)
	}
	s.Router.RemoveTenantMapping(t.Realm)
	if removed != nil {
		if closeErr := removed.Close(); closeErr != nil {
			log.Ctx(ctx).Warnf("closing data source of tenant %s: %v", t.Realm, closeErr)
		}
	}

	if err = s.RealmProvisioner.DeleteRealm(ctx, t.Realm); err != nil {
		return fmt.Errorf("deleting realm of tenant %s: %w", t.Realm, err)
	}
	if err = s.DatabaseProvisioner.DropDatabase(ctx, t.Realm); err != nil {
		return fmt.Errorf("dropping database of tenant %s: %w", t.Realm, err)
	}
	return nil
}

// fail moves the tenant to a failure status and returns cause. Failure statuses are terminal for the attempt.
func (s *Service) fail(ctx context.Context, t *tenant.Tenant, failedStatus tenant.ResourceStatus, cause error) error {
	if _, err := s.Transitioner.transition(ctx, t, failedStatus); err != nil {
		log.Ctx(ctx).Errorf("marking tenant %s as %s: %v", t.Realm, failedStatus, err)
	}
	return cause
}

func (s *Service) notify(ctx context.Context, t *tenant.Tenant, subject, message string) error {
	data := schemas.EventTenantNotificationData{
		TenantRef: tenantRef(t),
		Subject:   subject,
		Message:   message,
		Attributes: map[string]string{
			"status": string(t.Status(ctx)),
		},
	}
	if err := s.Publisher.Publish(ctx, events.TenantNotificationTopic, t.Realm, events.TenantNotificationType, data); err != nil {
		return fmt.Errorf("publishing notification for tenant %s: %w", t.Realm, err)
	}
	return nil
}

// getTenant loads the tenant an event refers to. An event whose realm doesn't match the stored tenant is rejected.
func (s *Service) getTenant(ctx context.Context, ref schemas.TenantRef) (*tenant.Tenant, error) {
	tenantID, err := uuid.Parse(ref.TenantID)
	if err != nil {
		return nil, fmt.Errorf("parsing tenant id: %w", err)
	}

	t, err := s.TenantManager.GetTenantByID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("getting tenant %s: %w", tenantID, err)
	}
	if t.Realm != ref.Realm {
		return nil, fmt.Errorf("tenant %s has realm %s, event refers to %s: %w", tenantID, t.Realm, ref.Realm, ErrRealmMismatch)
	}
	return t, nil
}

func tenantRef(t *tenant.Tenant) schemas.TenantRef {
	return schemas.TenantRef{TenantID: t.ID.String(), Realm: t.Realm}
}

func isRoutable(status tenant.ResourceStatus) bool {
	for _, routable := range tenant.RoutableStatuses() {
		if status == routable {
			return true
		}
	}
	return false
}
