package provisioning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/stellar/stellar-tenant-control-plane/pkg/tenant"
)

// IdentityProvider is a federation (SAML, OIDC) configured on a tenant's identity realm.
type IdentityProvider struct {
	Alias        string
	ProviderType string
	Enabled      bool
	Config       map[string]string
}

// RealmProvisioner manages the identity realm of a tenant on the external identity server.
type RealmProvisioner interface {
	ProvisionRealm(ctx context.Context, t tenant.Tenant) error
	DeleteRealm(ctx context.Context, realm string) error
	SyncIdentityProvider(ctx context.Context, realm string, idp IdentityProvider) error
	DeleteIdentityProvider(ctx context.Context, realm, alias string) error
}

// DryRunRealmProvisioner logs the realm changes instead of applying them. It's used when no identity server is
// configured.
type DryRunRealmProvisioner struct{}

var _ RealmProvisioner = DryRunRealmProvisioner{}

func (DryRunRealmProvisioner) ProvisionRealm(ctx context.Context, t tenant.Tenant) error {
	log.Ctx(ctx).Infof("[DRY_RUN Realm Provisioner] provisioning realm %s with policy %+v", t.Realm, t.Configuration)
	return nil
}

func (DryRunRealmProvisioner) DeleteRealm(ctx context.Context, realm string) error {
	log.Ctx(ctx).Infof("[DRY_RUN Realm Provisioner] deleting realm %s", realm)
	return nil
}

func (DryRunRealmProvisioner) SyncIdentityProvider(ctx context.Context, realm string, idp IdentityProvider) error {
	log.Ctx(ctx).Infof("[DRY_RUN Realm Provisioner] syncing %s identity provider %s on realm %s (enabled=%t)", idp.ProviderType, idp.Alias, realm, idp.Enabled)
	return nil
}

func (DryRunRealmProvisioner) DeleteIdentityProvider(ctx context.Context, realm, alias string) error {
	log.Ctx(ctx).Infof("[DRY_RUN Realm Provisioner] deleting identity provider %s from realm %s", alias, realm)
	return nil
}

const (
	DefaultRealmRetryAttempts = 4
	DefaultRealmRetryDelay    = time.Second
)

// RetryingRealmProvisioner retries the calls of another RealmProvisioner with exponential backoff. Context
// cancellation stops the retries.
type RetryingRealmProvisioner struct {
	next     RealmProvisioner
	attempts uint
	delay    time.Duration
}

var _ RealmProvisioner = (*RetryingRealmProvisioner)(nil)

type RetryOption func(r *RetryingRealmProvisioner)

func WithRetryAttempts(attempts uint) RetryOption {
	return func(r *RetryingRealmProvisioner) {
		r.attempts = attempts
	}
}

func WithRetryDelay(delay time.Duration) RetryOption {
	return func(r *RetryingRealmProvisioner) {
		r.delay = delay
	}
}

func NewRetryingRealmProvisioner(next RealmProvisioner, opts ...RetryOption) (*RetryingRealmProvisioner, error) {
	if next == nil {
		return nil, fmt.Errorf("realm provisioner cannot be nil")
	}

	r := &RetryingRealmProvisioner{next: next, attempts: DefaultRealmRetryAttempts, delay: DefaultRealmRetryDelay}
	for _, opt := range opts {
		opt(r)
	}
	if r.attempts == 0 {
		return nil, fmt.Errorf("retry attempts must be positive")
	}
	return r, nil
}

func (r *RetryingRealmProvisioner) ProvisionRealm(ctx context.Context, t tenant.Tenant) error {
	return r.do(ctx, "provisioning realm "+t.Realm, func() error {
		return r.next.ProvisionRealm(ctx, t)
	})
}

func (r *RetryingRealmProvisioner) DeleteRealm(ctx context.Context, realm string) error {
	return r.do(ctx, "deleting realm "+realm, func() error {
		return r.next.DeleteRealm(ctx, realm)
	})
}

func (r *RetryingRealmProvisioner) SyncIdentityProvider(ctx context.Context, realm string, idp IdentityProvider) error {
	return r.do(ctx, fmt.Sprintf("syncing identity provider %s on realm %s", idp.Alias, realm), func() error {
		return r.next.SyncIdentityProvider(ctx, realm, idp)
	})
}

func (r *RetryingRealmProvisioner) DeleteIdentityProvider(ctx context.Context, realm, alias string) error {
	return r.do(ctx, fmt.Sprintf("deleting identity provider %s from realm %s", alias, realm), func() error {
		return r.next.DeleteIdentityProvider(ctx, realm, alias)
	})
}

func (r *RetryingRealmProvisioner) do(ctx context.Context, operation string, fn func() error) error {
	err := retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Warnf("%s failed on attempt %d/%d: %v", operation, n+1, r.attempts, err)
		}),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return nil
}
