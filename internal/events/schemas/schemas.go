package schemas

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stellar/stellar-tenant-control-plane/pkg/tenant"
)

var (
	ErrTenantIDRequired = errors.New("tenantId is required")
	ErrRealmRequired    = errors.New("realm is required")
)

// TenantRef identifies the tenant a payload is about.
type TenantRef struct {
	TenantID string `json:"tenantId"`
	Realm    string `json:"realm"`
}

// Ref returns the reference itself, so payloads embedding it expose the tenant they are about.
func (r TenantRef) Ref() TenantRef {
	return r
}

func (r TenantRef) Validate() error {
	if r.TenantID == "" {
		return ErrTenantIDRequired
	}
	if _, err := uuid.Parse(r.TenantID); err != nil {
		return fmt.Errorf("invalid tenantId %q: %w", r.TenantID, err)
	}
	if r.Realm == "" {
		return ErrRealmRequired
	}
	return nil
}

// EventTenantCreateData carries everything the downstream services need to provision a tenant. Secret travels
// base64 encoded inside the encrypted payload.
type EventTenantCreateData struct {
	TenantRef
	Name                string                     `json:"name"`
	Secret              []byte                     `json:"secret"`
	TenantConfiguration tenant.TenantConfiguration `json:"tenantConfiguration"`
	AdminEmail          string                     `json:"adminEmail,omitempty"`
}

func (d EventTenantCreateData) Validate() error {
	if err := d.TenantRef.Validate(); err != nil {
		return err
	}
	if d.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

type EventTenantShutdownData struct {
	TenantRef
	Reason string `json:"reason,omitempty"`
}

type EventTenantDatabaseProvisionedData struct {
	TenantRef
	SchemaName    string    `json:"schema_name"`
	ProvisionedAt time.Time `json:"provisioned_at"`
}

func (d EventTenantDatabaseProvisionedData) Validate() error {
	if err := d.TenantRef.Validate(); err != nil {
		return err
	}
	if d.SchemaName == "" {
		return errors.New("schema_name is required")
	}
	return nil
}

type EventTenantRealmProvisionedData struct {
	TenantRef
	ProvisionedAt time.Time `json:"provisioned_at"`
}

// EventIdentityProviderData describes an identity provider configured for a tenant realm, such as a SAML or OIDC
// federation.
type EventIdentityProviderData struct {
	TenantRef
	Alias        string            `json:"alias"`
	ProviderType string            `json:"provider_type"`
	Enabled      bool              `json:"enabled"`
	Config       map[string]string `json:"config,omitempty"`
}

func (d EventIdentityProviderData) Validate() error {
	if err := d.TenantRef.Validate(); err != nil {
		return err
	}
	if d.Alias == "" {
		return errors.New("alias is required")
	}
	return nil
}

type EventTenantNotificationData struct {
	TenantRef
	Subject    string            `json:"subject"`
	Message    string            `json:"message"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func (d EventTenantNotificationData) Validate() error {
	if err := d.TenantRef.Validate(); err != nil {
		return err
	}
	if d.Subject == "" {
		return errors.New("subject is required")
	}
	return nil
}
