// Package tenant holds the tenants registry and the connection router that maps a tenant's realm to its database.
package tenant

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Tenant is a customer of the platform. Realm is immutable after creation and is the routing key.
type Tenant struct {
	ID             uuid.UUID           `json:"id" db:"id"`
	Realm          string              `json:"realm" db:"realm"`
	Name           string              `json:"name" db:"name"`
	Secret         []byte              `json:"-" db:"secret"`
	Configuration  TenantConfiguration `json:"tenant_configuration" db:"configuration"`
	ResourceStatus ResourceStatus      `json:"resource_status" db:"resource_status"`
	CreatedAt      time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at" db:"updated_at"`
}

// Status returns the coarse status of the tenant.
func (t Tenant) Status(ctx context.Context) TenantStatus {
	return ToTenantStatus(ctx, t.ResourceStatus)
}

type PasswordPolicy struct {
	MinLength        int  `json:"minLength"`
	RequireDigits    bool `json:"requireDigits"`
	RequireUppercase bool `json:"requireUppercase"`
	RequireSymbols   bool `json:"requireSymbols"`
	ExpireAfterDays  int  `json:"expireAfterDays,omitempty"`
}

type UserRegistrationPolicy struct {
	SelfRegistrationEnabled   bool     `json:"selfRegistrationEnabled"`
	EmailVerificationRequired bool     `json:"emailVerificationRequired"`
	AllowedEmailDomains       []string `json:"allowedEmailDomains,omitempty"`
}

// TenantConfiguration is stored as JSON in the tenants table and travels as JSON in provisioning events.
type TenantConfiguration struct {
	PasswordPolicy         PasswordPolicy         `json:"passwordPolicy"`
	UserRegistrationPolicy UserRegistrationPolicy `json:"userRegistrationPolicy"`
}

var (
	_ driver.Valuer = TenantConfiguration{}
)

func (c TenantConfiguration) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshalling tenant configuration: %w", err)
	}
	return b, nil
}

func (c *TenantConfiguration) Scan(src interface{}) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*c = TenantConfiguration{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for tenant configuration", src)
	}

	if err := json.Unmarshal(b, c); err != nil {
		return fmt.Errorf("unmarshalling tenant configuration: %w", err)
	}
	return nil
}

// NewTenant holds what's needed to onboard a tenant.
type NewTenant struct {
	Realm         string
	Name          string
	Secret        []byte
	Configuration TenantConfiguration
}

func (nt *NewTenant) Validate() error {
	if nt.Name == "" {
		return ErrEmptyTenantName
	}
	return nil
}

var (
	ErrTenantDoesNotExist     = errors.New("tenant does not exist")
	ErrDuplicatedTenantRealm  = errors.New("duplicated tenant realm")
	ErrEmptyTenantName        = errors.New("tenant name cannot be empty")
	ErrConcurrentStatusUpdate = errors.New("tenant resource status was changed concurrently")
)
