package cache

import (
	"errors"
	"fmt"
	"strings"
)

const (
	revokedTokenKeyPrefix     = "revokedToken"
	postProvisioningKeyPrefix = "tenantDbPostProvisioning"
)

var (
	ErrBlankRealm = errors.New("tenant-scoped cache keys need a realm")
	ErrBlankKey   = errors.New("tenant-scoped cache keys need a key")
)

// RevokedTokenKey is the key that marks token as revoked.
func RevokedTokenKey(token string) string {
	return fmt.Sprintf("%s:%s", revokedTokenKeyPrefix, token)
}

// PostProvisioningKey is the idempotency key of the post-provisioning work of a realm.
func PostProvisioningKey(realm string) string {
	return fmt.Sprintf("%s:%s", postProvisioningKeyPrefix, realm)
}

// TenantScopedKey namespaces key under realm, so tenants sharing a store never read each other's entries.
func TenantScopedKey(realm, key string) (string, error) {
	if strings.TrimSpace(realm) == "" {
		return "", ErrBlankRealm
	}
	if key == "" {
		return "", ErrBlankKey
	}
	return fmt.Sprintf("%s:%s", realm, key), nil
}
