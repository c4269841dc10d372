// Package router builds the data source names of tenant schemas.
package router

import (
	"fmt"
	"net/url"
)

// TenantSchemaNamePrefix prefixes the schema of every tenant database.
const TenantSchemaNamePrefix string = "tenant_"

// SchemaNameForRealm returns the schema that holds the tenant's data, `tenant_<realm>`.
func SchemaNameForRealm(realm string) string {
	return TenantSchemaNamePrefix + realm
}

// GetDSNForTenant returns the database DSN for the tenant schema. It's the root database DSN with the
// `search_path` query parameter set to the tenant schema.
func GetDSNForTenant(dataSourceName, realm string) (string, error) {
	if realm == "" {
		return "", fmt.Errorf("realm cannot be empty")
	}

	u, err := url.Parse(dataSourceName)
	if err != nil {
		return "", fmt.Errorf("parsing database DSN: %w", err)
	}

	q := u.Query()
	q.Set("search_path", SchemaNameForRealm(realm))
	u.RawQuery = q.Encode()

	return u.String(), nil
}
