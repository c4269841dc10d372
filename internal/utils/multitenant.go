package utils

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrRealmNotFound = errors.New("realm not found")
	ErrInvalidRealm  = errors.New("invalid realm")
)

// realmPattern matches what can be safely used as a routing key, a schema name suffix and a cache key prefix.
var realmPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// SanitizeRealm normalizes a realm received from an untrusted source (request header, CLI) and validates it.
func SanitizeRealm(rawRealm string) (string, error) {
	realm := strings.ToLower(strings.TrimSpace(rawRealm))
	if realm == "" {
		return "", ErrRealmNotFound
	}
	if !realmPattern.MatchString(realm) {
		return "", ErrInvalidRealm
	}
	return realm, nil
}

// ExtractRealmFromHostName returns the leftmost label of a hostname with a subdomain, e.g. acme.tenants.example.com
// -> acme.
func ExtractRealmFromHostName(hostname string) (string, error) {
	// Remove port number if present (e.g. acme.example.com:8000 -> acme.example.com)
	hostname = strings.Split(hostname, ":")[0]
	parts := strings.Split(hostname, ".")
	// More than 2 parts means there's a subdomain
	if len(parts) > 2 {
		return SanitizeRealm(parts[0])
	}
	return "", ErrRealmNotFound
}
