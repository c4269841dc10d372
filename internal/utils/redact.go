package utils

import (
	"net/url"
	"strings"
)

const redactedDSN = "<redacted>"

// RedactDSN hides the password of a data source name so it can be logged and returned in errors. A value that
// doesn't parse as a URL is hidden entirely since it may be a key/value DSN carrying the password.
func RedactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}

	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" || strings.Contains(u.Opaque, "@") {
		return redactedDSN
	}
	return u.Redacted()
}
