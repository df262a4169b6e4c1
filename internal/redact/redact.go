// Package redact masks credentials in URLs before they are persisted or
// returned to clients.
package redact

import (
	"net/url"
	"strings"
)

const mask = "[REDACTED]"

// sensitiveParams are query parameter names whose values are masked.
var sensitiveParams = map[string]struct{}{
	"access_token":  {},
	"api_key":       {},
	"apikey":        {},
	"auth":          {},
	"client_secret": {},
	"key":           {},
	"password":      {},
	"secret":        {},
	"sig":           {},
	"signature":     {},
	"token":         {},
}

// URL returns raw with the userinfo password and sensitive query values
// masked. Input that does not parse is returned unchanged.
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	changed := false
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), mask)
			changed = true
		}
	}
	if u.RawQuery != "" {
		q := u.Query()
		masked := false
		for name, values := range q {
			if _, ok := sensitiveParams[strings.ToLower(name)]; !ok {
				continue
			}
			for i := range values {
				values[i] = mask
			}
			masked = true
		}
		if masked {
			u.RawQuery = q.Encode()
			changed = true
		}
	}
	if !changed {
		return raw
	}
	return u.String()
}
