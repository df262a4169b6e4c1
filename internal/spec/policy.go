package spec

import (
	"fmt"
	"net/url"
	"strings"
)

// Policy decides which remote URLs the fetcher may contact.
//
// Hostname blocking is a case-insensitive substring match against
// BlockedHostKeywords, so "metadata-service-client.example.com" is
// rejected too. Loopback and private ranges are allowed.
type Policy struct {
	AllowedSchemes      []string
	BlockedHostKeywords []string
}

// DefaultPolicy allows http and https and blocks cloud metadata hosts.
func DefaultPolicy() Policy {
	return Policy{
		AllowedSchemes:      []string{"http", "https"},
		BlockedHostKeywords: []string{"metadata", "instance-data"},
	}
}

// Check parses rawURL and applies the scheme and hostname rules.
func (p Policy) Check(rawURL string) (*url.URL, *FetchError) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return nil, newFetchError(KindMalformedURL, "Invalid URL format")
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme == "http" || scheme == "https") && u.Hostname() == "" {
		return nil, newFetchError(KindMalformedURL, "Invalid URL format")
	}
	if fe := p.checkTarget(u); fe != nil {
		return nil, fe
	}
	return u, nil
}

func (p Policy) checkTarget(u *url.URL) *FetchError {
	scheme := strings.ToLower(u.Scheme)
	if !p.schemeAllowed(scheme) {
		return newFetchError(KindDisallowedProtocol,
			fmt.Sprintf("Protocol not allowed: %s:. Only HTTP and HTTPS are supported", scheme))
	}
	host := strings.ToLower(u.Hostname())
	for _, keyword := range p.BlockedHostKeywords {
		kw := strings.ToLower(strings.TrimSpace(keyword))
		if kw == "" {
			continue
		}
		if strings.Contains(host, kw) {
			return newFetchError(KindBlockedHostname,
				fmt.Sprintf("Access to %s endpoints is not allowed", kw))
		}
	}
	return nil
}

func (p Policy) schemeAllowed(scheme string) bool {
	for _, s := range p.AllowedSchemes {
		if strings.EqualFold(s, scheme) {
			return true
		}
	}
	return false
}
