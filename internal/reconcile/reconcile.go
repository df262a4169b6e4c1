// Package reconcile merges resolved server URLs and the user's declared
// endpoint into the "servers" array of an OpenAPI document without changing
// the document's serialization format.
package reconcile

import (
	"strings"
	"unicode"
)

// Format is the serialization of a spec document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ServerConfig is one entry of an OpenAPI servers array after URL
// resolution.
type ServerConfig struct {
	URL         string `json:"url" yaml:"url"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Result describes a reconciliation. When ParseFailed is set, Content is the
// input returned unchanged.
type Result struct {
	Content     string
	Format      Format
	ParseFailed bool
}

// DetectFormat sniffs the first non-whitespace character: '{' or '[' means
// JSON, anything else YAML.
func DetectFormat(content string) Format {
	trimmed := strings.TrimLeftFunc(content, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\uFEFF'
	})
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return FormatJSON
	}
	return FormatYAML
}

// Servers returns content with its servers array reconciled against
// resolved and endpoint. Malformed documents are returned unchanged.
func Servers(content string, resolved []ServerConfig, endpoint string) string {
	return Apply(content, resolved, endpoint).Content
}

// Apply is Servers with a report of what happened.
//
// Existing server URLs are overwritten index-for-index by resolved (extra
// entries on either side are left alone). The endpoint, with trailing
// slashes stripped, is prepended unless some server already matches it
// after the same normalization. A document without servers gets a single
// entry for the endpoint, or none when the endpoint is empty.
//
// When the first server is the endpoint but resolved[0] is not, the
// endpoint entry is taken to be one a previous call prepended, and resolved
// is aligned from the second entry. This keeps repeated calls with the same
// arguments stable.
func Apply(content string, resolved []ServerConfig, endpoint string) Result {
	format := DetectFormat(content)
	var (
		out string
		ok  bool
	)
	switch format {
	case FormatJSON:
		out, ok = reconcileJSON(content, resolved, normalizeURL(endpoint))
	default:
		out, ok = reconcileYAML(content, resolved, normalizeURL(endpoint))
	}
	if !ok {
		return Result{Content: content, Format: format, ParseFailed: true}
	}
	return Result{Content: out, Format: format}
}

// normalizeURL strips trailing slashes. Scheme, host case and default
// ports are compared as written.
func normalizeURL(u string) string {
	return strings.TrimRight(u, "/")
}

// overwriteRange returns the first index to overwrite and how many entries
// to overwrite, given the current server URLs.
func overwriteRange(current []string, resolved []ServerConfig, endpoint string) (offset, n int) {
	if endpoint != "" && len(current) > 0 && len(resolved) > 0 &&
		normalizeURL(current[0]) == endpoint && normalizeURL(resolved[0].URL) != endpoint {
		offset = 1
	}
	n = len(current) - offset
	if len(resolved) < n {
		n = len(resolved)
	}
	return offset, n
}
