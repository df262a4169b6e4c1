package spec

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"yasp/internal/reconcile"
)

// ErrUnsupportedSpec is returned when no adapter recognises a document.
var ErrUnsupportedSpec = errors.New("no supported spec format detected")

// InferServers lists the servers a document declares, in document order,
// with variables replaced by their defaults and relative URLs resolved
// against origin (the URL the document was fetched from, may be empty).
func InferServers(ctx context.Context, content string, origin string) ([]reconcile.ServerConfig, error) {
	return inferServers(ctx, DefaultAdapters(), content, origin)
}

func inferServers(ctx context.Context, adapters []SpecAdapter, content string, origin string) ([]reconcile.ServerConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw := []byte(content)
	adapter := detectAdapter(adapters, raw)
	if adapter == nil {
		return nil, ErrUnsupportedSpec
	}
	return adapter.Servers(raw, parseOrigin(origin))
}

// ValidateSpec runs the matching adapter's validation.
func ValidateSpec(ctx context.Context, content string) error {
	raw := []byte(content)
	adapter := detectAdapter(DefaultAdapters(), raw)
	if adapter == nil {
		return ErrUnsupportedSpec
	}
	return adapter.Validate(ctx, raw)
}

func parseOrigin(origin string) *url.URL {
	if origin == "" {
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil
	}
	return u
}

func expandVariables(raw string, defaults map[string]string) string {
	for name, value := range defaults {
		raw = strings.ReplaceAll(raw, "{"+name+"}", value)
	}
	return raw
}

func resolveServerURL(raw string, origin *url.URL) string {
	if origin == nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil || ref.IsAbs() {
		return raw
	}
	return origin.ResolveReference(ref).String()
}
