package spec

import (
	"context"
	"net/url"

	"yasp/internal/parsers/openapi"
	"yasp/internal/reconcile"
)

type OpenAPIAdapter struct{}

func NewOpenAPIAdapter() *OpenAPIAdapter {
	return &OpenAPIAdapter{}
}

func (a *OpenAPIAdapter) Name() string { return "openapi" }

func (a *OpenAPIAdapter) Detect(raw []byte) bool {
	return openapi.LooksLikeOpenAPI(raw)
}

func (a *OpenAPIAdapter) Servers(raw []byte, origin *url.URL) ([]reconcile.ServerConfig, error) {
	doc, err := openapi.Load(raw)
	if err != nil {
		return nil, err
	}
	out := make([]reconcile.ServerConfig, 0, len(doc.Servers))
	for _, srv := range doc.Servers {
		if srv == nil {
			continue
		}
		defaults := make(map[string]string, len(srv.Variables))
		for name, v := range srv.Variables {
			if v != nil {
				defaults[name] = v.Default
			}
		}
		out = append(out, reconcile.ServerConfig{
			URL:         resolveServerURL(expandVariables(srv.URL, defaults), origin),
			Description: srv.Description,
		})
	}
	return out, nil
}

func (a *OpenAPIAdapter) Validate(ctx context.Context, raw []byte) error {
	return openapi.Validate(ctx, raw)
}
