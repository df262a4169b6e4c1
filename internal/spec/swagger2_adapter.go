package spec

import (
	"context"
	"net/url"
	"strings"

	"yasp/internal/parsers/swagger2"
	"yasp/internal/reconcile"
)

type Swagger2Adapter struct{}

func NewSwagger2Adapter() *Swagger2Adapter {
	return &Swagger2Adapter{}
}

func (a *Swagger2Adapter) Name() string { return "swagger2" }

func (a *Swagger2Adapter) Detect(raw []byte) bool {
	return swagger2.LooksLikeSwagger2(raw)
}

// Servers derives one server per scheme from host and basePath. Without
// schemes the origin's scheme is used, then https. Without a host the
// basePath is resolved against the origin.
func (a *Swagger2Adapter) Servers(raw []byte, origin *url.URL) ([]reconcile.ServerConfig, error) {
	doc, err := swagger2.Load(raw)
	if err != nil {
		return nil, err
	}
	basePath := doc.BasePath
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if doc.Host == "" {
		if basePath == "" {
			return nil, nil
		}
		return []reconcile.ServerConfig{{URL: resolveServerURL(basePath, origin)}}, nil
	}
	schemes := doc.Schemes
	if len(schemes) == 0 {
		if origin != nil && origin.Scheme != "" {
			schemes = []string{origin.Scheme}
		} else {
			schemes = []string{"https"}
		}
	}
	out := make([]reconcile.ServerConfig, 0, len(schemes))
	for _, scheme := range schemes {
		out = append(out, reconcile.ServerConfig{URL: strings.ToLower(scheme) + "://" + doc.Host + basePath})
	}
	return out, nil
}

func (a *Swagger2Adapter) Validate(ctx context.Context, raw []byte) error {
	return swagger2.Validate(ctx, raw)
}
