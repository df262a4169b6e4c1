package spec

import (
	"context"
	"net/url"

	"yasp/internal/reconcile"
)

// SpecAdapter detects a spec dialect, lists its servers and validates it.
type SpecAdapter interface {
	Name() string
	Detect(raw []byte) bool
	Servers(raw []byte, origin *url.URL) ([]reconcile.ServerConfig, error)
	Validate(ctx context.Context, raw []byte) error
}

// DefaultAdapters returns the adapters in detection order.
func DefaultAdapters() []SpecAdapter {
	return []SpecAdapter{
		NewOpenAPIAdapter(),
		NewSwagger2Adapter(),
	}
}

func detectAdapter(adapters []SpecAdapter, raw []byte) SpecAdapter {
	for _, a := range adapters {
		if a.Detect(raw) {
			return a
		}
	}
	return nil
}
