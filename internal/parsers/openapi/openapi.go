package openapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

func LooksLikeOpenAPI(raw []byte) bool {
	lower := strings.ToLower(string(raw))
	return strings.Contains(lower, "openapi:") || strings.Contains(lower, "\"openapi\"")
}

// Load parses an OpenAPI 3 document from JSON or YAML. External $refs are
// not followed: the document comes from an untrusted source and resolving
// them would issue requests that bypass the fetch policy.
func Load(raw []byte) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("openapi: load: %w", err)
	}
	return doc, nil
}

var validationOptions = []openapi3.ValidationOption{
	openapi3.DisableExamplesValidation(),
	openapi3.DisableSchemaDefaultsValidation(),
}

// Validate reports structural problems in an OpenAPI 3 document. Invalid
// examples are tolerated: when the first pass fails, the document is
// validated again with every example stripped.
func Validate(ctx context.Context, raw []byte) error {
	doc, err := Load(raw)
	if err != nil {
		return err
	}
	verr := doc.Validate(ctx, validationOptions...)
	if verr == nil {
		return nil
	}
	sanitized, serr := sanitizeExamples(raw)
	if serr != nil {
		return fmt.Errorf("openapi: %w", verr)
	}
	doc2, lerr := Load(sanitized)
	if lerr != nil {
		return fmt.Errorf("openapi: %w", verr)
	}
	if doc2.Validate(ctx, validationOptions...) == nil {
		return nil
	}
	return fmt.Errorf("openapi: %w", verr)
}

func sanitizeExamples(raw []byte) ([]byte, error) {
	var payload any
	if err := yaml.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return json.Marshal(normalizeYAML(removeExampleFields(payload)))
}

// YAMLToJSON re-encodes a YAML (or JSON) document as JSON so it can be
// decoded into types that only carry json tags.
func YAMLToJSON(raw []byte) ([]byte, error) {
	var payload any
	if err := yaml.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return json.Marshal(normalizeYAML(payload))
}

func removeExampleFields(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			if key == "example" || key == "examples" {
				continue
			}
			out[key] = removeExampleFields(val)
		}
		return out
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, removeExampleFields(item))
		}
		return out
	default:
		return v
	}
}

// normalizeYAML turns non-string map keys into strings so the value can be
// marshalled as JSON.
func normalizeYAML(value any) any {
	switch v := value.(type) {
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[fmt.Sprint(key)] = normalizeYAML(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[key] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, normalizeYAML(item))
		}
		return out
	default:
		return v
	}
}
