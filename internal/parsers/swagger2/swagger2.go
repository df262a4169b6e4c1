package swagger2

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"

	"yasp/internal/parsers/openapi"
)

func LooksLikeSwagger2(raw []byte) bool {
	lower := strings.ToLower(string(raw))
	return strings.Contains(lower, "\"swagger\"") || strings.Contains(lower, "swagger:")
}

// Load decodes a Swagger 2.0 document from JSON or YAML.
func Load(raw []byte) (*openapi2.T, error) {
	var doc openapi2.T
	if err := json.Unmarshal(raw, &doc); err != nil {
		data, yerr := openapi.YAMLToJSON(raw)
		if yerr != nil {
			return nil, fmt.Errorf("swagger2: decode failed: %w", yerr)
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("swagger2: decode failed: %w", err)
		}
	}
	if doc.Swagger == "" {
		return nil, fmt.Errorf("swagger2: missing swagger version")
	}
	return &doc, nil
}

// Validate converts the document to OpenAPI 3 and validates the result.
func Validate(ctx context.Context, raw []byte) error {
	doc, err := Load(raw)
	if err != nil {
		return err
	}
	v3, err := openapi2conv.ToV3(doc)
	if err != nil {
		return fmt.Errorf("swagger2: convert to v3 failed: %w", err)
	}
	data, err := json.Marshal(v3)
	if err != nil {
		return fmt.Errorf("swagger2: encode v3 failed: %w", err)
	}
	return openapi.Validate(ctx, data)
}
