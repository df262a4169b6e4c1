package swagger2

import (
	"context"
	"testing"
)

const pets = `{
  "swagger": "2.0",
  "info": {"title": "Pets", "version": "1.0"},
  "host": "example.com",
  "basePath": "/v1",
  "schemes": ["https"],
  "paths": {
    "/pets": {
      "get": {
        "operationId": "listPets",
        "parameters": [
          {"name": "limit", "in": "query", "type": "integer"}
        ],
        "responses": {
          "200": {"description": "ok"}
        }
      }
    }
  }
}`

func TestLoad(t *testing.T) {
	doc, err := Load([]byte(pets))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if doc.Host != "example.com" || doc.BasePath != "/v1" {
		t.Fatalf("unexpected host/basePath: %q %q", doc.Host, doc.BasePath)
	}
	if len(doc.Schemes) != 1 || doc.Schemes[0] != "https" {
		t.Fatalf("unexpected schemes: %v", doc.Schemes)
	}
}

func TestLoadYAML(t *testing.T) {
	doc, err := Load([]byte("swagger: \"2.0\"\ninfo:\n  title: t\n  version: \"1\"\nhost: api.local:8080\nbasePath: /api\npaths: {}\n"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if doc.Host != "api.local:8080" || doc.BasePath != "/api" {
		t.Fatalf("unexpected host/basePath: %q %q", doc.Host, doc.BasePath)
	}
}

func TestLoadMissingVersion(t *testing.T) {
	if _, err := Load([]byte(`{"info": {"title": "t"}}`)); err == nil {
		t.Fatal("expected error for missing swagger version")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(context.Background(), []byte(pets)); err != nil {
		t.Fatalf("expected valid document, got %v", err)
	}
}
