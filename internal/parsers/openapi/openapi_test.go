package openapi

import (
	"context"
	"testing"
)

const petstore = `openapi: 3.0.0
info:
  title: Petstore
  version: "1.0"
servers:
  - url: https://{region}.example.com/v1
    variables:
      region:
        default: eu
paths:
  /pets:
    get:
      operationId: listPets
      responses:
        "200":
          description: ok
`

func TestLoadYAML(t *testing.T) {
	doc, err := Load([]byte(petstore))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(doc.Servers) != 1 {
		t.Fatalf("expected 1 server, got %d", len(doc.Servers))
	}
	if doc.Servers[0].Variables["region"].Default != "eu" {
		t.Fatalf("server variable default not loaded")
	}
}

func TestLooksLikeOpenAPI(t *testing.T) {
	if !LooksLikeOpenAPI([]byte(petstore)) {
		t.Fatal("expected yaml document to be detected")
	}
	if !LooksLikeOpenAPI([]byte(`{"openapi":"3.1.0"}`)) {
		t.Fatal("expected json document to be detected")
	}
	if LooksLikeOpenAPI([]byte(`{"swagger":"2.0"}`)) {
		t.Fatal("swagger 2 document detected as openapi 3")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(context.Background(), []byte(petstore)); err != nil {
		t.Fatalf("expected valid document, got %v", err)
	}
	missingResponses := []byte(`{
  "openapi": "3.0.0",
  "info": {"title": "t", "version": "1"},
  "paths": {"/x": {"get": {"operationId": "x"}}}
}`)
	if err := Validate(context.Background(), missingResponses); err == nil {
		t.Fatal("expected validation error for operation without responses")
	}
}

func TestValidateToleratesBadExamples(t *testing.T) {
	spec := []byte(`{
  "openapi": "3.0.0",
  "info": {"title": "t", "version": "1"},
  "paths": {
    "/x": {
      "get": {
        "responses": {
          "200": {
            "description": "ok",
            "content": {"application/json": {
              "schema": {"type": "integer"},
              "example": "not a number"
            }}
          }
        }
      }
    }
  }
}`)
	if err := Validate(context.Background(), spec); err != nil {
		t.Fatalf("expected examples to be ignored, got %v", err)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	if _, err := Load([]byte("{not json")); err == nil {
		t.Fatal("expected load error")
	}
}
