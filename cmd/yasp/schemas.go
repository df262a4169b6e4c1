package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const fetchSpecSchema = `{
  "type": "object",
  "required": ["url"],
  "properties": {
    "url": {"type": "string"}
  },
  "additionalProperties": false
}`

const reconcileSchema = `{
  "type": "object",
  "required": ["content"],
  "properties": {
    "content": {"type": "string"},
    "endpoint": {"type": "string"},
    "resolvedServers": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["url"],
        "properties": {
          "url": {"type": "string"},
          "description": {"type": "string"}
        }
      }
    }
  },
  "additionalProperties": false
}`

const inferServersSchema = `{
  "type": "object",
  "required": ["content"],
  "properties": {
    "content": {"type": "string"},
    "origin": {"type": "string"}
  },
  "additionalProperties": false
}`

const importSpecSchema = `{
  "type": "object",
  "required": ["name"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "endpoint": {"type": "string"},
    "specUrl": {"type": "string", "minLength": 1},
    "content": {"type": "string", "minLength": 1}
  },
  "oneOf": [
    {"required": ["specUrl"], "not": {"required": ["content"]}},
    {"required": ["content"], "not": {"required": ["specUrl"]}}
  ],
  "additionalProperties": false
}`

var (
	fetchSpecValidator    = mustCompileSchema("fetch-spec.json", fetchSpecSchema)
	reconcileValidator    = mustCompileSchema("reconcile.json", reconcileSchema)
	inferServersValidator = mustCompileSchema("infer-servers.json", inferServersSchema)
	importSpecValidator   = mustCompileSchema("import-spec.json", importSpecSchema)
)

func compileSchema(name, schema string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(schema)); err != nil {
		return nil, err
	}
	return compiler.Compile(name)
}

func mustCompileSchema(name, schema string) *jsonschema.Schema {
	s, err := compileSchema(name, schema)
	if err != nil {
		panic(fmt.Sprintf("compile %s: %v", name, err))
	}
	return s
}

// errBodyTooLarge is reported as 413.
var errBodyTooLarge = errors.New("request body too large")

// decodeBody reads a capped JSON body, validates it against schema and
// decodes it into dst.
func (s *server) decodeBody(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxRequestBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return fmt.Errorf("read body: %w", err)
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("invalid json body: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("invalid request: %s", schemaMessage(verr))
		}
		return fmt.Errorf("invalid request: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

// schemaMessage returns the most specific cause of a validation failure.
func schemaMessage(verr *jsonschema.ValidationError) string {
	for len(verr.Causes) > 0 {
		verr = verr.Causes[0]
	}
	loc := verr.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return fmt.Sprintf("%s: %s", loc, verr.Message)
}

func (s *server) writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}
