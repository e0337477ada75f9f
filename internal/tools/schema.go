package tools

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
	jsv "github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaFor reflects a JSON Schema for v. Definitions are inlined and the
// $schema/$id keys are removed so the result can be sent to model APIs as is.
// Fields without omitempty are required; extra properties are allowed.
func SchemaFor(v any) (map[string]any, error) {
	r := &jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		ExpandedStruct:            isStruct(reflect.TypeOf(v)),
		AllowAdditionalProperties: true,
	}
	data, err := json.Marshal(r.Reflect(v))
	if err != nil {
		return nil, fmt.Errorf("marshalling reflected schema: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding reflected schema: %w", err)
	}
	stripSchemaIDs(m)
	return m, nil
}

// isStruct reports whether t is a struct or a pointer to one. Only those
// have a definition the reflector can expand.
func isStruct(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

// compileSchema compiles a schema map into a validator.
func compileSchema(name string, schema map[string]any) (*jsv.Schema, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	doc, err := jsv.UnmarshalJSON(bytesReader(data))
	if err != nil {
		return nil, err
	}
	c := jsv.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		return nil, fmt.Errorf("adding schema %s: %w", name, err)
	}
	return c.Compile(name)
}

// stripSchemaIDs removes $schema and $id from every schema node. Maps keyed
// by property or definition name are not schema nodes themselves, so their
// keys are left alone.
func stripSchemaIDs(node map[string]any) {
	delete(node, "$schema")
	delete(node, "$id")
	for key, val := range node {
		switch key {
		case "properties", "patternProperties", "$defs", "definitions", "dependentSchemas":
			named, ok := val.(map[string]any)
			if !ok {
				continue
			}
			for _, sub := range named {
				if m, ok := sub.(map[string]any); ok {
					stripSchemaIDs(m)
				}
			}
		case "items", "additionalProperties", "not", "if", "then", "else", "contains", "propertyNames":
			if m, ok := val.(map[string]any); ok {
				stripSchemaIDs(m)
			}
		case "allOf", "anyOf", "oneOf", "prefixItems":
			list, ok := val.([]any)
			if !ok {
				continue
			}
			for _, sub := range list {
				if m, ok := sub.(map[string]any); ok {
					stripSchemaIDs(m)
				}
			}
		}
	}
}
