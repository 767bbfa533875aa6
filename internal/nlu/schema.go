package nlu

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// responseSchema describes the object the model must return.
var responseSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"vendor": map[string]any{"type": []string{"string", "null"}},
		"occurred_at": map[string]any{
			"type":    "string",
			"pattern": `^(\d{4}-)?\d{2}-\d{2}[ T]\d{2}:\d{2}(:\d{2})?$`,
		},
		"amount": map[string]any{
			"anyOf": []any{
				map[string]any{"type": "integer", "minimum": 1},
				map[string]any{"type": "string", "pattern": `^\s*\d[\d,]*\s*원?\s*$`},
			},
		},
		"merchant_name": map[string]any{"type": []string{"string", "null"}},
	},
	"required": []string{"occurred_at", "amount"},
}

// compileSchema compiles schemaMap once so the extractor can validate every reply.
func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("response.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("response.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// decodeAndValidate decodes data with json.Number preserved and checks it
// against schema.
func decodeAndValidate(schema *jsonschema.Schema, data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("json does not match schema: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top-level value is %T, want object", v)
	}
	return obj, nil
}
