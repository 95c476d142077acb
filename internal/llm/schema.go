package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildEditInstructionSchema returns a JSON-Schema (draft 2020-12 subset)
// as a generic map constraining model output to the closed edit vocabulary.
// When the table's columns are known they become enums, so the model cannot
// invent column names.
func BuildEditInstructionSchema(columns []string) map[string]any {
	colProp := func() map[string]any {
		p := map[string]any{"type": "string", "minLength": 1}
		if len(columns) > 0 {
			p = map[string]any{"type": "string", "enum": columns}
		}
		return p
	}

	sortSchema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"op":        map[string]any{"const": "sort"},
			"column":    colProp(),
			"ascending": map[string]any{"type": "boolean"},
		},
		"required": []string{"op", "column"},
	}
	filterSchema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"op":     map[string]any{"const": "filter"},
			"column": colProp(),
			"cmp": map[string]any{
				"type": "string",
				"enum": []string{"eq", "ne", "gt", "ge", "lt", "le", "contains"},
			},
			"value": map[string]any{"type": []string{"string", "number", "boolean", "null"}},
		},
		"required": []string{"op", "column", "cmp", "value"},
	}
	aggregateSchema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"op":     map[string]any{"const": "append_aggregate_row"},
			"column": colProp(),
			"operation": map[string]any{
				"type": "string",
				"enum": []string{"sum", "avg", "count", "min", "max"},
			},
		},
		"required": []string{"op", "column", "operation"},
	}
	renameSchema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"op":   map[string]any{"const": "rename_column"},
			"from": colProp(),
			"to":   map[string]any{"type": "string", "minLength": 1},
		},
		"required": []string{"op", "from", "to"},
	}

	return map[string]any{
		"oneOf": []any{sortSchema, filterSchema, aggregateSchema, renameSchema},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
