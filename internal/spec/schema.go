package spec

import (
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// SchemaToMap converts a resolved kin-openapi schema into a plain JSON map.
// Schemas form a DAG once $ref pointers are resolved; cycles are replaced by
// a sentinel keyed by the cycle's entry node so two structurally identical
// cyclic schemas compare equal.
func SchemaToMap(ref *openapi3.SchemaRef) map[string]interface{} {
	return schemaToMap(ref, make(map[*openapi3.Schema]bool))
}

func schemaToMap(ref *openapi3.SchemaRef, visiting map[*openapi3.Schema]bool) map[string]interface{} {
	if ref == nil || ref.Value == nil {
		return nil
	}
	schema := ref.Value

	if visiting[schema] {
		return map[string]interface{}{"$cycle": cycleID(ref)}
	}
	visiting[schema] = true
	defer delete(visiting, schema)

	out := make(map[string]interface{})

	if schema.Type != nil && len(*schema.Type) > 0 {
		out["type"] = (*schema.Type)[0]
	}
	if schema.Format != "" {
		out["format"] = schema.Format
	}
	if len(schema.Enum) > 0 {
		out["enum"] = append([]interface{}(nil), schema.Enum...)
	}
	if schema.Pattern != "" {
		out["pattern"] = schema.Pattern
	}
	if schema.Min != nil {
		out["minimum"] = *schema.Min
	}
	if schema.Max != nil {
		out["maximum"] = *schema.Max
	}
	if schema.MinLength > 0 {
		out["minLength"] = schema.MinLength
	}
	if schema.MaxLength != nil {
		out["maxLength"] = *schema.MaxLength
	}
	if schema.Nullable {
		out["nullable"] = true
	}
	if schema.Default != nil {
		out["default"] = schema.Default
	}
	if len(schema.Required) > 0 {
		required := make([]interface{}, len(schema.Required))
		for i, r := range schema.Required {
			required[i] = r
		}
		out["required"] = required
	}
	if len(schema.Properties) > 0 {
		props := make(map[string]interface{}, len(schema.Properties))
		for name, prop := range schema.Properties {
			props[name] = schemaToMap(prop, visiting)
		}
		out["properties"] = props
	}
	if schema.Items != nil {
		out["items"] = schemaToMap(schema.Items, visiting)
	}

	return out
}

// cycleID names a cycle by its entry node. Referenced schemas use the final
// path segment of the $ref; anonymous cycles collapse to a fixed sentinel.
func cycleID(ref *openapi3.SchemaRef) string {
	if ref.Ref != "" {
		parts := strings.Split(ref.Ref, "/")
		return parts[len(parts)-1]
	}
	return "self"
}
