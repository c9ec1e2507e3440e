// Package complexity scores endpoints by surface area and derives the
// test-case budget and priority distribution each endpoint needs.
package complexity

import (
	"github.com/Devliang24/casecraft/internal/spec"
)

// Tier buckets a complexity score.
type Tier string

const (
	TierSimple  Tier = "simple"  // score ≤ 5
	TierMedium  Tier = "medium"  // 6–10
	TierComplex Tier = "complex" // > 10
)

// Score sums an endpoint's surface area:
//
//	2 × path parameters, 1 × query, 1 × header
//	request-body depth: +1 per object level, +2 per array of objects,
//	  +1 per required field beyond three
//	+2 for POST/PUT/PATCH, +1 for DELETE
//	+3 when auth is required
//	+1 per declared response status beyond one
func Score(e spec.Endpoint) int {
	score := 0

	score += 2 * len(e.ParametersIn("path"))
	score += len(e.ParametersIn("query"))
	score += len(e.ParametersIn("header"))

	if e.RequestBody != nil {
		score += schemaDepthScore(e.RequestBody)
	}

	switch e.Method {
	case "POST", "PUT", "PATCH":
		score += 2
	case "DELETE":
		score++
	}

	if e.AuthRequired {
		score += 3
	}

	if n := len(e.Responses); n > 1 {
		score += n - 1
	}

	return score
}

// TierFor buckets a score. Boundaries are strict: 5 is simple, 6 and 10 are
// medium, 11 is complex.
func TierFor(score int) Tier {
	switch {
	case score <= 5:
		return TierSimple
	case score <= 10:
		return TierMedium
	default:
		return TierComplex
	}
}

// schemaDepthScore walks a request-body schema counting structural weight.
func schemaDepthScore(schema map[string]interface{}) int {
	if schema == nil {
		return 0
	}
	if _, cyclic := schema["$cycle"]; cyclic {
		return 0
	}

	score := 0
	typ, _ := schema["type"].(string)

	switch typ {
	case "object":
		score++
		if required, ok := schema["required"].([]interface{}); ok && len(required) > 3 {
			score += len(required) - 3
		}
		if props, ok := schema["properties"].(map[string]interface{}); ok {
			for _, prop := range props {
				if child, ok := prop.(map[string]interface{}); ok {
					score += schemaDepthScore(child)
				}
			}
		}
	case "array":
		if items, ok := schema["items"].(map[string]interface{}); ok {
			if itemType, _ := items["type"].(string); itemType == "object" {
				score += 2
				score += schemaDepthScore(items) - 1 // object level already paid by the +2
			} else {
				score += schemaDepthScore(items)
			}
		}
	}

	return score
}
