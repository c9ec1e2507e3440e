package spec

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"
)

// Canonicalize returns a canonical JSON representation of an endpoint's
// semantic content with stable ordering for consistent hashing. Cosmetic
// fields (summary, description, tags, operation id) are excluded so
// rewording or tag reordering never changes the digest.
func Canonicalize(e Endpoint) ([]byte, error) {
	params := append([]Parameter(nil), e.Parameters...)
	sort.Slice(params, func(i, j int) bool {
		if params[i].Name != params[j].Name {
			return params[i].Name < params[j].Name
		}
		return params[i].In < params[j].In
	})

	paramMaps := make([]map[string]interface{}, len(params))
	for i, p := range params {
		m := map[string]interface{}{
			"name":     p.Name,
			"in":       p.In,
			"required": p.Required,
		}
		if p.Schema != nil {
			m["schema"] = p.Schema
		}
		paramMaps[i] = m
	}

	data := map[string]interface{}{
		"method":     e.Method,
		"path":       e.Path,
		"parameters": paramMaps,
		"auth": map[string]interface{}{
			"required": e.AuthRequired,
			"kind":     string(e.AuthKind),
		},
	}

	if e.RequestBody != nil {
		data["request_body"] = e.RequestBody
		data["request_body_required"] = e.RequestBodyRequired
	}

	if len(e.Responses) > 0 {
		responses := make(map[string]interface{}, len(e.Responses))
		for status, schema := range e.Responses {
			if schema == nil {
				responses[status] = nil
				continue
			}
			responses[status] = schema
		}
		data["responses"] = responses
	}

	return json.Marshal(sortKeys(data))
}

// Fingerprint computes the blake3 digest of a canonicalized endpoint,
// hex encoded.
func Fingerprint(e Endpoint) (string, error) {
	canonical, err := Canonicalize(e)
	if err != nil {
		return "", fmt.Errorf("canonicalize endpoint: %w", err)
	}

	hasher := blake3.New()
	if _, err := hasher.Write(canonical); err != nil {
		return "", fmt.Errorf("hash endpoint: %w", err)
	}

	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// SourceHash digests a raw API document. The hash is recorded in the state
// file and seeds assignment; runs do not short-circuit on it.
func SourceHash(data []byte) string {
	sum := blake3.Sum256(data)
	return fmt.Sprintf("%x", sum[:])
}

// sortKeys recursively sorts map keys for stable JSON output. Array order is
// preserved: it is semantically significant in schemas.
func sortKeys(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sorted := make(map[string]interface{}, len(val))
		for _, k := range keys {
			sorted[k] = sortKeys(val[k])
		}
		return sorted

	case []interface{}:
		for i, item := range val {
			val[i] = sortKeys(item)
		}
		return val

	case []map[string]interface{}:
		for i, item := range val {
			val[i] = sortKeys(item).(map[string]interface{})
		}
		return val

	default:
		return v
	}
}
