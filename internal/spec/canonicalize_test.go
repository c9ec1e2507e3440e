package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEndpoint() Endpoint {
	return Endpoint{
		Method:      "POST",
		Path:        "/users/{id}/orders",
		Summary:     "Create an order",
		Description: "Creates an order for a user",
		Tags:        []string{"orders", "users"},
		Parameters: []Parameter{
			{Name: "id", In: "path", Required: true, Schema: map[string]interface{}{"type": "integer"}},
			{Name: "dry_run", In: "query", Schema: map[string]interface{}{"type": "boolean"}},
		},
		RequestBody: map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"sku"},
			"properties": map[string]interface{}{
				"sku":      map[string]interface{}{"type": "string"},
				"quantity": map[string]interface{}{"type": "integer"},
			},
		},
		RequestBodyRequired: true,
		Responses: map[string]map[string]interface{}{
			"201": {"type": "object"},
			"400": nil,
		},
		AuthRequired: true,
		AuthKind:     AuthBearer,
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	ep := sampleEndpoint()

	h1, err := Fingerprint(ep)
	require.NoError(t, err)
	h2, err := Fingerprint(ep)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64) // blake3-256 hex
}

// Cosmetic edits must not move the fingerprint: rewording descriptions,
// reordering tags, renaming the operation.
func TestFingerprintIgnoresCosmeticFields(t *testing.T) {
	base := sampleEndpoint()
	h1, err := Fingerprint(base)
	require.NoError(t, err)

	reworded := sampleEndpoint()
	reworded.Summary = "Place a new order"
	reworded.Description = "Totally different wording"
	reworded.Tags = []string{"users", "orders"}
	reworded.OperationID = "createOrderV2"

	h2, err := Fingerprint(reworded)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestFingerprintIgnoresParameterOrder(t *testing.T) {
	base := sampleEndpoint()
	h1, err := Fingerprint(base)
	require.NoError(t, err)

	shuffled := sampleEndpoint()
	shuffled.Parameters = []Parameter{shuffled.Parameters[1], shuffled.Parameters[0]}

	h2, err := Fingerprint(shuffled)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestFingerprintTracksSemanticChanges(t *testing.T) {
	base := sampleEndpoint()
	h1, err := Fingerprint(base)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Endpoint)
	}{
		{"method", func(e *Endpoint) { e.Method = "PUT" }},
		{"path", func(e *Endpoint) { e.Path = "/users/{id}/carts" }},
		{"parameter added", func(e *Endpoint) {
			e.Parameters = append(e.Parameters, Parameter{Name: "verbose", In: "query"})
		}},
		{"parameter requiredness", func(e *Endpoint) { e.Parameters[1].Required = true }},
		{"body schema", func(e *Endpoint) {
			e.RequestBody["properties"].(map[string]interface{})["note"] = map[string]interface{}{"type": "string"}
		}},
		{"response added", func(e *Endpoint) { e.Responses["409"] = nil }},
		{"auth dropped", func(e *Endpoint) { e.AuthRequired = false; e.AuthKind = AuthNone }},
		{"auth kind", func(e *Endpoint) { e.AuthKind = AuthAPIKey }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := sampleEndpoint()
			tt.mutate(&ep)
			h2, err := Fingerprint(ep)
			require.NoError(t, err)
			assert.NotEqual(t, h1, h2)
		})
	}
}

// Two structurally identical cyclic schemas must produce equal fingerprints.
func TestFingerprintCyclicSchemaSentinel(t *testing.T) {
	build := func() Endpoint {
		return Endpoint{
			Method: "POST",
			Path:   "/nodes",
			RequestBody: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"children": map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"$cycle": "Node"},
					},
				},
			},
		}
	}

	h1, err := Fingerprint(build())
	require.NoError(t, err)
	h2, err := Fingerprint(build())
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestSourceHash(t *testing.T) {
	a := SourceHash([]byte("openapi: 3.0.0"))
	b := SourceHash([]byte("openapi: 3.0.0"))
	c := SourceHash([]byte("openapi: 3.0.1"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestEndpointListRoundTrip(t *testing.T) {
	list := []Endpoint{
		sampleEndpoint(),
		{Method: "GET", Path: "/health", Responses: map[string]map[string]interface{}{"200": nil}},
	}

	data, err := MarshalEndpoints(list)
	require.NoError(t, err)

	parsed, err := UnmarshalEndpoints(data)
	require.NoError(t, err)
	require.Len(t, parsed, 2)

	// Fingerprints survive the round trip even when map value types shift
	// through JSON.
	for i := range list {
		h1, err := Fingerprint(list[i])
		require.NoError(t, err)
		h2, err := Fingerprint(parsed[i])
		require.NoError(t, err)
		assert.Equal(t, h1, h2)
	}
	assert.Equal(t, list[0].ID(), parsed[0].ID())
	assert.Equal(t, list[0].Tags, parsed[0].Tags)
}
