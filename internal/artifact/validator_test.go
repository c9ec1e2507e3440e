package artifact

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Devliang24/casecraft/internal/complexity"
	"github.com/Devliang24/casecraft/internal/errors"
	"github.com/Devliang24/casecraft/internal/spec"
)

var validatorEndpoint = spec.Endpoint{
	Method: "GET",
	Path:   "/users/{id}",
	Responses: map[string]map[string]interface{}{
		"200": {"type": "object"},
	},
}

var validatorBudget = complexity.Budget{Positive: 2, Negative: 3, Boundary: 1}

// rawCases emits a syntactically valid response with the given type counts.
func rawCases(positive, negative, boundary int) string {
	var cases []map[string]interface{}
	add := func(n int, testType string, status int) {
		for i := 0; i < n; i++ {
			cases = append(cases, map[string]interface{}{
				"name":            fmt.Sprintf("%s case %d", testType, i+1),
				"description":     "generated scenario",
				"method":          "GET",
				"path":            "/users/{id}",
				"headers":         map[string]string{"Accept": "application/json"},
				"query_params":    map[string]interface{}{},
				"body":            nil,
				"expected_status": status,
				"test_type":       testType,
				"tags":            []string{"users"},
			})
		}
	}
	add(positive, TypePositive, 200)
	add(negative, TypeNegative, 400)
	add(boundary, TypeBoundary, 200)

	data, _ := json.Marshal(cases)
	return string(data)
}

func TestValidateAccepts(t *testing.T) {
	v := NewValidator()
	prov := Provenance{Provider: "glm", Model: "glm-4", APIVersion: "1.0"}

	cases, err := v.Validate(rawCases(2, 3, 1), validatorEndpoint, validatorBudget, prov)
	require.NoError(t, err)
	require.Len(t, cases, 6)

	for _, tc := range cases {
		assert.True(t, ValidPriority(tc.Priority))
		assert.Equal(t, "glm", tc.Metadata.LLMProvider)
		assert.Equal(t, "glm-4", tc.Metadata.LLMModel)
		assert.False(t, tc.Metadata.GeneratedAt.IsZero())
		assert.Equal(t, "UTC", tc.Metadata.GeneratedAt.Location().String())
	}

	// Positive 200-cases inherit the declared response schema.
	for _, tc := range cases {
		if tc.TestType == TypePositive {
			assert.NotNil(t, tc.ExpectedResponseSchema)
		}
	}
}

func TestValidateAcceptsMarkdownFencedOutput(t *testing.T) {
	v := NewValidator()
	raw := "```json\n" + rawCases(2, 3, 1) + "\n```"

	cases, err := v.Validate(raw, validatorEndpoint, validatorBudget, Provenance{Provider: "qwen"})
	require.NoError(t, err)
	assert.Len(t, cases, 6)
}

func TestValidateToleratesOffByOneCounts(t *testing.T) {
	v := NewValidator()

	_, err := v.Validate(rawCases(3, 2, 2), validatorEndpoint, validatorBudget, Provenance{})
	assert.NoError(t, err, "every type within ±1 of budget")
}

func TestValidateRejects(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name string
		raw  func() string
	}{
		{"not json", func() string { return "sorry, I cannot help" }},
		{"empty array", func() string { return "[]" }},
		{"budget blown", func() string { return rawCases(5, 0, 1) }},
		{"wrong method", func() string {
			var cases []map[string]interface{}
			json.Unmarshal([]byte(rawCases(2, 3, 1)), &cases)
			cases[0]["method"] = "POST"
			data, _ := json.Marshal(cases)
			return string(data)
		}},
		{"wrong path", func() string {
			var cases []map[string]interface{}
			json.Unmarshal([]byte(rawCases(2, 3, 1)), &cases)
			cases[0]["path"] = "/other"
			data, _ := json.Marshal(cases)
			return string(data)
		}},
		{"empty name", func() string {
			var cases []map[string]interface{}
			json.Unmarshal([]byte(rawCases(2, 3, 1)), &cases)
			cases[0]["name"] = "  "
			data, _ := json.Marshal(cases)
			return string(data)
		}},
		{"missing expected_status", func() string {
			var cases []map[string]interface{}
			json.Unmarshal([]byte(rawCases(2, 3, 1)), &cases)
			delete(cases[0], "expected_status")
			data, _ := json.Marshal(cases)
			return string(data)
		}},
		{"unknown test_type", func() string {
			var cases []map[string]interface{}
			json.Unmarshal([]byte(rawCases(2, 3, 1)), &cases)
			cases[0]["test_type"] = "smoke"
			data, _ := json.Marshal(cases)
			return string(data)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(tt.raw(), validatorEndpoint, validatorBudget, Provenance{})
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeInvalidOutput, errors.CodeOf(err))
		})
	}
}

// Priorities are sliced per type in emitted order, so a type with enough
// cases gets P0 first and P2 last.
func TestValidateAssignsPrioritiesPerType(t *testing.T) {
	v := NewValidator()
	budget := complexity.Budget{Positive: 3, Negative: 4, Boundary: 3}

	cases, err := v.Validate(rawCases(3, 4, 3), validatorEndpoint, budget, Provenance{})
	require.NoError(t, err)

	var negatives []TestCase
	for _, tc := range cases {
		if tc.TestType == TypeNegative {
			negatives = append(negatives, tc)
		}
	}
	require.Len(t, negatives, 4)
	assert.Equal(t, PriorityP0, negatives[0].Priority)
	assert.Equal(t, PriorityP2, negatives[3].Priority)
}

func TestCleanResponse(t *testing.T) {
	want := `[{"a":1}]`
	tests := []string{
		want,
		"```json\n[{\"a\":1}]\n```",
		"```\n[{\"a\":1}]\n```",
		"Here are the cases:\n[{\"a\":1}]\nHope that helps!",
	}
	for _, raw := range tests {
		assert.Equal(t, want, CleanResponse(raw))
	}
}
