// Package artifact defines the generated test-case contract, validates LLM
// output against it, and persists artifact files.
package artifact

import "time"

// Test case types.
const (
	TypePositive = "positive"
	TypeNegative = "negative"
	TypeBoundary = "boundary"
)

// Priorities.
const (
	PriorityP0 = "P0"
	PriorityP1 = "P1"
	PriorityP2 = "P2"
)

// Metadata records provenance for a generated test case.
type Metadata struct {
	GeneratedAt time.Time `json:"generated_at"`
	APIVersion  string    `json:"api_version"`
	LLMModel    string    `json:"llm_model"`
	LLMProvider string    `json:"llm_provider"`
}

// TestCase is a single generated artifact entry. An artifact file is an
// ordered list of these, one file per endpoint.
type TestCase struct {
	Name                   string                 `json:"name"`
	Description            string                 `json:"description"`
	Priority               string                 `json:"priority"`
	Method                 string                 `json:"method"`
	Path                   string                 `json:"path"`
	Headers                map[string]string      `json:"headers"`
	PathParams             map[string]interface{} `json:"path_params,omitempty"`
	QueryParams            map[string]interface{} `json:"query_params"`
	Body                   interface{}            `json:"body"`
	ExpectedStatus         int                    `json:"expected_status"`
	ExpectedResponseSchema map[string]interface{} `json:"expected_response_schema"`
	TestType               string                 `json:"test_type"`
	Tags                   []string               `json:"tags"`
	Metadata               Metadata               `json:"metadata"`
}

// ValidTestType reports whether t is one of the three known case types.
func ValidTestType(t string) bool {
	return t == TypePositive || t == TypeNegative || t == TypeBoundary
}

// ValidPriority reports whether p is one of the three known priorities.
func ValidPriority(p string) bool {
	return p == PriorityP0 || p == PriorityP1 || p == PriorityP2
}
