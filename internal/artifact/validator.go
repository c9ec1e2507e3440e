package artifact

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Devliang24/casecraft/internal/complexity"
	"github.com/Devliang24/casecraft/internal/errors"
	"github.com/Devliang24/casecraft/internal/spec"
)

// Tolerance is how far a per-type count may drift from the budget.
const Tolerance = 1

// Provenance identifies which provider and model produced a response.
type Provenance struct {
	Provider   string
	Model      string
	APIVersion string
}

// Validator enforces the test-case contract on raw LLM output.
type Validator struct{}

// NewValidator creates a validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate parses raw model output, checks it against the contract and the
// endpoint's budget, and returns finalized test cases: priorities assigned
// by 30/40/30 slicing per type in emitted order, metadata filled in, and
// success-path response schemas attached from the endpoint definition.
//
// Rejections return an OUTPUT-001 error whose message describes the
// violation; the scheduler feeds that message back to the model on retry.
func (v *Validator) Validate(raw string, endpoint spec.Endpoint, budget complexity.Budget, prov Provenance) ([]TestCase, error) {
	cleaned := CleanResponse(raw)

	var cases []TestCase
	if err := json.Unmarshal([]byte(cleaned), &cases); err != nil {
		return nil, errors.NewInvalidOutputError(endpoint.ID(),
			fmt.Sprintf("output is not a JSON array of test-case objects: %v", err))
	}
	if len(cases) == 0 {
		return nil, errors.NewInvalidOutputError(endpoint.ID(), "output contains no test cases")
	}

	var violations []string
	counts := map[string]int{}

	for i := range cases {
		tc := &cases[i]

		if strings.TrimSpace(tc.Name) == "" {
			violations = append(violations, fmt.Sprintf("case %d: empty name", i))
		}
		if strings.TrimSpace(tc.Description) == "" {
			violations = append(violations, fmt.Sprintf("case %d: empty description", i))
		}
		if !ValidTestType(tc.TestType) {
			violations = append(violations, fmt.Sprintf("case %d: test_type must be positive, negative, or boundary (got %q)", i, tc.TestType))
			continue
		}
		counts[tc.TestType]++

		if tc.Method != endpoint.Method {
			violations = append(violations, fmt.Sprintf("case %d: method %q does not match endpoint %q", i, tc.Method, endpoint.Method))
		}
		if tc.Path != endpoint.Path {
			violations = append(violations, fmt.Sprintf("case %d: path %q does not match endpoint %q", i, tc.Path, endpoint.Path))
		}
		if tc.ExpectedStatus < 100 || tc.ExpectedStatus > 599 {
			violations = append(violations, fmt.Sprintf("case %d: missing or invalid expected_status (got %d)", i, tc.ExpectedStatus))
		}
	}

	checkCount := func(testType string, want int) {
		got := counts[testType]
		if got < want-Tolerance || got > want+Tolerance {
			violations = append(violations, fmt.Sprintf("expected %d (±%d) %s cases, got %d", want, Tolerance, testType, got))
		}
	}
	checkCount(TypePositive, budget.Positive)
	checkCount(TypeNegative, budget.Negative)
	checkCount(TypeBoundary, budget.Boundary)

	if len(violations) > 0 {
		return nil, errors.NewInvalidOutputError(endpoint.ID(), strings.Join(violations, "; "))
	}

	finalize(cases, endpoint, prov)
	return cases, nil
}

// finalize assigns priorities per type by position (the prompt asks the
// model to emit cases in importance order, the slicing here is
// authoritative), stamps metadata, and attaches declared success schemas.
func finalize(cases []TestCase, endpoint spec.Endpoint, prov Provenance) {
	byType := map[string][]*TestCase{}
	for i := range cases {
		tc := &cases[i]
		byType[tc.TestType] = append(byType[tc.TestType], tc)
	}
	for _, group := range byType {
		priorities := complexity.Priorities(len(group))
		for i, tc := range group {
			tc.Priority = priorities[i]
		}
	}

	now := time.Now().UTC()
	for i := range cases {
		tc := &cases[i]
		tc.Metadata = Metadata{
			GeneratedAt: now,
			APIVersion:  prov.APIVersion,
			LLMModel:    prov.Model,
			LLMProvider: prov.Provider,
		}
		if tc.Headers == nil {
			tc.Headers = map[string]string{}
		}
		if tc.QueryParams == nil {
			tc.QueryParams = map[string]interface{}{}
		}
		if tc.TestType == TypePositive && tc.ExpectedResponseSchema == nil {
			status := fmt.Sprintf("%d", tc.ExpectedStatus)
			if schema, ok := endpoint.Responses[status]; ok && schema != nil {
				tc.ExpectedResponseSchema = schema
			}
		}
	}
}
