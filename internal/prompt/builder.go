// Package prompt assembles provider-neutral prompts for test-case
// generation. Prompts are deterministic in their inputs.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Devliang24/casecraft/internal/complexity"
	"github.com/Devliang24/casecraft/internal/spec"
)

// Auth placeholder lexicon. Generated cases reference credentials through
// these variables instead of literal secrets.
var AuthPlaceholders = []string{
	"${AUTH_TOKEN}",
	"${USER_TOKEN}",
	"${ADMIN_TOKEN}",
	"${API_KEY}",
	"${BASIC_CREDENTIALS}",
	"${INVALID_TOKEN}",
	"${INVALID_API_KEY}",
}

// Builder assembles the two-part instruction sent to providers.
type Builder struct {
	// APIVersion is injected into generated metadata guidance.
	APIVersion string
}

// NewBuilder creates a prompt builder.
func NewBuilder(apiVersion string) *Builder {
	return &Builder{APIVersion: apiVersion}
}

// System returns the system preamble fixing the output contract.
func (b *Builder) System(budget complexity.Budget) string {
	var sb strings.Builder

	sb.WriteString("You are an API testing expert. Generate structured test cases for the HTTP endpoint described by the user.\n\n")

	sb.WriteString("Output contract:\n")
	sb.WriteString("- Reply with a JSON array of test-case objects and nothing else: no prose, no markdown fences, no comments.\n")
	sb.WriteString("- Each object has exactly these fields: name, description, method, path, headers, path_params, query_params, body, expected_status, test_type, tags.\n")
	sb.WriteString("- test_type is one of \"positive\", \"negative\", \"boundary\".\n")
	sb.WriteString("- method and path must match the endpoint exactly.\n")
	sb.WriteString("- expected_status is an integer HTTP status code appropriate for the scenario: 200/201 success, 400 bad parameters, 401 missing auth, 403 forbidden, 404 not found, 422 validation failure.\n")
	sb.WriteString("- body is null for requests without a body.\n\n")

	sb.WriteString(fmt.Sprintf("Required coverage: exactly %d positive, %d negative, and %d boundary cases.\n",
		budget.Positive, budget.Negative, budget.Boundary))
	sb.WriteString("Within each type, emit cases in descending order of importance: the most critical scenario first.\n\n")

	sb.WriteString("Headers:\n")
	sb.WriteString("- GET/DELETE requests carry \"Accept\": \"application/json\".\n")
	sb.WriteString("- POST/PUT/PATCH requests additionally carry \"Content-Type\": \"application/json\".\n")
	sb.WriteString("- Negative cases may omit or corrupt headers to provoke 401/406/415 responses.\n\n")

	sb.WriteString("Credentials are never literal. Use only these placeholders where auth material is needed: ")
	sb.WriteString(strings.Join(AuthPlaceholders, ", "))
	sb.WriteString(".\n")

	return sb.String()
}

// Task returns the task body injecting the endpoint definition and budget
// targets.
func (b *Builder) Task(endpoint spec.Endpoint, budget complexity.Budget) string {
	info := endpointInfo(endpoint)
	encoded, _ := json.MarshalIndent(info, "", "  ")

	var sb strings.Builder
	sb.WriteString("Generate test cases for the following API endpoint:\n\n")
	sb.WriteString("```json\n")
	sb.Write(encoded)
	sb.WriteString("\n```\n\n")

	if b.APIVersion != "" {
		sb.WriteString(fmt.Sprintf("API version: %s\n", b.APIVersion))
	}
	sb.WriteString(fmt.Sprintf(
		"Produce exactly %d positive, %d negative, and %d boundary cases (%d total), most important first within each type.\n",
		budget.Positive, budget.Negative, budget.Boundary, budget.Total()))
	sb.WriteString("Return the JSON array now:")

	return sb.String()
}

// CorrectionSuffix builds the retry suffix appended after the validator
// rejects a response.
func CorrectionSuffix(violation string) string {
	return fmt.Sprintf(
		"\n\nYour previous output violated the contract: %s. Re-emit the complete JSON array, fixing every violation. Output only the JSON array.",
		violation)
}

// endpointInfo projects the endpoint into the JSON structure embedded in
// the task body. Map marshaling sorts keys, so identical endpoints always
// produce identical prompts.
func endpointInfo(e spec.Endpoint) map[string]interface{} {
	info := map[string]interface{}{
		"method": e.Method,
		"path":   e.Path,
	}
	if e.Summary != "" {
		info["summary"] = e.Summary
	}
	if e.Description != "" {
		info["description"] = e.Description
	}
	if len(e.Tags) > 0 {
		info["tags"] = e.Tags
	}

	if len(e.Parameters) > 0 {
		params := make([]map[string]interface{}, 0, len(e.Parameters))
		for _, p := range e.Parameters {
			pm := map[string]interface{}{
				"name":     p.Name,
				"in":       p.In,
				"required": p.Required,
			}
			if p.Description != "" {
				pm["description"] = p.Description
			}
			if p.Schema != nil {
				pm["schema"] = p.Schema
			}
			params = append(params, pm)
		}
		info["parameters"] = params
	}

	if e.RequestBody != nil {
		info["request_body"] = e.RequestBody
		info["request_body_required"] = e.RequestBodyRequired
	}
	if len(e.Responses) > 0 {
		info["responses"] = e.Responses
	}

	auth := map[string]interface{}{"required": e.AuthRequired}
	if e.AuthRequired {
		auth["kind"] = string(e.AuthKind)
	}
	info["auth"] = auth

	return info
}
