package spec

import "encoding/json"

// AuthKind classifies the security scheme an endpoint declares.
type AuthKind string

const (
	AuthNone   AuthKind = "none"
	AuthBearer AuthKind = "bearer"
	AuthAPIKey AuthKind = "api-key"
	AuthBasic  AuthKind = "basic"
)

// Parameter is a single operation parameter in its normalized form.
type Parameter struct {
	Name        string                 `json:"name"`
	In          string                 `json:"in"` // path, query, header, cookie
	Required    bool                   `json:"required"`
	Description string                 `json:"description,omitempty"`
	Schema      map[string]interface{} `json:"schema,omitempty"`
}

// Endpoint is one normalized HTTP operation parsed from an API document.
// Created by the loader and read-only afterwards.
type Endpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	OperationID string `json:"operation_id,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`

	Tags       []string    `json:"tags,omitempty"`
	Parameters []Parameter `json:"parameters,omitempty"`

	RequestBody         map[string]interface{} `json:"request_body,omitempty"`
	RequestBodyRequired bool                   `json:"request_body_required,omitempty"`

	// Responses maps declared status codes to response body schemas
	// (nil schema for bodyless responses).
	Responses map[string]map[string]interface{} `json:"responses,omitempty"`

	AuthRequired bool     `json:"auth_required,omitempty"`
	AuthKind     AuthKind `json:"auth_kind,omitempty"`
}

// ID returns the endpoint key used throughout state and reporting: "METHOD path".
func (e Endpoint) ID() string {
	return e.Method + " " + e.Path
}

// ParametersIn returns the endpoint's parameters with the given location.
func (e Endpoint) ParametersIn(location string) []Parameter {
	var out []Parameter
	for _, p := range e.Parameters {
		if p.In == location {
			out = append(out, p)
		}
	}
	return out
}

// HasTag reports whether the endpoint carries the given tag.
func (e Endpoint) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Document is a parsed and normalized API description.
type Document struct {
	Title      string     `json:"title"`
	Version    string     `json:"version"`
	Source     string     `json:"source"`
	SourceHash string     `json:"source_hash"`
	Endpoints  []Endpoint `json:"endpoints"`
}

// MarshalEndpoints serializes a normalized endpoint list to JSON.
func MarshalEndpoints(endpoints []Endpoint) ([]byte, error) {
	return json.Marshal(endpoints)
}

// UnmarshalEndpoints parses a normalized endpoint list from JSON.
func UnmarshalEndpoints(data []byte) ([]Endpoint, error) {
	var endpoints []Endpoint
	if err := json.Unmarshal(data, &endpoints); err != nil {
		return nil, err
	}
	return endpoints, nil
}
