package state

import "time"

// FormatVersion is the state file format version this build reads and writes.
const FormatVersion = "1.0"

// EndpointState is the last-generation record for one endpoint fingerprint.
type EndpointState struct {
	Fingerprint      string    `json:"fingerprint"`
	LastGenerated    time.Time `json:"last_generated"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	FallbackFrom     string    `json:"fallback_from,omitempty"`
	TestCaseCount    int       `json:"test_case_count"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	RetryCount       int       `json:"retry_count"`
	ArtifactPath     string    `json:"artifact_path"`
}

// ProjectInfo records the API source the state belongs to.
type ProjectInfo struct {
	Source       string    `json:"source"`
	SourceHash   string    `json:"source_hash"`
	LastModified time.Time `json:"last_modified"`
}

// Statistics is the aggregate counters block persisted alongside endpoints.
type Statistics struct {
	TotalEndpoints  int                `json:"total_endpoints"`
	GeneratedCount  int                `json:"generated_count"`
	SkippedCount    int                `json:"skipped_count"`
	FailedCount     int                `json:"failed_count"`
	LastRunDuration float64            `json:"last_run_duration_seconds"`
	LastRunID       string             `json:"last_run_id,omitempty"`
	ProviderUsage   map[string]int     `json:"provider_usage,omitempty"`
	ProviderSuccess map[string]float64 `json:"provider_success_rate,omitempty"`
}

// File is the persisted state document, keyed by "METHOD path".
type File struct {
	Version    string                   `json:"version"`
	Project    *ProjectInfo             `json:"project,omitempty"`
	Endpoints  map[string]EndpointState `json:"endpoints"`
	Statistics Statistics               `json:"statistics"`
}

// newFile returns an empty state document.
func newFile() File {
	return File{
		Version:   FormatVersion,
		Endpoints: make(map[string]EndpointState),
	}
}
