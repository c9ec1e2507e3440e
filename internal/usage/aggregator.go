// Package usage tracks per-provider generation statistics and renders the
// end-of-run report.
package usage

import (
	"sort"
	"sync"
	"time"
)

// Outcome classifies how one generation attempt ended.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeInvalidOutput  Outcome = "invalid_output"
	OutcomeTransportError Outcome = "transport_error"
	OutcomeRateLimited    Outcome = "rate_limited"
	OutcomeTimeout        Outcome = "timeout"
	OutcomeCancelled      Outcome = "cancelled"
)

// Record is one generation outcome appended to the aggregator.
type Record struct {
	Provider         string
	PromptTokens     int
	CompletionTokens int
	Duration         time.Duration
	Retries          int
	Outcome          Outcome
}

// ProviderStats accumulates counters for one provider.
type ProviderStats struct {
	Provider         string          `json:"provider"`
	Attempts         int             `json:"attempts"`
	Successes        int             `json:"successes"`
	Failures         map[Outcome]int `json:"failures,omitempty"`
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	WallTime         time.Duration   `json:"wall_time"`
	Retries          int             `json:"retries"`
}

// TotalTokens returns tokens in plus tokens out.
func (s ProviderStats) TotalTokens() int {
	return s.PromptTokens + s.CompletionTokens
}

// SuccessRate returns successes over attempts, zero when idle.
func (s ProviderStats) SuccessRate() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Attempts)
}

// Aggregator collects records from concurrent workers.
type Aggregator struct {
	mu      sync.Mutex
	stats   map[string]*ProviderStats
	started time.Time
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		stats:   make(map[string]*ProviderStats),
		started: time.Now(),
	}
}

// Record appends one outcome atomically.
func (a *Aggregator) Record(rec Record) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.stats[rec.Provider]
	if !ok {
		s = &ProviderStats{
			Provider: rec.Provider,
			Failures: make(map[Outcome]int),
		}
		a.stats[rec.Provider] = s
	}

	s.Attempts++
	s.PromptTokens += rec.PromptTokens
	s.CompletionTokens += rec.CompletionTokens
	s.WallTime += rec.Duration
	s.Retries += rec.Retries

	if rec.Outcome == OutcomeSuccess {
		s.Successes++
	} else {
		s.Failures[rec.Outcome]++
	}
}

// Report is the final summary emitted at scheduler shutdown.
type Report struct {
	Providers []ProviderStats `json:"providers"`
	Elapsed   time.Duration   `json:"elapsed"`

	TotalAttempts         int `json:"total_attempts"`
	TotalSuccesses        int `json:"total_successes"`
	TotalPromptTokens     int `json:"total_prompt_tokens"`
	TotalCompletionTokens int `json:"total_completion_tokens"`
	TotalRetries          int `json:"total_retries"`
}

// Report snapshots the counters into a sorted report.
func (a *Aggregator) Report() Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	report := Report{Elapsed: time.Since(a.started)}
	for _, s := range a.stats {
		copied := *s
		copied.Failures = make(map[Outcome]int, len(s.Failures))
		for k, v := range s.Failures {
			copied.Failures[k] = v
		}
		report.Providers = append(report.Providers, copied)

		report.TotalAttempts += s.Attempts
		report.TotalSuccesses += s.Successes
		report.TotalPromptTokens += s.PromptTokens
		report.TotalCompletionTokens += s.CompletionTokens
		report.TotalRetries += s.Retries
	}
	sort.Slice(report.Providers, func(i, j int) bool {
		return report.Providers[i].Provider < report.Providers[j].Provider
	})
	return report
}
