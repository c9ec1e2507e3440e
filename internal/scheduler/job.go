// Package scheduler dispatches per-endpoint generation jobs across
// provider worker pools with fallback, retry-on-invalid-output, and
// cooperative cancellation.
package scheduler

import (
	"github.com/Devliang24/casecraft/internal/complexity"
	"github.com/Devliang24/casecraft/internal/spec"
)

// Job is one endpoint's unit of work. Created by the planner, consumed by
// exactly one worker goroutine, destroyed on success or exhaustion. At most
// one job exists per fingerprint.
type Job struct {
	Endpoint      spec.Endpoint
	Fingerprint   string
	Primary       string
	FallbackChain []string
	Budget        complexity.Budget
}

// chain returns the full provider order for the job: primary first, then
// the fallback chain with the primary deduplicated.
func (j Job) chain() []string {
	out := []string{j.Primary}
	for _, name := range j.FallbackChain {
		if name != j.Primary {
			out = append(out, name)
		}
	}
	return out
}

// FailedJob describes a terminal endpoint failure for user-visible
// reporting.
type FailedJob struct {
	Endpoint     string
	LastProvider string
	Kind         string
	Err          error
}

// Result summarizes a scheduler run.
type Result struct {
	Generated int
	Failed    int
	Failures  []FailedJob
}
