package scheduler

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Devliang24/casecraft/internal/artifact"
	"github.com/Devliang24/casecraft/internal/errors"
	"github.com/Devliang24/casecraft/internal/log"
	"github.com/Devliang24/casecraft/internal/prompt"
	"github.com/Devliang24/casecraft/internal/provider"
	"github.com/Devliang24/casecraft/internal/state"
	"github.com/Devliang24/casecraft/internal/usage"
)

// maxInvalidRetries is how many extra attempts a provider gets after the
// validator rejects its output, before the job falls through to the next
// provider in the chain.
const maxInvalidRetries = 2

// eventBuffer sizes the fan-in progress channel. Sends never block: when
// the consumer lags and the buffer is full, the event being sent is dropped,
// whatever its type, rather than stalling workers.
const eventBuffer = 256

// ClientSource hands out shared provider clients. *provider.Registry is the
// production implementation.
type ClientSource interface {
	Get(name string, config provider.Config) (provider.Client, error)
}

// Options wires the scheduler's collaborators.
type Options struct {
	Config    *provider.ProvidersConfig
	Registry  ClientSource
	Builder   *prompt.Builder
	Validator *artifact.Validator
	Writer    *artifact.Writer
	Store     *state.Store
	Usage     *usage.Aggregator
	Logger    *log.Logger
}

// Scheduler owns the dispatch decision; workers own only their in-flight
// call and their job's local state.
type Scheduler struct {
	cfg       *provider.ProvidersConfig
	registry  ClientSource
	builder   *prompt.Builder
	validator *artifact.Validator
	writer    *artifact.Writer
	store     *state.Store
	agg       *usage.Aggregator
	logger    *log.Logger

	events chan Event

	mu     sync.Mutex
	result Result
}

// New creates a scheduler.
func New(opts Options) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Global()
	}
	return &Scheduler{
		cfg:       opts.Config,
		registry:  opts.Registry,
		builder:   opts.Builder,
		validator: opts.Validator,
		writer:    opts.Writer,
		store:     opts.Store,
		agg:       opts.Usage,
		logger:    logger.With("component", "scheduler"),
		events:    make(chan Event, eventBuffer),
	}
}

// Events returns the fan-in progress channel. It closes when Run returns.
func (s *Scheduler) Events() <-chan Event {
	return s.events
}

// Run dispatches jobs grouped by primary provider. Each provider gets a
// bounded worker pool sized by its declared max_workers; pools run in
// parallel with no global cap. Submission into each pool is FIFO by job
// order; completion order is unspecified. On cancellation, in-flight calls
// abort, queued jobs are discarded, and finished artifacts are kept.
func (s *Scheduler) Run(ctx context.Context, jobs []Job) (*Result, error) {
	defer close(s.events)

	groups := make(map[string][]Job)
	var order []string
	for _, job := range jobs {
		if _, seen := groups[job.Primary]; !seen {
			order = append(order, job.Primary)
		}
		groups[job.Primary] = append(groups[job.Primary], job)
	}

	var g errgroup.Group
	for _, primary := range order {
		group := groups[primary]
		g.Go(func() error {
			s.runPool(ctx, primary, group)
			return nil
		})
	}
	g.Wait()

	s.mu.Lock()
	result := s.result
	s.mu.Unlock()

	if ctx.Err() != nil {
		return &result, errors.NewCancelledError()
	}
	return &result, nil
}

// runPool runs one provider's bounded worker pool over its job list.
func (s *Scheduler) runPool(ctx context.Context, primary string, jobs []Job) {
	cfg, _ := s.cfg.Provider(primary)
	workers, err := provider.MaxWorkersFor(primary, cfg)
	if err != nil {
		s.logger.Error("cannot size worker pool", "provider", primary, "error", err)
		for _, job := range jobs {
			s.recordFailure(job, primary, "config", err)
		}
		return
	}

	// Bounded submission buffer: the feeder stalls when the pool is 2×
	// max_workers behind, so upstream job production stays lazy.
	submissions := make(chan Job, 2*workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range submissions {
				if ctx.Err() != nil {
					// Dispatched but not yet running: discarded on cancel.
					continue
				}
				s.runJob(ctx, job)
			}
		}()
	}

	for _, job := range jobs {
		s.emit(Event{Endpoint: job.Endpoint.ID(), Provider: primary, Type: EventQueued})
		select {
		case submissions <- job:
		case <-ctx.Done():
			// Stop feeding; workers drain what is already queued.
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(submissions)
	wg.Wait()
}

// runJob walks the job's provider chain. Each provider may retry invalid
// output up to maxInvalidRetries times with a correction suffix; transport
// retries happen inside the client. Fatal errors and exhausted retries move
// the job to the next provider in the chain.
func (s *Scheduler) runJob(ctx context.Context, job Job) {
	endpointID := job.Endpoint.ID()
	chain := job.chain()

	jobCtx, cancel := context.WithTimeout(ctx, s.jobDeadline(job, chain))
	defer cancel()

	s.emit(Event{Endpoint: endpointID, Provider: job.Primary, Type: EventStarted})

	systemPrompt := s.builder.System(job.Budget)
	taskPrompt := s.builder.Task(job.Endpoint, job.Budget)

	var lastErr error
	lastProvider := job.Primary

	for _, name := range chain {
		cfg, ok := s.cfg.Provider(name)
		if !ok {
			s.logger.Warn("provider in chain is not configured, skipping", "provider", name)
			continue
		}
		client, err := s.registry.Get(name, cfg)
		if err != nil {
			s.logger.WithError(err).Warn("cannot construct provider, skipping", "provider", name)
			lastErr = err
			continue
		}
		lastProvider = name

		violation := ""
		invalidRetries := 0

		for attempt := 1; ; attempt++ {
			if jobCtx.Err() != nil {
				s.recordCancelled(job, name)
				return
			}

			s.emit(Event{Endpoint: endpointID, Provider: name, Type: EventAttempt, Attempt: attempt})

			promptText := taskPrompt
			if violation != "" {
				promptText += prompt.CorrectionSuffix(violation)
			}

			resp, err := client.Generate(jobCtx, &provider.GenerateRequest{
				Prompt:       promptText,
				SystemPrompt: systemPrompt,
				OnProgress: func(pct float64) {
					s.emit(Event{Endpoint: endpointID, Provider: name, Type: EventStreaming, Pct: pct})
				},
			})
			if err != nil {
				if ctx.Err() != nil || errors.CodeOf(err) == errors.ErrCodeCancelled {
					s.recordCancelled(job, name)
					return
				}
				lastErr = err
				s.agg.Record(usage.Record{Provider: name, Outcome: outcomeForError(err)})
				s.logger.WithError(err).Warn("provider failed", "endpoint", endpointID, "provider", name)
				break // next provider in chain
			}

			cases, verr := s.validator.Validate(resp.Content, job.Endpoint, job.Budget, artifact.Provenance{
				Provider:   name,
				Model:      resp.Model,
				APIVersion: s.builder.APIVersion,
			})
			if verr != nil {
				lastErr = verr
				s.agg.Record(usage.Record{
					Provider:         name,
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					Duration:         resp.Latency,
					Retries:          resp.RetryCount,
					Outcome:          usage.OutcomeInvalidOutput,
				})
				if invalidRetries < maxInvalidRetries {
					invalidRetries++
					violation = violationOf(verr)
					s.logger.Warn("invalid output, retrying with correction",
						"endpoint", endpointID, "provider", name, "retry", invalidRetries)
					continue
				}
				s.logger.WithError(verr).Warn("invalid output retries exhausted",
					"endpoint", endpointID, "provider", name)
				break // next provider in chain
			}

			s.emit(Event{Endpoint: endpointID, Provider: name, Type: EventValidated})
			s.finishJob(job, name, resp, cases, invalidRetries)
			return
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no provider in chain %v could run", chain)
	}
	s.recordFailure(job, lastProvider, string(kindOf(lastErr)), lastErr)
}

// finishJob persists the artifact and state for a validated response.
func (s *Scheduler) finishJob(job Job, providerName string, resp *provider.Response, cases []artifact.TestCase, invalidRetries int) {
	endpointID := job.Endpoint.ID()

	previous := ""
	if prior, ok := s.store.Get(endpointID); ok {
		previous = prior.Fingerprint
	}

	path, skipped, err := s.writer.Write(job.Endpoint, job.Fingerprint, previous, cases)
	if err != nil {
		s.agg.Record(usage.Record{Provider: providerName, Outcome: usage.OutcomeTransportError})
		s.recordFailure(job, providerName, "write", err)
		return
	}
	if skipped {
		s.logger.Debug("artifact unchanged", "endpoint", endpointID, "path", path)
	}

	es := state.EndpointState{
		Fingerprint:      job.Fingerprint,
		LastGenerated:    time.Now().UTC(),
		Provider:         providerName,
		Model:            resp.Model,
		TestCaseCount:    len(cases),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		RetryCount:       resp.RetryCount + invalidRetries,
		ArtifactPath:     path,
	}
	if providerName != job.Primary {
		es.FallbackFrom = job.Primary
	}
	// A state write failure after a successful job is a warning, never a
	// reason to invalidate the artifact.
	if err := s.store.Put(endpointID, es); err != nil {
		s.logger.WithError(err).Warn("state update failed", "endpoint", endpointID)
	}

	s.agg.Record(usage.Record{
		Provider:         providerName,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		Duration:         resp.Latency,
		Retries:          resp.RetryCount + invalidRetries,
		Outcome:          usage.OutcomeSuccess,
	})

	s.mu.Lock()
	s.result.Generated++
	s.mu.Unlock()

	s.emit(Event{Endpoint: endpointID, Provider: providerName, Type: EventWritten, Path: path})
	s.logger.Info("endpoint generated",
		"endpoint", endpointID, "provider", providerName, "cases", len(cases), "path", path)
}

func (s *Scheduler) recordFailure(job Job, providerName, kind string, err error) {
	s.mu.Lock()
	s.result.Failed++
	s.result.Failures = append(s.result.Failures, FailedJob{
		Endpoint:     job.Endpoint.ID(),
		LastProvider: providerName,
		Kind:         kind,
		Err:          err,
	})
	s.mu.Unlock()

	s.emit(Event{Endpoint: job.Endpoint.ID(), Provider: providerName, Type: EventFailed, Err: err})
}

func (s *Scheduler) recordCancelled(job Job, providerName string) {
	s.agg.Record(usage.Record{Provider: providerName, Outcome: usage.OutcomeCancelled})
	s.logger.Debug("job cancelled", "endpoint", job.Endpoint.ID())
}

// jobDeadline is the overall per-job budget:
// timeout × (max_retries + 1) × (fallback chain length + 1).
func (s *Scheduler) jobDeadline(job Job, chain []string) time.Duration {
	cfg, ok := s.cfg.Provider(job.Primary)
	if !ok {
		cfg = provider.Config{}
	}
	perAttempt := cfg.RequestTimeout()
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	return perAttempt * time.Duration(retries+1) * time.Duration(len(chain))
}

// emit multiplexes an event onto the progress channel without ever blocking
// a worker.
func (s *Scheduler) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}

func outcomeForError(err error) usage.Outcome {
	switch provider.KindOf(err) {
	case provider.KindRateLimited:
		return usage.OutcomeRateLimited
	case provider.KindTimeout:
		return usage.OutcomeTimeout
	default:
		return usage.OutcomeTransportError
	}
}

func kindOf(err error) provider.ErrorKind {
	if err == nil {
		return ""
	}
	if k := provider.KindOf(err); k != "" {
		return k
	}
	if errors.CodeOf(err) == errors.ErrCodeInvalidOutput {
		return "invalid_output"
	}
	return "error"
}

// violationOf extracts the violation text fed back to the model on retry.
func violationOf(err error) string {
	var ce *errors.CaseCraftError
	if stderrors.As(err, &ce) {
		return ce.Message
	}
	return err.Error()
}
