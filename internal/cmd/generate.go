package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Devliang24/casecraft/internal/artifact"
	"github.com/Devliang24/casecraft/internal/assign"
	"github.com/Devliang24/casecraft/internal/complexity"
	"github.com/Devliang24/casecraft/internal/errors"
	"github.com/Devliang24/casecraft/internal/log"
	"github.com/Devliang24/casecraft/internal/prompt"
	"github.com/Devliang24/casecraft/internal/provider"
	"github.com/Devliang24/casecraft/internal/scheduler"
	"github.com/Devliang24/casecraft/internal/spec"
	"github.com/Devliang24/casecraft/internal/state"
	"github.com/Devliang24/casecraft/internal/usage"
)

var generateFlags struct {
	includeTags  []string
	excludeTags  []string
	includePaths []string
	excludePaths []string
	methods      []string

	strategy string
	fallback []string
	mapping  string
	seed     int64

	output    string
	byTag     bool
	statePath string

	force  bool
	dryRun bool
}

var generateCmd = &cobra.Command{
	Use:   "generate <openapi-doc>",
	Short: "Generate test cases for the endpoints of an API document",
	Long: `Generate parses the given OpenAPI 3.0 or Swagger 2.0 document (path or
URL), filters its endpoints, and generates one JSON test-case artifact per
endpoint. Unchanged endpoints with artifacts on disk are skipped unless
--force is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringSliceVar(&generateFlags.includeTags, "include-tag", nil, "only endpoints with one of these tags")
	f.StringSliceVar(&generateFlags.excludeTags, "exclude-tag", nil, "drop endpoints with one of these tags")
	f.StringSliceVar(&generateFlags.includePaths, "include-path", nil, "only endpoints matching one of these path globs")
	f.StringSliceVar(&generateFlags.excludePaths, "exclude-path", nil, "drop endpoints matching one of these path globs")
	f.StringSliceVar(&generateFlags.methods, "method", nil, "only endpoints with one of these HTTP methods")

	f.StringVar(&generateFlags.strategy, "strategy", "", "assignment strategy (round_robin, random, complexity, manual)")
	f.StringSliceVar(&generateFlags.fallback, "fallback", nil, "fallback provider chain")
	f.StringVar(&generateFlags.mapping, "mapping", "", "manual strategy mapping (pattern:provider,...)")
	f.Int64Var(&generateFlags.seed, "seed", 0, "random strategy seed")

	f.StringVar(&generateFlags.output, "output", "", "artifact output directory")
	f.BoolVar(&generateFlags.byTag, "by-tag", false, "nest artifacts under their first tag")
	f.StringVar(&generateFlags.statePath, "state", "", "state file path")

	f.BoolVar(&generateFlags.force, "force", false, "regenerate even when fingerprints are unchanged")
	f.BoolVar(&generateFlags.dryRun, "dry-run", false, "plan only, no provider calls")

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := log.Global()
	started := time.Now()

	cfg, err := provider.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	applyGenerateOverrides(cfg)

	doc, err := spec.NewLoader(logger).Load(ctx, args[0])
	if err != nil {
		return err
	}

	filter := spec.Filter{
		IncludeTags:  generateFlags.includeTags,
		ExcludeTags:  generateFlags.excludeTags,
		IncludePaths: generateFlags.includePaths,
		ExcludePaths: generateFlags.excludePaths,
		Methods:      generateFlags.methods,
	}
	endpoints, err := filter.Apply(doc.Endpoints)
	if err != nil {
		return errors.Wrap(errors.ErrCodeConfigInvalid, "invalid filter", err)
	}
	if len(endpoints) == 0 {
		return errors.New(errors.ErrCodeSpecNoEndpoints, "filters matched no endpoints")
	}

	store := state.Open(generateFlags.statePath, logger)
	if err := store.SetProject(doc.Source, doc.SourceHash); err != nil {
		logger.WithError(err).Warn("cannot record project info")
	}

	strategy, err := assign.New(cfg, doc.SourceHash, len(endpoints))
	if err != nil {
		return err
	}

	jobs, skipped, err := planJobs(cfg, store, strategy, endpoints)
	if err != nil {
		return err
	}

	if generateFlags.dryRun {
		printPlan(cmd, jobs, skipped)
		return nil
	}

	for _, ep := range skipped {
		fmt.Fprintf(cmd.OutOrStdout(), "skipped  %s (unchanged)\n", ep.ID())
	}

	if len(jobs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "All %d endpoints up to date, nothing to generate.\n", len(endpoints))
		return finishRun(store, started, len(endpoints), 0, len(skipped), 0, "")
	}

	builder := prompt.NewBuilder(doc.Version)
	agg := usage.NewAggregator()
	writer := artifact.NewWriter(cfg.Output.Dir, cfg.Output.ByTag)
	sched := scheduler.New(scheduler.Options{
		Config:    cfg,
		Registry:  provider.Default(),
		Builder:   builder,
		Validator: artifact.NewValidator(),
		Writer:    writer,
		Store:     store,
		Usage:     agg,
		Logger:    logger,
	})

	renderDone := make(chan struct{})
	go func() {
		defer close(renderDone)
		renderEvents(cmd, sched.Events())
	}()

	result, runErr := sched.Run(ctx, jobs)
	<-renderDone

	report := agg.Report()
	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprint(cmd.OutOrStdout(), report.Render())

	for _, failure := range result.Failures {
		fmt.Fprintf(cmd.ErrOrStderr(), "failed   %s (last provider %s, %s): %v\n",
			failure.Endpoint, failure.LastProvider, failure.Kind, failure.Err)
	}

	runID := uuid.NewString()
	if err := finishRun(store, started, len(endpoints), result.Generated, len(skipped), result.Failed, runID); err != nil {
		logger.WithError(err).Warn("cannot record run statistics")
	}
	updateProviderStats(store, report)

	if runErr != nil {
		return runErr
	}
	switch {
	case result.Failed > 0 && result.Generated == 0 && len(skipped) == 0:
		return errors.New(errors.ErrCodeAllFailed,
			fmt.Sprintf("all %d endpoints failed", result.Failed))
	case result.Failed > 0:
		return errors.New(errors.ErrCodePartialFailure,
			fmt.Sprintf("%d of %d endpoints failed", result.Failed, result.Failed+result.Generated))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Generated %d, skipped %d, failed %d.\n",
		result.Generated, len(skipped), result.Failed)
	return nil
}

// applyGenerateOverrides lets CLI flags override file and environment
// configuration.
func applyGenerateOverrides(cfg *provider.ProvidersConfig) {
	if generateFlags.strategy != "" {
		cfg.Strategy.Name = generateFlags.strategy
	}
	if len(generateFlags.fallback) > 0 {
		cfg.Strategy.FallbackChain = generateFlags.fallback
	}
	if generateFlags.mapping != "" {
		cfg.Strategy.Mapping = generateFlags.mapping
	}
	if generateFlags.seed != 0 {
		cfg.Strategy.Seed = generateFlags.seed
	}
	if generateFlags.output != "" {
		cfg.Output.Dir = generateFlags.output
	}
	if generateFlags.byTag {
		cfg.Output.ByTag = true
	}
}

// planJobs fingerprints each endpoint, drops unchanged ones unless --force,
// and assigns primary providers in document order.
func planJobs(cfg *provider.ProvidersConfig, store *state.Store, strategy assign.Strategy, endpoints []spec.Endpoint) ([]scheduler.Job, []spec.Endpoint, error) {
	var jobs []scheduler.Job
	var skipped []spec.Endpoint

	for _, ep := range endpoints {
		fingerprint, err := spec.Fingerprint(ep)
		if err != nil {
			return nil, nil, errors.Wrap(errors.ErrCodeSpecMalformed,
				fmt.Sprintf("fingerprint %s", ep.ID()), err)
		}

		if !generateFlags.force && store.IsUnchanged(ep.ID(), fingerprint) {
			skipped = append(skipped, ep)
			continue
		}

		primary, err := strategy.Assign(ep)
		if err != nil {
			return nil, nil, err
		}

		jobs = append(jobs, scheduler.Job{
			Endpoint:      ep,
			Fingerprint:   fingerprint,
			Primary:       primary,
			FallbackChain: cfg.Strategy.FallbackChain,
			Budget:        complexity.BudgetFor(complexity.Score(ep), ep.Method),
		})
	}
	return jobs, skipped, nil
}

// printPlan renders the dry-run table.
func printPlan(cmd *cobra.Command, jobs []scheduler.Job, skipped []spec.Endpoint) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-40s %6s %6s %10s\n", "ENDPOINT", "SCORE", "CASES", "PROVIDER")
	for _, job := range jobs {
		score := complexity.Score(job.Endpoint)
		fmt.Fprintf(out, "%-40s %6d %6d %10s\n",
			job.Endpoint.ID(), score, job.Budget.Total(), job.Primary)
	}
	for _, ep := range skipped {
		fmt.Fprintf(out, "%-40s %6s %6s %10s\n", ep.ID(), "-", "-", "skipped")
	}
	fmt.Fprintf(out, "\n%d to generate, %d unchanged. No provider calls made.\n", len(jobs), len(skipped))
}

// renderEvents is the thin progress shell consuming the scheduler's fan-in
// channel.
func renderEvents(cmd *cobra.Command, events <-chan scheduler.Event) {
	out := cmd.OutOrStdout()
	for ev := range events {
		switch ev.Type {
		case scheduler.EventWritten:
			fmt.Fprintf(out, "written  %s ← %s (%s)\n", ev.Endpoint, ev.Provider, ev.Path)
		case scheduler.EventFailed:
			fmt.Fprintf(out, "failed   %s ← %s\n", ev.Endpoint, ev.Provider)
		case scheduler.EventAttempt:
			if ev.Attempt > 1 {
				fmt.Fprintf(out, "retry    %s ← %s (attempt %d)\n", ev.Endpoint, ev.Provider, ev.Attempt)
			}
		}
	}
}

func finishRun(store *state.Store, started time.Time, total, generated, skipped, failed int, runID string) error {
	return store.UpdateStatistics(func(stats *state.Statistics) {
		stats.TotalEndpoints = total
		stats.GeneratedCount = generated
		stats.SkippedCount = skipped
		stats.FailedCount = failed
		stats.LastRunDuration = time.Since(started).Seconds()
		stats.LastRunID = runID
	})
}

func updateProviderStats(store *state.Store, report usage.Report) {
	err := store.UpdateStatistics(func(stats *state.Statistics) {
		stats.ProviderUsage = make(map[string]int, len(report.Providers))
		stats.ProviderSuccess = make(map[string]float64, len(report.Providers))
		for _, p := range report.Providers {
			stats.ProviderUsage[p.Provider] = p.Attempts
			stats.ProviderSuccess[p.Provider] = p.SuccessRate()
		}
	})
	if err != nil {
		log.Global().WithError(err).Warn("cannot record provider statistics")
	}
}
