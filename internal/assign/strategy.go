// Package assign maps endpoints to their primary provider.
package assign

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	"github.com/Devliang24/casecraft/internal/complexity"
	"github.com/Devliang24/casecraft/internal/errors"
	"github.com/Devliang24/casecraft/internal/provider"
	"github.com/Devliang24/casecraft/internal/spec"
)

// Strategy names accepted in configuration.
const (
	StrategyRoundRobin = "round_robin"
	StrategyRandom     = "random"
	StrategyComplexity = "complexity"
	StrategyManual     = "manual"
)

// Strategy assigns a primary provider to each endpoint. Callers invoke
// Assign once per endpoint in document order; every strategy except random
// is deterministic for a given configuration.
type Strategy interface {
	Name() string
	Assign(e spec.Endpoint) (string, error)
}

// New builds the configured strategy. docFingerprint and endpointCount seed
// the random strategy when no explicit seed is configured.
func New(cfg *provider.ProvidersConfig, docFingerprint string, endpointCount int) (Strategy, error) {
	providers := cfg.Names()
	if len(providers) == 0 {
		return nil, errors.NewNoProviderConfiguredError()
	}

	name := cfg.Strategy.Name
	if name == "" {
		name = StrategyRoundRobin
	}

	switch name {
	case StrategyRoundRobin:
		return &roundRobin{providers: providers}, nil
	case StrategyRandom:
		seed := cfg.Strategy.Seed
		if seed == 0 {
			seed = deriveSeed(docFingerprint, endpointCount)
		}
		return &random{providers: providers, rng: rand.New(rand.NewSource(seed)), seed: seed}, nil
	case StrategyComplexity:
		return newComplexityStrategy(cfg)
	case StrategyManual:
		return newManual(cfg.Strategy.Mapping, providers)
	default:
		return nil, errors.New(errors.ErrCodeStrategyInvalid,
			fmt.Sprintf("unknown assignment strategy %q", name)).
			WithSuggestion("Use one of: round_robin, random, complexity, manual")
	}
}

// deriveSeed mixes the endpoint count with the leading bytes of the API
// document hash so reruns over an unchanged document reproduce assignments.
func deriveSeed(docFingerprint string, endpointCount int) int64 {
	seed := int64(endpointCount)
	if len(docFingerprint) >= 16 {
		if v, err := strconv.ParseUint(docFingerprint[:16], 16, 64); err == nil {
			seed += int64(v)
		}
	}
	return seed
}

// roundRobin cycles through the provider list in document order.
type roundRobin struct {
	providers []string
	next      int
}

func (s *roundRobin) Name() string { return StrategyRoundRobin }

func (s *roundRobin) Assign(spec.Endpoint) (string, error) {
	p := s.providers[s.next%len(s.providers)]
	s.next++
	return p, nil
}

// random picks uniformly with a seeded PRNG for reproducibility.
type random struct {
	providers []string
	rng       *rand.Rand
	seed      int64
}

func (s *random) Name() string { return StrategyRandom }

// Seed returns the seed in use, for reporting.
func (s *random) Seed() int64 { return s.seed }

func (s *random) Assign(spec.Endpoint) (string, error) {
	return s.providers[s.rng.Intn(len(s.providers))], nil
}

// complexityStrategy routes by score: complex endpoints to the strongest
// provider, simple ones to the fastest, the rest to the balanced one.
type complexityStrategy struct {
	strongest string
	fastest   string
	balanced  string
}

func newComplexityStrategy(cfg *provider.ProvidersConfig) (*complexityStrategy, error) {
	byRole := make(map[string]string)
	for _, p := range cfg.Providers {
		if p.Role != "" {
			if prev, dup := byRole[p.Role]; dup {
				return nil, errors.New(errors.ErrCodeStrategyInvalid,
					fmt.Sprintf("role %q assigned to both %s and %s", p.Role, prev, p.Name))
			}
			byRole[p.Role] = p.Name
		}
	}

	fallback := cfg.Providers[0].Name
	pick := func(role string) string {
		if name, ok := byRole[role]; ok {
			return name
		}
		return fallback
	}

	return &complexityStrategy{
		strongest: pick(provider.RoleStrongest),
		fastest:   pick(provider.RoleFastest),
		balanced:  pick(provider.RoleBalanced),
	}, nil
}

func (s *complexityStrategy) Name() string { return StrategyComplexity }

func (s *complexityStrategy) Assign(e spec.Endpoint) (string, error) {
	switch complexity.TierFor(complexity.Score(e)) {
	case complexity.TierComplex:
		return s.strongest, nil
	case complexity.TierSimple:
		return s.fastest, nil
	default:
		return s.balanced, nil
	}
}

// manual applies a declarative "pattern:provider,..." mapping. A pattern is
// either a path glob or "METHOD path-glob"; first match wins. A wildcard
// entry must cover endpoints no other pattern matches.
type manual struct {
	rules []manualRule
}

type manualRule struct {
	method   string
	pathRe   *regexp.Regexp
	raw      string
	provider string
}

func newManual(mapping string, providers []string) (*manual, error) {
	if strings.TrimSpace(mapping) == "" {
		return nil, errors.New(errors.ErrCodeStrategyInvalid,
			"manual strategy requires a mapping (e.g. \"/users/*:qwen,*:glm\")")
	}

	known := make(map[string]bool, len(providers))
	for _, p := range providers {
		known[p] = true
	}

	var rules []manualRule
	for _, entry := range strings.Split(mapping, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		idx := strings.LastIndex(entry, ":")
		if idx <= 0 || idx == len(entry)-1 {
			return nil, errors.New(errors.ErrCodeStrategyInvalid,
				fmt.Sprintf("manual mapping entry %q is not pattern:provider", entry))
		}
		pattern := strings.TrimSpace(entry[:idx])
		providerName := strings.TrimSpace(entry[idx+1:])
		if !known[providerName] {
			return nil, errors.New(errors.ErrCodeStrategyInvalid,
				fmt.Sprintf("manual mapping references unconfigured provider %q", providerName))
		}

		rule := manualRule{raw: pattern, provider: providerName}
		if fields := strings.Fields(pattern); len(fields) == 2 {
			rule.method = strings.ToUpper(fields[0])
			pattern = fields[1]
		}
		re, err := spec.CompileGlob(pattern)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStrategyInvalid,
				fmt.Sprintf("manual mapping pattern %q", pattern), err)
		}
		rule.pathRe = re
		rules = append(rules, rule)
	}

	if len(rules) == 0 {
		return nil, errors.New(errors.ErrCodeStrategyInvalid, "manual mapping contains no entries")
	}
	return &manual{rules: rules}, nil
}

func (s *manual) Name() string { return StrategyManual }

func (s *manual) Assign(e spec.Endpoint) (string, error) {
	for _, rule := range s.rules {
		if rule.method != "" && rule.method != e.Method {
			continue
		}
		if rule.pathRe.MatchString(e.Path) {
			return rule.provider, nil
		}
	}
	return "", errors.New(errors.ErrCodeStrategyInvalid,
		fmt.Sprintf("no manual mapping matches %s; add a wildcard fallback entry (\"*:provider\")", e.ID()))
}
