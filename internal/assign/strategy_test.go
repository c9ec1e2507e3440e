package assign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Devliang24/casecraft/internal/provider"
	"github.com/Devliang24/casecraft/internal/spec"
)

func strategyConfig(strategyName string, providers ...provider.Config) *provider.ProvidersConfig {
	return &provider.ProvidersConfig{
		Providers: providers,
		Strategy:  provider.StrategyConfig{Name: strategyName},
	}
}

func simpleProviders(names ...string) []provider.Config {
	out := make([]provider.Config, len(names))
	for i, n := range names {
		out[i] = provider.Config{Name: n, Model: "m"}
	}
	return out
}

func endpointsFixture(n int) []spec.Endpoint {
	eps := make([]spec.Endpoint, n)
	for i := range eps {
		eps[i] = spec.Endpoint{Method: "GET", Path: "/e" + string(rune('a'+i))}
	}
	return eps
}

// For any endpoint set and provider list, round_robin assigns P[i mod |P|]
// to the i-th endpoint in document order.
func TestRoundRobinCycles(t *testing.T) {
	cfg := strategyConfig(StrategyRoundRobin, simpleProviders("glm", "qwen")...)
	s, err := New(cfg, "", 3)
	require.NoError(t, err)

	var got []string
	for _, ep := range endpointsFixture(5) {
		name, err := s.Assign(ep)
		require.NoError(t, err)
		got = append(got, name)
	}
	assert.Equal(t, []string{"glm", "qwen", "glm", "qwen", "glm"}, got)
}

func TestDefaultStrategyIsRoundRobin(t *testing.T) {
	cfg := strategyConfig("", simpleProviders("glm")...)
	s, err := New(cfg, "", 1)
	require.NoError(t, err)
	assert.Equal(t, StrategyRoundRobin, s.Name())
}

func TestRandomReproducible(t *testing.T) {
	run := func(seed int64) []string {
		cfg := strategyConfig(StrategyRandom, simpleProviders("glm", "qwen", "deepseek")...)
		cfg.Strategy.Seed = seed
		s, err := New(cfg, "", 10)
		require.NoError(t, err)

		var got []string
		for _, ep := range endpointsFixture(10) {
			name, err := s.Assign(ep)
			require.NoError(t, err)
			got = append(got, name)
		}
		return got
	}

	assert.Equal(t, run(42), run(42), "same seed, same assignment")
}

func TestRandomDerivedSeedIsStable(t *testing.T) {
	fingerprint := "00000000000000ff0000000000000000"

	build := func() Strategy {
		cfg := strategyConfig(StrategyRandom, simpleProviders("glm", "qwen")...)
		s, err := New(cfg, fingerprint, 7)
		require.NoError(t, err)
		return s
	}

	a, b := build(), build()
	for _, ep := range endpointsFixture(6) {
		x, _ := a.Assign(ep)
		y, _ := b.Assign(ep)
		assert.Equal(t, x, y)
	}
}

func TestComplexityStrategyRoutesByTier(t *testing.T) {
	cfg := strategyConfig(StrategyComplexity,
		provider.Config{Name: "glm", Model: "m", Role: provider.RoleStrongest},
		provider.Config{Name: "local", Model: "m", Role: provider.RoleFastest},
		provider.Config{Name: "qwen", Model: "m", Role: provider.RoleBalanced},
	)
	s, err := New(cfg, "", 3)
	require.NoError(t, err)

	simple := spec.Endpoint{Method: "GET", Path: "/health"} // score 0
	medium := spec.Endpoint{ // 1 path param (x2) + auth + POST = 2*1+3+2 = 7
		Method: "POST", Path: "/users/{id}",
		Parameters:   []spec.Parameter{{Name: "id", In: "path", Required: true}},
		AuthRequired: true,
	}
	complexEp := spec.Endpoint{ // score > 10
		Method: "POST", Path: "/a/{x}/b/{y}/c/{z}",
		Parameters: []spec.Parameter{
			{Name: "x", In: "path", Required: true},
			{Name: "y", In: "path", Required: true},
			{Name: "z", In: "path", Required: true},
		},
		AuthRequired: true,
		Responses: map[string]map[string]interface{}{
			"200": nil, "400": nil, "401": nil, "404": nil,
		},
	}

	name, _ := s.Assign(simple)
	assert.Equal(t, "local", name)
	name, _ = s.Assign(medium)
	assert.Equal(t, "qwen", name)
	name, _ = s.Assign(complexEp)
	assert.Equal(t, "glm", name)
}

func TestComplexityStrategyFallsBackToFirstProvider(t *testing.T) {
	cfg := strategyConfig(StrategyComplexity, simpleProviders("qwen", "glm")...)
	s, err := New(cfg, "", 1)
	require.NoError(t, err)

	name, err := s.Assign(spec.Endpoint{Method: "GET", Path: "/x"})
	require.NoError(t, err)
	assert.Equal(t, "qwen", name, "untagged roles resolve to the first provider")
}

func TestManualFirstMatchWins(t *testing.T) {
	cfg := strategyConfig(StrategyManual, simpleProviders("glm", "qwen", "deepseek")...)
	cfg.Strategy.Mapping = "POST /users*:deepseek,/users/*:qwen,*:glm"
	s, err := New(cfg, "", 3)
	require.NoError(t, err)

	name, err := s.Assign(spec.Endpoint{Method: "POST", Path: "/users"})
	require.NoError(t, err)
	assert.Equal(t, "deepseek", name, "method-qualified pattern matches first")

	name, err = s.Assign(spec.Endpoint{Method: "GET", Path: "/users/42"})
	require.NoError(t, err)
	assert.Equal(t, "qwen", name)

	name, err = s.Assign(spec.Endpoint{Method: "GET", Path: "/orders"})
	require.NoError(t, err)
	assert.Equal(t, "glm", name, "wildcard fallback")
}

func TestManualWithoutWildcardFailsUnmatched(t *testing.T) {
	cfg := strategyConfig(StrategyManual, simpleProviders("glm")...)
	cfg.Strategy.Mapping = "/users/*:glm"
	s, err := New(cfg, "", 1)
	require.NoError(t, err)

	_, err = s.Assign(spec.Endpoint{Method: "GET", Path: "/orders"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wildcard fallback")
}

func TestManualRejectsBadMapping(t *testing.T) {
	tests := []string{
		"",
		"no-colon-here",
		"/users/*:unknown",
	}
	for _, mapping := range tests {
		cfg := strategyConfig(StrategyManual, simpleProviders("glm")...)
		cfg.Strategy.Mapping = mapping
		_, err := New(cfg, "", 1)
		assert.Error(t, err, "mapping %q", mapping)
	}
}

func TestUnknownStrategy(t *testing.T) {
	cfg := strategyConfig("psychic", simpleProviders("glm")...)
	_, err := New(cfg, "", 1)
	assert.Error(t, err)
}
