package provider

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Devliang24/casecraft/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "casecraft.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleConfig = `
providers:
  - name: glm
    model: glm-4
    api_key: ${TEST_GLM_KEY}
    temperature: 0.5
  - name: qwen
    model: qwen-max
    api_key: literal-key
    max_workers: 2
    role: fastest
strategy:
  name: round_robin
  fallback_chain: [qwen]
output:
  dir: generated
  by_tag: true
`

func TestLoadConfig(t *testing.T) {
	t.Setenv("TEST_GLM_KEY", "expanded-secret")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	require.Len(t, cfg.Providers, 2)

	glm, ok := cfg.Provider("glm")
	require.True(t, ok)
	assert.Equal(t, "expanded-secret", glm.APIKey, "${VAR} expands from the environment")
	assert.Equal(t, 0.5, glm.Temperature)
	assert.Equal(t, 60, glm.Timeout, "default timeout")
	assert.Equal(t, 3, glm.MaxRetries, "default retries")
	assert.Equal(t, 4096, glm.MaxTokens, "default max tokens")

	qwen, ok := cfg.Provider("qwen")
	require.True(t, ok)
	assert.Equal(t, 2, qwen.MaxWorkers)
	assert.Equal(t, RoleFastest, qwen.Role)

	assert.Equal(t, "round_robin", cfg.Strategy.Name)
	assert.Equal(t, []string{"qwen"}, cfg.Strategy.FallbackChain)
	assert.Equal(t, "generated", cfg.Output.Dir)
	assert.True(t, cfg.Output.ByTag)

	assert.Equal(t, []string{"glm", "qwen"}, cfg.Names())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("TEST_GLM_KEY", "from-file")
	t.Setenv("CASECRAFT_GLM_API_KEY", "from-env")
	t.Setenv("CASECRAFT_GLM_MODEL", "glm-4-plus")
	t.Setenv("CASECRAFT_QWEN_MAX_WORKERS", "1")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	glm, _ := cfg.Provider("glm")
	assert.Equal(t, "from-env", glm.APIKey, "environment overrides file")
	assert.Equal(t, "glm-4-plus", glm.Model)

	qwen, _ := cfg.Provider("qwen")
	assert.Equal(t, 1, qwen.MaxWorkers)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigNotFound, errors.CodeOf(err))
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    errors.ErrorCode
	}{
		{
			"no providers",
			`providers: []`,
			errors.ErrCodeNoProvider,
		},
		{
			"unknown provider",
			"providers:\n  - name: gpt9\n    model: m\n",
			errors.ErrCodeProviderNotFound,
		},
		{
			"missing model",
			"providers:\n  - name: glm\n",
			errors.ErrCodeProviderConfig,
		},
		{
			"duplicate provider",
			"providers:\n  - name: glm\n    model: a\n  - name: glm\n    model: b\n",
			errors.ErrCodeConfigInvalid,
		},
		{
			"fallback references unconfigured provider",
			"providers:\n  - name: glm\n    model: a\nstrategy:\n  fallback_chain: [qwen]\n",
			errors.ErrCodeConfigInvalid,
		},
		{
			"bad role",
			"providers:\n  - name: glm\n    model: a\n    role: mega\n",
			errors.ErrCodeConfigInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
}
