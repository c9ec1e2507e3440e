package provider

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Devliang24/casecraft/internal/errors"
)

// Provider roles used by the complexity assignment strategy.
const (
	RoleStrongest = "strongest"
	RoleFastest   = "fastest"
	RoleBalanced  = "balanced"
)

// Config is the configuration for one provider. Immutable after load.
type Config struct {
	Name        string  `yaml:"name"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Timeout     int     `yaml:"timeout"` // seconds per request
	MaxRetries  int     `yaml:"max_retries"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Stream      bool    `yaml:"stream"`
	MaxWorkers  int     `yaml:"max_workers"`
	Role        string  `yaml:"role,omitempty"` // strongest | fastest | balanced
}

// RequestTimeout returns the per-request timeout as a duration.
func (c Config) RequestTimeout() time.Duration {
	if c.Timeout <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

// StrategyConfig selects and parameterizes the assignment strategy.
type StrategyConfig struct {
	Name          string   `yaml:"name"`
	FallbackChain []string `yaml:"fallback_chain"`
	Seed          int64    `yaml:"seed,omitempty"`    // random strategy
	Mapping       string   `yaml:"mapping,omitempty"` // manual strategy
}

// OutputConfig controls artifact placement.
type OutputConfig struct {
	Dir   string `yaml:"dir"`
	ByTag bool   `yaml:"by_tag"`
}

// ProvidersConfig is the complete casecraft.yaml configuration.
type ProvidersConfig struct {
	Providers []Config       `yaml:"providers"`
	Strategy  StrategyConfig `yaml:"strategy"`
	Output    OutputConfig   `yaml:"output"`
}

// Provider returns the configuration for the named provider.
func (c *ProvidersConfig) Provider(name string) (Config, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return Config{}, false
}

// Names returns the configured provider names in declaration order.
func (c *ProvidersConfig) Names() []string {
	names := make([]string, len(c.Providers))
	for i, p := range c.Providers {
		names[i] = p.Name
	}
	return names
}

// LoadConfig loads provider configuration from a YAML file. Environment
// variables referenced as ${VAR} in the file are expanded before parsing,
// and CASECRAFT_<PROVIDER>_* variables override file values afterwards.
func LoadConfig(path string) (*ProvidersConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewConfigNotFoundError(path)
		}
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "read config file", err)
	}

	configStr := os.ExpandEnv(string(data))

	var config ProvidersConfig
	if err := yaml.Unmarshal([]byte(configStr), &config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "unmarshal config", err)
	}

	for i := range config.Providers {
		applyDefaults(&config.Providers[i])
		applyEnvOverrides(&config.Providers[i])
	}

	if err := Validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func applyDefaults(c *Config) {
	c.Name = strings.ToLower(strings.TrimSpace(c.Name))
	if c.Timeout <= 0 {
		c.Timeout = 60
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
}

// applyEnvOverrides lets environment variables override file values:
// CASECRAFT_GLM_API_KEY, CASECRAFT_QWEN_MODEL, and so on.
func applyEnvOverrides(c *Config) {
	prefix := "CASECRAFT_" + strings.ToUpper(c.Name) + "_"

	if v := os.Getenv(prefix + "API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(prefix + "MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv(prefix + "BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(prefix + "MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxWorkers = n
		}
	}
	if v := os.Getenv(prefix + "TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Timeout = n
		}
	}
}

// Validate checks a providers configuration for structural problems.
func Validate(config *ProvidersConfig) error {
	if len(config.Providers) == 0 {
		return errors.NewNoProviderConfiguredError()
	}

	seen := make(map[string]bool)
	for i, p := range config.Providers {
		if p.Name == "" {
			return errors.New(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("provider %d: name is required", i))
		}
		if !KnownProvider(p.Name) {
			return errors.NewProviderNotFoundError(p.Name)
		}
		if seen[p.Name] {
			return errors.New(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("provider %s configured twice", p.Name))
		}
		seen[p.Name] = true

		if p.Model == "" {
			return errors.New(errors.ErrCodeProviderConfig,
				fmt.Sprintf("provider %s: model is required", p.Name))
		}
		if p.Role != "" && p.Role != RoleStrongest && p.Role != RoleFastest && p.Role != RoleBalanced {
			return errors.New(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("provider %s: unknown role %q", p.Name, p.Role))
		}
	}

	for _, name := range config.Strategy.FallbackChain {
		if !seen[name] {
			return errors.New(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("fallback chain references unconfigured provider %q", name))
		}
	}

	return nil
}
