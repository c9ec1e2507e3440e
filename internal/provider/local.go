package provider

import (
	"context"

	"github.com/Devliang24/casecraft/internal/log"
)

const (
	localName           = "local"
	localDefaultBaseURL = "http://localhost:11434/v1"
	localDefaultWorkers = 2
)

// Local is the client for Ollama- and vLLM-compatible servers exposing the
// OpenAI chat API. No API key is required and concurrency is whatever the
// operator configures.
type Local struct {
	core *chatCore
}

// NewLocal creates a local-model client.
func NewLocal(config Config, logger *log.Logger) *Local {
	return &Local{
		core: newChatCore(localName, config, localDefaultBaseURL, nil, logger),
	}
}

func (p *Local) Name() string { return localName }

func (p *Local) Generate(ctx context.Context, req *GenerateRequest) (*Response, error) {
	return p.core.generate(ctx, req)
}

func (p *Local) MaxWorkers() int {
	if w := p.core.config.MaxWorkers; w > 0 {
		return w
	}
	return localDefaultWorkers
}

func (p *Local) ValidateConfig() error { return p.core.validateConfig(false) }

func (p *Local) HealthCheck(ctx context.Context) error { return p.core.healthCheck(ctx) }

func (p *Local) Close() error { return p.core.close() }

var _ Client = (*Local)(nil)
