package provider

import (
	"context"

	"github.com/Devliang24/casecraft/internal/log"
)

const (
	deepseekName           = "deepseek"
	deepseekDefaultBaseURL = "https://api.deepseek.com/v1"
	deepseekMaxWorkers     = 3
)

// DeepSeek is the DeepSeek chat client.
type DeepSeek struct {
	core *chatCore
}

// NewDeepSeek creates a DeepSeek client.
func NewDeepSeek(config Config, logger *log.Logger) *DeepSeek {
	return &DeepSeek{
		core: newChatCore(deepseekName, config, deepseekDefaultBaseURL, nil, logger),
	}
}

func (p *DeepSeek) Name() string { return deepseekName }

func (p *DeepSeek) Generate(ctx context.Context, req *GenerateRequest) (*Response, error) {
	return p.core.generate(ctx, req)
}

// MaxWorkers caps at the declared limit of three; a lower configured value
// wins.
func (p *DeepSeek) MaxWorkers() int {
	if w := p.core.config.MaxWorkers; w > 0 && w < deepseekMaxWorkers {
		return w
	}
	return deepseekMaxWorkers
}

func (p *DeepSeek) ValidateConfig() error { return p.core.validateConfig(true) }

func (p *DeepSeek) HealthCheck(ctx context.Context) error { return p.core.healthCheck(ctx) }

func (p *DeepSeek) Close() error { return p.core.close() }

var _ Client = (*DeepSeek)(nil)
