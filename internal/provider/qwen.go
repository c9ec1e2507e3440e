package provider

import (
	"context"

	"github.com/Devliang24/casecraft/internal/log"
)

const (
	qwenName           = "qwen"
	qwenDefaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	qwenMaxWorkers     = 3
)

// Qwen is the DashScope Qwen client, speaking the OpenAI-compatible mode.
type Qwen struct {
	core *chatCore
}

// NewQwen creates a Qwen client.
func NewQwen(config Config, logger *log.Logger) *Qwen {
	return &Qwen{
		core: newChatCore(qwenName, config, qwenDefaultBaseURL, nil, logger),
	}
}

func (p *Qwen) Name() string { return qwenName }

func (p *Qwen) Generate(ctx context.Context, req *GenerateRequest) (*Response, error) {
	return p.core.generate(ctx, req)
}

// MaxWorkers caps at the declared DashScope limit of three; a lower
// configured value wins.
func (p *Qwen) MaxWorkers() int {
	if w := p.core.config.MaxWorkers; w > 0 && w < qwenMaxWorkers {
		return w
	}
	return qwenMaxWorkers
}

func (p *Qwen) ValidateConfig() error { return p.core.validateConfig(true) }

func (p *Qwen) HealthCheck(ctx context.Context) error { return p.core.healthCheck(ctx) }

func (p *Qwen) Close() error { return p.core.close() }

var _ Client = (*Qwen)(nil)
