package provider

import (
	"context"

	"github.com/Devliang24/casecraft/internal/log"
)

const (
	glmName           = "glm"
	glmDefaultBaseURL = "https://open.bigmodel.cn/api/paas/v4"
)

// GLM is the BigModel GLM client. The GLM API rejects concurrent requests
// on a single key, so its worker limit is pinned to one.
type GLM struct {
	core *chatCore
}

// NewGLM creates a GLM client.
func NewGLM(config Config, logger *log.Logger) *GLM {
	return &GLM{
		core: newChatCore(glmName, config, glmDefaultBaseURL, nil, logger),
	}
}

func (p *GLM) Name() string { return glmName }

func (p *GLM) Generate(ctx context.Context, req *GenerateRequest) (*Response, error) {
	return p.core.generate(ctx, req)
}

func (p *GLM) MaxWorkers() int { return 1 }

func (p *GLM) ValidateConfig() error { return p.core.validateConfig(true) }

func (p *GLM) HealthCheck(ctx context.Context) error { return p.core.healthCheck(ctx) }

func (p *GLM) Close() error { return p.core.close() }

var _ Client = (*GLM)(nil)
