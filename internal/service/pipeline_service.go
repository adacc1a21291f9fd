package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meridian-platform/stackd/internal/domain"
	"github.com/meridian-platform/stackd/internal/port"
)

// PipelineService is the CI collaborator's entry point: build the three
// images in sequence, then hand the fresh version to the deploy path. A build
// failure aborts before anything is deployed.
type PipelineService struct {
	builder port.ImageBuilder
	deploys *DeployService
}

func NewPipelineService(builder port.ImageBuilder, deploys *DeployService) *PipelineService {
	return &PipelineService{builder: builder, deploys: deploys}
}

// Run builds proxy, api and web in that order and deploys the result. The
// proxy is built against the stable tag, the backends against the version.
func (p *PipelineService) Run(ctx context.Context, stack *domain.Stack, version string) (*domain.Revision, error) {
	if err := domain.ValidateVersion(version); err != nil {
		return nil, err
	}

	for _, role := range domain.Roles {
		tag := version
		if role == domain.RoleProxy {
			tag = stack.ProxyStableTag
		}
		built, err := p.builder.Build(ctx, role, stack.Repositories[role], tag)
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", role, err)
		}
		slog.Info("image built", "role", role, "tag", built)
	}

	return p.deploys.Deploy(ctx, stack, DeployRequest{Version: version, RedeployProxy: true})
}
