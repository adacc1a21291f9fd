package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/meridian-platform/stackd/internal/domain"
	"github.com/meridian-platform/stackd/internal/port"
	"github.com/meridian-platform/stackd/internal/provision"
)

// DeployService runs the full deploy path: infrastructure graph, image
// verification, atomic unit rollout, health gate, revision bookkeeping.
type DeployService struct {
	unitRepo port.UnitRepository
	revRepo  port.RevisionRepository
	deployer port.UnitDeployer
	registry port.ImageRegistry
	provider provision.Provider
}

func NewDeployService(
	unitRepo port.UnitRepository,
	revRepo port.RevisionRepository,
	deployer port.UnitDeployer,
	registry port.ImageRegistry,
	provider provision.Provider,
) *DeployService {
	return &DeployService{
		unitRepo: unitRepo,
		revRepo:  revRepo,
		deployer: deployer,
		registry: registry,
		provider: provider,
	}
}

type DeployRequest struct {
	Version       string `json:"version"`
	RedeployProxy bool   `json:"redeploy_proxy"`
}

// Deploy provisions the stack's infrastructure and rolls out a new revision.
// Any failure leaves the previously serving revision untouched; only a fully
// healthy rollout is promoted to serving.
func (s *DeployService) Deploy(ctx context.Context, stack *domain.Stack, req DeployRequest) (*domain.Revision, error) {
	if req.Version == "" {
		req.Version = "latest"
	}
	if err := domain.ValidateVersion(req.Version); err != nil {
		return nil, err
	}
	if err := stack.Validate(); err != nil {
		return nil, err
	}

	if err := s.verifyImages(ctx, stack, req); err != nil {
		return nil, err
	}

	graph, err := StackGraph(stack)
	if err != nil {
		return nil, err
	}
	if err := graph.Apply(ctx, s.provider); err != nil {
		return nil, fmt.Errorf("provision: %w", err)
	}

	prev, err := s.revRepo.FindServing(ctx, stack.Unit.Name)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	rev := &domain.Revision{
		ID:        uuid.New().String(),
		UnitName:  stack.Unit.Name,
		Version:   req.Version,
		Images:    domain.PinImages(prev, stack.Repositories, req.Version, stack.ProxyStableTag, req.RedeployProxy),
		Status:    domain.RevisionStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.revRepo.Save(ctx, rev); err != nil {
		return nil, err
	}

	if err := s.saveUnit(ctx, &stack.Unit, now); err != nil {
		return nil, err
	}

	if err := s.deployer.Deploy(ctx, &stack.Unit, rev); err != nil {
		s.markFailed(ctx, rev)
		return rev, fmt.Errorf("deploy revision %s: %w", rev.ID, err)
	}

	report, err := s.deployer.Health(ctx, &stack.Unit)
	if err != nil {
		s.markFailed(ctx, rev)
		return rev, fmt.Errorf("health check revision %s: %w", rev.ID, err)
	}
	if !report.Healthy {
		s.markFailed(ctx, rev)
		return rev, fmt.Errorf("revision %s not promoted: unit unhealthy", rev.ID)
	}

	rev.Status = domain.RevisionStatusServing
	rev.UpdatedAt = time.Now()
	if err := s.revRepo.Update(ctx, rev); err != nil {
		return rev, err
	}

	if prev != nil {
		prev.Status = domain.RevisionStatusRetired
		prev.UpdatedAt = time.Now()
		if err := s.revRepo.Update(ctx, prev); err != nil {
			slog.Warn("failed to retire previous revision", "revision_id", prev.ID, "error", err)
		}
	}

	slog.Info("revision serving",
		"unit", stack.Unit.Name,
		"revision_id", rev.ID,
		"version", req.Version,
	)
	return rev, nil
}

// verifyImages refuses a deploy whose backend tags were never pushed. The
// proxy image is checked only when it is being re-pinned.
func (s *DeployService) verifyImages(ctx context.Context, stack *domain.Stack, req DeployRequest) error {
	checks := []struct {
		role domain.Role
		tag  string
	}{
		{domain.RoleAPI, req.Version},
		{domain.RoleWeb, req.Version},
	}
	if req.RedeployProxy {
		checks = append(checks, struct {
			role domain.Role
			tag  string
		}{domain.RoleProxy, stack.ProxyStableTag})
	}

	for _, check := range checks {
		repo := stack.Repositories[check.role]
		ok, err := s.registry.TagExists(ctx, repo, string(check.role), check.tag)
		if err != nil {
			return fmt.Errorf("verify %s:%s: %w", check.role, check.tag, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s:%s", domain.ErrImageNotFound, check.role, check.tag)
		}
	}
	return nil
}

func (s *DeployService) saveUnit(ctx context.Context, unit *domain.ServiceUnit, now time.Time) error {
	existing, err := s.unitRepo.FindByName(ctx, unit.Name)
	if errors.Is(err, domain.ErrNotFound) {
		unit.CreatedAt = now
		unit.UpdatedAt = now
		return s.unitRepo.Save(ctx, unit)
	}
	if err != nil {
		return err
	}
	unit.CreatedAt = existing.CreatedAt
	unit.UpdatedAt = now
	return s.unitRepo.Update(ctx, unit)
}

func (s *DeployService) markFailed(ctx context.Context, rev *domain.Revision) {
	rev.Status = domain.RevisionStatusFailed
	rev.UpdatedAt = time.Now()
	if err := s.revRepo.Update(ctx, rev); err != nil {
		slog.Error("failed to record revision failure", "revision_id", rev.ID, "error", err)
	}
}

// StackGraph declares the full infrastructure graph for a stack.
func StackGraph(stack *domain.Stack) (*provision.Graph, error) {
	g := provision.NewGraph()
	if err := g.Add(provision.FabricResources(&stack.Fabric)...); err != nil {
		return nil, err
	}
	if err := g.Add(provision.ConnectorResource(&stack.Connector, &stack.Fabric)); err != nil {
		return nil, err
	}
	if err := g.Add(provision.RegistryResources(stack.Repositories)...); err != nil {
		return nil, err
	}
	if err := g.Add(provision.IdentityResources(&stack.Identity, stack.Unit.Name)...); err != nil {
		return nil, err
	}
	return g, nil
}
