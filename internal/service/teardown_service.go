package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meridian-platform/stackd/internal/domain"
	"github.com/meridian-platform/stackd/internal/port"
	"github.com/meridian-platform/stackd/internal/provision"
)

type TeardownService struct {
	unitRepo port.UnitRepository
	deployer port.UnitDeployer
	provider provision.Provider
}

func NewTeardownService(unitRepo port.UnitRepository, deployer port.UnitDeployer, provider provision.Provider) *TeardownService {
	return &TeardownService{unitRepo: unitRepo, deployer: deployer, provider: provider}
}

// Teardown removes the running unit, then destroys the stack's infrastructure
// in reverse dependency order, then forgets the unit definition.
func (s *TeardownService) Teardown(ctx context.Context, stack *domain.Stack) error {
	if err := s.deployer.Delete(ctx, &stack.Unit); err != nil {
		return fmt.Errorf("delete unit %s: %w", stack.Unit.Name, err)
	}

	graph, err := StackGraph(stack)
	if err != nil {
		return err
	}
	if err := graph.Destroy(ctx, s.provider); err != nil {
		return fmt.Errorf("destroy infrastructure: %w", err)
	}

	if err := s.unitRepo.Delete(ctx, stack.Unit.Name); err != nil {
		slog.Warn("failed to delete unit record", "unit", stack.Unit.Name, "error", err)
	}
	return nil
}
