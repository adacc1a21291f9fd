package service

import (
	"context"

	"github.com/meridian-platform/stackd/internal/domain"
	"github.com/meridian-platform/stackd/internal/health"
	"github.com/meridian-platform/stackd/internal/port"
)

type StatusService struct {
	unitRepo port.UnitRepository
	revRepo  port.RevisionRepository
	deployer port.UnitDeployer
}

func NewStatusService(unitRepo port.UnitRepository, revRepo port.RevisionRepository, deployer port.UnitDeployer) *StatusService {
	return &StatusService{unitRepo: unitRepo, revRepo: revRepo, deployer: deployer}
}

type UnitStatus struct {
	Unit    *domain.ServiceUnit `json:"unit"`
	Serving *domain.Revision    `json:"serving,omitempty"`
	Health  *health.Report      `json:"health,omitempty"`
	History []*domain.Revision  `json:"history,omitempty"`
}

func (s *StatusService) GetUnit(ctx context.Context, name string) (*domain.ServiceUnit, error) {
	return s.unitRepo.FindByName(ctx, name)
}

func (s *StatusService) ListUnits(ctx context.Context) ([]*domain.ServiceUnit, error) {
	return s.unitRepo.FindAll(ctx)
}

func (s *StatusService) GetRevision(ctx context.Context, id string) (*domain.Revision, error) {
	return s.revRepo.FindByID(ctx, id)
}

// Status assembles the unit view: definition, serving revision, live health
// and revision history.
func (s *StatusService) Status(ctx context.Context, name string) (*UnitStatus, error) {
	unit, err := s.unitRepo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	status := &UnitStatus{Unit: unit}

	serving, err := s.revRepo.FindServing(ctx, name)
	if err == nil {
		status.Serving = serving
	}

	history, err := s.revRepo.FindByUnit(ctx, name)
	if err == nil {
		status.History = history
	}

	report, err := s.deployer.Health(ctx, unit)
	if err == nil {
		status.Health = &report
	}
	return status, nil
}

// Health reports the unit's live probe-derived health.
func (s *StatusService) Health(ctx context.Context, name string) (health.Report, error) {
	unit, err := s.unitRepo.FindByName(ctx, name)
	if err != nil {
		return health.Report{}, err
	}
	return s.deployer.Health(ctx, unit)
}
