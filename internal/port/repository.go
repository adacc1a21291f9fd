package port

import (
	"context"
	"time"

	"github.com/meridian-platform/stackd/internal/domain"
)

type UnitRepository interface {
	Save(ctx context.Context, unit *domain.ServiceUnit) error
	FindByName(ctx context.Context, name string) (*domain.ServiceUnit, error)
	FindAll(ctx context.Context) ([]*domain.ServiceUnit, error)
	Update(ctx context.Context, unit *domain.ServiceUnit) error
	Delete(ctx context.Context, name string) error
}

type RevisionRepository interface {
	Save(ctx context.Context, rev *domain.Revision) error
	FindByID(ctx context.Context, id string) (*domain.Revision, error)
	FindServing(ctx context.Context, unitName string) (*domain.Revision, error)
	FindByUnit(ctx context.Context, unitName string) ([]*domain.Revision, error)
	Update(ctx context.Context, rev *domain.Revision) error
}

// LogQuerier queries historical container logs (such as Loki).
type LogQuerier interface {
	QueryUnitLogs(ctx context.Context, namespace, unitName, container string, start, end time.Time, limit int) (string, error)
}
