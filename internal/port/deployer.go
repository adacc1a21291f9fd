package port

import (
	"context"

	"github.com/meridian-platform/stackd/internal/domain"
	"github.com/meridian-platform/stackd/internal/health"
)

// UnitDeployer realizes a revision of a ServiceUnit as one atomically
// scheduled container group on the target platform.
type UnitDeployer interface {
	// Deploy replaces the unit's running revision wholesale. It returns once
	// the rollout completes or fails; a failed rollout leaves the previous
	// revision serving.
	Deploy(ctx context.Context, unit *domain.ServiceUnit, rev *domain.Revision) error
	// Delete tears the unit down. Missing resources are not an error.
	Delete(ctx context.Context, unit *domain.ServiceUnit) error
	// Health reports the unit's current probe-derived health.
	Health(ctx context.Context, unit *domain.ServiceUnit) (health.Report, error)
}

// ImageBuilder is the build collaborator: it produces a tagged image for one
// container role and returns the pushed tag.
type ImageBuilder interface {
	Build(ctx context.Context, role domain.Role, repo domain.RegistryRepository, version string) (tag string, err error)
}

// ImageRegistry answers whether built artifacts exist before a deploy pins
// them.
type ImageRegistry interface {
	TagExists(ctx context.Context, repo domain.RegistryRepository, imageName, tag string) (bool, error)
	ResolveDigest(ctx context.Context, repo domain.RegistryRepository, imageName, tag string) (string, error)
}
