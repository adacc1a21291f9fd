package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/meridian-platform/stackd/internal/provision"
)

var _ provision.Provider = (*InfraProvider)(nil)

// ResourceModel is one row of the infrastructure inventory: the desired
// state a cloud reconciler converges on.
type ResourceModel struct {
	ID        string `gorm:"primaryKey"`
	Kind      string `gorm:"index"`
	DependsOn string // comma separated resource IDs
	Spec      string `gorm:"type:text"` // JSON-serialized spec
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ResourceModel) TableName() string { return "infra_resources" }

// InfraProvider applies the resource graph to a database-backed inventory.
// Apply is idempotent: re-applying an existing resource updates its spec in
// place, matching the declarative contract of the graph.
type InfraProvider struct {
	db *gorm.DB
}

func NewInfraProvider(db *gorm.DB) *InfraProvider {
	return &InfraProvider{db: db}
}

func (p *InfraProvider) Apply(ctx context.Context, res provision.Resource) error {
	spec, err := json.Marshal(res.Spec)
	if err != nil {
		return fmt.Errorf("encode spec for %s: %w", res.ID, err)
	}
	model := ResourceModel{
		ID:        res.ID,
		Kind:      string(res.Kind),
		DependsOn: strings.Join(res.DependsOn, ","),
		Spec:      string(spec),
	}
	err = p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "depends_on", "spec", "updated_at"}),
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("apply %s %s: %w", res.Kind, res.ID, err)
	}
	slog.Info("resource applied", "kind", res.Kind, "id", res.ID)
	return nil
}

func (p *InfraProvider) Destroy(ctx context.Context, res provision.Resource) error {
	err := p.db.WithContext(ctx).Delete(&ResourceModel{}, "id = ?", res.ID).Error
	if err != nil {
		return fmt.Errorf("destroy %s %s: %w", res.Kind, res.ID, err)
	}
	slog.Info("resource destroyed", "kind", res.Kind, "id", res.ID)
	return nil
}
