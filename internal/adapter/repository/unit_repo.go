package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/meridian-platform/stackd/internal/domain"
	"github.com/meridian-platform/stackd/internal/port"
	"gorm.io/gorm"
)

var _ port.UnitRepository = (*UnitRepo)(nil)

type UnitRepo struct {
	db *gorm.DB
}

func NewUnitRepo(db *gorm.DB) *UnitRepo {
	return &UnitRepo{db: db}
}

func (r *UnitRepo) Save(ctx context.Context, unit *domain.ServiceUnit) error {
	m, err := unitToModel(unit)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Create(m)
	if result.Error != nil {
		if isUniqueConstraintError(result.Error) {
			return domain.ErrAlreadyExists
		}
		return result.Error
	}
	return nil
}

func (r *UnitRepo) FindByName(ctx context.Context, name string) (*domain.ServiceUnit, error) {
	var m UnitModel
	result := r.db.WithContext(ctx).First(&m, "name = ?", name)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUnitNotFound
		}
		return nil, result.Error
	}
	return modelToUnit(&m)
}

func (r *UnitRepo) FindAll(ctx context.Context) ([]*domain.ServiceUnit, error) {
	var models []UnitModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, err
	}
	units := make([]*domain.ServiceUnit, 0, len(models))
	for i := range models {
		u, err := modelToUnit(&models[i])
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, nil
}

func (r *UnitRepo) Update(ctx context.Context, unit *domain.ServiceUnit) error {
	m, err := unitToModel(unit)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *UnitRepo) Delete(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Delete(&UnitModel{}, "name = ?", name).Error
}

// containerRecord mirrors domain.Container for persistence. domain.EnvVar
// excludes its value from JSON so secrets cannot be echoed by the API; the
// database still needs the full entry to inject it at deploy time.
type containerRecord struct {
	Role      domain.Role         `json:"role"`
	Image     string              `json:"image"`
	CPU       string              `json:"cpu"`
	Memory    string              `json:"memory"`
	Port      int                 `json:"port"`
	Env       []envRecord         `json:"env,omitempty"`
	Probe     domain.StartupProbe `json:"probe"`
	DependsOn []domain.Role       `json:"depends_on,omitempty"`
}

type envRecord struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Secret bool   `json:"secret,omitempty"`
}

func toRecords(containers []domain.Container) []containerRecord {
	records := make([]containerRecord, len(containers))
	for i, c := range containers {
		envs := make([]envRecord, len(c.Env))
		for j, e := range c.Env {
			envs[j] = envRecord{Name: e.Name, Value: e.Value, Secret: e.Secret}
		}
		records[i] = containerRecord{
			Role: c.Role, Image: c.Image, CPU: c.CPU, Memory: c.Memory,
			Port: c.Port, Env: envs, Probe: c.Probe, DependsOn: c.DependsOn,
		}
	}
	return records
}

func fromRecords(records []containerRecord) []domain.Container {
	containers := make([]domain.Container, len(records))
	for i, rec := range records {
		envs := make([]domain.EnvVar, len(rec.Env))
		for j, e := range rec.Env {
			envs[j] = domain.EnvVar{Name: e.Name, Value: e.Value, Secret: e.Secret}
		}
		containers[i] = domain.Container{
			Role: rec.Role, Image: rec.Image, CPU: rec.CPU, Memory: rec.Memory,
			Port: rec.Port, Env: envs, Probe: rec.Probe, DependsOn: rec.DependsOn,
		}
	}
	return containers
}

func unitToModel(u *domain.ServiceUnit) (*UnitModel, error) {
	containersJSON, err := json.Marshal(toRecords(u.Containers))
	if err != nil {
		return nil, err
	}
	return &UnitModel{
		Name:         u.Name,
		Project:      u.Project,
		Region:       u.Region,
		Ingress:      string(u.Ingress),
		MinInstances: u.MinInstances,
		MaxInstances: u.MaxInstances,
		Containers:   string(containersJSON),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}, nil
}

func modelToUnit(m *UnitModel) (*domain.ServiceUnit, error) {
	var records []containerRecord
	if m.Containers != "" {
		if err := json.Unmarshal([]byte(m.Containers), &records); err != nil {
			return nil, err
		}
	}
	containers := fromRecords(records)
	return &domain.ServiceUnit{
		Name:         m.Name,
		Project:      m.Project,
		Region:       m.Region,
		Ingress:      domain.IngressPolicy(m.Ingress),
		MinInstances: m.MinInstances,
		MaxInstances: m.MaxInstances,
		Containers:   containers,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}, nil
}
