package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/meridian-platform/stackd/internal/domain"
	"github.com/meridian-platform/stackd/internal/port"
	"gorm.io/gorm"
)

var _ port.RevisionRepository = (*RevisionRepo)(nil)

type RevisionRepo struct {
	db *gorm.DB
}

func NewRevisionRepo(db *gorm.DB) *RevisionRepo {
	return &RevisionRepo{db: db}
}

func (r *RevisionRepo) Save(ctx context.Context, rev *domain.Revision) error {
	m, err := revisionToModel(rev)
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

func (r *RevisionRepo) FindByID(ctx context.Context, id string) (*domain.Revision, error) {
	var m RevisionModel
	result := r.db.WithContext(ctx).First(&m, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRevisionNotFound
		}
		return nil, result.Error
	}
	return modelToRevision(&m)
}

func (r *RevisionRepo) FindServing(ctx context.Context, unitName string) (*domain.Revision, error) {
	var m RevisionModel
	result := r.db.WithContext(ctx).
		Where("unit_name = ? AND status = ?", unitName, string(domain.RevisionStatusServing)).
		Order("created_at DESC").
		First(&m)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRevisionNotFound
		}
		return nil, result.Error
	}
	return modelToRevision(&m)
}

func (r *RevisionRepo) FindByUnit(ctx context.Context, unitName string) ([]*domain.Revision, error) {
	var models []RevisionModel
	if err := r.db.WithContext(ctx).Where("unit_name = ?", unitName).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	revs := make([]*domain.Revision, 0, len(models))
	for i := range models {
		rev, err := modelToRevision(&models[i])
		if err != nil {
			return nil, err
		}
		revs = append(revs, rev)
	}
	return revs, nil
}

func (r *RevisionRepo) Update(ctx context.Context, rev *domain.Revision) error {
	m, err := revisionToModel(rev)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(m).Error
}

func revisionToModel(rev *domain.Revision) (*RevisionModel, error) {
	imagesJSON, err := json.Marshal(rev.Images)
	if err != nil {
		return nil, err
	}
	return &RevisionModel{
		ID:        rev.ID,
		UnitName:  rev.UnitName,
		Version:   rev.Version,
		Images:    string(imagesJSON),
		Status:    string(rev.Status),
		CreatedAt: rev.CreatedAt,
		UpdatedAt: rev.UpdatedAt,
	}, nil
}

func modelToRevision(m *RevisionModel) (*domain.Revision, error) {
	var images map[domain.Role]string
	if m.Images != "" {
		if err := json.Unmarshal([]byte(m.Images), &images); err != nil {
			return nil, err
		}
	}
	return &domain.Revision{
		ID:        m.ID,
		UnitName:  m.UnitName,
		Version:   m.Version,
		Images:    images,
		Status:    domain.RevisionStatus(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}
