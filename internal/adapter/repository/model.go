package repository

import "time"

// UnitModel persists a ServiceUnit definition.
type UnitModel struct {
	Name         string `gorm:"primaryKey"`
	Project      string
	Region       string
	Ingress      string
	MinInstances int
	MaxInstances int
	Containers   string `gorm:"type:text"` // JSON-serialized []domain.Container
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UnitModel) TableName() string { return "units" }

// RevisionModel persists one deploy snapshot of a unit.
type RevisionModel struct {
	ID        string `gorm:"primaryKey"`
	UnitName  string `gorm:"index"`
	Version   string
	Images    string `gorm:"type:text"` // JSON-serialized map[role]image
	Status    string `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RevisionModel) TableName() string { return "revisions" }
