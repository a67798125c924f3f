package model

import (
	"time"

	"gorm.io/gorm"
)

// Profession represents a career track that groups subjects (e.g., Nursing, Electrician)
type Profession struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Name        string         `gorm:"not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`

	// Relationships
	Subjects []Subject `gorm:"foreignKey:ProfessionID;constraint:OnDelete:CASCADE" json:"subjects,omitempty"`
}

// Subject represents an individual subject within a profession
type Subject struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	ProfessionID *uint          `gorm:"index" json:"profession_id,omitempty"`
	Name         string         `gorm:"not null" json:"name"`
	Description  string         `gorm:"type:text" json:"description"`

	// Relationships
	Modules []Module `gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE" json:"modules,omitempty"`
}
