package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Module is a unit of learning content belonging to a subject
type Module struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
	SubjectID        uint           `gorm:"not null;index" json:"subject_id"`
	Title            string         `gorm:"not null" json:"title"`
	Content          string         `gorm:"type:text" json:"content"`
	ConciseContent   string         `gorm:"type:text" json:"concise_content"`
	DetailedContent  string         `gorm:"type:text" json:"detailed_content"`
	KeyConceptsData  datatypes.JSON `json:"key_concepts_data,omitempty"`
	GeneratedQuizzes datatypes.JSON `json:"generated_quizzes,omitempty"`
	NarrationURL     string         `gorm:"type:text" json:"narration_url,omitempty"`
	ModuleNumber     int            `gorm:"default:0" json:"module_number"`
	IsPublished      bool           `gorm:"default:false;index" json:"is_published"`

	// Relationships
	Subject Subject `gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Module
func (Module) TableName() string {
	return "modules"
}
