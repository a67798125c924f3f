package database

import (
	"context"
	"errors"

	"github.com/sahilchouksey/module-enhancer/model"
	"gorm.io/datatypes"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// Storage defines the lifecycle surface every database implementation must satisfy
type Storage interface {
	Init() error
	Close() error
	HealthCheck() error

	// GORM DB access
	GetDB() interface{}

	ModuleStore
	CostLedger
}

// ModuleStore is the persistence collaborator consumed by the enhancement pipeline
type ModuleStore interface {
	GetModule(ctx context.Context, id uint) (*model.Module, error)
	UpdateModule(ctx context.Context, id uint, update ModuleUpdate) (*model.Module, error)
	GetSubject(ctx context.Context, id uint) (*model.Subject, error)
	GetProfession(ctx context.Context, id uint) (*model.Profession, error)
	GetSystemSetting(ctx context.Context, key string) (*model.AppSetting, error)
}

// CostLedger records estimated spend on external services
type CostLedger interface {
	RecordSimpleAPICall(ctx context.Context, provider, service string, estimatedCost float64) error
}

// ModuleUpdate is a partial update of a module; nil fields are left untouched
type ModuleUpdate struct {
	Content          *string
	ConciseContent   *string
	DetailedContent  *string
	KeyConceptsData  datatypes.JSON
	GeneratedQuizzes datatypes.JSON
	NarrationURL     *string
	IsPublished      *bool
}

// Columns converts the update into a column map for gorm's Updates
func (u ModuleUpdate) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if u.Content != nil {
		cols["content"] = *u.Content
	}
	if u.ConciseContent != nil {
		cols["concise_content"] = *u.ConciseContent
	}
	if u.DetailedContent != nil {
		cols["detailed_content"] = *u.DetailedContent
	}
	if u.KeyConceptsData != nil {
		cols["key_concepts_data"] = u.KeyConceptsData
	}
	if u.GeneratedQuizzes != nil {
		cols["generated_quizzes"] = u.GeneratedQuizzes
	}
	if u.NarrationURL != nil {
		cols["narration_url"] = *u.NarrationURL
	}
	if u.IsPublished != nil {
		cols["is_published"] = *u.IsPublished
	}
	return cols
}
