package database

import (
	"fmt"

	"github.com/sahilchouksey/module-enhancer/model"
	"github.com/sahilchouksey/module-enhancer/utils/logger"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB, log *logger.Logger) *Seeder {
	return &Seeder{db: db, log: log}
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	s.log.Info("Starting database seeding")

	// Run seeds in order (respecting foreign key constraints)
	if err := s.SeedCatalog(); err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}

	if err := s.SeedAppSettings(); err != nil {
		return fmt.Errorf("failed to seed app settings: %w", err)
	}

	s.log.Info("Database seeding completed")
	return nil
}

// SeedCatalog creates a demo profession with one subject and two unpublished modules
func (s *Seeder) SeedCatalog() error {
	var count int64
	if err := s.db.Model(&model.Profession{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		s.log.Info("Professions already exist, skipping")
		return nil
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		profession := model.Profession{
			Name:        "Horticulture Technician",
			Description: "Growing, maintaining and propagating plants in nurseries and greenhouses",
		}
		if err := tx.Create(&profession).Error; err != nil {
			return err
		}

		subject := model.Subject{
			ProfessionID: &profession.ID,
			Name:         "Plant Biology",
			Description:  "How plants grow, feed and reproduce",
		}
		if err := tx.Create(&subject).Error; err != nil {
			return err
		}

		modules := []model.Module{
			{
				SubjectID:    subject.ID,
				Title:        "Photosynthesis",
				Content:      "Plants convert light into energy.",
				ModuleNumber: 1,
			},
			{
				SubjectID:    subject.ID,
				Title:        "Transpiration",
				Content:      "Water moves from roots to leaves and evaporates through stomata.",
				ModuleNumber: 2,
			},
		}
		return tx.Create(&modules).Error
	})
}

// SeedAppSettings creates the settings the enhancement pipeline reads
func (s *Seeder) SeedAppSettings() error {
	var count int64
	if err := s.db.Model(&model.AppSetting{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		s.log.Info("App settings already exist, skipping")
		return nil
	}

	settings := []model.AppSetting{
		{
			Key:         model.SettingEnhancementInstructions,
			Value:       "Write for vocational learners. Prefer concrete workplace examples over theory.",
			Type:        "string",
			Description: "Default instructions added to every module enhancement prompt",
			Category:    "ai",
		},
		{
			Key:         model.SettingKeywordLinkLimit,
			Value:       "3",
			Type:        "int",
			Description: "How many emphasized phrases per version are turned into reference links",
			Category:    "ai",
		},
	}

	return s.db.Create(&settings).Error
}

// RunSeeds is a convenience function to run all seeds
func RunSeeds(db *gorm.DB, log *logger.Logger) error {
	return NewSeeder(db, log).SeedAll()
}
