package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sahilchouksey/module-enhancer/config"
	"github.com/sahilchouksey/module-enhancer/model"
	"github.com/sahilchouksey/module-enhancer/utils/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type GORMStore struct {
	db  *gorm.DB
	log *logger.Logger
}

// StartGORM initializes a GORM connection to PostgreSQL
func StartGORM(env *config.EnviornmentVariable, log *logger.Logger) (*GORMStore, error) {
	// Build DSN (Data Source Name)
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		env.DB_HOST,
		env.DB_USER_NAME,
		env.DB_PASSWORD,
		env.DB_NAME,
		env.DB_PORT,
		env.DB_SSL_MODE,
	)

	// Configure GORM logger
	gormLogger := gormlogger.Default.LogMode(gormlogger.Info)
	if env.IsProduction() {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Error)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:      gormLogger,
		PrepareStmt: true,
	})
	if err != nil {
		log.Error("Unable to connect to PostgreSQL with GORM", "error", err)
		return nil, err
	}

	// Get underlying *sql.DB to configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("Successfully connected to PostgreSQL Database with GORM")

	return NewGORMStore(db, log), nil
}

// NewGORMStore wraps an already opened gorm connection
func NewGORMStore(db *gorm.DB, log *logger.Logger) *GORMStore {
	return &GORMStore{db: db, log: log}
}

// Init runs the AutoMigrate to create/update tables
func (s *GORMStore) Init() error {
	s.log.Info("Running GORM AutoMigrate")

	err := s.db.AutoMigrate(
		&model.Profession{},
		&model.Subject{},
		&model.Module{},
		&model.AppSetting{},
		&model.APICallLog{},
	)
	if err != nil {
		s.log.Error("Error running AutoMigrate", "error", err)
		return err
	}

	return nil
}

// Close closes the database connection
func (s *GORMStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB returns the GORM DB instance for use in handlers
func (s *GORMStore) GetDB() interface{} {
	return s.db
}

// HealthCheck verifies the database connection is alive
func (s *GORMStore) HealthCheck() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// GetModule loads a module by id
func (s *GORMStore) GetModule(ctx context.Context, id uint) (*model.Module, error) {
	var module model.Module
	if err := s.db.WithContext(ctx).First(&module, id).Error; err != nil {
		return nil, notFound(err, "module", id)
	}
	return &module, nil
}

// UpdateModule applies a partial update and returns the stored record
func (s *GORMStore) UpdateModule(ctx context.Context, id uint, update ModuleUpdate) (*model.Module, error) {
	cols := update.Columns()
	if len(cols) > 0 {
		result := s.db.WithContext(ctx).Model(&model.Module{}).Where("id = ?", id).Updates(cols)
		if result.Error != nil {
			return nil, fmt.Errorf("failed to update module %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, fmt.Errorf("module %d: %w", id, ErrNotFound)
		}
	}
	return s.GetModule(ctx, id)
}

// GetSubject loads a subject by id
func (s *GORMStore) GetSubject(ctx context.Context, id uint) (*model.Subject, error) {
	var subject model.Subject
	if err := s.db.WithContext(ctx).First(&subject, id).Error; err != nil {
		return nil, notFound(err, "subject", id)
	}
	return &subject, nil
}

// GetProfession loads a profession by id
func (s *GORMStore) GetProfession(ctx context.Context, id uint) (*model.Profession, error) {
	var profession model.Profession
	if err := s.db.WithContext(ctx).First(&profession, id).Error; err != nil {
		return nil, notFound(err, "profession", id)
	}
	return &profession, nil
}

// GetSystemSetting loads an app setting by key
func (s *GORMStore) GetSystemSetting(ctx context.Context, key string) (*model.AppSetting, error) {
	var setting model.AppSetting
	if err := s.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error; err != nil {
		return nil, notFound(err, "setting", key)
	}
	return &setting, nil
}

// RecordSimpleAPICall appends a cost ledger entry
func (s *GORMStore) RecordSimpleAPICall(ctx context.Context, provider, service string, estimatedCost float64) error {
	entry := model.APICallLog{
		Provider:      provider,
		Service:       service,
		EstimatedCost: estimatedCost,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to record api call: %w", err)
	}
	return nil
}

// PruneAPICallLogs deletes ledger entries created before cutoff
func (s *GORMStore) PruneAPICallLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&model.APICallLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune api call logs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func notFound(err error, kind string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", kind, id, ErrNotFound)
	}
	return fmt.Errorf("failed to fetch %s %v: %w", kind, id, err)
}
