package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"tova-go/internal/config"
	logging "tova-go/internal/logging"
	"tova-go/internal/models"
)

// DSN builds the postgres connection string.
func DSN(conf config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		conf.Host, conf.User, conf.Password, conf.DBName, conf.Port)
}

// Open connects to postgres and runs migrations.
func Open(conf config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(DSN(conf)), &gorm.Config{
		Logger: logging.NewGormZapLogger(log),
		// Unique violations surface as gorm.ErrDuplicatedKey.
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established successfully.")

	if err := runMigrations(db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func runMigrations(db *gorm.DB, log *zap.Logger) error {
	err := db.AutoMigrate(
		&models.TestResult{},
		&models.TestEvent{},
		&models.Payment{},
	)
	if err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	log.Info("Database migrations completed successfully.")

	eventsIndex := `CREATE INDEX IF NOT EXISTS idx_test_events_timeline ON test_events (result_id, at_ms);`
	if err := db.Exec(eventsIndex).Error; err != nil {
		return fmt.Errorf("failed to create custom index on events table: %w", err)
	}
	return nil
}
