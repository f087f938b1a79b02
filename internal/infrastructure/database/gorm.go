package database

import (
	"context"
	"fmt"
	"time"

	"classroom-roster/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxOpen  int
	MaxIdle  int
	Verbose  bool
	// Lazy skips the initial ping so the caller can start while the
	// server is unreachable.
	Lazy bool
}

func (c Config) dsn() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s connect_timeout=10",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode)
}

func NewConnection(config Config) (*gorm.DB, error) {
	logger.Info("Connecting to postgres at %s:%d/%s", config.Host, config.Port, config.DBName)

	logLevel := gormlogger.Warn
	if config.Verbose {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(config.dsn()), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(logLevel),
		DisableForeignKeyConstraintWhenMigrating: true,
		DisableAutomaticPing:                     config.Lazy,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	maxOpen, maxIdle := config.MaxOpen, config.MaxIdle
	if maxOpen <= 0 {
		maxOpen = 10
	}
	if maxIdle <= 0 {
		maxIdle = 5
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// RunMigrations applies every pending file in migrationsDir.
func RunMigrations(db *gorm.DB, migrationsDir string) error {
	logger.Info("Running SQL migrations from %s", migrationsDir)

	if err := NewMigrationRunner(db, migrationsDir).RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

func HealthCheck(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
