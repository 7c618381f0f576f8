package db

import (
	"fmt"
	"time"

	"github.com/Fi44er/tradecycle/internal/models"
	"github.com/Fi44er/tradecycle/utils"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"

	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// gormWriter routes gorm's SQL error log into the process logger.
type gormWriter struct {
	log *utils.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Errorf(format, args...)
}

// ConnectDb opens the store for driver ("postgres" or "sqlite").
func ConnectDb(driver, url string, log *utils.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.New(postgres.Config{
			DSN:                  url,
			PreferSimpleProtocol: true,
		})
	case "sqlite":
		dialector = sqlite.Open(url)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger.New(gormWriter{log: log}, gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Error,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	log.Infof("✅ Database connection successfully (%s)", driver)

	log.Info("📦 Setting database connection pool...")
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if driver == "sqlite" {
		// SQLite has no row locks; one connection serializes every transaction.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		return db, nil
	}

	sqlDB.SetMaxIdleConns(20)
	sqlDB.SetMaxOpenConns(200)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func Migrate(db *gorm.DB, trigger bool, log *utils.Logger) error {
	if !trigger {
		log.Info("📦 Auto migration disabled")
		return nil
	}

	log.Info("📦 Migrating database...")
	models := []interface{}{
		&models.User{},
		&models.Plan{},
		&models.Subscription{},
		&models.ManualPayment{},
		&models.Withdrawal{},
		&models.Cycle{},
		&models.HistoryEvent{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		log.Errorf("✖ Failed to migrate database: %v", err)
		return err
	}

	log.Info("✅ Database migrated")
	return nil
}
