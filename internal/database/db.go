package database

import (
	"errors"
	"fmt"

	"doka-backend/internal/config"
	"doka-backend/internal/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// DefaultLocations are created on an empty database.
var DefaultLocations = []models.Location{
	{ID: "main", Name: "Magazina", Type: models.LocationWarehouse, Order: 0},
	{ID: "shop1", Name: "Dyqani 1", Type: models.LocationShop, Order: 1},
	{ID: "shop2", Name: "Dyqani 2", Type: models.LocationShop, Order: 2},
}

func Init(cfg *config.Config, log *zap.Logger) error {
	logLevel := logger.Warn
	if !cfg.IsProduction() && cfg.LogLevel == "debug" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLife)

	if err := Migrate(db); err != nil {
		return err
	}
	if err := Seed(db, cfg.OwnerUsername, cfg.OwnerPassword, log); err != nil {
		return err
	}

	DB = db
	log.Info("database connected, migration complete")
	return nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Location{},
		&models.User{},
		&models.Category{},
		&models.Product{},
		&models.Sale{},
		&models.Transfer{},
		&models.Worker{},
		&models.WorkerShift{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Seed creates the default locations and the primary owner when missing.
func Seed(db *gorm.DB, ownerUsername, ownerPassword string, log *zap.Logger) error {
	var locCount int64
	if err := db.Model(&models.Location{}).Count(&locCount).Error; err != nil {
		return err
	}
	if locCount == 0 {
		locs := append([]models.Location(nil), DefaultLocations...)
		if err := db.Create(&locs).Error; err != nil {
			return fmt.Errorf("seed locations: %w", err)
		}
		log.Info("default locations created", zap.Int("count", len(locs)))
	}

	var owner models.User
	err := db.Where("is_primary = ?", true).First(&owner).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(ownerPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	owner = models.User{
		Name:         "Pronar",
		Username:     ownerUsername,
		PasswordHash: string(hash),
		IsPrimary:    true,
	}
	if err := db.Create(&owner).Error; err != nil {
		return fmt.Errorf("seed owner: %w", err)
	}
	log.Info("primary owner created", zap.String("username", ownerUsername))
	return nil
}
