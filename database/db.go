// Package database owns the registry's connection to its relational store:
// opening it, migrating the schema and bootstrapping the admin account.
package database

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/medreg/patient-registry/config"
	"github.com/medreg/patient-registry/database/model"
	"github.com/medreg/patient-registry/util/crypto"
	"github.com/medreg/patient-registry/util/random"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

func initModels() error {
	models := []any{
		&model.Patient{},
		&model.User{},
	}
	for _, m := range models {
		if err := db.AutoMigrate(m); err != nil {
			log.Printf("Error auto migrating model: %v", err)
			return err
		}
	}
	return nil
}

// initAdmin creates the bootstrap admin account when no admin exists yet.
func initAdmin() error {
	var count int64
	err := db.Model(&model.User{}).Where("role = ?", model.RoleAdmin).Count(&count).Error
	if err != nil {
		log.Printf("Error counting admin accounts: %v", err)
		return err
	}
	if count > 0 {
		return nil
	}

	username := config.GetAdminUsername()
	password := config.GetAdminPassword()
	if password == "" {
		password = random.Seq(16)
		log.Printf("WARNING: ADMIN_PASSWORD not set, bootstrap admin %q created with password %q", username, password)
	}
	hash, err := crypto.HashPasswordAsBcrypt(password)
	if err != nil {
		return err
	}
	return db.Create(&model.User{
		Username:     username,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
	}).Error
}

func open(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	if err := cfg.ValidateConfig(); err != nil {
		return nil, err
	}
	switch cfg.Type {
	case config.DatabaseTypePostgreSQL:
		return postgres.Open(cfg.GetDSN()), nil
	case config.DatabaseTypeSQLite:
		if err := cfg.EnsureDirectoryExists(); err != nil {
			return nil, err
		}
		return sqlite.Open(cfg.GetDSN() + "?_foreign_keys=on&_busy_timeout=5000"), nil
	}
	return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
}

// InitDB opens the store described by cfg, creates the schema and the
// bootstrap admin account.
func InitDB(cfg *config.DatabaseConfig) error {
	dialector, err := open(cfg)
	if err != nil {
		return err
	}

	var gormLogger logger.Interface
	if config.IsDebug() {
		gormLogger = logger.Default
	} else {
		gormLogger = logger.Discard
	}

	c := &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	}

	newDB, err := gorm.Open(dialector, c)
	if err != nil {
		return err
	}

	sqlDB, err := newDB.DB()
	if err != nil {
		return err
	}
	// No idle connections are kept: each request takes a fresh connection
	// and gives it back to the server when done.
	sqlDB.SetMaxIdleConns(0)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return err
	}

	if err := CloseDB(); err != nil {
		log.Printf("error closing previous database: %v", err)
	}
	db = newDB

	if err := initModels(); err != nil {
		return err
	}
	if err := initAdmin(); err != nil {
		return err
	}
	return nil
}

// InitDBWithRetry calls InitDB up to retries times, waiting delay between
// failed attempts. The returned error wraps the last failure.
func InitDBWithRetry(cfg *config.DatabaseConfig, retries int, delay time.Duration) error {
	if retries < 1 {
		retries = 1
	}
	var err error
	for attempt := 1; attempt <= retries; attempt++ {
		if err = InitDB(cfg); err == nil {
			log.Printf("database initialized (attempt %d)", attempt)
			return nil
		}
		log.Printf("database init failed (attempt %d/%d): %v", attempt, retries, err)
		if attempt < retries {
			time.Sleep(delay)
		}
	}
	return fmt.Errorf("failed to initialize database after %d attempts: %w", retries, err)
}

func CloseDB() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	db = nil
	return sqlDB.Close()
}

func GetDB() *gorm.DB {
	return db
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate reports whether err is a unique constraint violation.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
