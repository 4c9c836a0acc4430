package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DatabaseType represents the type of database
type DatabaseType string

const (
	DatabaseTypeSQLite     DatabaseType = "sqlite"
	DatabaseTypePostgreSQL DatabaseType = "postgres"
)

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Type     DatabaseType   `json:"type"`
	SQLite   SQLiteConfig   `json:"sqlite"`
	Postgres PostgresConfig `json:"postgres"`
}

// SQLiteConfig holds SQLite specific configuration
type SQLiteConfig struct {
	Path string `json:"path"`
}

// PostgresConfig holds PostgreSQL specific configuration
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	SSLMode  string `json:"sslMode"`
	TimeZone string `json:"timeZone"`
}

// GetDSN returns the data source name for the database
func (c *DatabaseConfig) GetDSN() string {
	switch c.Type {
	case DatabaseTypeSQLite:
		return c.SQLite.Path
	case DatabaseTypePostgreSQL:
		return c.postgresURL()
	default:
		return c.SQLite.Path
	}
}

// postgresURL builds a postgres:// URL so credentials containing spaces,
// quotes or '@' need no further escaping.
func (c *DatabaseConfig) postgresURL() string {
	q := url.Values{}
	if c.Postgres.SSLMode != "" {
		q.Set("sslmode", c.Postgres.SSLMode)
	}
	if c.Postgres.TimeZone != "" {
		q.Set("TimeZone", c.Postgres.TimeZone)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Postgres.Username, c.Postgres.Password),
		Host:     net.JoinHostPort(c.Postgres.Host, strconv.Itoa(c.Postgres.Port)),
		Path:     "/" + c.Postgres.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// GetDefaultDatabaseConfig returns default database configuration
func GetDefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Type: DatabaseTypePostgreSQL,
		SQLite: SQLiteConfig{
			Path: getDefaultSQLitePath(),
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "patients",
			Username: "postgres",
			Password: "",
			SSLMode:  "disable",
			TimeZone: "UTC",
		},
	}
}

// GetDatabaseConfig builds the database configuration from the environment,
// falling back to GetDefaultDatabaseConfig for anything unset.
func GetDatabaseConfig() *DatabaseConfig {
	c := GetDefaultDatabaseConfig()
	if t := strings.ToLower(os.Getenv("DB_TYPE")); t != "" {
		c.Type = DatabaseType(t)
	}
	if v := os.Getenv("DB_SQLITE_PATH"); v != "" {
		c.SQLite.Path = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Postgres.Host = v
	}
	c.Postgres.Port = getInt("DB_PORT", c.Postgres.Port)
	if v := os.Getenv("DB_NAME_PG"); v != "" {
		c.Postgres.Database = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.Postgres.Username = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Postgres.Password = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		c.Postgres.SSLMode = v
	}
	return c
}

// getDefaultSQLitePath returns the default SQLite database path
func getDefaultSQLitePath() string {
	if IsDebug() {
		return "db/patients.db"
	}
	return "/var/lib/patient-registry/patients.db"
}

// ValidateConfig validates the database configuration
func (c *DatabaseConfig) ValidateConfig() error {
	switch c.Type {
	case DatabaseTypeSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("SQLite path cannot be empty")
		}
	case DatabaseTypePostgreSQL:
		if c.Postgres.Host == "" {
			return fmt.Errorf("PostgreSQL host cannot be empty")
		}
		if c.Postgres.Database == "" {
			return fmt.Errorf("PostgreSQL database name cannot be empty")
		}
		if c.Postgres.Username == "" {
			return fmt.Errorf("PostgreSQL username cannot be empty")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			return fmt.Errorf("PostgreSQL port must be between 1 and 65535")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Type)
	}
	return nil
}

// IsPostgreSQL returns true if the database type is PostgreSQL
func (c *DatabaseConfig) IsPostgreSQL() bool {
	return c.Type == DatabaseTypePostgreSQL
}

// IsSQLite returns true if the database type is SQLite
func (c *DatabaseConfig) IsSQLite() bool {
	return c.Type == DatabaseTypeSQLite
}

// EnsureDirectoryExists ensures the directory for SQLite database exists
func (c *DatabaseConfig) EnsureDirectoryExists() error {
	if c.Type == DatabaseTypeSQLite {
		dir := filepath.Dir(c.SQLite.Path)
		return os.MkdirAll(dir, 0755)
	}
	return nil
}
