package database

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// DriverMemory keeps everything in process; no connection is opened.
	DriverMemory = "memory"
	// DriverPostgres connects through lib/pq.
	DriverPostgres = "postgres"
	// DriverSQLite opens a modernc sqlite file.
	DriverSQLite = "sqlite"

	defaultSQLitePath = "files/menubot.db"
)

// Config holds database connection settings shared across bots.
type Config struct {
	Driver         string `yaml:"driver" envconfig:"DB_DRIVER"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	// Path is the sqlite database file.
	Path string `yaml:"path" envconfig:"DB_PATH"`
	// MigrationsDir overrides the embedded schema with <dir>/<driver>/*.sql.
	MigrationsDir string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// Normalize validates the driver and fills defaults.
func (c *Config) Normalize() error {
	d := strings.ToLower(strings.TrimSpace(c.Driver))
	switch d {
	case "":
		d = DriverMemory
	case "postgresql":
		d = DriverPostgres
	case "sqlite3":
		d = DriverSQLite
	case DriverMemory, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("invalid database.driver %q; allowed: memory, postgres, sqlite", c.Driver)
	}
	c.Driver = d

	c.MigrationsDir = strings.TrimSpace(c.MigrationsDir)
	switch d {
	case DriverSQLite:
		if strings.TrimSpace(c.Path) == "" {
			c.Path = defaultSQLitePath
		}
		c.MaxConnections = 1
	case DriverPostgres:
		if c.Host == "" || c.Name == "" {
			return fmt.Errorf("database.host and database.name are required for postgres")
		}
		if c.Port == "" {
			c.Port = "5432"
		}
		if c.SSLMode == "" {
			c.SSLMode = "disable"
		}
		if c.MaxConnections <= 0 {
			c.MaxConnections = 10
		}
	}
	return nil
}

// Enabled reports whether a SQL connection is configured.
func (c Config) Enabled() bool {
	return c.Driver == DriverPostgres || c.Driver == DriverSQLite
}

// DataSource returns the database/sql DSN for the driver.
func (c Config) DataSource() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// MigrateURL returns the golang-migrate database URL.
func (c Config) MigrateURL() string {
	if c.Driver == DriverSQLite {
		return "sqlite://" + filepath.ToSlash(c.Path)
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// Address is the log-friendly location of the database.
func (c Config) Address() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	return c.Host + ":" + c.Port + "/" + c.Name
}
