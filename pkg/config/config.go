// Package config loads PebbleVault's declarative backend configuration
// using spf13/viper: a single YAML document that selects among four
// backend variants and their connection parameters.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/cuemby/pebblevault/pkg/vaulterrors"
)

// Backend names recognized by database.backend.
const (
	BackendEmbedded = "embedded"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
)

// Config is the root of PebbleVault's declarative configuration document.
type Config struct {
	Database DatabaseConfig
}

// DatabaseConfig selects and parameterizes exactly one backend variant.
type DatabaseConfig struct {
	Backend  string
	Embedded EmbeddedConfig
	SQLite   SQLiteConfig
	Postgres ConnectionConfig
	MySQL    ConnectionConfig
}

// EmbeddedConfig configures the embedded BoltDB backend.
type EmbeddedConfig struct {
	Path string
}

// SQLiteConfig configures the embedded SQLite backend.
type SQLiteConfig struct {
	Path string
}

// ConnectionConfig configures a networked relational backend.
type ConnectionConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // honored by Postgres only
}

// Load reads a YAML configuration document from path and validates the
// selected backend. An unreadable file or an unrecognized database.backend
// value surfaces as vaulterrors.ConfigInvalid.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("database.backend", BackendEmbedded)
	v.SetDefault("database.embedded.path", "./spatial.db")
	v.SetDefault("database.sqlite.path", "./spatial.sqlite3")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("database.mysql.port", 3306)

	if err := v.ReadInConfig(); err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.ConfigInvalid, err, "read config %s", path)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Backend:  strings.ToLower(v.GetString("database.backend")),
			Embedded: EmbeddedConfig{Path: v.GetString("database.embedded.path")},
			SQLite:   SQLiteConfig{Path: v.GetString("database.sqlite.path")},
			Postgres: ConnectionConfig{
				Host:     v.GetString("database.postgres.host"),
				Port:     v.GetInt("database.postgres.port"),
				User:     v.GetString("database.postgres.user"),
				Password: v.GetString("database.postgres.password"),
				DBName:   v.GetString("database.postgres.dbname"),
				SSLMode:  v.GetString("database.postgres.sslmode"),
			},
			MySQL: ConnectionConfig{
				Host:     v.GetString("database.mysql.host"),
				Port:     v.GetInt("database.mysql.port"),
				User:     v.GetString("database.mysql.user"),
				Password: v.GetString("database.mysql.password"),
				DBName:   v.GetString("database.mysql.dbname"),
			},
		},
	}

	switch cfg.Database.Backend {
	case BackendEmbedded, BackendSQLite, BackendPostgres, BackendMySQL:
	default:
		return nil, vaulterrors.New(vaulterrors.ConfigInvalid, "unknown database.backend %q", cfg.Database.Backend)
	}

	return cfg, nil
}
