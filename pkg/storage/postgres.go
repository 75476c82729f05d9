package storage

import (
	"database/sql"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/cuemby/pebblevault/pkg/vaulterrors"
)

// PostgresBackend is the networked relational backend. It shares its
// schema and query logic with SQLiteBackend and MySQLBackend through
// sqlBackend (sql.go); only the driver, dialect, and dataRoot differ.
type PostgresBackend struct {
	*sqlBackend
}

// PostgresConfig carries the handful of fields needed to dial a PostgreSQL server.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	DataRoot string
}

// NewPostgresBackend dials cfg and returns a ready Backend. Init must still
// be called to create the schema.
func NewPostgresBackend(cfg PostgresConfig) (*PostgresBackend, error) {
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	dsn := postgresDSN(cfg)
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "open postgres connection to %s:%d", cfg.Host, cfg.Port)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "ping postgres at %s:%d", cfg.Host, cfg.Port)
	}
	dataRoot := cfg.DataRoot
	if dataRoot == "" {
		dataRoot = "./data/postgres"
	}
	base, err := newSQLBackend(db, postgresDialect, dataRoot)
	if err != nil {
		return nil, err
	}
	return &PostgresBackend{sqlBackend: base}, nil
}

func postgresDSN(cfg PostgresConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	return "host=" + cfg.Host +
		" port=" + strconv.Itoa(port) +
		" user=" + cfg.User +
		" password=" + cfg.Password +
		" dbname=" + cfg.DBName +
		" sslmode=" + cfg.SSLMode
}
