package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/cuemby/pebblevault/pkg/vaulterrors"
)

// MySQLBackend is the second networked relational backend. It shares its
// schema and query logic with SQLiteBackend and PostgresBackend through
// sqlBackend (sql.go); only the driver, dialect, and dataRoot differ.
type MySQLBackend struct {
	*sqlBackend
}

// MySQLConfig carries the handful of fields needed to dial a MySQL server.
type MySQLConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	DataRoot string
}

// NewMySQLBackend dials cfg and returns a ready Backend. Init must still be
// called to create the schema.
func NewMySQLBackend(cfg MySQLConfig) (*MySQLBackend, error) {
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", cfg.User, cfg.Password, cfg.Host, port, cfg.DBName)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "open mysql connection to %s:%d", cfg.Host, port)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "ping mysql at %s:%d", cfg.Host, port)
	}
	dataRoot := cfg.DataRoot
	if dataRoot == "" {
		dataRoot = "./data/mysql"
	}
	base, err := newSQLBackend(db, mysqlDialect, dataRoot)
	if err != nil {
		return nil, err
	}
	return &MySQLBackend{sqlBackend: base}, nil
}
