/*
Package storage provides PebbleVault's persistence backends.

The package defines a single capability interface, Backend, implemented by
four concrete variants: an embedded BoltDB store, an embedded SQLite store,
and two networked relational stores (PostgreSQL and MySQL). All four are
interchangeable from the Vault Manager's point of view; it depends only on
Backend, never on a concrete type.

Large payloads are kept out of the row/document store and written to a
content-addressed file tree by the shared payloadstore helper (payload.go),
used identically by all four backends, so recovery and PayloadMissing
handling behave the same regardless of which relational engine is selected.

SQLite, PostgreSQL, and MySQL share one sqlBackend implementation (sql.go)
parameterized by a sqlDialect (placeholder syntax, upsert clause, DDL column
types); sqlite.go/postgres.go/mysql.go contribute only DSN construction and
driver registration, so a new SQL engine is a new dialect value, not a new
copy of the query logic.
*/
package storage

import "github.com/cuemby/pebblevault/pkg/types"

// Backend is the uniform CRUD-plus-query surface every persistence engine
// implements. All operations are fallible and return errors from package
// vaulterrors. Implementations MUST be safe for concurrent use from
// multiple goroutines.
type Backend interface {
	// Init creates tables/files if absent. Idempotent.
	Init() error

	// UpsertPoint inserts or replaces a Point by id, recording its region
	// membership and a reference to its payload.
	UpsertPoint(p types.Point, regionID string) error

	// RemovePoint deletes a Point by id. A missing id is success.
	RemovePoint(id string) error

	// UpdatePosition partially updates a Point's position only, leaving
	// size, type, and payload untouched.
	UpdatePosition(id string, position types.Vec3) error

	// PointsWithinRadius returns every point within Euclidean distance r
	// of (x, y, z).
	PointsWithinRadius(center types.Vec3, r float64) ([]types.Point, error)

	// UpsertRegion inserts or replaces a Region by id.
	UpsertRegion(r types.Region) error

	// AllRegions returns every persisted Region.
	AllRegions() ([]types.Region, error)

	// PointsInRegion returns every Point whose region-id matches regionID.
	PointsInRegion(regionID string) ([]types.Point, error)

	// ClearAllPoints deletes every point; regions are unaffected.
	ClearAllPoints() error

	// Close releases resources held by the backend.
	Close() error
}
