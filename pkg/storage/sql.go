package storage

import (
	"database/sql"
	"fmt"
	"math"

	"github.com/cuemby/pebblevault/pkg/types"
	"github.com/cuemby/pebblevault/pkg/vaulterrors"
)

// sqlDialect isolates the handful of places the three relational backends
// (SQLite, PostgreSQL, MySQL) disagree: placeholder syntax, upsert clause,
// and column type names in the DDL. Everything else (the ten Backend
// operations) is implemented once against database/sql in sqlBackend.
type sqlDialect struct {
	name string

	// placeholder returns the bind-parameter token for the i'th argument
	// (1-indexed), e.g. "?" for SQLite/MySQL, "$1" for PostgreSQL.
	placeholder func(i int) string

	// upsertPoints and upsertRegions are full INSERT statements with an
	// engine-specific upsert clause appended.
	upsertPoints  string
	upsertRegions string

	createPoints  string
	createRegions string
}

func questionPlaceholder(i int) string { return "?" }
func dollarPlaceholder(i int) string   { return fmt.Sprintf("$%d", i) }

var sqliteDialect = sqlDialect{
	name:        "sqlite",
	placeholder: questionPlaceholder,
	createPoints: `CREATE TABLE IF NOT EXISTS points (
		id TEXT PRIMARY KEY,
		x DOUBLE PRECISION NOT NULL, y DOUBLE PRECISION NOT NULL, z DOUBLE PRECISION NOT NULL,
		size_x DOUBLE PRECISION NOT NULL DEFAULT 0,
		size_y DOUBLE PRECISION NOT NULL DEFAULT 0,
		size_z DOUBLE PRECISION NOT NULL DEFAULT 0,
		object_type TEXT NOT NULL,
		region_id TEXT,
		data_file TEXT NOT NULL
	)`,
	createRegions: `CREATE TABLE IF NOT EXISTS regions (
		id TEXT PRIMARY KEY,
		center_x DOUBLE PRECISION NOT NULL,
		center_y DOUBLE PRECISION NOT NULL,
		center_z DOUBLE PRECISION NOT NULL,
		size DOUBLE PRECISION NOT NULL
	)`,
	upsertPoints: `INSERT INTO points (id, x, y, z, size_x, size_y, size_z, object_type, region_id, data_file)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET x=excluded.x, y=excluded.y, z=excluded.z,
		size_x=excluded.size_x, size_y=excluded.size_y, size_z=excluded.size_z,
		object_type=excluded.object_type, region_id=excluded.region_id, data_file=excluded.data_file`,
	upsertRegions: `INSERT INTO regions (id, center_x, center_y, center_z, size)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET center_x=excluded.center_x, center_y=excluded.center_y,
		center_z=excluded.center_z, size=excluded.size`,
}

var postgresDialect = sqlDialect{
	name:        "postgres",
	placeholder: dollarPlaceholder,
	createPoints: `CREATE TABLE IF NOT EXISTS points (
		id TEXT PRIMARY KEY,
		x DOUBLE PRECISION NOT NULL, y DOUBLE PRECISION NOT NULL, z DOUBLE PRECISION NOT NULL,
		size_x DOUBLE PRECISION NOT NULL DEFAULT 0,
		size_y DOUBLE PRECISION NOT NULL DEFAULT 0,
		size_z DOUBLE PRECISION NOT NULL DEFAULT 0,
		object_type TEXT NOT NULL,
		region_id TEXT,
		data_file TEXT NOT NULL
	)`,
	createRegions: `CREATE TABLE IF NOT EXISTS regions (
		id TEXT PRIMARY KEY,
		center_x DOUBLE PRECISION NOT NULL,
		center_y DOUBLE PRECISION NOT NULL,
		center_z DOUBLE PRECISION NOT NULL,
		size DOUBLE PRECISION NOT NULL
	)`,
	upsertPoints: `INSERT INTO points (id, x, y, z, size_x, size_y, size_z, object_type, region_id, data_file)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT(id) DO UPDATE SET x=excluded.x, y=excluded.y, z=excluded.z,
		size_x=excluded.size_x, size_y=excluded.size_y, size_z=excluded.size_z,
		object_type=excluded.object_type, region_id=excluded.region_id, data_file=excluded.data_file`,
	upsertRegions: `INSERT INTO regions (id, center_x, center_y, center_z, size)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT(id) DO UPDATE SET center_x=excluded.center_x, center_y=excluded.center_y,
		center_z=excluded.center_z, size=excluded.size`,
}

var mysqlDialect = sqlDialect{
	name:        "mysql",
	placeholder: questionPlaceholder,
	createPoints: `CREATE TABLE IF NOT EXISTS points (
		id VARCHAR(36) PRIMARY KEY,
		x DOUBLE NOT NULL, y DOUBLE NOT NULL, z DOUBLE NOT NULL,
		size_x DOUBLE NOT NULL DEFAULT 0,
		size_y DOUBLE NOT NULL DEFAULT 0,
		size_z DOUBLE NOT NULL DEFAULT 0,
		object_type VARCHAR(255) NOT NULL,
		region_id VARCHAR(36),
		data_file VARCHAR(512) NOT NULL
	)`,
	createRegions: `CREATE TABLE IF NOT EXISTS regions (
		id VARCHAR(36) PRIMARY KEY,
		center_x DOUBLE NOT NULL,
		center_y DOUBLE NOT NULL,
		center_z DOUBLE NOT NULL,
		size DOUBLE NOT NULL
	)`,
	upsertPoints: `INSERT INTO points (id, x, y, z, size_x, size_y, size_z, object_type, region_id, data_file)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE x=VALUES(x), y=VALUES(y), z=VALUES(z),
		size_x=VALUES(size_x), size_y=VALUES(size_y), size_z=VALUES(size_z),
		object_type=VALUES(object_type), region_id=VALUES(region_id), data_file=VALUES(data_file)`,
	upsertRegions: `INSERT INTO regions (id, center_x, center_y, center_z, size)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE center_x=VALUES(center_x), center_y=VALUES(center_y),
		center_z=VALUES(center_z), size=VALUES(size)`,
}

// sqlBackend implements storage.Backend once against database/sql for any
// of the three relational dialects above. database/sql's *sql.DB pools and
// synchronizes its own connections, satisfying the concurrency requirement
// without an extra mutex: a backend wrapping a non-reentrant handle needs
// its own mutex, but *sql.DB is already reentrant.
type sqlBackend struct {
	db      *sql.DB
	dialect sqlDialect
	payload *payloadStore
}

func newSQLBackend(db *sql.DB, dialect sqlDialect, dataRoot string) (*sqlBackend, error) {
	payload, err := newPayloadStore(dataRoot)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &sqlBackend{db: db, dialect: dialect, payload: payload}, nil
}

func (b *sqlBackend) Init() error {
	if _, err := b.db.Exec(b.dialect.createPoints); err != nil {
		return vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "create points table (%s)", b.dialect.name)
	}
	if _, err := b.db.Exec(b.dialect.createRegions); err != nil {
		return vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "create regions table (%s)", b.dialect.name)
	}
	return nil
}

func (b *sqlBackend) UpsertPoint(p types.Point, regionID string) error {
	data, err := encodePayload(p)
	if err != nil {
		return err
	}
	rel, err := b.payload.Write(p.ID, data)
	if err != nil {
		return err
	}
	_, err = b.db.Exec(b.dialect.upsertPoints,
		p.ID, p.Position.X, p.Position.Y, p.Position.Z,
		p.Size.X, p.Size.Y, p.Size.Z, p.ObjectType, regionID, rel)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "upsert point %s (%s)", p.ID, b.dialect.name)
	}
	return nil
}

func (b *sqlBackend) RemovePoint(id string) error {
	ph := b.dialect.placeholder(1)
	_, err := b.db.Exec("DELETE FROM points WHERE id = "+ph, id)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "remove point %s (%s)", id, b.dialect.name)
	}
	return b.payload.Delete(id)
}

func (b *sqlBackend) UpdatePosition(id string, position types.Vec3) error {
	query := fmt.Sprintf("UPDATE points SET x=%s, y=%s, z=%s WHERE id=%s",
		b.dialect.placeholder(1), b.dialect.placeholder(2), b.dialect.placeholder(3), b.dialect.placeholder(4))
	res, err := b.db.Exec(query, position.X, position.Y, position.Z, id)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "update position for %s (%s)", id, b.dialect.name)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return vaulterrors.New(vaulterrors.BackendIntegrity, "update position: point %s not found", id)
	}
	return nil
}

func (b *sqlBackend) PointsWithinRadius(center types.Vec3, r float64) ([]types.Point, error) {
	rows, err := b.queryPoints("SELECT id, x, y, z, size_x, size_y, size_z, object_type, region_id, data_file FROM points")
	if err != nil {
		return nil, err
	}
	var out []types.Point
	for _, row := range rows {
		dx, dy, dz := row.X-center.X, row.Y-center.Y, row.Z-center.Z
		if math.Sqrt(dx*dx+dy*dy+dz*dz) <= r {
			p, err := b.hydrate(row)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
	}
	return out, nil
}

func (b *sqlBackend) UpsertRegion(r types.Region) error {
	_, err := b.db.Exec(b.dialect.upsertRegions, r.ID, r.Center.X, r.Center.Y, r.Center.Z, r.Size)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "upsert region %s (%s)", r.ID, b.dialect.name)
	}
	return nil
}

func (b *sqlBackend) AllRegions() ([]types.Region, error) {
	rows, err := b.db.Query("SELECT id, center_x, center_y, center_z, size FROM regions")
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "list regions (%s)", b.dialect.name)
	}
	defer rows.Close()
	var out []types.Region
	for rows.Next() {
		var row regionRow
		if err := rows.Scan(&row.ID, &row.CenterX, &row.CenterY, &row.CenterZ, &row.Size); err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.BackendIntegrity, err, "scan region row (%s)", b.dialect.name)
		}
		out = append(out, types.Region{ID: row.ID, Center: types.Vec3{X: row.CenterX, Y: row.CenterY, Z: row.CenterZ}, Size: row.Size})
	}
	if err := rows.Err(); err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "list regions (%s)", b.dialect.name)
	}
	return out, nil
}

func (b *sqlBackend) PointsInRegion(regionID string) ([]types.Point, error) {
	ph := b.dialect.placeholder(1)
	rows, err := b.queryPoints("SELECT id, x, y, z, size_x, size_y, size_z, object_type, region_id, data_file FROM points WHERE region_id = "+ph, regionID)
	if err != nil {
		return nil, err
	}
	out := make([]types.Point, 0, len(rows))
	for _, row := range rows {
		p, err := b.hydrate(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (b *sqlBackend) ClearAllPoints() error {
	if _, err := b.db.Exec("DELETE FROM points"); err != nil {
		return vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "clear all points (%s)", b.dialect.name)
	}
	return b.payload.ClearAll()
}

func (b *sqlBackend) Close() error {
	if err := b.db.Close(); err != nil {
		return vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "close %s database", b.dialect.name)
	}
	return nil
}

func (b *sqlBackend) queryPoints(query string, args ...any) ([]pointRow, error) {
	rows, err := b.db.Query(query, args...)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "query points (%s)", b.dialect.name)
	}
	defer rows.Close()
	var out []pointRow
	for rows.Next() {
		var row pointRow
		if err := rows.Scan(&row.ID, &row.X, &row.Y, &row.Z, &row.SizeX, &row.SizeY, &row.SizeZ,
			&row.ObjectType, &row.RegionID, &row.DataFile); err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.BackendIntegrity, err, "scan point row (%s)", b.dialect.name)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "query points (%s)", b.dialect.name)
	}
	return out, nil
}

func (b *sqlBackend) hydrate(row pointRow) (types.Point, error) {
	data, err := b.payload.Read(row.DataFile)
	if err != nil {
		return types.Point{}, err
	}
	doc, err := decodePayload(data)
	if err != nil {
		return types.Point{}, err
	}
	return types.Point{
		ID:         row.ID,
		Position:   types.Vec3{X: row.X, Y: row.Y, Z: row.Z},
		Size:       types.Vec3{X: row.SizeX, Y: row.SizeY, Z: row.SizeZ},
		ObjectType: row.ObjectType,
		Payload:    doc,
	}, nil
}
