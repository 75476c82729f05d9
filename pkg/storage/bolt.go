package storage

import (
	"encoding/json"
	"math"
	"path/filepath"

	"github.com/cuemby/pebblevault/pkg/codec"
	"github.com/cuemby/pebblevault/pkg/types"
	"github.com/cuemby/pebblevault/pkg/vaulterrors"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketPoints  = []byte("points")
	bucketRegions = []byte("regions")
)

// BoltBackend is the embedded backend: one bolt.DB file, one bucket per
// collection, db.Update/db.View for writes/reads, JSON row marshaling.
type BoltBackend struct {
	db      *bolt.DB
	payload *payloadStore
}

// NewBoltBackend opens (creating if absent) a BoltDB-backed backend at
// path, with its payload tree alongside it at <dir(path)>/data.
func NewBoltBackend(path string) (*BoltBackend, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "open bolt database %s", path)
	}
	payload, err := newPayloadStore(filepath.Join(filepath.Dir(path), "data"))
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltBackend{db: db, payload: payload}, nil
}

// Init creates the points and regions buckets if absent. Idempotent.
func (b *BoltBackend) Init() error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketPoints); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketRegions)
		return err
	})
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "init bolt schema")
	}
	return nil
}

func (b *BoltBackend) UpsertPoint(p types.Point, regionID string) error {
	data, err := codec.Encode(p.Payload)
	if err != nil {
		return err
	}
	rel, err := b.payload.Write(p.ID, data)
	if err != nil {
		return err
	}
	row := pointRow{
		ID: p.ID, X: p.Position.X, Y: p.Position.Y, Z: p.Position.Z,
		SizeX: p.Size.X, SizeY: p.Size.Y, SizeZ: p.Size.Z,
		ObjectType: p.ObjectType, RegionID: regionID, DataFile: rel,
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		buf, err := json.Marshal(row)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketPoints).Put([]byte(p.ID), buf)
	})
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "upsert point %s", p.ID)
	}
	return nil
}

func (b *BoltBackend) RemovePoint(id string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPoints).Delete([]byte(id))
	})
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "remove point %s", id)
	}
	return b.payload.Delete(id)
}

func (b *BoltBackend) UpdatePosition(id string, position types.Vec3) error {
	var row pointRow
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketPoints)
		data := bucket.Get([]byte(id))
		if data == nil {
			return vaulterrors.New(vaulterrors.BackendIntegrity, "update position: point %s not found", id)
		}
		if err := json.Unmarshal(data, &row); err != nil {
			return err
		}
		row.X, row.Y, row.Z = position.X, position.Y, position.Z
		buf, err := json.Marshal(row)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(id), buf)
	})
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "update position for %s", id)
	}
	return nil
}

func (b *BoltBackend) PointsWithinRadius(center types.Vec3, r float64) ([]types.Point, error) {
	all, err := b.allPointRows()
	if err != nil {
		return nil, err
	}
	var out []types.Point
	for _, row := range all {
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

func (b *BoltBackend) UpsertRegion(r types.Region) error {
	row := regionRow{ID: r.ID, CenterX: r.Center.X, CenterY: r.Center.Y, CenterZ: r.Center.Z, Size: r.Size}
	err := b.db.Update(func(tx *bolt.Tx) error {
		buf, err := json.Marshal(row)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketRegions).Put([]byte(r.ID), buf)
	})
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "upsert region %s", r.ID)
	}
	return nil
}

func (b *BoltBackend) AllRegions() ([]types.Region, error) {
	var out []types.Region
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRegions).ForEach(func(k, v []byte) error {
			var row regionRow
			if err := json.Unmarshal(v, &row); err != nil {
				return err
			}
			out = append(out, types.Region{
				ID:     row.ID,
				Center: types.Vec3{X: row.CenterX, Y: row.CenterY, Z: row.CenterZ},
				Size:   row.Size,
			})
			return nil
		})
	})
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "list regions")
	}
	return out, nil
}

func (b *BoltBackend) PointsInRegion(regionID string) ([]types.Point, error) {
	all, err := b.allPointRows()
	if err != nil {
		return nil, err
	}
	var out []types.Point
	for _, row := range all {
		if row.RegionID != regionID {
			continue
		}
		p, err := b.hydrate(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (b *BoltBackend) ClearAllPoints() error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketPoints); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketPoints)
		return err
	})
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "clear all points")
	}
	return b.payload.ClearAll()
}

func (b *BoltBackend) Close() error {
	if err := b.db.Close(); err != nil {
		return vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "close bolt database")
	}
	return nil
}

func (b *BoltBackend) allPointRows() ([]pointRow, error) {
	var rows []pointRow
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPoints).ForEach(func(k, v []byte) error {
			var row pointRow
			if err := json.Unmarshal(v, &row); err != nil {
				return err
			}
			rows = append(rows, row)
			return nil
		})
	})
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "list points")
	}
	return rows, nil
}

func (b *BoltBackend) hydrate(row pointRow) (types.Point, error) {
	data, err := b.payload.Read(row.DataFile)
	if err != nil {
		return types.Point{}, err
	}
	doc, err := codec.Decode(data)
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
