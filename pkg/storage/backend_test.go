package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/pebblevault/pkg/types"
	"github.com/cuemby/pebblevault/pkg/vaulterrors"
)

// runBackendContract exercises the ten Backend operations against any
// concrete implementation, directly against the real store rather than
// through a mock.
func runBackendContract(t *testing.T, b Backend) {
	t.Helper()

	if err := b.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := b.Init(); err != nil {
		t.Fatalf("Init should be idempotent: %v", err)
	}

	region := types.Region{ID: "r1", Center: types.Vec3{X: 0, Y: 0, Z: 0}, Size: 100}
	if err := b.UpsertRegion(region); err != nil {
		t.Fatalf("UpsertRegion: %v", err)
	}

	regions, err := b.AllRegions()
	if err != nil {
		t.Fatalf("AllRegions: %v", err)
	}
	if len(regions) != 1 || regions[0].ID != "r1" {
		t.Fatalf("expected one region r1, got %v", regions)
	}

	p := types.Point{
		ID:         "p1",
		Position:   types.Vec3{X: 1, Y: 2, Z: 3},
		Size:       types.Vec3{X: 1, Y: 1, Z: 1},
		ObjectType: "player",
		Payload:    map[string]any{"name": "a"},
	}
	if err := b.UpsertPoint(p, region.ID); err != nil {
		t.Fatalf("UpsertPoint: %v", err)
	}

	points, err := b.PointsInRegion(region.ID)
	if err != nil {
		t.Fatalf("PointsInRegion: %v", err)
	}
	if len(points) != 1 || !points[0].Equal(p) {
		t.Fatalf("expected round-tripped point %+v, got %+v", p, points)
	}

	near, err := b.PointsWithinRadius(types.Vec3{X: 0, Y: 0, Z: 0}, 10)
	if err != nil {
		t.Fatalf("PointsWithinRadius: %v", err)
	}
	if len(near) != 1 || near[0].ID != "p1" {
		t.Fatalf("expected p1 within radius, got %v", near)
	}

	far, err := b.PointsWithinRadius(types.Vec3{X: 0, Y: 0, Z: 0}, 0.1)
	if err != nil {
		t.Fatalf("PointsWithinRadius (far): %v", err)
	}
	if len(far) != 0 {
		t.Fatalf("expected no points within a tiny radius, got %v", far)
	}

	if err := b.UpdatePosition("p1", types.Vec3{X: 9, Y: 9, Z: 9}); err != nil {
		t.Fatalf("UpdatePosition: %v", err)
	}
	points, err = b.PointsInRegion(region.ID)
	if err != nil {
		t.Fatalf("PointsInRegion after update: %v", err)
	}
	if len(points) != 1 || points[0].Position != (types.Vec3{X: 9, Y: 9, Z: 9}) {
		t.Fatalf("expected updated position, got %v", points)
	}
	if points[0].ObjectType != "player" {
		t.Fatalf("UpdatePosition must not touch object_type, got %q", points[0].ObjectType)
	}

	if err := b.RemovePoint("p1"); err != nil {
		t.Fatalf("RemovePoint: %v", err)
	}
	if err := b.RemovePoint("p1"); err != nil {
		t.Fatalf("RemovePoint on missing id must be success: %v", err)
	}
	points, err = b.PointsInRegion(region.ID)
	if err != nil {
		t.Fatalf("PointsInRegion after remove: %v", err)
	}
	if len(points) != 0 {
		t.Fatalf("expected no points after remove, got %v", points)
	}

	if err := b.UpsertPoint(p, region.ID); err != nil {
		t.Fatalf("UpsertPoint (re-add): %v", err)
	}
	if err := b.ClearAllPoints(); err != nil {
		t.Fatalf("ClearAllPoints: %v", err)
	}
	points, err = b.PointsInRegion(region.ID)
	if err != nil {
		t.Fatalf("PointsInRegion after clear: %v", err)
	}
	if len(points) != 0 {
		t.Fatalf("expected no points after ClearAllPoints, got %v", points)
	}
	regions, err = b.AllRegions()
	if err != nil {
		t.Fatalf("AllRegions after clear: %v", err)
	}
	if len(regions) != 1 {
		t.Fatalf("ClearAllPoints must not affect regions, got %v", regions)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestDanglingPayloadIsPayloadMissing(t *testing.T) {
	dir := t.TempDir()
	b, err := NewBoltBackend(filepath.Join(dir, "vault.db"))
	if err != nil {
		t.Fatalf("NewBoltBackend: %v", err)
	}
	defer b.Close()
	if err := b.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	p := types.Point{ID: "abcd-1", Position: types.Vec3{X: 1}, ObjectType: "t", Payload: map[string]any{"k": "v"}}
	if err := b.UpsertPoint(p, "r1"); err != nil {
		t.Fatalf("UpsertPoint: %v", err)
	}

	// Remove the payload file behind the row's back; the row now carries a
	// dangling data_file path.
	if err := os.Remove(filepath.Join(dir, "data", "ab", "abcd-1")); err != nil {
		t.Fatalf("remove payload file: %v", err)
	}

	_, err = b.PointsInRegion("r1")
	if err == nil {
		t.Fatal("expected an error reading a point with a dangling payload path")
	}
	kind, ok := vaulterrors.KindOf(err)
	if !ok || kind != vaulterrors.PayloadMissing {
		t.Fatalf("expected PayloadMissing, got %v (ok=%v)", kind, ok)
	}
}

func TestBoltBackendContract(t *testing.T) {
	dir := t.TempDir()
	b, err := NewBoltBackend(filepath.Join(dir, "vault.db"))
	if err != nil {
		t.Fatalf("NewBoltBackend: %v", err)
	}
	runBackendContract(t, b)
}

func TestSQLiteBackendContract(t *testing.T) {
	dir := t.TempDir()
	b, err := NewSQLiteBackend(filepath.Join(dir, "vault.sqlite3"))
	if err != nil {
		t.Fatalf("NewSQLiteBackend: %v", err)
	}
	runBackendContract(t, b)
}
