package vault

import (
	"math"
	"sync"

	"github.com/cuemby/pebblevault/pkg/storage"
	"github.com/cuemby/pebblevault/pkg/types"
	"github.com/cuemby/pebblevault/pkg/vaulterrors"
)

// fakeBackend is an in-memory storage.Backend used for the fast property
// and failure-injection tests, exercising the Backend interface against a
// real (if minimal) implementation rather than a generated mock.
type fakeBackend struct {
	mu          sync.Mutex
	points      map[string]types.Point
	pointRegion map[string]string
	regions     map[string]types.Region

	failNextUpsertPoint bool
}

var _ storage.Backend = (*fakeBackend)(nil)

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		points:      make(map[string]types.Point),
		pointRegion: make(map[string]string),
		regions:     make(map[string]types.Region),
	}
}

func (f *fakeBackend) Init() error { return nil }

func (f *fakeBackend) UpsertPoint(p types.Point, regionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNextUpsertPoint {
		f.failNextUpsertPoint = false
		return vaulterrors.New(vaulterrors.BackendUnavailable, "injected failure")
	}
	f.points[p.ID] = p
	f.pointRegion[p.ID] = regionID
	return nil
}

func (f *fakeBackend) RemovePoint(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.points, id)
	delete(f.pointRegion, id)
	return nil
}

func (f *fakeBackend) UpdatePosition(id string, position types.Vec3) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.points[id]
	if !ok {
		return vaulterrors.New(vaulterrors.BackendIntegrity, "update position: %s not found", id)
	}
	p.Position = position
	f.points[id] = p
	return nil
}

func (f *fakeBackend) PointsWithinRadius(center types.Vec3, r float64) ([]types.Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Point
	for _, p := range f.points {
		dx, dy, dz := p.Position.X-center.X, p.Position.Y-center.Y, p.Position.Z-center.Z
		if math.Sqrt(dx*dx+dy*dy+dz*dz) <= r {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeBackend) UpsertRegion(r types.Region) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regions[r.ID] = r
	return nil
}

func (f *fakeBackend) AllRegions() ([]types.Region, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Region, 0, len(f.regions))
	for _, r := range f.regions {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeBackend) PointsInRegion(regionID string) ([]types.Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Point
	for id, rid := range f.pointRegion {
		if rid == regionID {
			out = append(out, f.points[id])
		}
	}
	return out, nil
}

func (f *fakeBackend) ClearAllPoints() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = make(map[string]types.Point)
	f.pointRegion = make(map[string]string)
	return nil
}

func (f *fakeBackend) Close() error { return nil }
