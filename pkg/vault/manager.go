/*
Package vault implements the Vault Manager: the orchestrator that binds the
per-region spatial index (pkg/spatial) to a persistence backend
(pkg/storage) under the concurrency discipline described in the package's
design notes below.

Locking discipline: a read-dominant region registry guarded by RWMutex, with
per-region locks taken only for the duration of a mutation:

  - The region registry (Manager.mu) is a reader/writer lock. Reads
    (lookups) take a read hold; region creation takes a write hold only long
    enough to insert the new entry.
  - Each region's state carries its own sync.Mutex, guarding its R-tree.
    Only one goroutine mutates or iterates a region's tree at a time.
  - The object-id index (Manager.indexMu) is a separate reader/writer lock,
    deliberately distinct from the registry lock so that object lookups
    never contend with region creation.
  - TransferPlayer is the one operation that holds two region locks at once;
    it always acquires them in ascending region-id order to prevent deadlock.
  - The registry lock is never held while calling the backend or while
    blocking on a region lock. A region lock, by contrast, is held across
    the backend call in AddObject/RemoveObject; a slow backend serializes
    writers of that one region only, never writers of other regions or
    queries against them.
*/
package vault

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cuemby/pebblevault/pkg/codec"
	"github.com/cuemby/pebblevault/pkg/log"
	"github.com/cuemby/pebblevault/pkg/metrics"
	"github.com/cuemby/pebblevault/pkg/spatial"
	"github.com/cuemby/pebblevault/pkg/storage"
	"github.com/cuemby/pebblevault/pkg/types"
	"github.com/cuemby/pebblevault/pkg/vaulterrors"
)

// ProgressHook is an opaque sink the Manager calls during long-running bulk
// operations (startup recovery, PersistToDisk). Implementations may ignore
// it entirely; a nil hook is valid and the default.
type ProgressHook func(stage string, done, total int)

// Option configures a Manager at Open time.
type Option func(*Manager)

// WithProgressHook registers a ProgressHook to receive recovery/persist
// progress events.
func WithProgressHook(hook ProgressHook) Option {
	return func(m *Manager) { m.hook = hook }
}

type regionState struct {
	mu     sync.Mutex
	region types.Region
	tree   *spatial.Tree
}

// Manager is the Vault: the region registry, the write-through CRUD surface
// over it, and the backend it mirrors state into. The zero value is not
// usable; construct one with Open.
type Manager struct {
	backend storage.Backend
	hook    ProgressHook

	mu      sync.RWMutex
	regions map[string]*regionState

	indexMu     sync.RWMutex
	objectIndex map[string]string // object id -> region id
}

// Open initializes backend's schema, performs startup recovery (reading
// every region and its points back into fresh in-memory R-trees), and
// returns a ready Manager. On a recovery error the returned Manager is nil
// and MUST NOT be used.
func Open(backend storage.Backend, opts ...Option) (*Manager, error) {
	m := &Manager{
		backend:     backend,
		regions:     make(map[string]*regionState),
		objectIndex: make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}

	logger := log.WithComponent("vault")

	if err := backend.Init(); err != nil {
		return nil, err
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RecoveryDuration)

	regions, err := backend.AllRegions()
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "recover regions")
	}

	logger.Info().Int("regions", len(regions)).Msg("starting recovery")

	for i, region := range regions {
		tree := spatial.New()
		points, err := backend.PointsInRegion(region.ID)
		if err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "recover points for region %s", region.ID)
		}
		for _, p := range points {
			tree.Insert(p)
			m.objectIndex[p.ID] = region.ID
		}
		m.regions[region.ID] = &regionState{region: region, tree: tree}
		metrics.ObjectsTotal.WithLabelValues(region.ID).Set(float64(len(points)))
		regionLogger := log.WithRegion(region.ID)
		regionLogger.Debug().Int("points", len(points)).Msg("region recovered")
		m.emitProgress("recovery", i+1, len(regions))
	}

	metrics.RegionsTotal.Set(float64(len(m.regions)))
	logger.Info().Int("regions", len(m.regions)).Msg("recovery complete")
	return m, nil
}

func (m *Manager) emitProgress(stage string, done, total int) {
	if m.hook != nil {
		m.hook(stage, done, total)
	}
}

func (m *Manager) regionStateFor(regionID string) (*regionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rs, ok := m.regions[regionID]
	if !ok {
		return nil, vaulterrors.New(vaulterrors.RegionNotFound, "%s", regionID)
	}
	return rs, nil
}

// CreateOrLoadRegion returns the id of an existing region with exactly
// equal center and size, or creates, persists, and returns a new one.
// Concurrent calls with the same (center, size) create at most one new
// region.
func (m *Manager) CreateOrLoadRegion(center types.Vec3, size float64) (string, error) {
	if id, ok := m.findRegion(center, size); ok {
		return id, nil
	}

	candidate := types.Region{ID: uuid.New().String(), Center: center, Size: size}

	m.mu.Lock()
	if id, ok := m.findRegionLocked(center, size); ok {
		m.mu.Unlock()
		return id, nil
	}
	m.regions[candidate.ID] = &regionState{region: candidate, tree: spatial.New()}
	m.mu.Unlock()

	if err := m.backend.UpsertRegion(candidate); err != nil {
		return "", vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "persist region %s", candidate.ID)
	}
	metrics.RegionsTotal.Inc()
	return candidate.ID, nil
}

func (m *Manager) findRegion(center types.Vec3, size float64) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findRegionLocked(center, size)
}

func (m *Manager) findRegionLocked(center types.Vec3, size float64) (string, bool) {
	for _, rs := range m.regions {
		if rs.region.Center == center && rs.region.Size == size {
			return rs.region.ID, true
		}
	}
	return "", false
}

// AddObject constructs a Point, inserts it into regionID's R-tree, then
// writes it through to the backend. A backend failure rolls back the
// in-memory insert before the error is returned.
func (m *Manager) AddObject(regionID, objectID, objectType string, position, size types.Vec3, payload codec.Document) (types.Point, error) {
	timer := metrics.NewTimer()
	rs, err := m.regionStateFor(regionID)
	if err != nil {
		metrics.OperationsTotal.WithLabelValues("add_object", "region_not_found").Inc()
		return types.Point{}, err
	}

	m.indexMu.Lock()
	if _, exists := m.objectIndex[objectID]; exists {
		m.indexMu.Unlock()
		metrics.OperationsTotal.WithLabelValues("add_object", "duplicate_id").Inc()
		return types.Point{}, vaulterrors.New(vaulterrors.DuplicateID, "%s", objectID)
	}
	m.objectIndex[objectID] = regionID
	m.indexMu.Unlock()

	point := types.Point{
		ID:         objectID,
		Position:   position,
		Size:       size,
		ObjectType: objectType,
		Payload:    payload,
		Version:    1,
	}

	rs.mu.Lock()
	rs.tree.Insert(point)
	if err := m.backend.UpsertPoint(point, regionID); err != nil {
		rs.tree.Remove(point.ID, point.Position)
		rs.mu.Unlock()

		m.indexMu.Lock()
		delete(m.objectIndex, objectID)
		m.indexMu.Unlock()

		metrics.OperationsTotal.WithLabelValues("add_object", "backend_error").Inc()
		return types.Point{}, err
	}
	rs.mu.Unlock()

	objLogger := log.WithObject(objectID)
	objLogger.Debug().Str("region_id", regionID).Msg("object added")
	metrics.ObjectsTotal.WithLabelValues(regionID).Inc()
	metrics.OperationsTotal.WithLabelValues("add_object", "success").Inc()
	timer.ObserveDuration(metrics.AddObjectDuration)
	return point, nil
}

// QueryRegion returns clones of every Point in regionID whose position lies
// within the closed box [min, max]. It never touches the backend.
func (m *Manager) QueryRegion(regionID string, min, max types.Vec3) ([]types.Point, error) {
	timer := metrics.NewTimer()
	rs, err := m.regionStateFor(regionID)
	if err != nil {
		return nil, err
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	points := rs.tree.Query(types.AABB{Min: min, Max: max})
	timer.ObserveDuration(metrics.QueryRegionDuration)
	return points, nil
}

// GetObject scans the region the object-id index points to and returns a
// clone of the matching Point.
func (m *Manager) GetObject(objectID string) (types.Point, error) {
	m.indexMu.RLock()
	regionID, ok := m.objectIndex[objectID]
	m.indexMu.RUnlock()
	if !ok {
		return types.Point{}, vaulterrors.New(vaulterrors.ObjectNotFound, "%s", objectID)
	}

	rs, err := m.regionStateFor(regionID)
	if err != nil {
		return types.Point{}, vaulterrors.New(vaulterrors.ObjectNotFound, "%s", objectID)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if p, found := findByID(rs.tree, objectID); found {
		return p, nil
	}
	return types.Point{}, vaulterrors.New(vaulterrors.ObjectNotFound, "%s", objectID)
}

// UpdateObject replaces the stored Point with the same id as p, updating
// position, size, type, and payload in the in-memory index only. Callers
// needing durability call Flush or PersistToDisk afterward.
func (m *Manager) UpdateObject(p types.Point) error {
	m.indexMu.RLock()
	regionID, ok := m.objectIndex[p.ID]
	m.indexMu.RUnlock()
	if !ok {
		return vaulterrors.New(vaulterrors.ObjectNotFound, "%s", p.ID)
	}

	rs, err := m.regionStateFor(regionID)
	if err != nil {
		return vaulterrors.New(vaulterrors.ObjectNotFound, "%s", p.ID)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	old, found := findByID(rs.tree, p.ID)
	if !found {
		return vaulterrors.New(vaulterrors.ObjectNotFound, "%s", p.ID)
	}
	rs.tree.Remove(old.ID, old.Position)
	updated := p
	updated.Version = old.Version + 1
	rs.tree.Insert(updated)
	return nil
}

// RemoveObject deletes the object from its region's R-tree and from the
// backend. If the backend call fails, the Point is re-inserted in memory
// (option (a) of the backend-failure policy in the design notes) and the
// error is surfaced.
func (m *Manager) RemoveObject(objectID string) error {
	m.indexMu.RLock()
	regionID, ok := m.objectIndex[objectID]
	m.indexMu.RUnlock()
	if !ok {
		return vaulterrors.New(vaulterrors.ObjectNotFound, "%s", objectID)
	}

	rs, err := m.regionStateFor(regionID)
	if err != nil {
		return vaulterrors.New(vaulterrors.ObjectNotFound, "%s", objectID)
	}

	rs.mu.Lock()
	point, found := findByID(rs.tree, objectID)
	if !found {
		rs.mu.Unlock()
		return vaulterrors.New(vaulterrors.ObjectNotFound, "%s", objectID)
	}
	rs.tree.Remove(point.ID, point.Position)

	if err := m.backend.RemovePoint(objectID); err != nil {
		rs.tree.Insert(point)
		rs.mu.Unlock()
		return err
	}
	rs.mu.Unlock()

	m.indexMu.Lock()
	delete(m.objectIndex, objectID)
	m.indexMu.Unlock()

	objLogger := log.WithObject(objectID)
	objLogger.Debug().Str("region_id", regionID).Msg("object removed")
	metrics.ObjectsTotal.WithLabelValues(regionID).Dec()
	return nil
}

// TransferPlayer moves objectID from fromRegionID to toRegionID, rewriting
// its position to toRegionID's center while preserving id, size, type, and
// payload. Backend write-through is deferred to the next Flush or
// PersistToDisk call. Locks on the two regions are always acquired in
// ascending region-id order to avoid deadlock against a concurrent transfer
// in the opposite direction.
func (m *Manager) TransferPlayer(objectID, fromRegionID, toRegionID string) error {
	timer := metrics.NewTimer()
	fromRS, err := m.regionStateFor(fromRegionID)
	if err != nil {
		return err
	}
	toRS, err := m.regionStateFor(toRegionID)
	if err != nil {
		return err
	}

	if fromRegionID == toRegionID {
		fromRS.mu.Lock()
		defer fromRS.mu.Unlock()
		point, found := findByID(fromRS.tree, objectID)
		if !found {
			return vaulterrors.New(vaulterrors.ObjectNotFound, "%s", objectID)
		}
		fromRS.tree.Remove(point.ID, point.Position)
		point.Position = fromRS.region.Center
		point.Version++
		fromRS.tree.Insert(point)
		timer.ObserveDuration(metrics.TransferPlayerDuration)
		return nil
	}

	first, second := fromRS, toRS
	if fromRegionID > toRegionID {
		first, second = toRS, fromRS
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	point, found := findByID(fromRS.tree, objectID)
	if !found {
		return vaulterrors.New(vaulterrors.ObjectNotFound, "%s", objectID)
	}
	fromRS.tree.Remove(point.ID, point.Position)
	point.Position = toRS.region.Center
	point.Version++
	toRS.tree.Insert(point)

	m.indexMu.Lock()
	m.objectIndex[objectID] = toRegionID
	m.indexMu.Unlock()

	metrics.ObjectsTotal.WithLabelValues(fromRegionID).Dec()
	metrics.ObjectsTotal.WithLabelValues(toRegionID).Inc()
	timer.ObserveDuration(metrics.TransferPlayerDuration)
	return nil
}

// Flush re-upserts every Point currently in regionID's R-tree to the
// backend, without touching any other region. It is the region-scoped
// counterpart to PersistToDisk, for callers that want durability for one
// region's deferred UpdateObject/TransferPlayer writes without paying for a
// whole-vault re-materialization.
func (m *Manager) Flush(regionID string) error {
	rs, err := m.regionStateFor(regionID)
	if err != nil {
		return err
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, p := range rs.tree.All() {
		if err := m.backend.UpsertPoint(p, regionID); err != nil {
			return err
		}
	}
	return nil
}

// PersistToDisk performs a full re-materialization: clears every point on
// the backend, then re-upserts every Point currently held in memory across
// all regions. It is intended for shutdown/snapshot boundaries, not
// per-mutation use.
func (m *Manager) PersistToDisk() error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PersistToDiskDuration)

	if err := m.backend.ClearAllPoints(); err != nil {
		return err
	}

	m.mu.RLock()
	regionIDs := make([]string, 0, len(m.regions))
	for id := range m.regions {
		regionIDs = append(regionIDs, id)
	}
	m.mu.RUnlock()

	total := len(regionIDs)
	for i, regionID := range regionIDs {
		if err := m.Flush(regionID); err != nil {
			return err
		}
		m.emitProgress("persist", i+1, total)
	}
	persistLogger := log.WithComponent("vault")
	persistLogger.Info().Int("regions", total).Dur("elapsed", timer.Duration()).Msg("persist complete")
	return nil
}

// Close releases the Manager's in-memory state and closes the backend.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.regions = make(map[string]*regionState)
	m.mu.Unlock()
	m.indexMu.Lock()
	m.objectIndex = make(map[string]string)
	m.indexMu.Unlock()
	return m.backend.Close()
}

func findByID(tree *spatial.Tree, id string) (types.Point, bool) {
	for _, p := range tree.All() {
		if p.ID == id {
			return p, true
		}
	}
	return types.Point{}, false
}
