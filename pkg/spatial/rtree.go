// Package spatial implements the per-region 3-D spatial index: an R-tree
// supporting point insertion, removal by equality, and axis-aligned range
// queries. Points are inserted one at a time; there is no bulk-load
// operation. One Tree instance backs exactly one region.
//
// The design generalizes recursive bounding-volume subdivision (as used by a
// 2-D quadtree over a fixed boundary) into a height-balanced 3-D R-tree with
// node splitting, so the index stays effective as a region accumulates far
// more points than a shallow fixed-depth tree handles well.
package spatial

import "github.com/cuemby/pebblevault/pkg/types"

// maxEntries bounds the fan-out of an internal or leaf node before it
// splits. A small value keeps query fan-out shallow for typical
// game-world object counts without requiring disk-oriented page sizing.
const maxEntries = 8

type entry struct {
	bounds types.AABB
	child  *node        // non-nil for internal entries
	point  *types.Point // non-nil for leaf entries
}

type node struct {
	leaf    bool
	entries []entry
}

func (n *node) bounds() types.AABB {
	b := n.entries[0].bounds
	for _, e := range n.entries[1:] {
		b = b.Union(e.bounds)
	}
	return b
}

// Tree is a 3-D R-tree over Points, scoped to a single region.
type Tree struct {
	root  *node
	count int
}

// New returns an empty spatial index.
func New() *Tree {
	return &Tree{root: &node{leaf: true}}
}

// Len returns the number of Points currently indexed.
func (t *Tree) Len() int { return t.count }

// Insert adds a clone-owned Point to the index. Callers must ensure ids are
// unique before calling Insert; the index itself does not check. Duplicate-id
// rejection is the Vault Manager's responsibility.
func (t *Tree) Insert(p types.Point) {
	box := types.FromPoint(p.Position)
	path := t.pathToLeaf(box)
	leaf := path[len(path)-1]
	leaf.entries = append(leaf.entries, entry{bounds: box, point: &p})
	t.count++
	t.adjustAfterInsert(path)
}

// pathToLeaf descends from the root choosing, at each level, the child
// whose bounds enlarge least to cover box, and returns every node visited
// from root to the chosen leaf (inclusive).
func (t *Tree) pathToLeaf(box types.AABB) []*node {
	path := []*node{t.root}
	n := t.root
	for !n.leaf {
		best := 0
		bestEnlargement := -1.0
		for i, e := range n.entries {
			enlargement := area(e.bounds.Union(box)) - area(e.bounds)
			if bestEnlargement < 0 || enlargement < bestEnlargement {
				bestEnlargement = enlargement
				best = i
			}
		}
		n = n.entries[best].child
		path = append(path, n)
	}
	return path
}

func area(b types.AABB) float64 {
	dx := b.Max.X - b.Min.X
	dy := b.Max.Y - b.Min.Y
	dz := b.Max.Z - b.Min.Z
	return dx*dy + dy*dz + dz*dx // half the surface area; cheap proxy for volume cost
}

// adjustAfterInsert walks the insertion path bottom-up, splitting any child
// the insert pushed over maxEntries and refreshing the parent's recorded
// entry.bounds from the child's true bounds(). The refresh runs on every
// insert, split or not; a stale ancestor bounds would make Query/Remove
// prune a subtree that contains the point.
func (t *Tree) adjustAfterInsert(path []*node) {
	child := path[len(path)-1]
	for i := len(path) - 2; i >= 0; i-- {
		parent := path[i]
		if len(child.entries) > maxEntries {
			child = splitNode(child)
		}
		idx := childIndex(parent, path[i+1])
		parent.entries[idx].child = child
		parent.entries[idx].bounds = child.bounds()
		child = parent
	}
	if len(t.root.entries) > maxEntries {
		t.root = splitNode(t.root)
	}
}

// childIndex returns the index of child within parent's entries, by
// pointer identity.
func childIndex(parent *node, child *node) int {
	for i := range parent.entries {
		if parent.entries[i].child == child {
			return i
		}
	}
	panic("spatial: child not found among parent's entries")
}

// splitNode splits an overflowing node: pickSeeds scans every pair of
// entries (quadratic cost) for the pair whose combined box wastes the most
// area, and the remaining entries are then assigned in order to whichever
// group's bounds they enlarge least. Returns
// a new internal node with the two halves as children; if n was already
// the root this grows the tree by one level.
func splitNode(n *node) *node {
	a, b := pickSeeds(n.entries)
	groupA := []entry{n.entries[a]}
	groupB := []entry{n.entries[b]}
	boundsA := n.entries[a].bounds
	boundsB := n.entries[b].bounds

	for i, e := range n.entries {
		if i == a || i == b {
			continue
		}
		enlargeA := area(boundsA.Union(e.bounds)) - area(boundsA)
		enlargeB := area(boundsB.Union(e.bounds)) - area(boundsB)
		if enlargeA <= enlargeB {
			groupA = append(groupA, e)
			boundsA = boundsA.Union(e.bounds)
		} else {
			groupB = append(groupB, e)
			boundsB = boundsB.Union(e.bounds)
		}
	}

	childA := &node{leaf: n.leaf, entries: groupA}
	childB := &node{leaf: n.leaf, entries: groupB}
	return &node{
		leaf: false,
		entries: []entry{
			{bounds: childA.bounds(), child: childA},
			{bounds: childB.bounds(), child: childB},
		},
	}
}

func pickSeeds(entries []entry) (int, int) {
	bestA, bestB := 0, 1
	bestWaste := -1.0
	for i := range entries {
		for j := i + 1; j < len(entries); j++ {
			u := entries[i].bounds.Union(entries[j].bounds)
			waste := area(u) - area(entries[i].bounds) - area(entries[j].bounds)
			if waste > bestWaste {
				bestWaste = waste
				bestA, bestB = i, j
			}
		}
	}
	return bestA, bestB
}

// Remove deletes the Point matching id and position by equality. It is a
// no-op if no such Point is indexed.
func (t *Tree) Remove(id string, position types.Vec3) {
	if removeFrom(t.root, id, position) {
		t.count--
	}
}

func removeFrom(n *node, id string, position types.Vec3) bool {
	if n.leaf {
		for i, e := range n.entries {
			if e.point.ID == id && e.point.Position == position {
				n.entries = append(n.entries[:i], n.entries[i+1:]...)
				return true
			}
		}
		return false
	}
	for i := range n.entries {
		if !n.entries[i].bounds.Contains(position) {
			continue
		}
		if removeFrom(n.entries[i].child, id, position) {
			if len(n.entries[i].child.entries) > 0 {
				n.entries[i].bounds = n.entries[i].child.bounds()
			}
			return true
		}
	}
	return false
}

// Query returns clones of every indexed Point whose position lies within
// the closed box, component-wise (point containment; Size is not expanded
// into the match test). An inverted box (any Min > Max) returns no results.
func (t *Tree) Query(box types.AABB) []types.Point {
	if box.Min.X > box.Max.X || box.Min.Y > box.Max.Y || box.Min.Z > box.Max.Z {
		return nil
	}
	var out []types.Point
	queryNode(t.root, box, &out)
	return out
}

func queryNode(n *node, box types.AABB, out *[]types.Point) {
	if n.leaf {
		for _, e := range n.entries {
			if box.Contains(e.point.Position) {
				*out = append(*out, *e.point)
			}
		}
		return
	}
	for _, e := range n.entries {
		if e.bounds.Intersects(box) {
			queryNode(e.child, box, out)
		}
	}
}

// All returns clones of every Point currently indexed, in unspecified order.
func (t *Tree) All() []types.Point {
	var out []types.Point
	collect(t.root, &out)
	return out
}

func collect(n *node, out *[]types.Point) {
	if n.leaf {
		for _, e := range n.entries {
			*out = append(*out, *e.point)
		}
		return
	}
	for _, e := range n.entries {
		collect(e.child, out)
	}
}
