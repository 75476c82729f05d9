package spatial

import (
	"fmt"
	"testing"

	"github.com/cuemby/pebblevault/pkg/types"
)

func pt(id string, x, y, z float64) types.Point {
	return types.Point{ID: id, Position: types.Vec3{X: x, Y: y, Z: z}, ObjectType: "t"}
}

func TestInsertAndQueryWithinBox(t *testing.T) {
	tree := New()
	tree.Insert(pt("a", 1, 2, 3))
	tree.Insert(pt("b", -10, -20, -30))

	got := tree.Query(types.AABB{Min: types.Vec3{X: -50, Y: -50, Z: -50}, Max: types.Vec3{X: 50, Y: 50, Z: 50}})
	if len(got) != 2 {
		t.Fatalf("expected 2 points, got %d", len(got))
	}
}

func TestQueryExcludesOutsideBox(t *testing.T) {
	tree := New()
	tree.Insert(pt("a", 1, 2, 3))
	tree.Insert(pt("far", 1000, 1000, 1000))

	got := tree.Query(types.AABB{Min: types.Vec3{X: -50, Y: -50, Z: -50}, Max: types.Vec3{X: 50, Y: 50, Z: 50}})
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected only 'a', got %v", got)
	}
}

func TestQueryMinEqualsMax(t *testing.T) {
	tree := New()
	tree.Insert(pt("a", 5, 5, 5))
	tree.Insert(pt("b", 5, 5, 6))

	got := tree.Query(types.AABB{Min: types.Vec3{X: 5, Y: 5, Z: 5}, Max: types.Vec3{X: 5, Y: 5, Z: 5}})
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected exactly 'a', got %v", got)
	}
}

func TestQueryInvertedBoxReturnsEmpty(t *testing.T) {
	tree := New()
	tree.Insert(pt("a", 0, 0, 0))

	got := tree.Query(types.AABB{Min: types.Vec3{X: 10, Y: 10, Z: 10}, Max: types.Vec3{X: -10, Y: -10, Z: -10}})
	if len(got) != 0 {
		t.Fatalf("expected no results for inverted box, got %v", got)
	}
}

func TestRemoveByEquality(t *testing.T) {
	tree := New()
	tree.Insert(pt("a", 1, 1, 1))
	tree.Insert(pt("b", 1, 1, 1)) // identical position, distinct id

	tree.Remove("a", types.Vec3{X: 1, Y: 1, Z: 1})

	got := tree.Query(types.AABB{Min: types.Vec3{X: 0, Y: 0, Z: 0}, Max: types.Vec3{X: 2, Y: 2, Z: 2}})
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("expected only 'b' to remain, got %v", got)
	}
	if tree.Len() != 1 {
		t.Fatalf("expected Len()==1, got %d", tree.Len())
	}
}

func TestRemoveAbsentIsNoOp(t *testing.T) {
	tree := New()
	tree.Insert(pt("a", 1, 1, 1))

	tree.Remove("missing", types.Vec3{X: 9, Y: 9, Z: 9})

	if tree.Len() != 1 {
		t.Fatalf("expected Len()==1 after no-op remove, got %d", tree.Len())
	}
}

func TestSplitsUnderLoad(t *testing.T) {
	tree := New()
	const n = 500
	for i := 0; i < n; i++ {
		tree.Insert(pt(fmt.Sprintf("p%d", i), float64(i), float64(i%7), float64(i%3)))
	}
	if tree.Len() != n {
		t.Fatalf("expected Len()==%d, got %d", n, tree.Len())
	}
	got := tree.Query(types.AABB{Min: types.Vec3{X: -1, Y: -1, Z: -1}, Max: types.Vec3{X: float64(n), Y: 10, Z: 10}})
	if len(got) != n {
		t.Fatalf("expected all %d points within box, got %d", n, len(got))
	}
}

// TestSubRegionQueryAfterNonSplitInsert covers a tree with more than
// maxEntries points, where a later insert lands in an existing leaf without
// triggering a further split. It queries and removes a sub-region near the
// enlarged leaf rather than the full coordinate range, so a stale ancestor
// bounding box (left over from before the enlarging insert) would cause the
// subtree to be pruned and the point missed.
func TestSubRegionQueryAfterNonSplitInsert(t *testing.T) {
	tree := New()

	// A tight cluster near the origin and a distant cluster, together
	// exceeding maxEntries, so the 9th insert forces a split. Both clusters
	// get correctly computed bounds at split time.
	for i := 0; i < 5; i++ {
		tree.Insert(pt(fmt.Sprintf("near%d", i), 0, 0, 0))
	}
	for i := 0; i < 4; i++ {
		tree.Insert(pt(fmt.Sprintf("far%d", i), 100, 100, 100))
	}

	// This insert lands in the near-origin leaf (least enlargement) without
	// overflowing it, enlarging that leaf's true bounds well past the
	// ancestor's bounds as recorded at split time.
	tree.Insert(pt("extra", 5, 5, 5))

	if tree.Len() != 10 {
		t.Fatalf("expected Len()==10, got %d", tree.Len())
	}

	sub := types.AABB{Min: types.Vec3{X: 3, Y: 3, Z: 3}, Max: types.Vec3{X: 7, Y: 7, Z: 7}}
	got := tree.Query(sub)
	if len(got) != 1 || got[0].ID != "extra" {
		t.Fatalf("expected sub-region query to find 'extra', got %v", got)
	}

	tree.Remove("extra", types.Vec3{X: 5, Y: 5, Z: 5})
	if tree.Len() != 9 {
		t.Fatalf("expected Len()==9 after removing 'extra', got %d", tree.Len())
	}
	if got := tree.Query(sub); len(got) != 0 {
		t.Fatalf("expected sub-region query to be empty after removal, got %v", got)
	}
}

func TestAllReturnsEveryPoint(t *testing.T) {
	tree := New()
	tree.Insert(pt("a", 1, 1, 1))
	tree.Insert(pt("b", 2, 2, 2))
	if len(tree.All()) != 2 {
		t.Fatalf("expected All() to return 2 points")
	}
}
