// Package types defines the value types PebbleVault operates on: spatial
// objects (Points) and the cubic regions that contain them.
package types

import "github.com/cuemby/pebblevault/pkg/codec"

// Vec3 is a point or extent in flat Cartesian 3-space.
type Vec3 struct {
	X, Y, Z float64
}

// Point is a single spatial object: an id, a position, a bounding-box
// extent, a free-form type tag, and an opaque payload document.
type Point struct {
	ID         string
	Position   Vec3
	Size       Vec3
	ObjectType string
	Payload    codec.Document

	// Version counts mutations to this Point (UpdateObject, TransferPlayer).
	// It is diagnostic only: it is never compared-and-swapped and is not
	// part of structural equality between Points.
	Version uint64
}

// Equal reports whether two Points are structurally identical: same id,
// position, size, type, and payload. Version is ignored.
func (p Point) Equal(o Point) bool {
	return p.ID == o.ID &&
		p.Position == o.Position &&
		p.Size == o.Size &&
		p.ObjectType == o.ObjectType &&
		codec.Equal(p.Payload, o.Payload)
}

// AABB is an axis-aligned bounding box given by its min and max corners.
// An AABB with any Min component greater than the corresponding Max
// component is "inverted" and matches no Point.
type AABB struct {
	Min, Max Vec3
}

// Contains reports whether p lies within the closed box, component-wise.
// An inverted box always returns false.
func (b AABB) Contains(p Vec3) bool {
	if b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z {
		return false
	}
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Intersects reports whether two boxes overlap on every axis. Used
// internally by the R-tree for subtree pruning; callers querying the
// vault should use Contains semantics (point containment), per the
// store's documented range-query interpretation.
func (b AABB) Intersects(o AABB) bool {
	if b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z {
		return false
	}
	if o.Min.X > o.Max.X || o.Min.Y > o.Max.Y || o.Min.Z > o.Max.Z {
		return false
	}
	return b.Min.X <= o.Max.X && b.Max.X >= o.Min.X &&
		b.Min.Y <= o.Max.Y && b.Max.Y >= o.Min.Y &&
		b.Min.Z <= o.Max.Z && b.Max.Z >= o.Min.Z
}

// Union returns the smallest box containing both b and o.
func (b AABB) Union(o AABB) AABB {
	return AABB{
		Min: Vec3{min(b.Min.X, o.Min.X), min(b.Min.Y, o.Min.Y), min(b.Min.Z, o.Min.Z)},
		Max: Vec3{max(b.Max.X, o.Max.X), max(b.Max.Y, o.Max.Y), max(b.Max.Z, o.Max.Z)},
	}
}

// FromPoint returns the degenerate box containing exactly v.
func FromPoint(v Vec3) AABB { return AABB{Min: v, Max: v} }

// Region is a named cubic volume of space with its own spatial index.
// Size is the cube's side length; the region covers
// [Center - Size/2, Center + Size/2] on every axis.
type Region struct {
	ID     string
	Center Vec3
	Size   float64
}

// Bounds returns the region's cube as an AABB.
func (r Region) Bounds() AABB {
	half := r.Size / 2
	return AABB{
		Min: Vec3{r.Center.X - half, r.Center.Y - half, r.Center.Z - half},
		Max: Vec3{r.Center.X + half, r.Center.Y + half, r.Center.Z + half},
	}
}
