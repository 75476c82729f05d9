package storage

// pointRow mirrors the canonical "points" row, minus the payload itself
// (stored out-of-band via payloadStore and referenced by DataFile). Shared
// by every backend so recovery logic does not depend on which engine is
// selected.
type pointRow struct {
	ID         string
	X, Y, Z    float64
	SizeX      float64
	SizeY      float64
	SizeZ      float64
	ObjectType string
	RegionID   string
	DataFile   string
}

// regionRow mirrors the canonical "regions" row.
type regionRow struct {
	ID                        string
	CenterX, CenterY, CenterZ float64
	Size                      float64
}
