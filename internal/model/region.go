package model

import (
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// RegionFlags are independent gameplay properties of a region
type RegionFlags uint32

const (
	RegionBase       RegionFlags = 1 << 0 // Region is a base
	RegionNoAntiwarp RegionFlags = 1 << 1 // Antiwarp has no effect inside
	RegionNoWeapons  RegionFlags = 1 << 2 // Weapons are disabled inside
	RegionNoFlags    RegionFlags = 1 << 3 // Flags cannot be dropped inside
)

func (f RegionFlags) String() string {
	var names []string
	if f&RegionBase != 0 {
		names = append(names, "base")
	}
	if f&RegionNoAntiwarp != 0 {
		names = append(names, "no-antiwarp")
	}
	if f&RegionNoWeapons != 0 {
		names = append(names, "no-weapons")
	}
	if f&RegionNoFlags != 0 {
		names = append(names, "no-flags")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// Cursor is the running position of the region tile decoder
type Cursor struct {
	X int
	Y int
}

// Region is a named, flagged set of grid cells
type Region struct {
	Name  string
	Flags RegionFlags

	tiles     bitset.BitSet // Indexed y*GridWidth+x
	tileCount int
}

// NewRegion creates an empty, unnamed region
func NewRegion() *Region {
	return &Region{}
}

func (r *Region) Tag() Tag        { return TagRegion }
func (r *Region) Kind() ChunkKind { return KindRegion }

// SetIndex marks the cell at a flattened index as present. It reports
// false when the index lies outside the grid. Setting a cell that is
// already present leaves the tile count unchanged.
func (r *Region) SetIndex(index int) bool {
	if index < 0 || index >= GridCells {
		return false
	}
	if !r.tiles.Test(uint(index)) {
		r.tiles.Set(uint(index))
		r.tileCount++
	}
	return true
}

// Set marks (x, y) as present. It reports false when (x, y) is outside the grid.
func (r *Region) Set(x, y int) bool {
	if !InBounds(x, y) {
		return false
	}
	return r.SetIndex(Index(x, y))
}

// Contains reports whether (x, y) belongs to the region
func (r *Region) Contains(x, y int) bool {
	if !InBounds(x, y) {
		return false
	}
	return r.tiles.Test(uint(Index(x, y)))
}

// TileCount returns the number of distinct cells in the region
func (r *Region) TileCount() int {
	return r.tileCount
}

// Tiles lists the region's cells in row-major order
func (r *Region) Tiles() []Cursor {
	cells := make([]Cursor, 0, r.tileCount)
	for i, ok := r.tiles.NextSet(0); ok; i, ok = r.tiles.NextSet(i + 1) {
		cells = append(cells, Cursor{X: int(i % GridWidth), Y: int(i / GridWidth)})
	}
	return cells
}

// Bounds returns the smallest rectangle holding every cell, as the
// inclusive top-left and bottom-right corners. ok is false for an empty region.
func (r *Region) Bounds() (lo, hi Cursor, ok bool) {
	for i, found := r.tiles.NextSet(0); found; i, found = r.tiles.NextSet(i + 1) {
		x, y := int(i%GridWidth), int(i/GridWidth)
		if !ok {
			lo, hi, ok = Cursor{x, y}, Cursor{x, y}, true
			continue
		}
		lo.X = min(lo.X, x)
		hi.X = max(hi.X, x)
		hi.Y = y
	}
	return lo, hi, ok
}
