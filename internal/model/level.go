package model

import (
	"image"

	"golang.org/x/text/cases"
)

// Grid dimensions of a level. Every stored coordinate satisfies
// 0 <= x < GridWidth and 0 <= y < GridHeight.
const (
	GridWidth  = 1024
	GridHeight = 1024
	GridCells  = GridWidth * GridHeight
)

// Map represents a decoded level file: the tile grid, the eLVL metadata
// chunks in file order, and the tileset image when the file carried one.
type Map struct {
	Filename string      // Source path, empty when loaded from memory
	Chunks   []Chunk     // Metadata chunks in file order
	Tileset  image.Image // Decoded tileset bitmap (optional)

	tiles []TileID // GridCells entries, indexed y*GridWidth+x
}

// NewMap creates an empty map with a zeroed tile grid
func NewMap() *Map {
	return &Map{
		Chunks: make([]Chunk, 0),
		tiles:  make([]TileID, GridCells),
	}
}

// Index flattens a grid coordinate
func Index(x, y int) int {
	return y*GridWidth + x
}

// InBounds reports whether (x, y) addresses a cell of the grid
func InBounds(x, y int) bool {
	return x >= 0 && x < GridWidth && y >= 0 && y < GridHeight
}

// Tile returns the tile identifier at (x, y), or TileEmpty outside the grid
func (m *Map) Tile(x, y int) TileID {
	if !InBounds(x, y) {
		return TileEmpty
	}
	return m.tiles[Index(x, y)]
}

// SetTile stores a tile identifier. It reports false when (x, y) is
// outside the grid and nothing was written.
func (m *Map) SetTile(x, y int, id TileID) bool {
	if !InBounds(x, y) {
		return false
	}
	m.tiles[Index(x, y)] = id
	return true
}

// TileCount returns the number of non-empty cells
func (m *Map) TileCount() int {
	n := 0
	for _, id := range m.tiles {
		if id != TileEmpty {
			n++
		}
	}
	return n
}

// Attributes returns all attribute chunks in file order
func (m *Map) Attributes() []*Attribute {
	var attrs []*Attribute
	for _, c := range m.Chunks {
		if a, ok := c.(*Attribute); ok {
			attrs = append(attrs, a)
		}
	}
	return attrs
}

// Attribute looks up an attribute value by key. Keys compare
// case-insensitively and the last matching attribute in the file wins.
func (m *Map) Attribute(key string) (string, bool) {
	fold := cases.Fold()
	want := fold.String(key)

	value, found := "", false
	for _, a := range m.Attributes() {
		if fold.String(a.Key) == want {
			value, found = a.Value, true
		}
	}
	return value, found
}

// Regions returns all region chunks in file order
func (m *Map) Regions() []*Region {
	var regions []*Region
	for _, c := range m.Chunks {
		if r, ok := c.(*Region); ok {
			regions = append(regions, r)
		}
	}
	return regions
}

// TileID identifies the tile graphic stored in a grid cell
type TileID uint8

// Well-known tile identifiers
const (
	TileEmpty     TileID = 0
	TileFirstDoor TileID = 162
	TileLastDoor  TileID = 169
	TileFlag      TileID = 170
	TileSafe      TileID = 171
	TileGoal      TileID = 172
	TileWormhole  TileID = 220
)

// TileClass groups tile identifiers by gameplay role
type TileClass int

const (
	ClassEmpty    TileClass = iota // No tile
	ClassNormal                    // Regular wall/floor graphic
	ClassDoor                      // Door tiles 162-169
	ClassFlag                      // Flag spawn
	ClassSafe                      // Safe zone
	ClassGoal                      // Soccer goal
	ClassWormhole                  // Wormhole
)

// IsDoor reports whether the tile is one of the door tiles
func (t TileID) IsDoor() bool {
	return t >= TileFirstDoor && t <= TileLastDoor
}

// Class returns the gameplay class of the tile
func (t TileID) Class() TileClass {
	switch {
	case t == TileEmpty:
		return ClassEmpty
	case t.IsDoor():
		return ClassDoor
	case t == TileFlag:
		return ClassFlag
	case t == TileSafe:
		return ClassSafe
	case t == TileGoal:
		return ClassGoal
	case t == TileWormhole:
		return ClassWormhole
	default:
		return ClassNormal
	}
}

func (c TileClass) String() string {
	switch c {
	case ClassEmpty:
		return "empty"
	case ClassNormal:
		return "normal"
	case ClassDoor:
		return "door"
	case ClassFlag:
		return "flag"
	case ClassSafe:
		return "safe"
	case ClassGoal:
		return "goal"
	case ClassWormhole:
		return "wormhole"
	default:
		return "unknown"
	}
}
