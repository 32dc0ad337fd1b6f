package model

import (
	"encoding/binary"
	"fmt"
)

// Tag is a four character chunk code packed little-endian, so the
// bytes "ATTR" read as 0x52545441.
type Tag uint32

// MakeTag packs a four character code
func MakeTag(code string) Tag {
	var b [4]byte
	copy(b[:], code)
	return Tag(binary.LittleEndian.Uint32(b[:]))
}

// String returns the four character code, or hex when it is not printable ASCII
func (t Tag) String() string {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(t))
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("0x%08x", uint32(t))
		}
	}
	return string(b[:])
}

// Top-level chunk tags
var (
	TagAttribute = MakeTag("ATTR")
	TagRegion    = MakeTag("REGN")
	TagTileset   = MakeTag("TSET")
	TagTile      = MakeTag("TILE")

	// DCME editor extensions
	TagDCMEWallTiles = MakeTag("DCWT")
	TagDCMETextTiles = MakeTag("DCTT")
	TagDCMEBookmarks = MakeTag("DCBM")
	TagDCMELvz       = MakeTag("DCLV")
)

// Region sub-chunk tags
var (
	TagRegionName       = MakeTag("rNAM")
	TagRegionTiles      = MakeTag("rTIL")
	TagRegionBase       = MakeTag("rBSE")
	TagRegionNoAntiwarp = MakeTag("rNAW")
	TagRegionNoWeapons  = MakeTag("rNWP")
	TagRegionNoFlags    = MakeTag("rNFL")
	TagRegionAutoWarp   = MakeTag("rAWP")
	TagRegionPython     = MakeTag("rPYC")
)

// ChunkKind enumerates the closed set of chunk variants
type ChunkKind int

const (
	KindAttribute ChunkKind = iota
	KindRegion
	KindTileset
	KindTile
	KindDCMEWallTiles
	KindDCMETextTiles
	KindDCMEBookmarks
	KindDCMELvz
	KindOther
)

func (k ChunkKind) String() string {
	switch k {
	case KindAttribute:
		return "attribute"
	case KindRegion:
		return "region"
	case KindTileset:
		return "tileset"
	case KindTile:
		return "tile"
	case KindDCMEWallTiles:
		return "dcme-wall-tiles"
	case KindDCMETextTiles:
		return "dcme-text-tiles"
	case KindDCMEBookmarks:
		return "dcme-bookmarks"
	case KindDCMELvz:
		return "dcme-lvz"
	default:
		return "other"
	}
}

// Chunk is one decoded record of the metadata container.
// Implementations are *Attribute, *Region and *Other.
type Chunk interface {
	Tag() Tag
	Kind() ChunkKind
}

// Attribute is a key/value pair split on the first '='
type Attribute struct {
	Key   string
	Value string
}

func (a *Attribute) Tag() Tag        { return TagAttribute }
func (a *Attribute) Kind() ChunkKind { return KindAttribute }

// Other holds a chunk this decoder does not interpret. The payload is
// kept verbatim.
type Other struct {
	Code    Tag
	Payload []byte
}

func (o *Other) Tag() Tag { return o.Code }

// Kind reports the recognized variant for tags that are known but
// carried opaquely (tileset, tile and DCME extensions).
func (o *Other) Kind() ChunkKind {
	switch o.Code {
	case TagTileset:
		return KindTileset
	case TagTile:
		return KindTile
	case TagDCMEWallTiles:
		return KindDCMEWallTiles
	case TagDCMETextTiles:
		return KindDCMETextTiles
	case TagDCMEBookmarks:
		return KindDCMEBookmarks
	case TagDCMELvz:
		return KindDCMELvz
	default:
		return KindOther
	}
}
