// Package lvl provides functions for reading SubSpace level files.
//
// A level file is an optional bitmap tileset, a grid of packed tile
// records and an optional eLVL metadata container holding attributes
// and named regions.
//
// Example usage:
//
//	m, err := lvl.LoadFile("arena.lvl", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	name, _ := m.Attribute("NAME")
//	for _, r := range m.Regions() {
//	    fmt.Println(r.Name, r.TileCount())
//	}
package lvl

import (
	"fmt"
	"os"

	"github.com/dyuri/lvltool/internal/elvl"
	"github.com/dyuri/lvltool/internal/level"
	"github.com/dyuri/lvltool/internal/model"
)

type (
	Map          = model.Map
	Chunk        = model.Chunk
	Region       = model.Region
	Attribute    = model.Attribute
	Other        = model.Other
	Options      = level.Options
	ImageDecoder = level.ImageDecoder
	Error        = elvl.Error
)

// Load decodes a level file held in memory. opts may be nil.
//
// Example:
//
//	data, _ := os.ReadFile("arena.lvl")
//	m, err := Load(data, &Options{SkipTileset: true})
func Load(data []byte, opts *Options) (*Map, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	return level.NewLoader(o).Load(data)
}

// LoadFile reads and decodes a level file from disk. opts may be nil.
func LoadFile(path string, opts *Options) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read level file: %w", err)
	}
	m, err := Load(data, opts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	m.Filename = path
	return m, nil
}

// Common errors, for use with errors.Is
var (
	ErrTruncatedInput     = elvl.ErrTruncatedInput
	ErrMalformedAttribute = elvl.ErrMalformedAttribute
	ErrInvalidUTF8        = elvl.ErrInvalidUTF8
	ErrTileOutOfBounds    = elvl.ErrTileOutOfBounds
	ErrTruncatedRunRecord = elvl.ErrTruncatedRunRecord
	ErrImageDecodeFailure = elvl.ErrImageDecodeFailure
)
