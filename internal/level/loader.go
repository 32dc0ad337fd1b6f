// Package level loads SubSpace level files: an optional bitmap tileset,
// the tile grid records and the eLVL metadata container.
package level

import (
	"bytes"
	"encoding/binary"
	"image"
	"io"

	"github.com/dyuri/lvltool/internal/elvl"
	"github.com/dyuri/lvltool/internal/logging"
	"github.com/dyuri/lvltool/internal/model"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/bmp"
)

// TileRecordSize is the size of one packed tile grid record
const TileRecordSize = 4

// bitmapHeaderSize covers the signature, tile data offset and metadata offset
const bitmapHeaderSize = 10

// ImageDecoder decodes the tileset bitmap that prefixes a level file
type ImageDecoder interface {
	Decode(r io.Reader) (image.Image, error)
}

// ImageDecoderFunc adapts a function to ImageDecoder
type ImageDecoderFunc func(r io.Reader) (image.Image, error)

func (f ImageDecoderFunc) Decode(r io.Reader) (image.Image, error) {
	return f(r)
}

// BMPDecoder decodes Windows bitmaps, the tileset format of level files
var BMPDecoder ImageDecoder = ImageDecoderFunc(bmp.Decode)

// Options configures a Loader
type Options struct {
	Decoder     ImageDecoder       // Tileset decoder, defaults to BMPDecoder
	Logger      logrus.FieldLogger // Defaults to a discarding logger
	Parallel    bool               // Decode metadata regions concurrently
	Workers     int                // Concurrency limit when Parallel
	SkipTileset bool               // Leave Map.Tileset nil
}

// Loader decodes level files held in memory
type Loader struct {
	endian      binary.ByteOrder
	decoder     ImageDecoder
	log         logrus.FieldLogger
	elvl        *elvl.Reader
	skipTileset bool
}

// NewLoader creates a new level loader
func NewLoader(opts Options) *Loader {
	decoder := opts.Decoder
	if decoder == nil {
		decoder = BMPDecoder
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Loader{
		endian:  binary.LittleEndian,
		decoder: decoder,
		log:     log,
		elvl: elvl.NewReader(elvl.Options{
			Logger:   log,
			Parallel: opts.Parallel,
			Workers:  opts.Workers,
		}),
		skipTileset: opts.SkipTileset,
	}
}

// Load decodes a complete level file. Input shorter than 2 bytes is an
// empty level. A file without the "BM" signature holds tile records
// only. No partial map is returned on error.
func (l *Loader) Load(data []byte) (*model.Map, error) {
	m := model.NewMap()

	if len(data) < 2 {
		return m, nil
	}

	tileOffset, metaOffset := 0, 0

	if data[0] == 'B' && data[1] == 'M' {
		if len(data) < bitmapHeaderSize {
			return nil, &elvl.Error{
				Kind:    elvl.TruncatedInput,
				Message: "bitmap header needs 10 bytes",
			}
		}

		// Offset 0x02: tile data offset (the bitmap's file size field)
		tileOffset = int(l.endian.Uint32(data[2:6]))
		// Offset 0x06: metadata offset (the bitmap's reserved field)
		metaOffset = int(l.endian.Uint32(data[6:10]))

		if tileOffset > len(data) {
			return nil, &elvl.Error{
				Kind:    elvl.TruncatedInput,
				Offset:  2,
				Message: "tile data offset beyond end of file",
			}
		}

		if !l.skipTileset {
			img, err := l.decoder.Decode(bytes.NewReader(data[:tileOffset]))
			if err != nil {
				return nil, &elvl.Error{
					Kind:    elvl.ImageDecodeFailure,
					Message: "decode tileset",
					Cause:   err,
				}
			}
			m.Tileset = img
		}
	}

	if err := l.readTiles(m, data[tileOffset:], tileOffset); err != nil {
		return nil, err
	}

	chunks, err := l.readMetadata(data, metaOffset)
	if err != nil {
		return nil, err
	}
	m.Chunks = chunks

	l.log.WithFields(logrus.Fields{
		"tiles":   m.TileCount(),
		"chunks":  len(m.Chunks),
		"tileset": m.Tileset != nil,
	}).Debug("loaded level")

	return m, nil
}

// readTiles decodes packed tile records until fewer than 4 bytes remain.
// Bits 0-11 hold x, bits 12-23 hold y, bits 24-31 hold the tile id.
func (l *Loader) readTiles(m *model.Map, data []byte, base int) error {
	for pos := 0; len(data)-pos >= TileRecordSize; pos += TileRecordSize {
		v := l.endian.Uint32(data[pos : pos+TileRecordSize])
		x := int(v & 0xfff)
		y := int((v >> 12) & 0xfff)
		id := model.TileID(v >> 24)

		if !m.SetTile(x, y, id) {
			return &elvl.Error{
				Kind:    elvl.TileOutOfBounds,
				Offset:  base + pos,
				Message: "tile record outside the 1024x1024 grid",
			}
		}
	}
	return nil
}

// readMetadata locates and decodes the eLVL container. A missing or
// unrecognized container yields no chunks.
func (l *Loader) readMetadata(data []byte, offset int) ([]model.Chunk, error) {
	chunks := make([]model.Chunk, 0)

	if offset == 0 {
		return chunks, nil
	}
	if offset+elvl.HeaderSize > len(data) {
		l.log.WithField("offset", offset).Debug("metadata header beyond end of file, ignoring")
		return chunks, nil
	}

	header, ok := l.elvl.ReadHeader(data[offset : offset+elvl.HeaderSize])
	if !ok {
		l.log.WithField("magic", header.Magic).Debug("metadata magic mismatch, ignoring")
		return chunks, nil
	}

	decoded, err := l.elvl.ReadContainer(data[offset+elvl.HeaderSize:], header.TotalSize)
	if err != nil {
		return nil, err
	}
	return append(chunks, decoded...), nil
}
