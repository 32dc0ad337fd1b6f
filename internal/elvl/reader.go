// Package elvl decodes the eLVL metadata container embedded in level
// files: attribute and region chunks, and the run-length encoded region
// tile data.
package elvl

import (
	"bytes"
	"encoding/binary"
	"unicode/utf8"

	"github.com/dyuri/lvltool/internal/logging"
	"github.com/dyuri/lvltool/internal/model"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// HeaderSize is the size of the container header: magic, total size, reserved
	HeaderSize = 12
	// ChunkHeaderSize is the size of a chunk header: tag, payload size
	ChunkHeaderSize = 8
	// Magic is "elvl" read little-endian
	Magic = 0x6c766c65
)

// Options configures a Reader
type Options struct {
	Logger   logrus.FieldLogger // Defaults to a discarding logger
	Parallel bool               // Decode chunk payloads concurrently
	Workers  int                // Concurrency limit when Parallel; <= 0 means unlimited
}

// Reader decodes eLVL chunk streams
type Reader struct {
	endian   binary.ByteOrder // eLVL is little-endian throughout
	log      logrus.FieldLogger
	parallel bool
	workers  int
}

// NewReader creates a new chunk reader
func NewReader(opts Options) *Reader {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Reader{
		endian:   binary.LittleEndian,
		log:      log,
		parallel: opts.Parallel,
		workers:  opts.Workers,
	}
}

// Header is the 12-byte container header
type Header struct {
	Magic     uint32
	TotalSize uint32 // Bytes of chunk data following the header
}

// ReadHeader parses the container header at the start of data. ok is
// false when data is too short or the magic does not match; the
// container is then absent rather than corrupt.
func (r *Reader) ReadHeader(data []byte) (Header, bool) {
	if len(data) < HeaderSize {
		return Header{}, false
	}
	h := Header{
		Magic:     r.endian.Uint32(data[0:4]),
		TotalSize: r.endian.Uint32(data[4:8]),
		// Bytes 8-11 are reserved
	}
	return h, h.Magic == Magic
}

// frame is one chunk located by the framing pass
type frame struct {
	tag     model.Tag
	offset  int
	payload []byte
}

// ReadContainer decodes the chunk stream that follows the container
// header. Iteration stops at a truncated trailing chunk or once
// declaredSize bytes have been consumed, whichever comes first.
func (r *Reader) ReadContainer(data []byte, declaredSize uint32) ([]model.Chunk, error) {
	frames := r.frameChunks(data, int64(declaredSize))
	chunks := make([]model.Chunk, len(frames))

	if r.parallel && len(frames) > 1 {
		var g errgroup.Group
		if r.workers > 0 {
			g.SetLimit(r.workers)
		}
		for i, f := range frames {
			i, f := i, f
			g.Go(func() error {
				chunk, err := r.decodeChunk(f)
				if err != nil {
					return err
				}
				chunks[i] = chunk
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, f := range frames {
			chunk, err := r.decodeChunk(f)
			if err != nil {
				return nil, err
			}
			chunks[i] = chunk
		}
	}

	r.log.WithFields(logrus.Fields{
		"chunks":   len(chunks),
		"declared": declaredSize,
	}).Debug("read metadata container")

	return chunks, nil
}

// frameChunks walks the chunk headers without interpreting payloads
func (r *Reader) frameChunks(data []byte, declaredSize int64) []frame {
	var frames []frame
	pos, consumed := 0, int64(0)

	for consumed < declaredSize {
		remaining := len(data) - pos
		if remaining < ChunkHeaderSize {
			break
		}
		tag := model.Tag(r.endian.Uint32(data[pos : pos+4]))
		size := int64(r.endian.Uint32(data[pos+4 : pos+8]))
		if int64(remaining-ChunkHeaderSize) < size {
			r.log.WithFields(logrus.Fields{
				"tag":    tag.String(),
				"offset": pos,
				"size":   size,
			}).Debug("truncated trailing chunk, stopping")
			break
		}

		start := pos + ChunkHeaderSize
		frames = append(frames, frame{
			tag:     tag,
			offset:  pos,
			payload: data[start : start+int(size)],
		})

		total := ChunkHeaderSize + align4(int(size))
		pos += total
		consumed += int64(total)
	}

	return frames
}

func (r *Reader) decodeChunk(f frame) (model.Chunk, error) {
	switch f.tag {
	case model.TagAttribute:
		attr, err := parseAttribute(f.payload)
		if err != nil {
			err.Offset = f.offset
			return nil, err
		}
		return attr, nil

	case model.TagRegion:
		region, err := r.ReadRegion(f.payload)
		if err != nil {
			return nil, err
		}
		return region, nil

	default:
		payload := make([]byte, len(f.payload))
		copy(payload, f.payload)
		return &model.Other{Code: f.tag, Payload: payload}, nil
	}
}

// parseAttribute splits an ATTR payload on the first '='
func parseAttribute(payload []byte) (*model.Attribute, *Error) {
	key, value, found := bytes.Cut(payload, []byte{'='})
	if !found {
		return nil, newError(MalformedAttribute, 0, "attribute %q has no key/value separator", payload)
	}
	if !utf8.Valid(key) || !utf8.Valid(value) {
		return nil, newError(InvalidUTF8, 0, "attribute text is not valid UTF-8")
	}
	return &model.Attribute{Key: string(key), Value: string(value)}, nil
}

// ReadRegion decodes a REGN payload, itself a stream of sub-chunks
func (r *Reader) ReadRegion(payload []byte) (*model.Region, error) {
	region := model.NewRegion()
	var cur model.Cursor

	pos := 0
	for len(payload)-pos > ChunkHeaderSize {
		tag := model.Tag(r.endian.Uint32(payload[pos : pos+4]))
		size := int64(r.endian.Uint32(payload[pos+4 : pos+8]))
		start := pos + ChunkHeaderSize
		if int64(len(payload)-start) < size {
			return nil, newError(TruncatedInput, pos, "region sub-chunk %s declares %d bytes, %d remain",
				tag, size, len(payload)-start)
		}
		body := payload[start : start+int(size)]

		switch tag {
		case model.TagRegionName:
			if !utf8.Valid(body) {
				return nil, newError(InvalidUTF8, pos, "region name is not valid UTF-8")
			}
			region.Name = string(body)
		case model.TagRegionTiles:
			next, err := DecodeTiles(body, cur, region)
			if err != nil {
				if e, ok := err.(*Error); ok {
					e.Offset += start
				}
				return nil, err
			}
			cur = next
		case model.TagRegionBase:
			region.Flags |= model.RegionBase
		case model.TagRegionNoAntiwarp:
			region.Flags |= model.RegionNoAntiwarp
		case model.TagRegionNoWeapons:
			region.Flags |= model.RegionNoWeapons
		case model.TagRegionNoFlags:
			region.Flags |= model.RegionNoFlags
		default:
			// rAWP, rPYC and unknown sub-chunks are skipped
		}

		pos = start + align4(int(size))
	}

	r.log.WithFields(logrus.Fields{
		"name":  region.Name,
		"tiles": region.TileCount(),
		"flags": region.Flags.String(),
	}).Debug("decoded region")

	return region, nil
}

// align4 rounds n up to the next multiple of 4
func align4(n int) int {
	return (n + 3) &^ 3
}
