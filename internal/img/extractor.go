package img

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"
)

// Tileset layout: 19 columns by 10 rows of 16x16 tiles, tile id 1 at the
// top-left corner.
const (
	TileSize       = 16
	TilesetColumns = 19
	TilesetRows    = 10
	TilesetTiles   = TilesetColumns * TilesetRows
)

// Format selects the image encoding of extracted tiles
type Format string

const (
	FormatPNG Format = "png"
	FormatBMP Format = "bmp"
)

func (f Format) encode(w io.Writer, m image.Image) error {
	switch f {
	case FormatPNG:
		return png.Encode(w, m)
	case FormatBMP:
		return bmp.Encode(w, m)
	default:
		return fmt.Errorf("unknown image format: %s", f)
	}
}

// TileRect returns the tileset rectangle holding tile id, relative to
// the tileset origin. ok is false for ids outside 1..TilesetTiles.
func TileRect(id int) (image.Rectangle, bool) {
	if id < 1 || id > TilesetTiles {
		return image.Rectangle{}, false
	}
	col := (id - 1) % TilesetColumns
	row := (id - 1) / TilesetColumns
	return image.Rect(col*TileSize, row*TileSize, (col+1)*TileSize, (row+1)*TileSize), true
}

// Tile copies one tile graphic out of the tileset. ok is false when the
// tileset is too small to hold the tile.
func Tile(tileset image.Image, id int) (image.Image, bool) {
	r, ok := TileRect(id)
	if !ok {
		return nil, false
	}
	b := tileset.Bounds()
	r = r.Add(b.Min)
	if !r.In(b) {
		return nil, false
	}

	dst := image.NewRGBA(image.Rect(0, 0, TileSize, TileSize))
	draw.Draw(dst, dst.Bounds(), tileset, r.Min, draw.Src)
	return dst, true
}

// ExtractTiles writes every tile graphic of a tileset to outputDir as
// tile_NNN.<format>. Returns the list of written file paths.
func ExtractTiles(tileset image.Image, outputDir string, format Format) ([]string, error) {
	if tileset == nil {
		return nil, fmt.Errorf("level has no tileset")
	}

	// Create output directory if it doesn't exist
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var extractedFiles []string
	for id := 1; id <= TilesetTiles; id++ {
		tile, ok := Tile(tileset, id)
		if !ok {
			break
		}

		outputPath := filepath.Join(outputDir, fmt.Sprintf("tile_%03d.%s", id, format))
		outFile, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}

		if err := format.encode(outFile, tile); err != nil {
			outFile.Close()
			return nil, fmt.Errorf("failed to write tile %d: %w", id, err)
		}
		if err := outFile.Close(); err != nil {
			return nil, fmt.Errorf("failed to close %s: %w", outputPath, err)
		}

		extractedFiles = append(extractedFiles, outputPath)
	}

	if len(extractedFiles) == 0 {
		b := tileset.Bounds()
		return nil, fmt.Errorf("tileset %dx%d holds no complete tiles", b.Dx(), b.Dy())
	}

	return extractedFiles, nil
}
