package elvl

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/dyuri/lvltool/internal/model"
)

// encodeRun appends one run record, using the short form when it fits
func encodeRun(buf []byte, short byte, n int) []byte {
	if n <= 32 {
		return append(buf, short<<5|byte(n-1))
	}
	long := short + 1
	return append(buf, long<<5|byte((n-1)>>8)&0x03, byte((n-1)&0xff))
}

// encodeRegion is a reference encoder for region tile data. Every row
// it emits leaves the cursor at the start of the next row.
func encodeRegion(cells map[model.Cursor]bool) []byte {
	rows := make([][]bool, model.GridHeight)
	last := -1
	for c := range cells {
		if rows[c.Y] == nil {
			rows[c.Y] = make([]bool, model.GridWidth)
		}
		rows[c.Y][c.X] = true
		last = max(last, c.Y)
	}

	sameRow := func(a, b []bool) bool {
		if a == nil || b == nil {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}

	var buf []byte
	for y := 0; y <= last; {
		if rows[y] == nil {
			n := 0
			for y+n <= last && rows[y+n] == nil {
				n++
			}
			buf = encodeRun(buf, runSkipRows, n)
			y += n
			continue
		}

		if y > 0 && sameRow(rows[y], rows[y-1]) {
			n := 0
			for y+n <= last && sameRow(rows[y+n], rows[y-1]) {
				n++
			}
			buf = encodeRun(buf, runRepeatRow, n)
			y += n
			continue
		}

		row := rows[y]
		for x := 0; x < model.GridWidth; {
			present := row[x]
			n := 0
			for x+n < model.GridWidth && row[x+n] == present {
				n++
			}
			if present {
				buf = encodeRun(buf, runPresent, n)
			} else {
				buf = encodeRun(buf, runEmpty, n)
			}
			x += n
		}
		y++
	}
	return buf
}

func regionCells(r *model.Region) map[model.Cursor]bool {
	cells := make(map[model.Cursor]bool)
	for _, c := range r.Tiles() {
		cells[c] = true
	}
	return cells
}

func TestDecodeShortRunLengths(t *testing.T) {
	r := model.NewRegion()

	// Kind 0 with all low bits set: 32 empty tiles
	cur, err := DecodeTiles([]byte{0x1f}, model.Cursor{}, r)
	if err != nil {
		t.Fatalf("DecodeTiles failed: %v", err)
	}
	if cur != (model.Cursor{X: 32, Y: 0}) {
		t.Errorf("cursor = %+v, want {32 0}", cur)
	}

	// Kind 2 with no low bits: 1 present tile
	cur, err = DecodeTiles([]byte{0x40}, cur, r)
	if err != nil {
		t.Fatalf("DecodeTiles failed: %v", err)
	}
	if cur != (model.Cursor{X: 33, Y: 0}) {
		t.Errorf("cursor = %+v, want {33 0}", cur)
	}
	if !r.Contains(32, 0) || r.TileCount() != 1 {
		t.Errorf("expected only (32,0) present, count = %d", r.TileCount())
	}
}

func TestDecodeLongRunLengths(t *testing.T) {
	r := model.NewRegion()

	// Kind 1, minimum: run 1
	cur, err := DecodeTiles([]byte{0x20, 0x00}, model.Cursor{}, r)
	if err != nil {
		t.Fatalf("DecodeTiles failed: %v", err)
	}
	if cur != (model.Cursor{X: 1, Y: 0}) {
		t.Errorf("cursor = %+v, want {1 0}", cur)
	}

	// Kind 3, maximum: run 1024 fills the rest of row 0 and wraps into row 1
	cur, err = DecodeTiles([]byte{0x63, 0xff}, model.Cursor{}, r)
	if err != nil {
		t.Fatalf("DecodeTiles failed: %v", err)
	}
	if cur != (model.Cursor{X: 0, Y: 1}) {
		t.Errorf("cursor = %+v, want {0 1}", cur)
	}
	if r.TileCount() != 1024 {
		t.Errorf("TileCount = %d, want 1024", r.TileCount())
	}
}

func TestDecodeRowWraparound(t *testing.T) {
	r := model.NewRegion()

	cur, err := DecodeTiles([]byte{runPresent<<5 | 4}, model.Cursor{X: 1022, Y: 7}, r)
	if err != nil {
		t.Fatalf("DecodeTiles failed: %v", err)
	}

	want := map[model.Cursor]bool{
		{X: 1022, Y: 7}: true,
		{X: 1023, Y: 7}: true,
		{X: 0, Y: 8}:    true,
		{X: 1, Y: 8}:    true,
		{X: 2, Y: 8}:    true,
	}
	got := regionCells(r)
	if len(got) != len(want) {
		t.Fatalf("got %d cells, want %d", len(got), len(want))
	}
	for c := range want {
		if !got[c] {
			t.Errorf("cell %+v missing", c)
		}
	}
	if cur != (model.Cursor{X: 0, Y: 8}) {
		t.Errorf("cursor = %+v, want {0 8}", cur)
	}
}

func TestDecodeSkipRows(t *testing.T) {
	r := model.NewRegion()

	cur, err := DecodeTiles([]byte{runSkipRows<<5 | 2}, model.Cursor{X: 17, Y: 3}, r)
	if err != nil {
		t.Fatalf("DecodeTiles failed: %v", err)
	}
	if cur != (model.Cursor{X: 0, Y: 6}) {
		t.Errorf("cursor = %+v, want {0 6}", cur)
	}

	cur, err = DecodeTiles([]byte{runSkipRowsLong<<5 | 0x01, 0x00}, cur, r)
	if err != nil {
		t.Fatalf("DecodeTiles failed: %v", err)
	}
	if cur != (model.Cursor{X: 0, Y: 6 + 257}) {
		t.Errorf("cursor = %+v, want {0 263}", cur)
	}
	if r.TileCount() != 0 {
		t.Errorf("TileCount = %d, want 0", r.TileCount())
	}
}

func TestDecodeRepeatRow(t *testing.T) {
	r := model.NewRegion()
	r.Set(3, 4)
	r.Set(9, 4)

	cur, err := DecodeTiles([]byte{runRepeatRow<<5 | 1}, model.Cursor{X: 0, Y: 5}, r)
	if err != nil {
		t.Fatalf("DecodeTiles failed: %v", err)
	}

	want := map[model.Cursor]bool{
		{X: 3, Y: 4}: true, {X: 9, Y: 4}: true,
		{X: 3, Y: 5}: true, {X: 9, Y: 5}: true,
		{X: 3, Y: 6}: true, {X: 9, Y: 6}: true,
	}
	got := regionCells(r)
	if len(got) != len(want) {
		t.Fatalf("got %d cells, want %d: %v", len(got), len(want), got)
	}
	for c := range want {
		if !got[c] {
			t.Errorf("cell %+v missing", c)
		}
	}
	if r.TileCount() != 6 {
		t.Errorf("TileCount = %d, want 6", r.TileCount())
	}
	if cur != (model.Cursor{X: 0, Y: 7}) {
		t.Errorf("cursor = %+v, want {0 7}", cur)
	}
}

func TestDecodeRepeatRowAtTop(t *testing.T) {
	r := model.NewRegion()

	cur, err := DecodeTiles([]byte{runRepeatRowLong<<5 | 0x00, 0x09}, model.Cursor{}, r)
	if err != nil {
		t.Fatalf("DecodeTiles failed: %v", err)
	}
	if r.TileCount() != 0 {
		t.Errorf("TileCount = %d, want 0", r.TileCount())
	}
	if cur != (model.Cursor{X: 0, Y: 10}) {
		t.Errorf("cursor = %+v, want {0 10}", cur)
	}
}

func TestDecodeOverlapKeepsCount(t *testing.T) {
	r := model.NewRegion()

	// Five present tiles, then the same five again from the same start
	_, err := DecodeTiles([]byte{runPresent<<5 | 4}, model.Cursor{X: 10, Y: 2}, r)
	if err != nil {
		t.Fatalf("DecodeTiles failed: %v", err)
	}
	if r.TileCount() != 5 {
		t.Fatalf("TileCount = %d, want 5", r.TileCount())
	}
	_, err = DecodeTiles([]byte{runPresent<<5 | 2}, model.Cursor{X: 12, Y: 2}, r)
	if err != nil {
		t.Fatalf("DecodeTiles failed: %v", err)
	}
	if r.TileCount() != 5 {
		t.Errorf("TileCount after overlap = %d, want 5", r.TileCount())
	}
}

func TestDecodeTruncatedLongRecord(t *testing.T) {
	for _, kind := range []byte{runEmptyLong, runPresentLong, runSkipRowsLong, runRepeatRowLong} {
		r := model.NewRegion()
		_, err := DecodeTiles([]byte{0x41, kind << 5}, model.Cursor{}, r)
		if !errors.Is(err, ErrTruncatedRunRecord) {
			t.Errorf("kind %d: err = %v, want truncated run record", kind, err)
		}
	}
}

func TestDecodeOutOfBounds(t *testing.T) {
	r := model.NewRegion()

	_, err := DecodeTiles([]byte{runPresent << 5}, model.Cursor{X: 0, Y: model.GridHeight}, r)
	if !errors.Is(err, ErrTileOutOfBounds) {
		t.Errorf("err = %v, want tile out of bounds", err)
	}

	// Repeating a non-empty last row past the bottom of the grid
	r = model.NewRegion()
	r.Set(5, model.GridHeight-1)
	_, err = DecodeTiles([]byte{runRepeatRow << 5}, model.Cursor{X: 0, Y: model.GridHeight}, r)
	if !errors.Is(err, ErrTileOutOfBounds) {
		t.Errorf("repeat: err = %v, want tile out of bounds", err)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	cells := make(map[model.Cursor]bool)

	// A filled rectangle gives repeated rows
	for y := 100; y < 140; y++ {
		for x := 200; x < 260; x++ {
			cells[model.Cursor{X: x, Y: y}] = true
		}
	}
	// A full-width band exercises long present runs
	for x := 0; x < model.GridWidth; x++ {
		cells[model.Cursor{X: x, Y: 500}] = true
	}
	// Scattered cells
	for i := 0; i < 2000; i++ {
		cells[model.Cursor{X: rng.Intn(model.GridWidth), Y: rng.Intn(model.GridHeight)}] = true
	}
	cells[model.Cursor{X: 1023, Y: 1023}] = true

	data := encodeRegion(cells)
	r := model.NewRegion()
	if _, err := DecodeTiles(data, model.Cursor{}, r); err != nil {
		t.Fatalf("DecodeTiles failed: %v", err)
	}

	if r.TileCount() != len(cells) {
		t.Errorf("TileCount = %d, want %d", r.TileCount(), len(cells))
	}
	got := regionCells(r)
	if len(got) != len(cells) {
		t.Fatalf("got %d cells, want %d", len(got), len(cells))
	}
	for c := range cells {
		if !got[c] {
			t.Fatalf("cell %+v missing after round trip", c)
		}
	}
}

func TestDecodeSplitAcrossChunks(t *testing.T) {
	cells := map[model.Cursor]bool{}
	for y := 0; y < 8; y++ {
		for x := y; x < y+40; x++ {
			cells[model.Cursor{X: x, Y: y}] = true
		}
	}
	data := encodeRegion(cells)

	// Split at every record boundary: the cursor threads through
	r := model.NewRegion()
	var cur model.Cursor
	for pos := 0; pos < len(data); {
		n := 1
		if (data[pos]>>5)&1 == 1 {
			n = 2
		}
		var err error
		cur, err = DecodeTiles(data[pos:pos+n], cur, r)
		if err != nil {
			t.Fatalf("DecodeTiles at %d failed: %v", pos, err)
		}
		pos += n
	}

	if r.TileCount() != len(cells) {
		t.Errorf("TileCount = %d, want %d", r.TileCount(), len(cells))
	}
}
