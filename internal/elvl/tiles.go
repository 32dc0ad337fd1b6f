package elvl

import (
	"github.com/dyuri/lvltool/internal/model"
)

// Run record kinds, selected by the top 3 bits of the first byte.
// Odd kinds are the two-byte long forms.
const (
	runEmpty         = 0 // 1-32 empty tiles
	runEmptyLong     = 1 // 1-1024 empty tiles
	runPresent       = 2 // 1-32 present tiles
	runPresentLong   = 3 // 1-1024 present tiles
	runSkipRows      = 4 // 1-32 empty rows
	runSkipRowsLong  = 5 // 1-1024 empty rows
	runRepeatRow     = 6 // repeat previous row 1-32 times
	runRepeatRowLong = 7 // repeat previous row 1-1024 times
)

// DecodeTiles decodes one rTIL payload into region, starting at cur.
// It returns the cursor after the last record so the next rTIL chunk
// of the same region continues from there.
func DecodeTiles(data []byte, cur model.Cursor, region *model.Region) (model.Cursor, error) {
	pos := 0
	for pos < len(data) {
		b := data[pos]
		kind := b >> 5

		// Short forms store run-1 in the low 5 bits. Long forms store
		// run-1 in 10 bits: the low 2 bits of this byte, then the next byte.
		run := int(b&0x1f) + 1
		consumed := 1
		if kind&1 == 1 {
			if pos+1 >= len(data) {
				return cur, newError(TruncatedRunRecord, pos, "record kind %d needs 2 bytes, 1 remains", kind)
			}
			run = (int(b&0x03)<<8 | int(data[pos+1])) + 1
			consumed = 2
		}

		switch kind {
		case runEmpty, runEmptyLong:
			cur = advance(cur, run)

		case runPresent, runPresentLong:
			start := model.Index(cur.X, cur.Y)
			for i := 0; i < run; i++ {
				if !region.SetIndex(start + i) {
					return cur, newError(TileOutOfBounds, pos, "present run at (%d,%d) leaves the grid", cur.X, cur.Y)
				}
			}
			cur = advance(cur, run)

		case runSkipRows, runSkipRowsLong:
			cur.X = 0
			cur.Y += run

		case runRepeatRow, runRepeatRowLong:
			// Row 0 has no previous row; it repeats as empty.
			if cur.Y > 0 {
				if err := repeatRow(region, cur.Y-1, cur.Y, run); err != nil {
					err.Offset = pos
					return cur, err
				}
			}
			cur.X = 0
			cur.Y += run
		}

		pos += consumed
	}

	return cur, nil
}

// advance moves the cursor along a row, wrapping at most once
func advance(cur model.Cursor, run int) model.Cursor {
	cur.X += run
	if cur.X >= model.GridWidth {
		cur.X = 0
		cur.Y++
	}
	return cur
}

// repeatRow copies the presence of row src into rows dst..dst+count-1
func repeatRow(region *model.Region, src, dst, count int) *Error {
	for x := 0; x < model.GridWidth; x++ {
		if !region.Contains(x, src) {
			continue
		}
		for i := 0; i < count; i++ {
			if !region.Set(x, dst+i) {
				return newError(TileOutOfBounds, 0, "repeated row %d leaves the grid", dst+i)
			}
		}
	}
	return nil
}
