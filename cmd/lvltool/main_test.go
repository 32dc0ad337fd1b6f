package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/dyuri/lvltool/internal/elvl"
	"github.com/dyuri/lvltool/internal/model"
)

func testMap() *model.Map {
	m := model.NewMap()
	m.Filename = "arena.lvl"
	m.SetTile(1, 1, 5)

	r := model.NewRegion()
	r.Name = "Base"
	r.Flags = model.RegionBase
	r.Set(2, 2)

	m.Chunks = append(m.Chunks,
		&model.Attribute{Key: "NAME", Value: "Arena"},
		r,
		&model.Other{Code: model.TagDCMEBookmarks, Payload: []byte{1, 2}},
	)
	return m
}

func TestSummarize(t *testing.T) {
	s := summarize(testMap(), 2048)

	if s.Tiles != 1 || s.FileSize != 2048 || s.Tileset != nil {
		t.Errorf("summary = %+v", s)
	}
	if s.Chunks["attribute"] != 1 || s.Chunks["region"] != 1 || s.Chunks["dcme-bookmarks"] != 1 {
		t.Errorf("Chunks = %v", s.Chunks)
	}
	if len(s.Regions) != 1 || s.Regions[0].Flags != "base" || s.Regions[0].Tiles != 1 {
		t.Errorf("Regions = %+v", s.Regions)
	}
	if len(s.Other) != 1 || s.Other[0].Tag != "DCBM" || s.Other[0].Size != 2 {
		t.Errorf("Other = %+v", s.Other)
	}

	var buf bytes.Buffer
	if err := outputInfoText(&buf, s, true); err != nil {
		t.Fatal(err)
	}
	want := "arena.lvl: Tiles=1 Attributes=1 Regions=1 Other=1\n"
	if buf.String() != want {
		t.Errorf("brief = %q, want %q", buf.String(), want)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		512:         "512 B",
		2048:        "2.0 KB",
		5 << 20:     "5.0 MB",
		1536 * 1024: "1.5 MB",
	}
	for n, want := range tests {
		if got := formatBytes(n); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestValidatorWarnings(t *testing.T) {
	m := testMap()
	empty := model.NewRegion()
	empty.Name = "Base"
	m.Chunks = append(m.Chunks,
		empty,
		&model.Attribute{Key: "name", Value: "Other"},
		&model.Other{Code: model.MakeTag("XTRA")},
	)

	v := newValidator("arena.lvl", false)
	v.validate(m)

	if v.hasErrors() {
		t.Errorf("errors = %v, want none", v.errors)
	}
	joined := strings.Join(v.warnings, "\n")
	for _, want := range []string{"Duplicate region name", "has no tiles", "appears 2 times", "Unknown chunk XTRA"} {
		if !strings.Contains(joined, want) {
			t.Errorf("warnings missing %q:\n%s", want, joined)
		}
	}
	if strings.Contains(joined, "DCBM") {
		t.Error("known DCME chunk reported as unknown")
	}
}

func TestValidatorDecodeError(t *testing.T) {
	v := newValidator("arena.lvl", false)
	err := &elvl.Error{Kind: elvl.InvalidUTF8, Offset: 24, Message: "region name is not valid UTF-8"}
	v.decodeError(errors.Join(errors.New("parse level file"), err))

	if !v.hasErrors() {
		t.Fatal("decode error not recorded")
	}
	if !strings.Contains(v.errors[0], "offset 24") {
		t.Errorf("error = %q, want offset", v.errors[0])
	}
}
