// Package models tests for elements, pages, assets and serialization.
package models

import (
	"bytes"
	"testing"
)

// =====================================================
// Point Tests
// =====================================================

// TestPoint_jsonRounding verifies coordinates serialize rounded to 0.1.
func TestPoint_jsonRounding(t *testing.T) {
	p := Point{X: 1.23456, Y: 2.789, Pressure: 0.55}

	data, err := p.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(data) != "[1.2,2.8,0.6]" {
		t.Errorf("MarshalJSON() = %s, want [1.2,2.8,0.6]", data)
	}
}

// TestPoint_twoValueDecode verifies [x, y] decodes with default pressure.
func TestPoint_twoValueDecode(t *testing.T) {
	var p Point
	if err := p.UnmarshalJSON([]byte("[3.5,4.5]")); err != nil {
		t.Fatalf("UnmarshalJSON() error = %v", err)
	}
	if p.X != 3.5 || p.Y != 4.5 || p.Pressure != 1.0 {
		t.Errorf("decoded point = %+v, want {3.5 4.5 1}", p)
	}
}

// =====================================================
// Element Identity Tests
// =====================================================

// TestSameIdentity_matchesOnID verifies identity ignores field differences.
func TestSameIdentity_matchesOnID(t *testing.T) {
	a := NewStroke([]Point{NewPoint(0, 0)}, "#000000", 2.0, "pen")
	b := &Stroke{ElementID: a.ElementID, Color: "#ff0000", Thickness: 9.0}

	if !SameIdentity(a, b) {
		t.Error("elements with the same id must share identity")
	}
}

// TestSameIdentity_distinctIDs verifies different ids never match.
func TestSameIdentity_distinctIDs(t *testing.T) {
	a := NewText(NewPoint(0, 0), "hello", "#000000", 14)
	b := NewText(NewPoint(0, 0), "hello", "#000000", 14)

	if SameIdentity(a, b) {
		t.Error("structurally equal elements with distinct ids are not the same")
	}
	if SameIdentity(a, nil) {
		t.Error("nil never shares identity")
	}
}

// =====================================================
// Page Serialization Tests
// =====================================================

// TestPage_msgpackRoundTrip verifies every element variant survives encoding.
func TestPage_msgpackRoundTrip(t *testing.T) {
	page := NewPage()
	stroke := NewStroke([]Point{NewPoint(1, 2), NewPoint(3, 4)}, "#112233", 2.5, "pen")
	text := NewText(NewPoint(10, 20), "meeting notes", "#000000", 14)
	image := NewImage(NewPoint(5, 5), 120, 80)
	image.AssetID = "a1b2"
	image.Rotation = 90
	video := NewVideo(NewPoint(7, 7), 320, 240)
	video.AssetID = "v1"
	video.ThumbAssetID = "t1"
	video.Duration = 12.5
	memo := NewVoiceMemo(NewPoint(9, 9), 33.0, 1700000000)
	memo.Transcript = "remember the milk"
	memo.AssetID = "m1"

	page.AddElement(stroke)
	page.AddElement(text)
	page.AddElement(image)
	page.AddElement(video)
	page.AddElement(memo)

	data, err := EncodePage(page)
	if err != nil {
		t.Fatalf("EncodePage() error = %v", err)
	}
	got, err := DecodePage(data)
	if err != nil {
		t.Fatalf("DecodePage() error = %v", err)
	}

	if got.ID != page.ID {
		t.Errorf("page id = %s, want %s", got.ID, page.ID)
	}
	if len(got.Elements) != 5 {
		t.Fatalf("elements = %d, want 5", len(got.Elements))
	}

	gs, ok := got.Elements[0].(*Stroke)
	if !ok {
		t.Fatalf("element 0 is %T, want *Stroke", got.Elements[0])
	}
	if len(gs.Points) != 2 || gs.Color != "#112233" || gs.Tool != "pen" {
		t.Errorf("stroke did not round-trip: %+v", gs)
	}

	gt, ok := got.Elements[1].(*Text)
	if !ok || gt.Content != "meeting notes" || gt.SizePx != 14 {
		t.Errorf("text did not round-trip: %+v", got.Elements[1])
	}

	gi, ok := got.Elements[2].(*Image)
	if !ok || gi.AssetID != "a1b2" || gi.Rotation != 90 || gi.Width != 120 {
		t.Errorf("image did not round-trip: %+v", got.Elements[2])
	}

	gv, ok := got.Elements[3].(*Video)
	if !ok || gv.ThumbAssetID != "t1" || gv.Duration != 12.5 {
		t.Errorf("video did not round-trip: %+v", got.Elements[3])
	}

	gm, ok := got.Elements[4].(*VoiceMemo)
	if !ok || gm.Transcript != "remember the milk" || gm.AssetID != "m1" {
		t.Errorf("voice memo did not round-trip: %+v", got.Elements[4])
	}
}

// TestPage_jsonRoundTrip verifies the JSON export path matches msgpack.
func TestPage_jsonRoundTrip(t *testing.T) {
	page := NewPage()
	page.AddElement(NewText(NewPoint(1, 1), "json path", "#333333", 12))

	data, err := EncodePageJSON(page)
	if err != nil {
		t.Fatalf("EncodePageJSON() error = %v", err)
	}
	got, err := DecodePageJSON(data)
	if err != nil {
		t.Fatalf("DecodePageJSON() error = %v", err)
	}
	if len(got.Elements) != 1 {
		t.Fatalf("elements = %d, want 1", len(got.Elements))
	}
	if txt := got.Elements[0].(*Text); txt.Content != "json path" {
		t.Errorf("text content = %q, want %q", txt.Content, "json path")
	}
}

// TestPage_removeElement verifies removal is identity-based.
func TestPage_removeElement(t *testing.T) {
	page := NewPage()
	s := NewStroke([]Point{NewPoint(0, 0)}, "#000", 1, "pen")
	page.AddElement(s)

	page.RemoveElement(&Stroke{ElementID: s.ElementID})

	if len(page.Elements) != 0 {
		t.Errorf("elements = %d, want 0", len(page.Elements))
	}
}

// =====================================================
// Asset Tests
// =====================================================

// TestAsset_checksum verifies checksum computation and verification.
func TestAsset_checksum(t *testing.T) {
	a := NewAsset(AssetImage, "image/png", []byte("pixels"))

	if !a.VerifyChecksum() {
		t.Error("fresh asset must verify")
	}

	a.Data = []byte("different pixels")
	if a.VerifyChecksum() {
		t.Error("mutated data must fail verification")
	}
	if a.Checksum != ChecksumBytes([]byte("pixels")) {
		t.Error("checksum must not be silently recomputed")
	}
}

// TestAssetIndex_entriesRoundTrip verifies manifest entries rebuild the index.
func TestAssetIndex_entriesRoundTrip(t *testing.T) {
	ai := NewAssetIndex()
	a := NewAsset(AssetAudio, "audio/wav", []byte{1, 2, 3})
	ai.Add(a)

	entries := ai.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Size != 3 || entries[0].MIME != "audio/wav" {
		t.Errorf("entry = %+v", entries[0])
	}

	rebuilt := FromEntries(entries, map[string][]byte{a.ID: a.Data})
	got := rebuilt.Get(a.ID)
	if got == nil || !bytes.Equal(got.Data, a.Data) || got.Checksum != a.Checksum {
		t.Error("index did not rebuild from entries")
	}
}

// TestAssetIndex_placeholderBytes verifies entries without bytes are valid.
func TestAssetIndex_placeholderBytes(t *testing.T) {
	entries := []ManifestEntry{{ID: "x", Type: AssetImage, MIME: "image/png", Checksum: "abc", Size: 10}}

	rebuilt := FromEntries(entries, nil)
	got := rebuilt.Get("x")
	if got == nil {
		t.Fatal("placeholder asset missing")
	}
	if len(got.Data) != 0 {
		t.Error("placeholder asset should carry empty data")
	}
}
