package models

// Wire records for pages and elements. Both the msgpack container encoding
// and the unencrypted JSON export use the same compact key set; optional
// fields are omitted so older readers tolerate newer writers.

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

type elementRecord struct {
	Type         string    `msgpack:"type" json:"type"`
	ID           string    `msgpack:"id" json:"id"`
	Pos          []float64 `msgpack:"pos,omitempty" json:"pos,omitempty"`
	Points       []Point   `msgpack:"points,omitempty" json:"points,omitempty"`
	Color        string    `msgpack:"color,omitempty" json:"color,omitempty"`
	Thickness    float64   `msgpack:"thickness,omitempty" json:"thickness,omitempty"`
	Tool         string    `msgpack:"tool,omitempty" json:"tool,omitempty"`
	Text         string    `msgpack:"text,omitempty" json:"text,omitempty"`
	SizePx       float64   `msgpack:"size_px,omitempty" json:"size_px,omitempty"`
	Width        float64   `msgpack:"width,omitempty" json:"width,omitempty"`
	Height       float64   `msgpack:"height,omitempty" json:"height,omitempty"`
	Rotation     float64   `msgpack:"rotation,omitempty" json:"rotation,omitempty"`
	Path         string    `msgpack:"path,omitempty" json:"path,omitempty"`
	Data         []byte    `msgpack:"data,omitempty" json:"data,omitempty"`
	Thumbnail    []byte    `msgpack:"thumbnail,omitempty" json:"thumbnail,omitempty"`
	Transcript   string    `msgpack:"transcript,omitempty" json:"transcript,omitempty"`
	Duration     float64   `msgpack:"duration,omitempty" json:"duration,omitempty"`
	CreatedAt    float64   `msgpack:"created_at,omitempty" json:"created_at,omitempty"`
	AssetID      string    `msgpack:"asset_id,omitempty" json:"asset_id,omitempty"`
	ThumbAssetID string    `msgpack:"thumb_asset_id,omitempty" json:"thumb_asset_id,omitempty"`
}

type pageRecord struct {
	Elements  []elementRecord        `msgpack:"elements" json:"elements"`
	ID        string                 `msgpack:"id" json:"id"`
	CreatedAt float64                `msgpack:"created_at" json:"created_at"`
	Metadata  map[string]interface{} `msgpack:"metadata" json:"metadata"`
}

// NotebookRecord is the legacy flat-file shape of one notebook: pages with
// inline element payloads plus free-form metadata, no notebook id.
type NotebookRecord struct {
	Pages    []pageRecord           `msgpack:"pages" json:"pages"`
	Metadata map[string]interface{} `msgpack:"metadata" json:"metadata"`
}

func posOf(p Point) []float64 {
	return []float64{round1(p.X), round1(p.Y)}
}

func pointAt(pos []float64) Point {
	p := Point{Pressure: 1.0}
	if len(pos) > 0 {
		p.X = pos[0]
	}
	if len(pos) > 1 {
		p.Y = pos[1]
	}
	return p
}

func recordFromElement(el Element) elementRecord {
	switch e := el.(type) {
	case *Stroke:
		return elementRecord{
			Type:      string(TypeStroke),
			ID:        e.ElementID,
			Points:    e.Points,
			Color:     e.Color,
			Thickness: e.Thickness,
			Tool:      e.Tool,
		}
	case *Text:
		return elementRecord{
			Type:   string(TypeText),
			ID:     e.ElementID,
			Pos:    posOf(e.Position),
			Text:   e.Content,
			Color:  e.Color,
			SizePx: e.SizePx,
		}
	case *Image:
		return elementRecord{
			Type:     string(TypeImage),
			ID:       e.ElementID,
			Pos:      posOf(e.Position),
			Width:    e.Width,
			Height:   e.Height,
			Rotation: e.Rotation,
			Path:     e.Path,
			Data:     e.Data,
			AssetID:  e.AssetID,
		}
	case *Video:
		return elementRecord{
			Type:         string(TypeVideo),
			ID:           e.ElementID,
			Pos:          posOf(e.Position),
			Width:        e.Width,
			Height:       e.Height,
			Duration:     e.Duration,
			Path:         e.Path,
			Data:         e.Data,
			Thumbnail:    e.Thumbnail,
			AssetID:      e.AssetID,
			ThumbAssetID: e.ThumbAssetID,
		}
	case *VoiceMemo:
		return elementRecord{
			Type:       string(TypeVoiceMemo),
			ID:         e.ElementID,
			Pos:        posOf(e.Position),
			Duration:   e.Duration,
			CreatedAt:  e.CreatedAt,
			Path:       e.Path,
			Data:       e.Data,
			Transcript: e.Transcript,
			AssetID:    e.AssetID,
		}
	}
	return elementRecord{}
}

// elementFromRecord rebuilds the typed element. Unknown types yield nil so
// readers skip elements written by a newer version.
func elementFromRecord(rec elementRecord) Element {
	switch ElementType(rec.Type) {
	case TypeStroke:
		return &Stroke{
			ElementID: rec.ID,
			Points:    rec.Points,
			Color:     rec.Color,
			Thickness: rec.Thickness,
			Tool:      rec.Tool,
		}
	case TypeText:
		return &Text{
			ElementID: rec.ID,
			Position:  pointAt(rec.Pos),
			Content:   rec.Text,
			Color:     rec.Color,
			SizePx:    rec.SizePx,
		}
	case TypeImage:
		return &Image{
			ElementID: rec.ID,
			Position:  pointAt(rec.Pos),
			Width:     rec.Width,
			Height:    rec.Height,
			Rotation:  rec.Rotation,
			Path:      rec.Path,
			Data:      rec.Data,
			AssetID:   rec.AssetID,
		}
	case TypeVideo:
		return &Video{
			ElementID:    rec.ID,
			Position:     pointAt(rec.Pos),
			Width:        rec.Width,
			Height:       rec.Height,
			Duration:     rec.Duration,
			Path:         rec.Path,
			Data:         rec.Data,
			Thumbnail:    rec.Thumbnail,
			AssetID:      rec.AssetID,
			ThumbAssetID: rec.ThumbAssetID,
		}
	case TypeVoiceMemo:
		return &VoiceMemo{
			ElementID:  rec.ID,
			Position:   pointAt(rec.Pos),
			Duration:   rec.Duration,
			CreatedAt:  rec.CreatedAt,
			Path:       rec.Path,
			Data:       rec.Data,
			Transcript: rec.Transcript,
			AssetID:    rec.AssetID,
		}
	}
	return nil
}

func recordFromPage(p *Page) pageRecord {
	recs := make([]elementRecord, 0, len(p.Elements))
	for _, el := range p.Elements {
		recs = append(recs, recordFromElement(el))
	}
	return pageRecord{
		Elements:  recs,
		ID:        p.ID,
		CreatedAt: p.CreatedAt,
		Metadata:  p.Metadata,
	}
}

func pageFromRecord(rec pageRecord) *Page {
	elements := make([]Element, 0, len(rec.Elements))
	for _, er := range rec.Elements {
		if el := elementFromRecord(er); el != nil {
			elements = append(elements, el)
		}
	}
	meta := rec.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	return &Page{
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt,
		Elements:  elements,
		Metadata:  meta,
	}
}

// EncodePage serializes a page to msgpack.
func EncodePage(p *Page) ([]byte, error) {
	return msgpack.Marshal(recordFromPage(p))
}

// DecodePage deserializes a msgpack page.
func DecodePage(data []byte) (*Page, error) {
	var rec pageRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return pageFromRecord(rec), nil
}

// EncodePageJSON serializes a page to JSON for unencrypted export.
func EncodePageJSON(p *Page) ([]byte, error) {
	return json.MarshalIndent(recordFromPage(p), "", "  ")
}

// DecodePageJSON deserializes a JSON page.
func DecodePageJSON(data []byte) (*Page, error) {
	var rec pageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return pageFromRecord(rec), nil
}

// DecodeLegacyNotebooks unpacks a legacy payload holding either a single
// notebook record or a list of them. Loaded notebooks receive fresh ids.
func DecodeLegacyNotebooks(data []byte) ([]*Notebook, error) {
	var records []NotebookRecord
	if err := msgpack.Unmarshal(data, &records); err != nil {
		var single NotebookRecord
		if err2 := msgpack.Unmarshal(data, &single); err2 != nil {
			return nil, err
		}
		records = []NotebookRecord{single}
	}

	notebooks := make([]*Notebook, 0, len(records))
	for _, rec := range records {
		nb := NewNotebook()
		nb.Pages = nil
		for _, pr := range rec.Pages {
			nb.Pages = append(nb.Pages, pageFromRecord(pr))
		}
		if len(nb.Pages) == 0 {
			nb.Pages = []*Page{NewPage()}
		}
		if rec.Metadata != nil {
			nb.Metadata = rec.Metadata
		}
		nb.RecomputeStreaks()
		notebooks = append(notebooks, nb)
	}
	return notebooks, nil
}
