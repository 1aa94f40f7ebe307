package models

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/inkleaf/inkleaf/internal/uuid"
)

// AssetType classifies an asset's media kind.
type AssetType string

const (
	AssetImage AssetType = "image"
	AssetAudio AssetType = "audio"
	AssetVideo AssetType = "video"
)

// Asset is a binary payload stored once and referenced by id from page
// elements. The checksum is computed at creation and never silently
// recomputed against mutated data.
type Asset struct {
	ID       string
	Type     AssetType
	MIME     string
	Data     []byte
	Checksum string
}

// NewAsset creates an asset with a fresh id and the SHA-256 checksum of data.
func NewAsset(t AssetType, mime string, data []byte) *Asset {
	return &Asset{
		ID:       uuid.New(),
		Type:     t,
		MIME:     mime,
		Data:     data,
		Checksum: ChecksumBytes(data),
	}
}

// ChecksumBytes returns the SHA-256 hex digest of data.
func ChecksumBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyChecksum re-derives the checksum of Data and compares. It reports,
// it does not repair.
func (a *Asset) VerifyChecksum() bool {
	return a.Checksum == ChecksumBytes(a.Data)
}

// Size returns the payload size in bytes.
func (a *Asset) Size() int {
	return len(a.Data)
}

// ManifestEntry is the manifest row for one asset: metadata only, no bytes.
type ManifestEntry struct {
	ID       string    `msgpack:"aid" json:"aid"`
	Type     AssetType `msgpack:"atype" json:"atype"`
	MIME     string    `msgpack:"mime" json:"mime"`
	Checksum string    `msgpack:"csum" json:"csum"`
	Size     int       `msgpack:"size" json:"size"`
}

// AssetIndex maps asset id to Asset with unique ids. Not safe for concurrent
// use; the caller serializes access.
type AssetIndex struct {
	assets map[string]*Asset
}

// NewAssetIndex creates an empty index.
func NewAssetIndex() *AssetIndex {
	return &AssetIndex{assets: map[string]*Asset{}}
}

// Add inserts or replaces an asset by id.
func (ai *AssetIndex) Add(a *Asset) {
	ai.assets[a.ID] = a
}

// Get returns the asset with the given id, or nil.
func (ai *AssetIndex) Get(id string) *Asset {
	return ai.assets[id]
}

// Remove deletes the asset with the given id.
func (ai *AssetIndex) Remove(id string) {
	delete(ai.assets, id)
}

// Len returns the number of assets.
func (ai *AssetIndex) Len() int {
	return len(ai.assets)
}

// IDs returns every asset id in sorted order.
func (ai *AssetIndex) IDs() []string {
	ids := make([]string, 0, len(ai.assets))
	for id := range ai.assets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Entries returns manifest entries for every asset, sorted by id so the
// written manifest is deterministic.
func (ai *AssetIndex) Entries() []ManifestEntry {
	entries := make([]ManifestEntry, 0, len(ai.assets))
	for _, id := range ai.IDs() {
		a := ai.assets[id]
		entries = append(entries, ManifestEntry{
			ID:       a.ID,
			Type:     a.Type,
			MIME:     a.MIME,
			Checksum: a.Checksum,
			Size:     a.Size(),
		})
	}
	return entries
}

// FromEntries rebuilds an index from manifest entries plus the loaded bytes
// keyed by asset id. Entries without bytes become placeholder assets with
// empty data, which is a valid transient state.
func FromEntries(entries []ManifestEntry, data map[string][]byte) *AssetIndex {
	ai := NewAssetIndex()
	for _, e := range entries {
		ai.Add(&Asset{
			ID:       e.ID,
			Type:     e.Type,
			MIME:     e.MIME,
			Data:     data[e.ID],
			Checksum: e.Checksum,
		})
	}
	return ai
}
