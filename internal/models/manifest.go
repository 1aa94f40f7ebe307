package models

import (
	"encoding/json"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ManifestVersion is the archive container format version.
const ManifestVersion = 2

// ArchiveManifest is the per-notebook header record inside an archive:
// format version, timestamps, notebook identity and metadata, page order,
// and asset entries without binary data.
type ArchiveManifest struct {
	Version          int                    `msgpack:"ver" json:"ver"`
	CreatedAt        float64                `msgpack:"created" json:"created"`
	ModifiedAt       float64                `msgpack:"modified" json:"modified"`
	NotebookID       string                 `msgpack:"nbid" json:"nbid"`
	NotebookMetadata map[string]interface{} `msgpack:"nbmeta" json:"nbmeta"`
	PageIDs          []string               `msgpack:"pages" json:"pages"`
	Assets           []ManifestEntry        `msgpack:"assets" json:"assets"`
}

// NewManifest builds a manifest for a notebook and its assets.
func NewManifest(nb *Notebook, assets *AssetIndex) *ArchiveManifest {
	now := float64(time.Now().UnixNano()) / float64(time.Second)
	pageIDs := make([]string, 0, len(nb.Pages))
	for _, p := range nb.Pages {
		pageIDs = append(pageIDs, p.ID)
	}
	var entries []ManifestEntry
	if assets != nil {
		entries = assets.Entries()
	}
	return &ArchiveManifest{
		Version:          ManifestVersion,
		CreatedAt:        now,
		ModifiedAt:       now,
		NotebookID:       nb.ID,
		NotebookMetadata: nb.Metadata,
		PageIDs:          pageIDs,
		Assets:           entries,
	}
}

// EncodeManifest serializes a manifest to msgpack.
func EncodeManifest(m *ArchiveManifest) ([]byte, error) {
	return msgpack.Marshal(m)
}

// DecodeManifest deserializes a msgpack manifest.
func DecodeManifest(data []byte) (*ArchiveManifest, error) {
	var m ArchiveManifest
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// EncodeManifestJSON serializes a manifest to JSON for unencrypted export.
func EncodeManifestJSON(m *ArchiveManifest) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// DecodeManifestJSON deserializes a JSON manifest.
func DecodeManifestJSON(data []byte) (*ArchiveManifest, error) {
	var m ArchiveManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
