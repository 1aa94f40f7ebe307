package archive

import "github.com/inkleaf/inkleaf/internal/models"

// AssetCache remembers the bytes and checksum last written for each asset of
// one archive, so unchanged payloads are reused verbatim on the next save.
// One cache per archive; the caller serializes access.
type AssetCache struct {
	bytes     map[string][]byte
	checksums map[string]string
}

// NewAssetCache creates an empty cache.
func NewAssetCache() *AssetCache {
	return &AssetCache{
		bytes:     map[string][]byte{},
		checksums: map[string]string{},
	}
}

// PopulateFromIndex records every asset's current bytes and checksum.
func (c *AssetCache) PopulateFromIndex(assets *models.AssetIndex) {
	if assets == nil {
		return
	}
	for _, id := range assets.IDs() {
		a := assets.Get(id)
		c.Put(a.ID, a.Data, a.Checksum)
	}
}

// Put stores bytes and checksum for an asset id.
func (c *AssetCache) Put(id string, data []byte, checksum string) {
	c.bytes[id] = data
	c.checksums[id] = checksum
}

// Bytes returns the cached bytes for an asset id.
func (c *AssetCache) Bytes(id string) ([]byte, bool) {
	data, ok := c.bytes[id]
	return data, ok
}

// Checksum returns the cached checksum for an asset id.
func (c *AssetCache) Checksum(id string) (string, bool) {
	sum, ok := c.checksums[id]
	return sum, ok
}

// Remove forgets an asset.
func (c *AssetCache) Remove(id string) {
	delete(c.bytes, id)
	delete(c.checksums, id)
}

// Clear forgets everything.
func (c *AssetCache) Clear() {
	c.bytes = map[string][]byte{}
	c.checksums = map[string]string{}
}

// Len returns the number of cached assets.
func (c *AssetCache) Len() int {
	return len(c.bytes)
}

// Snapshot returns cached bytes for the assets in the index whose checksum
// still matches what was last written, in the shape SaveAll's prev argument
// expects.
func (c *AssetCache) Snapshot(assets *models.AssetIndex) map[string][]byte {
	out := map[string][]byte{}
	if assets == nil {
		return out
	}
	for _, id := range assets.IDs() {
		a := assets.Get(id)
		cachedSum, ok := c.checksums[id]
		if !ok || cachedSum != a.Checksum {
			continue
		}
		if data, ok := c.bytes[id]; ok {
			out[id] = data
		}
	}
	return out
}
