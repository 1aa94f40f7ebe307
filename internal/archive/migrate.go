package archive

import (
	"github.com/inkleaf/inkleaf/internal/cryptostream"
	"github.com/inkleaf/inkleaf/internal/logging"
	"github.com/inkleaf/inkleaf/internal/models"
	"github.com/inkleaf/inkleaf/internal/uuid"
)

// Legacy files embed binary payloads inline in their elements. Migration
// pulls each payload out into a discrete Asset, points the element at it via
// asset_id, and re-encodes through the structured archive format.

// ExtractAssets walks a notebook's media elements and moves inline payloads
// into the returned AssetIndex. An element already holding an asset id keeps
// it and its asset's bytes are refreshed; the inline field is cleared either
// way.
func ExtractAssets(nb *models.Notebook) *models.AssetIndex {
	assets := models.NewAssetIndex()
	for _, p := range nb.Pages {
		for _, el := range p.Elements {
			switch e := el.(type) {
			case *models.Image:
				if len(e.Data) > 0 {
					e.AssetID = putAsset(assets, e.AssetID, models.AssetImage, DetectImageMIME(e.Data), e.Data)
					e.Data = nil
				}
			case *models.VoiceMemo:
				if len(e.Data) > 0 {
					e.AssetID = putAsset(assets, e.AssetID, models.AssetAudio, DetectAudioMIME(e.Data), e.Data)
					e.Data = nil
				}
			case *models.Video:
				if len(e.Data) > 0 {
					e.AssetID = putAsset(assets, e.AssetID, models.AssetVideo, DetectVideoMIME(e.Data), e.Data)
					e.Data = nil
				}
				if len(e.Thumbnail) > 0 {
					e.ThumbAssetID = putAsset(assets, e.ThumbAssetID, models.AssetImage, DetectImageMIME(e.Thumbnail), e.Thumbnail)
					e.Thumbnail = nil
				}
			}
		}
	}
	return assets
}

func putAsset(assets *models.AssetIndex, existingID string, t models.AssetType, mime string, data []byte) string {
	id := existingID
	if id == "" {
		id = uuid.New()
	}
	assets.Add(&models.Asset{
		ID:       id,
		Type:     t,
		MIME:     mime,
		Data:     data,
		Checksum: models.ChecksumBytes(data),
	})
	return id
}

// InjectAssetData repopulates inline payload fields from the asset index for
// consumers that need raw bytes in hand. The stored representation is not
// touched.
func InjectAssetData(nb *models.Notebook, assets *models.AssetIndex) {
	if assets == nil {
		return
	}
	for _, p := range nb.Pages {
		for _, el := range p.Elements {
			switch e := el.(type) {
			case *models.Image:
				if e.AssetID != "" && len(e.Data) == 0 {
					if a := assets.Get(e.AssetID); a != nil {
						e.Data = a.Data
					}
				}
			case *models.VoiceMemo:
				if e.AssetID != "" && len(e.Data) == 0 {
					if a := assets.Get(e.AssetID); a != nil {
						e.Data = a.Data
					}
				}
			case *models.Video:
				if e.AssetID != "" && len(e.Data) == 0 {
					if a := assets.Get(e.AssetID); a != nil {
						e.Data = a.Data
					}
				}
				if e.ThumbAssetID != "" && len(e.Thumbnail) == 0 {
					if a := assets.Get(e.ThumbAssetID); a != nil {
						e.Thumbnail = a.Data
					}
				}
			}
		}
	}
}

// MigrateNotebooks converts a legacy flat file at srcPath into a structured
// archive at dstPath. dstPath may equal srcPath; the atomic rename inside
// SaveAll guarantees no partial state is ever visible on disk. Returns the
// migrated notebooks and their extracted assets.
func MigrateNotebooks(srcPath, dstPath string, key *cryptostream.SecureBuffer, salt []byte, progress cryptostream.Progress) ([]*models.Notebook, map[string]*models.AssetIndex, error) {
	notebooks, err := LoadLegacyNotebooks(srcPath, key, nil)
	if err != nil {
		return nil, nil, err
	}

	assetsByNotebook := map[string]*models.AssetIndex{}
	for _, nb := range notebooks {
		assetsByNotebook[nb.ID] = ExtractAssets(nb)
	}

	if err := SaveAll(notebooks, assetsByNotebook, dstPath, key, salt, nil, progress); err != nil {
		return nil, nil, err
	}

	totalAssets := 0
	for _, ai := range assetsByNotebook {
		totalAssets += ai.Len()
	}
	logging.Info("legacy migration complete", map[string]interface{}{
		"src":       srcPath,
		"dst":       dstPath,
		"notebooks": len(notebooks),
		"assets":    totalAssets,
	})
	return notebooks, assetsByNotebook, nil
}
