package archive

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/inkleaf/inkleaf/internal/apperr"
	"github.com/inkleaf/inkleaf/internal/cryptostream"
	"github.com/inkleaf/inkleaf/internal/models"
)

// pngSig is enough of a PNG header for magic-byte sniffing.
var pngSig = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

// writeLegacyFile synthesizes a legacy flat file: a msgpack list of notebook
// dicts with inline element payloads, zstd-compressed behind a SECENC01
// header.
func writeLegacyFile(t *testing.T, path string, key *cryptostream.SecureBuffer, salt []byte, notebooks []map[string]interface{}) {
	t.Helper()
	payload, err := msgpack.Marshal(notebooks)
	if err != nil {
		t.Fatalf("msgpack.Marshal() error = %v", err)
	}
	compressed, err := compress(payload)
	if err != nil {
		t.Fatalf("compress() error = %v", err)
	}
	header := cryptostream.BuildHeader(LegacyMagic, LegacyVersion, salt)
	if err := cryptostream.EncryptToFile(path, header, compressed, key, nil); err != nil {
		t.Fatalf("EncryptToFile() error = %v", err)
	}
}

func legacyImageNotebook(data []byte) map[string]interface{} {
	return map[string]interface{}{
		"pages": []map[string]interface{}{{
			"id":         "page-legacy-1",
			"created_at": 1700000000.0,
			"elements": []map[string]interface{}{
				{
					"type":   "stroke",
					"id":     "el-stroke-1",
					"points": [][]float64{{1, 2, 1}, {3, 4, 1}},
					"color":  "#000000", "thickness": 2.0, "tool": "pen",
				},
				{
					"type": "image",
					"id":   "el-image-1",
					"pos":  []float64{10, 10},
					"width": 64.0, "height": 64.0,
					"data": data,
				},
			},
			"metadata": map[string]interface{}{},
		}},
		"metadata": map[string]interface{}{"name": "old diary"},
	}
}

// =====================================================
// Legacy Load Tests
// =====================================================

// TestLoadLegacyNotebooks_decodesInlineData verifies the flat format decodes
// with payloads still inline.
func TestLoadLegacyNotebooks_decodesInlineData(t *testing.T) {
	key := testKey(t)
	defer key.Wipe()
	path := filepath.Join(t.TempDir(), "legacy.enc")

	writeLegacyFile(t, path, key, testSalt(t), []map[string]interface{}{legacyImageNotebook(pngSig)})

	notebooks, err := LoadLegacyNotebooks(path, key, nil)
	if err != nil {
		t.Fatalf("LoadLegacyNotebooks() error = %v", err)
	}
	if len(notebooks) != 1 {
		t.Fatalf("notebooks = %d, want 1", len(notebooks))
	}
	nb := notebooks[0]
	if nb.Name() != "old diary" {
		t.Errorf("notebook name = %q, want %q", nb.Name(), "old diary")
	}
	if len(nb.Pages) != 1 || len(nb.Pages[0].Elements) != 2 {
		t.Fatalf("unexpected shape: %d pages", len(nb.Pages))
	}
	img, ok := nb.Pages[0].Elements[1].(*models.Image)
	if !ok {
		t.Fatalf("element 1 is %T, want *Image", nb.Pages[0].Elements[1])
	}
	if !bytes.Equal(img.Data, pngSig) {
		t.Error("inline image bytes did not decode")
	}
}

// TestLoadLegacyNotebooks_missingFile verifies first launch semantics.
func TestLoadLegacyNotebooks_missingFile(t *testing.T) {
	key := testKey(t)
	defer key.Wipe()

	notebooks, err := LoadLegacyNotebooks(filepath.Join(t.TempDir(), "nope.enc"), key, nil)
	if err != nil {
		t.Fatalf("LoadLegacyNotebooks() error = %v", err)
	}
	if len(notebooks) != 1 || len(notebooks[0].Pages) != 1 {
		t.Error("missing legacy file should yield one fresh notebook")
	}
}

// =====================================================
// Asset Extraction Tests
// =====================================================

// TestExtractAssets_imageToAsset verifies an inline image becomes a sniffed,
// checksummed asset and the element is rewired.
func TestExtractAssets_imageToAsset(t *testing.T) {
	nb := models.NewNotebook()
	img := models.NewImage(models.NewPoint(0, 0), 64, 64)
	img.Data = append([]byte(nil), pngSig...)
	nb.Pages[0].AddElement(img)

	assets := ExtractAssets(nb)

	if img.Data != nil {
		t.Error("inline data must be cleared after extraction")
	}
	if img.AssetID == "" {
		t.Fatal("element must reference the new asset")
	}
	a := assets.Get(img.AssetID)
	if a == nil {
		t.Fatal("asset missing from index")
	}
	if a.MIME != "image/png" {
		t.Errorf("sniffed MIME = %q, want image/png", a.MIME)
	}
	if a.Checksum != models.ChecksumBytes(pngSig) {
		t.Error("asset checksum mismatch")
	}
	if !bytes.Equal(a.Data, pngSig) {
		t.Error("asset bytes mismatch")
	}
}

// TestExtractAssets_keepsExistingID verifies an element that already carries
// an asset id keeps it while the bytes refresh.
func TestExtractAssets_keepsExistingID(t *testing.T) {
	nb := models.NewNotebook()
	img := models.NewImage(models.NewPoint(0, 0), 64, 64)
	img.AssetID = "keep-me"
	img.Data = append([]byte(nil), pngSig...)
	nb.Pages[0].AddElement(img)

	assets := ExtractAssets(nb)

	if img.AssetID != "keep-me" {
		t.Errorf("asset id = %q, want keep-me", img.AssetID)
	}
	if assets.Get("keep-me") == nil {
		t.Error("refreshed asset missing from index")
	}
}

// TestExtractAssets_videoThumbnail verifies a video produces two assets.
func TestExtractAssets_videoThumbnail(t *testing.T) {
	nb := models.NewNotebook()
	vid := models.NewVideo(models.NewPoint(0, 0), 320, 240)
	vid.Data = []byte("not really video bytes")
	vid.Thumbnail = append([]byte(nil), pngSig...)
	nb.Pages[0].AddElement(vid)

	assets := ExtractAssets(nb)

	if assets.Len() != 2 {
		t.Fatalf("assets = %d, want 2", assets.Len())
	}
	if vid.AssetID == "" || vid.ThumbAssetID == "" {
		t.Fatal("video must reference both assets")
	}
	if assets.Get(vid.ThumbAssetID).MIME != "image/png" {
		t.Error("thumbnail should sniff as image/png")
	}
	// Unrecognizable video bytes fall back to the permissive type.
	if assets.Get(vid.AssetID).MIME != "video/octet-stream" {
		t.Errorf("video MIME = %q, want video/octet-stream", assets.Get(vid.AssetID).MIME)
	}
	if vid.Data != nil || vid.Thumbnail != nil {
		t.Error("inline fields must be cleared")
	}
}

// TestInjectAssetData_repopulates verifies the inverse of extraction.
func TestInjectAssetData_repopulates(t *testing.T) {
	nb := models.NewNotebook()
	img := models.NewImage(models.NewPoint(0, 0), 64, 64)
	img.Data = append([]byte(nil), pngSig...)
	nb.Pages[0].AddElement(img)

	assets := ExtractAssets(nb)
	InjectAssetData(nb, assets)

	if !bytes.Equal(img.Data, pngSig) {
		t.Error("inline data was not repopulated from the asset index")
	}
}

// =====================================================
// Migration Tests
// =====================================================

// TestMigrateNotebooks_endToEnd verifies legacy-in, structured-archive-out:
// the destination loads as a v2 archive with the image as a discrete asset.
func TestMigrateNotebooks_endToEnd(t *testing.T) {
	key := testKey(t)
	defer key.Wipe()
	salt := testSalt(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "legacy.enc")
	dst := filepath.Join(dir, "diary.enc")

	writeLegacyFile(t, src, key, salt, []map[string]interface{}{legacyImageNotebook(pngSig)})

	notebooks, assetsByNotebook, err := MigrateNotebooks(src, dst, key, salt, nil)
	if err != nil {
		t.Fatalf("MigrateNotebooks() error = %v", err)
	}
	if len(notebooks) != 1 {
		t.Fatalf("notebooks = %d, want 1", len(notebooks))
	}
	if assetsByNotebook[notebooks[0].ID].Len() != 1 {
		t.Errorf("extracted assets = %d, want 1", assetsByNotebook[notebooks[0].ID].Len())
	}

	if f, err := DetectFormat(dst); err != nil || f != FormatArchiveV2 {
		t.Fatalf("DetectFormat(dst) = %v, %v", f, err)
	}

	loaded, loadedAssets, err := LoadAll(dst, key, nil)
	if err != nil {
		t.Fatalf("LoadAll(dst) error = %v", err)
	}
	img, ok := loaded[0].Pages[0].Elements[1].(*models.Image)
	if !ok {
		t.Fatalf("element 1 is %T, want *Image", loaded[0].Pages[0].Elements[1])
	}
	if len(img.Data) != 0 {
		t.Error("migrated element must not carry inline data")
	}
	a := loadedAssets[loaded[0].ID].Get(img.AssetID)
	if a == nil || !bytes.Equal(a.Data, pngSig) {
		t.Error("migrated asset bytes missing or wrong")
	}
	if a.MIME != "image/png" {
		t.Errorf("migrated MIME = %q, want image/png", a.MIME)
	}
}

// TestLoadLegacyNotebooks_unsupportedVersion verifies future legacy versions
// are rejected cleanly.
func TestLoadLegacyNotebooks_unsupportedVersion(t *testing.T) {
	key := testKey(t)
	defer key.Wipe()
	path := filepath.Join(t.TempDir(), "legacy.enc")

	header := cryptostream.BuildHeader(LegacyMagic, 9, bytes.Repeat([]byte{3}, cryptostream.SaltSize))
	if err := cryptostream.EncryptToFile(path, header, []byte("x"), key, nil); err != nil {
		t.Fatalf("EncryptToFile() error = %v", err)
	}

	_, err := LoadLegacyNotebooks(path, key, nil)
	if !apperr.Is(err, apperr.ErrUnsupportedVersion) {
		t.Errorf("error code = %v, want UNSUPPORTED_VERSION", apperr.CodeOf(err))
	}
}

// =====================================================
// MIME Sniffing Tests
// =====================================================

// TestDetectMIME_fallbacks verifies kind-constrained detection and fallbacks.
func TestDetectMIME_fallbacks(t *testing.T) {
	if got := DetectImageMIME(pngSig); got != "image/png" {
		t.Errorf("DetectImageMIME(png) = %q, want image/png", got)
	}
	if got := DetectImageMIME([]byte("plain text, not an image")); got != "application/octet-stream" {
		t.Errorf("DetectImageMIME(text) = %q, want application/octet-stream", got)
	}
	if got := DetectAudioMIME(nil); got != "audio/octet-stream" {
		t.Errorf("DetectAudioMIME(nil) = %q, want audio/octet-stream", got)
	}
	// An image payload in an audio slot must not leak an image/* type.
	if got := DetectAudioMIME(pngSig); got != "audio/octet-stream" {
		t.Errorf("DetectAudioMIME(png) = %q, want audio/octet-stream", got)
	}
	if got := DetectVideoMIME([]byte{1, 2, 3}); got != "video/octet-stream" {
		t.Errorf("DetectVideoMIME(junk) = %q, want video/octet-stream", got)
	}
}
