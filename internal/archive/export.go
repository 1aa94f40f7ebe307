package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/inkleaf/inkleaf/internal/apperr"
	"github.com/inkleaf/inkleaf/internal/logging"
	"github.com/inkleaf/inkleaf/internal/models"
)

// Unencrypted interchange exports: standard ZIP or gzip-TAR with a JSON
// manifest, JSON pages and raw asset files named by extension. This is a
// deliberate escape hatch for generic archive tools, never used for normal
// persistence.

// ExportFormat selects the interchange container.
type ExportFormat string

const (
	ExportZip ExportFormat = "zip"
	ExportTar ExportFormat = "tar"
)

var extByMIME = map[string]string{
	"image/png":       "png",
	"image/jpeg":      "jpg",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"image/x-icon":    "ico",
	"audio/wav":       "wav",
	"audio/x-wav":     "wav",
	"audio/mpeg":      "mp3",
	"audio/flac":      "flac",
	"audio/ogg":       "ogg",
	"video/mp4":       "mp4",
	"video/quicktime": "mov",
	"video/webm":      "webm",
	"video/x-matroska": "mkv",
	"video/x-msvideo": "avi",
	"video/mpeg":      "mpg",
}

var mimeByExt = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
	"ico":  "image/x-icon",
	"wav":  "audio/wav",
	"mp3":  "audio/mpeg",
	"flac": "audio/flac",
	"ogg":  "audio/ogg",
	"mp4":  "video/mp4",
	"mov":  "video/quicktime",
	"webm": "video/webm",
	"mkv":  "video/x-matroska",
	"avi":  "video/x-msvideo",
	"mpg":  "video/mpeg",
}

func extForMIME(mime string) string {
	if ext, ok := extByMIME[mime]; ok {
		return ext
	}
	return "bin"
}

func mimeForExt(ext string) string {
	if mime, ok := mimeByExt[strings.ToLower(ext)]; ok {
		return mime
	}
	return "application/octet-stream"
}

type exportEntry struct {
	name string
	data []byte
}

// ExportUnencrypted writes one notebook plus its assets as a plain archive.
func ExportUnencrypted(nb *models.Notebook, assets *models.AssetIndex, filePath string, format ExportFormat) error {
	entries, err := buildExportEntries(nb, assets)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	switch format {
	case ExportZip:
		err = writeZip(&buf, entries)
	case ExportTar:
		err = writeTarGz(&buf, entries)
	default:
		return apperr.New(apperr.ErrInvalidFormat, "unknown export format")
	}
	if err != nil {
		return err
	}

	if err := writeFileAtomic(filePath, buf.Bytes()); err != nil {
		return err
	}
	logging.Info("unencrypted export written", map[string]interface{}{
		"path":   filePath,
		"format": string(format),
	})
	return nil
}

func buildExportEntries(nb *models.Notebook, assets *models.AssetIndex) ([]exportEntry, error) {
	manifest := models.NewManifest(nb, assets)
	manifestData, err := models.EncodeManifestJSON(manifest)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrIOFailure, "encoding manifest", err)
	}
	entries := []exportEntry{{name: "manifest.json", data: manifestData}}

	for _, p := range nb.Pages {
		pageData, err := models.EncodePageJSON(p)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrIOFailure, "encoding page", err)
		}
		entries = append(entries, exportEntry{name: "pages/" + p.ID + ".json", data: pageData})
	}

	if assets != nil {
		for _, id := range assets.IDs() {
			a := assets.Get(id)
			data := a.Data
			if data == nil {
				data = []byte{}
			}
			name := "assets/" + id + "." + extForMIME(a.MIME)
			entries = append(entries, exportEntry{name: name, data: data})
		}
	}
	return entries, nil
}

func writeZip(w io.Writer, entries []exportEntry) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		f, err := zw.Create(e.name)
		if err != nil {
			return apperr.Wrap(apperr.ErrIOFailure, "creating zip entry", err)
		}
		if _, err := f.Write(e.data); err != nil {
			return apperr.Wrap(apperr.ErrIOFailure, "writing zip entry", err)
		}
	}
	if err := zw.Close(); err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "finalizing zip", err)
	}
	return nil
}

func writeTarGz(w io.Writer, entries []exportEntry) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		if err := writeTarEntry(tw, e.name, e.data); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "finalizing tar", err)
	}
	if err := gz.Close(); err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "finalizing gzip", err)
	}
	return nil
}

// ImportUnencrypted reads an export produced by ExportUnencrypted (or any
// archive with the same layout). The container kind is sniffed from the
// file's magic bytes.
func ImportUnencrypted(filePath string) (*models.Notebook, *models.AssetIndex, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, apperr.Wrap(apperr.ErrNotFound, "export file not found", err)
		}
		return nil, nil, apperr.Wrap(apperr.ErrIOFailure, "reading export file", err)
	}

	var entries map[string][]byte
	switch {
	case bytes.HasPrefix(data, []byte("PK")):
		entries, err = readZipEntries(data)
	case bytes.HasPrefix(data, []byte{0x1f, 0x8b}):
		entries, err = readTarGzEntries(data)
	default:
		return nil, nil, apperr.New(apperr.ErrInvalidFormat, "unrecognized export container")
	}
	if err != nil {
		return nil, nil, err
	}
	return assembleImport(entries)
}

func readZipEntries(data []byte) (map[string][]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCorrupted, "reading zip", err)
	}
	entries := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrCorrupted, "opening zip entry", err)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrCorrupted, "reading zip entry", err)
		}
		entries[path.Clean(f.Name)] = body
	}
	return entries, nil
}

func readTarGzEntries(data []byte) (map[string][]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCorrupted, "reading gzip", err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCorrupted, "decompressing tar", err)
	}
	entries, _, err := readTarEntries(raw)
	return entries, err
}

func assembleImport(entries map[string][]byte) (*models.Notebook, *models.AssetIndex, error) {
	manifestData, ok := entries["manifest.json"]
	if !ok {
		return nil, nil, apperr.New(apperr.ErrInvalidFormat, "export missing manifest.json")
	}
	manifest, err := models.DecodeManifestJSON(manifestData)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.ErrCorrupted, "decoding manifest", err)
	}

	nb := &models.Notebook{
		ID:       manifest.NotebookID,
		Metadata: manifest.NotebookMetadata,
	}
	if nb.Metadata == nil {
		nb.Metadata = map[string]interface{}{}
	}

	for _, pageID := range manifest.PageIDs {
		pageData, ok := entries["pages/"+pageID+".json"]
		if !ok {
			continue
		}
		p, err := models.DecodePageJSON(pageData)
		if err != nil {
			return nil, nil, apperr.Wrap(apperr.ErrCorrupted, "decoding page", err)
		}
		nb.Pages = append(nb.Pages, p)
	}
	if len(nb.Pages) == 0 {
		nb.Pages = []*models.Page{models.NewPage()}
	}
	nb.RecomputeStreaks()

	entryByID := map[string]models.ManifestEntry{}
	for _, e := range manifest.Assets {
		entryByID[e.ID] = e
	}

	assets := models.NewAssetIndex()
	for name, body := range entries {
		if !strings.HasPrefix(name, "assets/") {
			continue
		}
		base := strings.TrimPrefix(name, "assets/")
		ext := strings.TrimPrefix(filepath.Ext(base), ".")
		id := strings.TrimSuffix(base, filepath.Ext(base))

		a := &models.Asset{ID: id, Data: body}
		if e, ok := entryByID[id]; ok {
			a.Type = e.Type
			a.MIME = e.MIME
			a.Checksum = e.Checksum
		} else {
			a.MIME = mimeForExt(ext)
			a.Type = assetTypeForMIME(a.MIME)
			a.Checksum = models.ChecksumBytes(body)
		}
		assets.Add(a)
	}
	return nb, assets, nil
}

func assetTypeForMIME(mime string) models.AssetType {
	switch {
	case strings.HasPrefix(mime, "audio/"):
		return models.AssetAudio
	case strings.HasPrefix(mime, "video/"):
		return models.AssetVideo
	default:
		return models.AssetImage
	}
}

// writeFileAtomic writes data via a temp file in the destination directory
// followed by a rename.
func writeFileAtomic(filePath string, data []byte) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "creating destination directory", err)
	}
	tmp, err := os.CreateTemp(dir, ".inkleaf-*.tmp")
	if err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "creating temp file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return apperr.Wrap(apperr.ErrIOFailure, "writing temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return apperr.Wrap(apperr.ErrIOFailure, "syncing temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return apperr.Wrap(apperr.ErrIOFailure, "closing temp file", err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return apperr.Wrap(apperr.ErrIOFailure, "renaming temp file", err)
	}
	return nil
}
