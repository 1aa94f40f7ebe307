// Package archive implements the encrypted notebook container format, the
// unencrypted interchange exports, and migration from the legacy flat format.
package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/inkleaf/inkleaf/internal/apperr"
	"github.com/inkleaf/inkleaf/internal/cryptostream"
	"github.com/inkleaf/inkleaf/internal/logging"
	"github.com/inkleaf/inkleaf/internal/models"
)

const (
	// Magic identifies the structured archive container.
	Magic = "DIARYARC02"
	// Version is the current container version.
	Version = 2

	// LegacyMagic identifies the pre-archive flat format.
	LegacyMagic = "SECENC01"
	// LegacyVersion is the only legacy version ever written.
	LegacyVersion = 1

	manifestName = "manifest.msgpack"
	pagesPrefix  = "pages/"
	assetsPrefix = "assets/"
	multiPrefix  = "notebooks/"
)

// Format classifies what is on disk at an archive path.
type Format int

const (
	FormatNewFile Format = iota
	FormatArchiveV2
	FormatLegacyV1
)

// DetectFormat distinguishes the structured archive, the legacy flat file,
// and a path that does not exist yet. An unrecognized magic is a hard error.
func DetectFormat(filePath string) (Format, error) {
	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return FormatNewFile, nil
		}
		return 0, apperr.Wrap(apperr.ErrIOFailure, "opening archive", err)
	}
	defer f.Close()

	head := make([]byte, len(Magic))
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return 0, apperr.Wrap(apperr.ErrIOFailure, "reading archive magic", err)
	}
	head = head[:n]

	if bytes.HasPrefix(head, []byte(Magic)) {
		return FormatArchiveV2, nil
	}
	if bytes.HasPrefix(head, []byte(LegacyMagic)) {
		return FormatLegacyV1, nil
	}
	return 0, apperr.New(apperr.ErrInvalidFormat, "unrecognized archive magic")
}

// ReadSalt extracts the KDF salt from either archive format.
func ReadSalt(filePath string) ([]byte, error) {
	format, err := DetectFormat(filePath)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatArchiveV2:
		_, salt, err := cryptostream.ReadFileHeader(filePath, Magic)
		return salt, err
	case FormatLegacyV1:
		_, salt, err := cryptostream.ReadFileHeader(filePath, LegacyMagic)
		return salt, err
	default:
		return nil, apperr.New(apperr.ErrNotFound, "no archive at path")
	}
}

// SaveAll writes every notebook plus its assets into one encrypted archive
// at filePath. prev maps notebook id to previously written asset bytes; an
// asset present there with a non-empty checksum is written from the cached
// bytes instead of its live Data field. The write is atomic.
func SaveAll(notebooks []*models.Notebook, assetsByNotebook map[string]*models.AssetIndex, filePath string, key *cryptostream.SecureBuffer, salt []byte, prev map[string]map[string][]byte, progress cryptostream.Progress) error {
	if len(salt) != cryptostream.SaltSize {
		return apperr.New(apperr.ErrInvalidFormat, "salt has wrong length")
	}

	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)

	for _, nb := range notebooks {
		prefix := multiPrefix + nb.ID + "/"
		if err := writeNotebook(tw, prefix, nb, assetsByNotebook[nb.ID], prev[nb.ID]); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "finalizing container", err)
	}

	compressed, err := compress(tarBuf.Bytes())
	if err != nil {
		return err
	}

	header := cryptostream.BuildHeader(Magic, Version, salt)
	if err := cryptostream.EncryptToFile(filePath, header, compressed, key, progress); err != nil {
		return err
	}

	logging.Debug("archive saved", map[string]interface{}{
		"path":      filePath,
		"notebooks": len(notebooks),
		"size":      tarBuf.Len(),
	})
	return nil
}

// writeNotebook emits one notebook's manifest, pages and asset payloads.
func writeNotebook(tw *tar.Writer, prefix string, nb *models.Notebook, assets *models.AssetIndex, prevBytes map[string][]byte) error {
	manifest := models.NewManifest(nb, assets)
	manifestData, err := models.EncodeManifest(manifest)
	if err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "encoding manifest", err)
	}
	if err := writeTarEntry(tw, prefix+manifestName, manifestData); err != nil {
		return err
	}

	for _, p := range nb.Pages {
		pageData, err := models.EncodePage(p)
		if err != nil {
			return apperr.Wrap(apperr.ErrIOFailure, "encoding page", err)
		}
		if err := writeTarEntry(tw, prefix+pagesPrefix+p.ID+".msgpack", pageData); err != nil {
			return err
		}
	}

	if assets == nil {
		return nil
	}
	for _, id := range assets.IDs() {
		a := assets.Get(id)
		data := a.Data
		if cached, ok := prevBytes[id]; ok && a.Checksum != "" {
			data = cached
		}
		if data == nil {
			data = []byte{}
		}
		if err := writeTarEntry(tw, prefix+assetsPrefix+id+".bin", data); err != nil {
			return err
		}
	}
	return nil
}

func writeTarEntry(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(data)),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "writing container entry header", err)
	}
	if _, err := tw.Write(data); err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "writing container entry", err)
	}
	return nil
}

// LoadAll reads an archive and reconstructs every notebook and its assets.
// A missing file yields one fresh notebook and no assets: first launch is
// not an error.
func LoadAll(filePath string, key *cryptostream.SecureBuffer, progress cryptostream.Progress) ([]*models.Notebook, map[string]*models.AssetIndex, error) {
	if _, err := os.Stat(filePath); errors.Is(err, os.ErrNotExist) {
		nb := models.NewNotebook()
		return []*models.Notebook{nb}, map[string]*models.AssetIndex{nb.ID: models.NewAssetIndex()}, nil
	}

	version, _, err := cryptostream.ReadFileHeader(filePath, Magic)
	if err != nil {
		return nil, nil, err
	}
	if version != Version {
		return nil, nil, apperr.New(apperr.ErrUnsupportedVersion,
			fmt.Sprintf("archive version %d not supported", version))
	}

	compressed, err := cryptostream.DecryptFile(filePath, key, cryptostream.HeaderLen(Magic), progress)
	if err != nil {
		return nil, nil, err
	}
	tarData, err := decompress(compressed)
	if err != nil {
		return nil, nil, err
	}

	entries, order, err := readTarEntries(tarData)
	if err != nil {
		return nil, nil, err
	}
	return assembleNotebooks(entries, order)
}

// readTarEntries collects every regular file in the container, remembering
// first-appearance order of names.
func readTarEntries(data []byte) (map[string][]byte, []string, error) {
	entries := map[string][]byte{}
	var order []string

	tr := tar.NewReader(bytes.NewReader(data))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, apperr.Wrap(apperr.ErrCorrupted, "reading container", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		body, err := io.ReadAll(tr)
		if err != nil {
			return nil, nil, apperr.Wrap(apperr.ErrCorrupted, "reading container entry", err)
		}
		name := path.Clean(hdr.Name)
		entries[name] = body
		order = append(order, name)
	}
	return entries, order, nil
}

// assembleNotebooks rebuilds notebooks from container entries, handling both
// the single-notebook layout and the notebooks/<id>/ layout.
func assembleNotebooks(entries map[string][]byte, order []string) ([]*models.Notebook, map[string]*models.AssetIndex, error) {
	// Notebook prefixes in first-appearance order. The single layout maps
	// to one empty prefix.
	var prefixes []string
	seen := map[string]bool{}
	multi := false
	for _, name := range order {
		if strings.HasPrefix(name, multiPrefix) {
			multi = true
			rest := strings.TrimPrefix(name, multiPrefix)
			nbid, _, ok := strings.Cut(rest, "/")
			if !ok || nbid == "" {
				continue
			}
			if !seen[nbid] {
				seen[nbid] = true
				prefixes = append(prefixes, multiPrefix+nbid+"/")
			}
		}
	}
	if !multi {
		prefixes = []string{""}
	}

	var notebooks []*models.Notebook
	assetsByNotebook := map[string]*models.AssetIndex{}

	for _, prefix := range prefixes {
		nb, assets, err := assembleNotebook(entries, prefix)
		if err != nil {
			return nil, nil, err
		}
		notebooks = append(notebooks, nb)
		assetsByNotebook[nb.ID] = assets
	}
	return notebooks, assetsByNotebook, nil
}

func assembleNotebook(entries map[string][]byte, prefix string) (*models.Notebook, *models.AssetIndex, error) {
	manifestData, ok := entries[prefix+manifestName]
	if !ok {
		return nil, nil, apperr.New(apperr.ErrInvalidFormat, "container missing manifest")
	}
	manifest, err := models.DecodeManifest(manifestData)
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

	// The manifest's page-id list is the source of truth: listed pages
	// missing from the container are dropped, unlisted entries ignored.
	for _, pageID := range manifest.PageIDs {
		pageData, ok := entries[prefix+pagesPrefix+pageID+".msgpack"]
		if !ok {
			logging.Warn("manifest references missing page", map[string]interface{}{
				"page_id": pageID,
			})
			continue
		}
		p, err := models.DecodePage(pageData)
		if err != nil {
			return nil, nil, apperr.Wrap(apperr.ErrCorrupted, "decoding page", err)
		}
		nb.Pages = append(nb.Pages, p)
	}
	if len(nb.Pages) == 0 {
		nb.Pages = []*models.Page{models.NewPage()}
	}
	nb.RecomputeStreaks()

	assetData := map[string][]byte{}
	for _, entry := range manifest.Assets {
		if data, ok := entries[prefix+assetsPrefix+entry.ID+".bin"]; ok {
			assetData[entry.ID] = data
		}
	}
	assets := models.FromEntries(manifest.Assets, assetData)

	return nb, assets, nil
}

func compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrIOFailure, "initializing compressor", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrIOFailure, "initializing decompressor", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCorrupted, "decompressing payload", err)
	}
	return out, nil
}
