package archive

import (
	"errors"
	"fmt"
	"os"

	"github.com/inkleaf/inkleaf/internal/apperr"
	"github.com/inkleaf/inkleaf/internal/cryptostream"
	"github.com/inkleaf/inkleaf/internal/logging"
	"github.com/inkleaf/inkleaf/internal/models"
)

// LoadLegacyNotebooks decodes a legacy flat file: SECENC01 header, then the
// standard chunk framing over a zstd-compressed msgpack payload holding one
// notebook record or a list of them. A missing file yields one fresh
// notebook, matching LoadAll.
func LoadLegacyNotebooks(filePath string, key *cryptostream.SecureBuffer, progress cryptostream.Progress) ([]*models.Notebook, error) {
	if _, err := os.Stat(filePath); errors.Is(err, os.ErrNotExist) {
		return []*models.Notebook{models.NewNotebook()}, nil
	}

	version, _, err := cryptostream.ReadFileHeader(filePath, LegacyMagic)
	if err != nil {
		return nil, err
	}
	if version != LegacyVersion {
		return nil, apperr.New(apperr.ErrUnsupportedVersion,
			fmt.Sprintf("legacy version %d not supported", version))
	}

	compressed, err := cryptostream.DecryptFile(filePath, key, cryptostream.HeaderLen(LegacyMagic), progress)
	if err != nil {
		return nil, err
	}
	payload, err := decompress(compressed)
	if err != nil {
		return nil, err
	}

	notebooks, err := models.DecodeLegacyNotebooks(payload)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCorrupted, "decoding legacy payload", err)
	}

	logging.Info("legacy file loaded", map[string]interface{}{
		"path":      filePath,
		"notebooks": len(notebooks),
	})
	return notebooks, nil
}
