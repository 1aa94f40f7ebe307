package cryptostream

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/inkleaf/inkleaf/internal/apperr"
)

// File headers share one shape across the archive, legacy and search-index
// formats: magic bytes, a u16 LE version, then the 32-byte KDF salt.

// BuildHeader assembles magic || version || salt.
func BuildHeader(magic string, version uint16, salt []byte) []byte {
	header := make([]byte, 0, len(magic)+2+len(salt))
	header = append(header, magic...)
	header = binary.LittleEndian.AppendUint16(header, version)
	header = append(header, salt...)
	return header
}

// HeaderLen returns the on-disk header length for a given magic.
func HeaderLen(magic string) int64 {
	return int64(len(magic)) + 2 + SaltSize
}

// ParseHeader reads a header from r and validates the magic. It returns the
// version for the caller to check and the salt.
func ParseHeader(r io.Reader, magic string) (uint16, []byte, error) {
	buf := make([]byte, HeaderLen(magic))
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, nil, apperr.Wrap(apperr.ErrInvalidFormat, "truncated header", err)
	}
	if !bytes.Equal(buf[:len(magic)], []byte(magic)) {
		return 0, nil, apperr.New(apperr.ErrInvalidFormat, "unrecognized magic bytes")
	}
	version := binary.LittleEndian.Uint16(buf[len(magic) : len(magic)+2])
	salt := make([]byte, SaltSize)
	copy(salt, buf[len(magic)+2:])
	return version, salt, nil
}

// ReadFileHeader opens path and parses its header.
func ReadFileHeader(path, magic string) (uint16, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil, apperr.Wrap(apperr.ErrNotFound, "file not found", err)
		}
		return 0, nil, apperr.Wrap(apperr.ErrIOFailure, "opening file", err)
	}
	defer f.Close()
	return ParseHeader(f, magic)
}
