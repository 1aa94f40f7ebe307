// Package cryptostream implements password-based key derivation and chunked
// authenticated encryption for inkleaf's on-disk formats.
//
// Key derivation is Argon2id with fixed parameters; KDFVersion guards any
// future parameter change. Plaintext is processed in 64 KiB chunks, each
// sealed with XChaCha20-Poly1305 under a per-chunk nonce of 16 random bytes
// followed by a little-endian chunk counter, and framed on the wire as
// u32 LE length || nonce || ciphertext+tag.
package cryptostream

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/inkleaf/inkleaf/internal/apperr"
)

const (
	// KDFVersion changes whenever the Argon2 parameters change.
	KDFVersion = 1

	// KeySize is the derived key length in bytes.
	KeySize = 32

	// SaltSize is the KDF salt length in bytes.
	SaltSize = 32

	// ChunkSize is the plaintext chunk size.
	ChunkSize = 64 * 1024

	// NonceSize is the XChaCha20-Poly1305 nonce length.
	NonceSize = chacha20poly1305.NonceSizeX

	// TagSize is the Poly1305 authentication tag length.
	TagSize = chacha20poly1305.Overhead

	argonTime    = 2
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4

	// maxSealedChunk bounds the length prefix of a single sealed chunk.
	// Anything larger means a corrupted or hostile stream.
	maxSealedChunk = ChunkSize + NonceSize + TagSize + 100
)

// Progress reports processed vs total bytes. The first argument is
// monotonically non-decreasing. A nil Progress is valid.
type Progress func(done, total int64)

// NewSalt returns a fresh random KDF salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, apperr.Wrap(apperr.ErrIOFailure, "generating salt", err)
	}
	return salt, nil
}

// DeriveKey derives a symmetric key from password and salt via Argon2id.
// The caller owns the returned buffer and must Wipe it after use.
func DeriveKey(password string, salt []byte) *SecureBuffer {
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, KeySize)
	return NewSecureBuffer(key)
}

// Encrypt seals plaintext into w chunk by chunk.
func Encrypt(w io.Writer, plaintext []byte, key *SecureBuffer, progress Progress) error {
	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "initializing cipher", err)
	}

	total := int64(len(plaintext))
	var done int64
	var counter uint64
	nonce := make([]byte, NonceSize)

	for offset := 0; offset < len(plaintext); offset += ChunkSize {
		end := offset + ChunkSize
		if end > len(plaintext) {
			end = len(plaintext)
		}
		chunk := plaintext[offset:end]

		if _, err := rand.Read(nonce[:NonceSize-8]); err != nil {
			return apperr.Wrap(apperr.ErrIOFailure, "generating nonce", err)
		}
		binary.LittleEndian.PutUint64(nonce[NonceSize-8:], counter)
		counter++

		sealed := make([]byte, 0, NonceSize+len(chunk)+TagSize)
		sealed = append(sealed, nonce...)
		sealed = aead.Seal(sealed, nonce, chunk, nil)

		var frame [4]byte
		binary.LittleEndian.PutUint32(frame[:], uint32(len(sealed)))
		if _, err := w.Write(frame[:]); err != nil {
			return apperr.Wrap(apperr.ErrIOFailure, "writing chunk frame", err)
		}
		if _, err := w.Write(sealed); err != nil {
			return apperr.Wrap(apperr.ErrIOFailure, "writing chunk", err)
		}

		done += int64(len(chunk))
		if progress != nil {
			progress(done, total)
		}
	}
	return nil
}

// Decrypt opens every sealed chunk from r and returns the plaintext. Any tag
// mismatch aborts with AUTHENTICATION_FAILED and no partial plaintext;
// truncation mid-chunk is CORRUPTED. total is the ciphertext byte count used
// for progress reporting (0 if unknown).
func Decrypt(r io.Reader, key *SecureBuffer, total int64, progress Progress) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrIOFailure, "initializing cipher", err)
	}

	var out bytes.Buffer
	var done int64
	var frame [4]byte

	for {
		_, err := io.ReadFull(r, frame[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrCorrupted, "truncated chunk frame", err)
		}

		sealedLen := binary.LittleEndian.Uint32(frame[:])
		if sealedLen < NonceSize+TagSize || sealedLen > maxSealedChunk {
			return nil, apperr.New(apperr.ErrCorrupted, "implausible chunk length")
		}

		sealed := make([]byte, sealedLen)
		if _, err := io.ReadFull(r, sealed); err != nil {
			return nil, apperr.Wrap(apperr.ErrCorrupted, "truncated chunk", err)
		}

		nonce := sealed[:NonceSize]
		chunk, err := aead.Open(nil, nonce, sealed[NonceSize:], nil)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrAuthenticationFailed, "chunk authentication failed", err)
		}
		out.Write(chunk)

		done += int64(4 + sealedLen)
		if progress != nil {
			progress(done, total)
		}
	}
	return out.Bytes(), nil
}

// EncryptToFile writes header followed by the sealed plaintext to path
// atomically: temp file in the destination directory, fsync, rename. The
// temp file is removed on any failure.
func EncryptToFile(path string, header, plaintext []byte, key *SecureBuffer, progress Progress) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "creating destination directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".inkleaf-*.tmp")
	if err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "creating temp file", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(header); err != nil {
		cleanup()
		return apperr.Wrap(apperr.ErrIOFailure, "writing header", err)
	}
	if err := Encrypt(tmp, plaintext, key, progress); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return apperr.Wrap(apperr.ErrIOFailure, "syncing temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return apperr.Wrap(apperr.ErrIOFailure, "closing temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return apperr.Wrap(apperr.ErrIOFailure, "renaming temp file", err)
	}
	return nil
}

// DecryptFile opens path, skips headerLen bytes, and decrypts the remainder.
func DecryptFile(path string, key *SecureBuffer, headerLen int64, progress Progress) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.Wrap(apperr.ErrNotFound, "archive file not found", err)
		}
		return nil, apperr.Wrap(apperr.ErrIOFailure, "opening file", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrIOFailure, "stating file", err)
	}
	if info.Size() < headerLen {
		return nil, apperr.New(apperr.ErrInvalidFormat, "file shorter than header")
	}
	if _, err := f.Seek(headerLen, io.SeekStart); err != nil {
		return nil, apperr.Wrap(apperr.ErrIOFailure, "seeking past header", err)
	}
	return Decrypt(f, key, info.Size()-headerLen, progress)
}
