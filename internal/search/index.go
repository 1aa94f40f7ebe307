// Package search implements the encrypted full-text index over notebook
// content, stroke-proximity grouping, and the indexing coordinator.
package search

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/inkleaf/inkleaf/internal/apperr"
	"github.com/inkleaf/inkleaf/internal/cryptostream"
	"github.com/inkleaf/inkleaf/internal/logging"
)

const (
	// IndexMagic identifies the encrypted index file.
	IndexMagic = "SRCHIDX1"
	// IndexVersion is the current index file version.
	IndexVersion = 1
)

// SearchEntry is one indexed unit of content: a text element, a voice-memo
// transcript, or a recognized stroke group. At most one entry per element id.
type SearchEntry struct {
	ElementID   string  `json:"element_id"`
	PageID      string  `json:"page_id"`
	NotebookID  string  `json:"notebook_id"`
	ElementType string  `json:"element_type"`
	TextContent string  `json:"text_content"`
	BoundingBox string  `json:"bounding_box,omitempty"`
	ContentHash string  `json:"content_hash"`
	LastIndexed float64 `json:"last_indexed"`
}

type indexFile struct {
	Version int           `json:"version"`
	Entries []SearchEntry `json:"entries"`
}

// ComputeContentHash hashes an indexable unit's semantic content for change
// detection.
func ComputeContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// Index is the encrypted-at-rest inverted index. Opened into an in-memory
// SQLite FTS5 database and flushed back on Close. One writer at a time; the
// caller serializes access.
type Index struct {
	path string
	key  *cryptostream.SecureBuffer
	salt []byte
	db   *sql.DB
}

// OpenIndex opens (or creates) the index at path, decrypting with a key
// derived from password and the file's salt. A file that fails to load is
// logged and replaced by a fresh index rather than blocking search.
func OpenIndex(path, password string) (*Index, error) {
	idx := &Index{path: path}

	if _, err := os.Stat(path); err == nil {
		_, salt, herr := cryptostream.ReadFileHeader(path, IndexMagic)
		if herr == nil {
			idx.salt = salt
		}
	}
	if idx.salt == nil {
		salt, err := cryptostream.NewSalt()
		if err != nil {
			return nil, err
		}
		idx.salt = salt
	}
	idx.key = cryptostream.DeriveKey(password, idx.salt)

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		idx.key.Wipe()
		return nil, apperr.Wrap(apperr.ErrIOFailure, "opening index database", err)
	}
	db.SetMaxOpenConns(1)
	idx.db = db

	if err := idx.createSchema(); err != nil {
		idx.key.Wipe()
		db.Close()
		return nil, err
	}

	if err := idx.loadFromDisk(); err != nil {
		logging.Warn("search index unreadable, starting fresh", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
	}
	return idx, nil
}

func (idx *Index) createSchema() error {
	stmts := []string{
		`CREATE TABLE search_entries (
			element_id   TEXT PRIMARY KEY,
			page_id      TEXT NOT NULL,
			notebook_id  TEXT NOT NULL,
			element_type TEXT NOT NULL,
			text_content TEXT NOT NULL,
			bounding_box TEXT NOT NULL DEFAULT '',
			content_hash TEXT NOT NULL,
			last_indexed REAL NOT NULL
		)`,
		`CREATE INDEX idx_entries_page ON search_entries(page_id)`,
		`CREATE INDEX idx_entries_notebook ON search_entries(notebook_id)`,
		`CREATE VIRTUAL TABLE search_fts USING fts5(
			text_content,
			element_id UNINDEXED,
			tokenize='porter unicode61'
		)`,
	}
	for _, stmt := range stmts {
		if _, err := idx.db.Exec(stmt); err != nil {
			return apperr.Wrap(apperr.ErrIOFailure, "creating index schema", err)
		}
	}
	return nil
}

func (idx *Index) loadFromDisk() error {
	if _, err := os.Stat(idx.path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	version, _, err := cryptostream.ReadFileHeader(idx.path, IndexMagic)
	if err != nil {
		return err
	}
	if version != IndexVersion {
		return apperr.New(apperr.ErrUnsupportedVersion,
			fmt.Sprintf("index version %d not supported", version))
	}

	payload, err := cryptostream.DecryptFile(idx.path, idx.key, cryptostream.HeaderLen(IndexMagic), nil)
	if err != nil {
		return err
	}

	var file indexFile
	if err := json.Unmarshal(payload, &file); err != nil {
		return apperr.Wrap(apperr.ErrCorrupted, "decoding index payload", err)
	}

	for _, e := range file.Entries {
		if err := idx.insertEntry(e); err != nil {
			return err
		}
	}
	logging.Debug("search index loaded", map[string]interface{}{
		"path":    idx.path,
		"entries": len(file.Entries),
	})
	return nil
}

// Save flushes the in-memory index back to its encrypted file.
func (idx *Index) Save() error {
	entries, err := idx.allEntries()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(indexFile{Version: IndexVersion, Entries: entries})
	if err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "encoding index payload", err)
	}
	header := cryptostream.BuildHeader(IndexMagic, IndexVersion, idx.salt)
	return cryptostream.EncryptToFile(idx.path, header, payload, idx.key, nil)
}

// Close releases the index, optionally flushing to disk first, and wipes the
// derived key.
func (idx *Index) Close(save bool) error {
	var saveErr error
	if save {
		saveErr = idx.Save()
	}
	if idx.db != nil {
		idx.db.Close()
		idx.db = nil
	}
	idx.key.Wipe()
	return saveErr
}

// Path returns the index file path.
func (idx *Index) Path() string {
	return idx.path
}

// AddEntry inserts or updates one entry. An existing entry with the same
// content hash is a no-op; a different hash replaces the FTS row and the
// metadata row together.
func (idx *Index) AddEntry(e SearchEntry) error {
	var existingHash string
	err := idx.db.QueryRow(
		`SELECT content_hash FROM search_entries WHERE element_id = ?`,
		e.ElementID,
	).Scan(&existingHash)
	switch {
	case err == nil:
		if existingHash == e.ContentHash {
			return nil
		}
		if err := idx.deleteEntry(e.ElementID); err != nil {
			return err
		}
	case errors.Is(err, sql.ErrNoRows):
		// new entry
	default:
		return apperr.Wrap(apperr.ErrIOFailure, "querying index entry", err)
	}

	if e.LastIndexed == 0 {
		e.LastIndexed = float64(time.Now().UnixNano()) / float64(time.Second)
	}
	return idx.insertEntry(e)
}

func (idx *Index) insertEntry(e SearchEntry) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "starting index transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO search_entries
		 (element_id, page_id, notebook_id, element_type, text_content, bounding_box, content_hash, last_indexed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ElementID, e.PageID, e.NotebookID, e.ElementType,
		e.TextContent, e.BoundingBox, e.ContentHash, e.LastIndexed,
	); err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "inserting index metadata", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO search_fts (text_content, element_id) VALUES (?, ?)`,
		e.TextContent, e.ElementID,
	); err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "inserting index text", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "committing index entry", err)
	}
	return nil
}

func (idx *Index) deleteEntry(elementID string) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "starting index transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM search_fts WHERE element_id = ?`, elementID); err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "deleting index text", err)
	}
	if _, err := tx.Exec(`DELETE FROM search_entries WHERE element_id = ?`, elementID); err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "deleting index metadata", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "committing index delete", err)
	}
	return nil
}

// RemoveEntry purges one element's text and metadata together.
func (idx *Index) RemoveEntry(elementID string) error {
	return idx.deleteEntry(elementID)
}

// RemovePageEntries purges every entry belonging to a page.
func (idx *Index) RemovePageEntries(pageID string) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "starting index transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM search_fts WHERE element_id IN
		 (SELECT element_id FROM search_entries WHERE page_id = ?)`, pageID,
	); err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "deleting page index text", err)
	}
	if _, err := tx.Exec(`DELETE FROM search_entries WHERE page_id = ?`, pageID); err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "deleting page index metadata", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "committing page delete", err)
	}
	return nil
}

// ContentHash returns the stored content hash for an element id, or "" if
// the element is not indexed.
func (idx *Index) ContentHash(elementID string) (string, error) {
	var hash string
	err := idx.db.QueryRow(
		`SELECT content_hash FROM search_entries WHERE element_id = ?`, elementID,
	).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", apperr.Wrap(apperr.ErrIOFailure, "querying content hash", err)
	}
	return hash, nil
}

// IndexedElementIDs lists indexed element ids for a page, optionally
// restricted to the given element types.
func (idx *Index) IndexedElementIDs(pageID string, types []string) ([]string, error) {
	query := `SELECT element_id FROM search_entries WHERE page_id = ?`
	args := []interface{}{pageID}
	if len(types) > 0 {
		query += ` AND element_type IN (` + placeholders(len(types)) + `)`
		for _, t := range types {
			args = append(args, t)
		}
	}

	rows, err := idx.db.Query(query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrIOFailure, "querying indexed elements", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Wrap(apperr.ErrIOFailure, "scanning indexed elements", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Entry returns the stored entry for an element id, or nil if absent.
func (idx *Index) Entry(elementID string) (*SearchEntry, error) {
	row := idx.db.QueryRow(
		`SELECT element_id, page_id, notebook_id, element_type, text_content, bounding_box, content_hash, last_indexed
		 FROM search_entries WHERE element_id = ?`, elementID)
	var e SearchEntry
	err := row.Scan(&e.ElementID, &e.PageID, &e.NotebookID, &e.ElementType,
		&e.TextContent, &e.BoundingBox, &e.ContentHash, &e.LastIndexed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrIOFailure, "querying index entry", err)
	}
	return &e, nil
}

// EntryCount returns the number of indexed entries.
func (idx *Index) EntryCount() (int, error) {
	var n int
	if err := idx.db.QueryRow(`SELECT COUNT(*) FROM search_entries`).Scan(&n); err != nil {
		return 0, apperr.Wrap(apperr.ErrIOFailure, "counting index entries", err)
	}
	return n, nil
}

// Search runs an FTS5 query ranked by bm25, with type and notebook filters
// applied inside the query. A malformed FTS query returns an empty result
// set, never an error.
func (idx *Index) Search(ftsQuery string, types []string, notebookID string, limit int) ([]SearchEntry, error) {
	if strings.TrimSpace(ftsQuery) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT e.element_id, e.page_id, e.notebook_id, e.element_type,
	                 e.text_content, e.bounding_box, e.content_hash, e.last_indexed
	          FROM search_fts f
	          JOIN search_entries e ON e.element_id = f.element_id
	          WHERE search_fts MATCH ?`
	args := []interface{}{ftsQuery}

	if len(types) > 0 {
		query += ` AND e.element_type IN (` + placeholders(len(types)) + `)`
		for _, t := range types {
			args = append(args, t)
		}
	}
	if notebookID != "" {
		query += ` AND e.notebook_id = ?`
		args = append(args, notebookID)
	}
	query += ` ORDER BY bm25(search_fts) LIMIT ?`
	args = append(args, limit)

	rows, err := idx.db.Query(query, args...)
	if err != nil {
		// FTS5 surfaces syntax errors at query time. Degrade to empty.
		logging.Debug("search query rejected", map[string]interface{}{
			"query": ftsQuery,
			"error": err.Error(),
		})
		return nil, nil
	}
	defer rows.Close()

	var results []SearchEntry
	for rows.Next() {
		var e SearchEntry
		if err := rows.Scan(&e.ElementID, &e.PageID, &e.NotebookID, &e.ElementType,
			&e.TextContent, &e.BoundingBox, &e.ContentHash, &e.LastIndexed); err != nil {
			return nil, apperr.Wrap(apperr.ErrIOFailure, "scanning search result", err)
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

func (idx *Index) allEntries() ([]SearchEntry, error) {
	rows, err := idx.db.Query(
		`SELECT element_id, page_id, notebook_id, element_type, text_content, bounding_box, content_hash, last_indexed
		 FROM search_entries ORDER BY element_id`)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrIOFailure, "querying index entries", err)
	}
	defer rows.Close()

	var entries []SearchEntry
	for rows.Next() {
		var e SearchEntry
		if err := rows.Scan(&e.ElementID, &e.PageID, &e.NotebookID, &e.ElementType,
			&e.TextContent, &e.BoundingBox, &e.ContentHash, &e.LastIndexed); err != nil {
			return nil, apperr.Wrap(apperr.ErrIOFailure, "scanning index entry", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// Reset drops every entry and removes the on-disk file. Used by full
// rebuilds.
func (idx *Index) Reset() error {
	if _, err := idx.db.Exec(`DELETE FROM search_fts`); err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "clearing index text", err)
	}
	if _, err := idx.db.Exec(`DELETE FROM search_entries`); err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "clearing index metadata", err)
	}
	if err := os.Remove(idx.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperr.Wrap(apperr.ErrIOFailure, "removing index file", err)
	}
	return nil
}
