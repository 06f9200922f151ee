// Package cache persists detector results keyed by the exact content of the
// files they were computed from, with dependency-aware invalidation.
package cache

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/panbanda/augur/pkg/graph"
	"github.com/zeebo/blake3"
)

// HashFile computes a BLAKE3 hash of a file's contents.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}

// HashBytes computes a BLAKE3 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// FileState is one input file as a detector saw it.
type FileState struct {
	Path string
	Hash string
}

// Dependency is an edge from the recorded file to a file it depends on.
type Dependency struct {
	Path string
	Kind string
}

// Evictor drops in-memory state for a file whose cached results were invalidated.
type Evictor interface {
	Evict(path string)
}

// Store is the SQLite-backed result cache. A Store with no database is
// disabled: reads miss and writes are dropped.
//
// Every method is a short transaction of its own and none of them return an
// error for I/O or decoding trouble; failures are logged and degrade to a
// miss or a no-op.
type Store struct {
	db      *sql.DB
	path    string
	log     *slog.Logger
	evictor Evictor
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for degraded operations.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithEvictor registers an in-memory cache to notify on invalidation.
func WithEvictor(e Evictor) Option {
	return func(s *Store) { s.evictor = e }
}

// Open opens (creating if needed) the cache database at path with WAL mode
// and a busy timeout, and migrates the schema.
func Open(path string, opts ...Option) (*Store, error) {
	s := newStore(opts)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping cache: %w", err)
	}
	s.db, s.path = db, path
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Disabled returns a store that never hits and never writes.
func Disabled(opts ...Option) *Store {
	return newStore(opts)
}

func newStore(opts []Option) *Store {
	s := &Store{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether the store is backed by a database.
func (s *Store) Enabled() bool { return s.db != nil }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// FileSetKey sorts files by path and returns the serialized file set and its hash.
func FileSetKey(files []FileState) (fileSet, hash string) {
	sorted := append([]FileState(nil), files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	var set strings.Builder
	h := blake3.New()
	for i, f := range sorted {
		if i > 0 {
			set.WriteByte('\n')
		}
		set.WriteString(f.Path)
		fmt.Fprintf(h, "%s\x00%s\n", f.Path, f.Hash)
	}
	return set.String(), hex.EncodeToString(h.Sum(nil))
}

// Get returns the issues stored for detectorID over exactly these file states.
func (s *Store) Get(ctx context.Context, detectorID string, files []FileState) ([]graph.Issue, bool) {
	if s.db == nil {
		return nil, false
	}
	_, key := FileSetKey(files)

	var (
		id   int64
		blob []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, issues FROM detector_cache WHERE detector_id = ? AND file_set_hash = ?`,
		detectorID, key).Scan(&id, &blob)
	if err != nil {
		if err != sql.ErrNoRows {
			s.log.Debug("cache read failed", "detector", detectorID, "error", err)
		}
		return nil, false
	}

	var issues []graph.Issue
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&issues); err != nil {
		s.log.Debug("cache entry corrupt, dropping", "detector", detectorID, "error", err)
		if _, derr := s.db.ExecContext(ctx, `DELETE FROM detector_cache WHERE id = ?`, id); derr != nil {
			s.log.Debug("drop corrupt entry failed", "error", derr)
		}
		return nil, false
	}
	return issues, true
}

// Set stores issues for detectorID over these file states, replacing any
// previous entry for the same key. It reports whether the write happened.
func (s *Store) Set(ctx context.Context, detectorID string, files []FileState, issues []graph.Issue) bool {
	if s.db == nil {
		return false
	}
	if issues == nil {
		issues = []graph.Issue{}
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(issues); err != nil {
		s.log.Debug("cache encode failed", "detector", detectorID, "error", err)
		return false
	}
	fileSet, key := FileSetKey(files)

	err := s.tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM detector_cache WHERE detector_id = ? AND file_set_hash = ?`, detectorID, key); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO detector_cache (detector_id, file_set, file_set_hash, issues, created_at) VALUES (?, ?, ?, ?, ?)`,
			detectorID, fileSet, key, buf.Bytes(), time.Now().UnixNano())
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO detector_cache_files (cache_id, path) VALUES (?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, f := range files {
			if _, err := stmt.ExecContext(ctx, id, f.Path); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.Debug("cache write failed", "detector", detectorID, "error", err)
		return false
	}
	return true
}

// FileHash returns the ledger entry for path.
func (s *Store) FileHash(ctx context.Context, path string) (hash string, mtime time.Time, ok bool) {
	if s.db == nil {
		return "", time.Time{}, false
	}
	var nanos int64
	err := s.db.QueryRowContext(ctx, `SELECT hash, mtime FROM file_hashes WHERE path = ?`, path).Scan(&hash, &nanos)
	if err != nil {
		if err != sql.ErrNoRows {
			s.log.Debug("ledger read failed", "path", path, "error", err)
		}
		return "", time.Time{}, false
	}
	return hash, time.Unix(0, nanos), true
}

// RefreshFile compares the ledger with the file's current hash. A changed
// hash invalidates the file and its dependents; the ledger is then updated.
// It returns the invalidated files, sorted.
func (s *Store) RefreshFile(ctx context.Context, path, hash string, mtime time.Time) []string {
	if s.db == nil {
		return nil
	}
	var invalidated []string
	if old, _, ok := s.FileHash(ctx, path); ok && old != hash {
		invalidated = s.InvalidateDependents(ctx, path)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO file_hashes (path, hash, mtime) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET hash = excluded.hash, mtime = excluded.mtime`,
		path, hash, mtime.UnixNano())
	if err != nil {
		s.log.Debug("ledger write failed", "path", path, "error", err)
	}
	return invalidated
}

// RecordDependencies replaces the dependency edges recorded for file.
func (s *Store) RecordDependencies(ctx context.Context, file string, deps []Dependency) {
	if s.db == nil {
		return
	}
	err := s.tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM file_dependencies WHERE dependent = ?`, file); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR IGNORE INTO file_dependencies (dependent, dependency, kind) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, d := range deps {
			kind := d.Kind
			if kind == "" {
				kind = "import"
			}
			if d.Path == file {
				continue
			}
			if _, err := stmt.ExecContext(ctx, file, d.Path, kind); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.Debug("record dependencies failed", "file", file, "error", err)
	}
}

func (s *Store) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
