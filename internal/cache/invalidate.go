package cache

import (
	"context"
	"database/sql"
	"sort"
)

// Dependents returns the transitive set of files that depend on file,
// including file itself, sorted.
func (s *Store) Dependents(ctx context.Context, file string) []string {
	if s.db == nil {
		return nil
	}
	seen := map[string]bool{file: true}
	queue := []string{file}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT dependent FROM file_dependencies WHERE dependency = ?`, cur)
		if err != nil {
			s.log.Debug("dependents query failed", "file", cur, "error", err)
			continue
		}
		for rows.Next() {
			var dep string
			if err := rows.Scan(&dep); err != nil {
				continue
			}
			if !seen[dep] {
				seen[dep] = true
				queue = append(queue, dep)
			}
		}
		rows.Close()
	}

	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// InvalidateDependents drops the ledger entry and every cached detector result
// that read file or anything depending on it, transitively. It returns the
// invalidated files, sorted.
func (s *Store) InvalidateDependents(ctx context.Context, file string) []string {
	if s.db == nil {
		return nil
	}
	closure := s.Dependents(ctx, file)
	err := s.tx(ctx, func(tx *sql.Tx) error {
		for _, f := range closure {
			if err := invalidateFile(ctx, tx, f); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.Debug("invalidate failed", "file", file, "error", err)
	}
	if s.evictor != nil {
		for _, f := range closure {
			s.evictor.Evict(f)
		}
	}
	s.log.Debug("invalidated", "file", file, "count", len(closure))
	return closure
}

func invalidateFile(ctx context.Context, tx *sql.Tx, path string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM file_hashes WHERE path = ?`, path); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		`DELETE FROM detector_cache WHERE id IN (SELECT cache_id FROM detector_cache_files WHERE path = ?)`, path)
	return err
}

// Purge invalidates every ledger file for which gone reports true, typically
// files that no longer exist. It returns how many files were purged.
func (s *Store) Purge(ctx context.Context, gone func(path string) bool) int {
	if s.db == nil {
		return 0
	}
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM file_hashes`)
	if err != nil {
		s.log.Debug("purge query failed", "error", err)
		return 0
	}
	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err == nil && gone(p) {
			stale = append(stale, p)
		}
	}
	rows.Close()

	err = s.tx(ctx, func(tx *sql.Tx) error {
		for _, p := range stale {
			if err := invalidateFile(ctx, tx, p); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM file_dependencies WHERE dependent = ? OR dependency = ?`, p, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.Debug("purge failed", "error", err)
		return 0
	}
	if s.evictor != nil {
		for _, p := range stale {
			s.evictor.Evict(p)
		}
	}
	return len(stale)
}

// Stats contains cache statistics.
type Stats struct {
	Enabled      bool           `json:"enabled" yaml:"enabled"`
	Path         string         `json:"path" yaml:"path"`
	Files        int            `json:"files" yaml:"files"`
	Dependencies int            `json:"dependencies" yaml:"dependencies"`
	Entries      int            `json:"entries" yaml:"entries"`
	Detectors    map[string]int `json:"detectors,omitempty" yaml:"detectors,omitempty"`
	SizeBytes    int64          `json:"size_bytes" yaml:"size_bytes"`
}

// Stats returns row counts for each table and the result entries per detector.
func (s *Store) Stats(ctx context.Context) Stats {
	st := Stats{Enabled: s.db != nil, Path: s.path}
	if s.db == nil {
		return st
	}
	count := func(query string) int {
		var n int
		if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
			s.log.Debug("stats query failed", "error", err)
		}
		return n
	}
	st.Files = count(`SELECT COUNT(*) FROM file_hashes`)
	st.Dependencies = count(`SELECT COUNT(*) FROM file_dependencies`)
	st.Entries = count(`SELECT COUNT(*) FROM detector_cache`)

	rows, err := s.db.QueryContext(ctx, `SELECT detector_id, COUNT(*) FROM detector_cache GROUP BY detector_id`)
	if err == nil {
		st.Detectors = make(map[string]int)
		for rows.Next() {
			var (
				id string
				n  int
			)
			if rows.Scan(&id, &n) == nil {
				st.Detectors[id] = n
			}
		}
		rows.Close()
	}

	var pages, pageSize int64
	if s.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pages) == nil &&
		s.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize) == nil {
		st.SizeBytes = pages * pageSize
	}
	return st
}

// Clear removes every cached result, ledger entry, and dependency edge.
func (s *Store) Clear(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.tx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM detector_cache_files`,
			`DELETE FROM detector_cache`,
			`DELETE FROM file_dependencies`,
			`DELETE FROM file_hashes`,
		} {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return err
			}
		}
		return nil
	})
}
