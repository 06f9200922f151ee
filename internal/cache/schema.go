package cache

import "fmt"

// SchemaVersion is bumped whenever the table layout changes. An existing
// database at another version is dropped and recreated.
const SchemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_version (
  version         INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS file_hashes (
  path            TEXT PRIMARY KEY,
  hash            TEXT NOT NULL,
  mtime           INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS file_dependencies (
  dependent       TEXT NOT NULL,
  dependency      TEXT NOT NULL,
  kind            TEXT NOT NULL DEFAULT 'import',
  PRIMARY KEY (dependent, dependency, kind)
);

CREATE INDEX IF NOT EXISTS idx_file_dependencies_dependency ON file_dependencies(dependency);

CREATE TABLE IF NOT EXISTS detector_cache (
  id              INTEGER PRIMARY KEY,
  detector_id     TEXT NOT NULL,
  file_set        TEXT NOT NULL,
  file_set_hash   TEXT NOT NULL,
  issues          BLOB NOT NULL,
  created_at      INTEGER NOT NULL,
  UNIQUE (detector_id, file_set_hash)
);

CREATE TABLE IF NOT EXISTS detector_cache_files (
  cache_id        INTEGER NOT NULL REFERENCES detector_cache(id) ON DELETE CASCADE,
  path            TEXT NOT NULL,
  PRIMARY KEY (cache_id, path)
);

CREATE INDEX IF NOT EXISTS idx_detector_cache_files_path ON detector_cache_files(path);
`

const dropDDL = `
DROP TABLE IF EXISTS detector_cache_files;
DROP TABLE IF EXISTS detector_cache;
DROP TABLE IF EXISTS file_dependencies;
DROP TABLE IF EXISTS file_hashes;
DROP TABLE IF EXISTS schema_version;
`

// migrate creates the tables, recreating them when the stored version differs.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	switch {
	case err == nil && version == SchemaVersion:
		return nil
	case err == nil:
		s.log.Info("cache schema changed, rebuilding", "from", version, "to", SchemaVersion)
		if _, err := s.db.Exec(dropDDL); err != nil {
			return fmt.Errorf("drop old schema: %w", err)
		}
		if _, err := s.db.Exec(schemaDDL); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	if _, err := s.db.Exec(`DELETE FROM schema_version`); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, SchemaVersion); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}
