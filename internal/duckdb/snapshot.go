package duckdb

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrInMemoryStore indicates the store has no database file to snapshot.
var ErrInMemoryStore = errors.New("duckdb: in-memory store cannot be snapshotted")

// DBPath returns the configured DuckDB path. Empty means in-memory DB.
func (s *Store) DBPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dbPath
}

// SnapshotTo writes a consistent copy of the database file to dstPath.
// The WAL is checkpointed under the write lock; the file copy runs after the
// lock is released so uploads and queries are not stalled by large files.
func (s *Store) SnapshotTo(dstPath string) error {
	s.mu.Lock()
	srcPath := s.dbPath
	if srcPath == "" {
		s.mu.Unlock()
		return ErrInMemoryStore
	}
	_, err := s.db.Exec("CHECKPOINT")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}

	if err := writeFileAtomic(dstPath, srcPath); err != nil {
		return fmt.Errorf("snapshot %s: %w", filepath.Base(dstPath), err)
	}
	return nil
}

// writeFileAtomic copies srcPath into a temp file next to dstPath and
// renames it into place once synced.
func writeFileAtomic(dstPath, srcPath string) (err error) {
	dir := filepath.Dir(dstPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dstPath)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, src); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dstPath)
}
