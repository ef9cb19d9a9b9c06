package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GenerateSnapshot writes a self-contained copy of the database to path.
// The copy is built next to path and renamed into place, so readers never
// see a partial file.
func (s *SQLiteStore) GenerateSnapshot(ctx context.Context, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale snapshot: %w", err)
	}

	// VACUUM INTO does not accept bound parameters.
	quoted := strings.ReplaceAll(tmp, "'", "''")
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO '"+quoted+"'"); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("vacuum into snapshot: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}
