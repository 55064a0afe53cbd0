package store

import (
	"fmt"
	"path/filepath"
)

// New creates a Backend based on the backend name.
//
// Supported backends:
//
//	"json"   - one JSON file per collection in dataDir (default)
//	"sqlite" - SQLite database at dataDir/store.db
//	"memory" - in-memory (ephemeral, for testing)
func New(backend, dataDir string) (Backend, error) {
	switch backend {
	case "json", "":
		return NewJSONFileBackend(dataDir)
	case "sqlite":
		return NewSqliteBackend(filepath.Join(dataDir, "store.db"))
	case "memory":
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: json, sqlite, memory)", backend)
	}
}
