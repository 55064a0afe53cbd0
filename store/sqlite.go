package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SqliteBackend stores all collections in a single SQLite database.
//
// Tables:
//
//	documents(collection, id, position, data)  PRIMARY KEY (collection, id)
//
// Saving a collection replaces its rows inside one transaction, so the
// previous version survives any failure before commit.
type SqliteBackend struct {
	mu sync.RWMutex
	db *sql.DB
}

func NewSqliteBackend(dbPath string) (*SqliteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, &IOError{Op: "init", Collection: dbPath, Err: err}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, &IOError{Op: "init", Collection: dbPath, Err: err}
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, &IOError{Op: "init", Collection: dbPath, Err: err}
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		position INTEGER NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	)`); err != nil {
		db.Close()
		return nil, &IOError{Op: "init", Collection: dbPath, Err: err}
	}
	return &SqliteBackend{db: db}, nil
}

func (s *SqliteBackend) Close() error {
	return s.db.Close()
}

func (s *SqliteBackend) Load(ctx context.Context, collection string) ([]Document, error) {
	if err := ValidateName(collection); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		"SELECT data FROM documents WHERE collection = ? ORDER BY position", collection)
	if err != nil {
		return nil, &IOError{Op: "load", Collection: collection, Err: err}
	}
	defer rows.Close()
	docs := []Document{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, &IOError{Op: "load", Collection: collection, Err: err}
		}
		var doc Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, &CorruptCollectionError{Collection: collection, Err: err}
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, &IOError{Op: "load", Collection: collection, Err: err}
	}
	if err := checkDocuments(collection, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *SqliteBackend) Save(ctx context.Context, collection string, docs []Document) error {
	if err := ValidateName(collection); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.replace(ctx, collection, docs); err != nil {
		return &IOError{Op: "save", Collection: collection, Err: err}
	}
	return nil
}

func (s *SqliteBackend) replace(ctx context.Context, collection string, docs []Document) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, rbErr)
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM documents WHERE collection = ?", collection); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO documents (collection, id, position, data) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, doc := range docs {
		id := doc.ID()
		if id == "" {
			return fmt.Errorf("document %d has no string id", i)
		}
		b, merr := json.Marshal(doc)
		if merr != nil {
			return merr
		}
		if _, err = stmt.ExecContext(ctx, collection, id, i, string(b)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SqliteBackend) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT collection FROM documents ORDER BY collection")
	if err != nil {
		return nil, &IOError{Op: "list", Err: err}
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &IOError{Op: "list", Err: err}
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
