package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

const (
	jsonExt   = ".json"
	tmpSuffix = ".tmp"
)

// JSONFileBackend stores each collection as a separate JSON file on disk.
//
// Layout:
//
//	data_dir/
//	  orders.json      # "orders" collection, a JSON array of objects
//	  products.json    # "products" collection
//	  .orders.123.tmp  # in-flight write, renamed over orders.json when complete
//
// A save writes the whole collection to a temporary file in the same directory,
// syncs it and renames it over the canonical file, so a reader sees either the
// old or the new version and never a partial one.
type JSONFileBackend struct {
	dir string

	// rename is os.Rename outside of tests.
	rename func(oldpath, newpath string) error
}

// NewJSONFileBackend creates the data directory if needed.
func NewJSONFileBackend(dir string) (*JSONFileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &IOError{Op: "init", Collection: dir, Err: err}
	}
	return &JSONFileBackend{dir: dir, rename: os.Rename}, nil
}

func (b *JSONFileBackend) collectionPath(collection string) string {
	return filepath.Join(b.dir, collection+jsonExt)
}

func (b *JSONFileBackend) Load(ctx context.Context, collection string) ([]Document, error) {
	if err := ValidateName(collection); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.collectionPath(collection))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Document{}, nil
		}
		return nil, &IOError{Op: "load", Collection: collection, Err: err}
	}
	return decodeCollection(collection, data)
}

func decodeCollection(collection string, data []byte) ([]Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &CorruptCollectionError{Collection: collection, Err: errors.New("empty file")}
	}
	if data = bytes.TrimSpace(data); data[0] != '[' {
		return nil, &CorruptCollectionError{Collection: collection, Err: errors.New("top-level value is not an array")}
	}
	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, &CorruptCollectionError{Collection: collection, Err: err}
	}
	if err := checkDocuments(collection, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (b *JSONFileBackend) Save(ctx context.Context, collection string, docs []Document) error {
	if err := ValidateName(collection); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if docs == nil {
		docs = []Document{}
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return &IOError{Op: "encode", Collection: collection, Err: err}
	}
	data = append(data, '\n')
	if err := b.writeAtomic(collection, data); err != nil {
		return &IOError{Op: "save", Collection: collection, Err: err}
	}
	return nil
}

func (b *JSONFileBackend) writeAtomic(collection string, data []byte) (err error) {
	tmp, err := os.CreateTemp(b.dir, "."+collection+".*"+tmpSuffix)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = b.rename(tmpName, b.collectionPath(collection)); err != nil {
		return err
	}
	return syncDir(b.dir)
}

// syncDir makes the rename itself durable. Not every platform supports
// fsync on a directory, so only open errors are reported.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	_ = d.Sync()
	return nil
}

func (b *JSONFileBackend) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &IOError{Op: "list", Err: err}
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, jsonExt) {
			continue
		}
		name = strings.TrimSuffix(name, jsonExt)
		if ValidateName(name) != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (b *JSONFileBackend) Close() error { return nil }
