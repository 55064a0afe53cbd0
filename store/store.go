// Package store defines the collection storage contract and its backends.
//
// A collection is an ordered sequence of documents persisted as one unit. Every
// document is a JSON object carrying a unique string "id". Backends load and
// save whole collections; callers that need per-collection ordering (the db
// package) serialize access themselves.
package store

import (
	"bytes"
	"context"
	"fmt"
	"regexp"

	"github.com/goccy/go-json"
)

// Backend is the interface that all collection backends must implement.
type Backend interface {
	// Load returns every document of a collection in stored order. A
	// collection that was never saved is empty, not an error.
	Load(ctx context.Context, collection string) ([]Document, error)

	// Save atomically replaces the stored collection with docs. On failure the
	// previously stored version stays readable.
	Save(ctx context.Context, collection string, docs []Document) error

	// List returns the names of all stored collections, sorted.
	List(ctx context.Context) ([]string, error)

	// Close releases resources held by the backend.
	Close() error
}

// Document is one stored record. Values are kept as raw JSON so that numbers
// and nested objects round-trip byte-exact through the store.
type Document map[string]json.RawMessage

// NewDocument encodes v (a struct or map) into a Document.
func NewDocument(v any) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("document must be a JSON object: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// ID returns the document's "id" field, or "" when it is absent or not a string.
func (d Document) ID() string {
	raw, ok := d["id"]
	if !ok {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return ""
	}
	return id
}

// SetString sets field to the JSON encoding of s.
func (d Document) SetString(field, s string) {
	b, _ := json.Marshal(s)
	d[field] = b
}

// Has reports whether field is present with a non-null value.
func (d Document) Has(field string) bool {
	raw, ok := d[field]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Decode unmarshals the document into v.
func (d Document) Decode(v any) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// CloneAll deep-copies a sequence of documents.
func CloneAll(docs []Document) []Document {
	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_-]{0,127}$`)

// ValidateName checks that a collection name is safe to map onto a file name.
func ValidateName(collection string) error {
	if !namePattern.MatchString(collection) {
		return fmt.Errorf("%w: %q", ErrInvalidName, collection)
	}
	return nil
}

// checkDocuments enforces the per-document invariants on freshly decoded
// content: a string id on every document and no duplicate ids.
func checkDocuments(collection string, docs []Document) error {
	seen := make(map[string]struct{}, len(docs))
	for i, doc := range docs {
		if doc == nil {
			return &CorruptCollectionError{Collection: collection, Err: fmt.Errorf("document %d is not an object", i)}
		}
		id := doc.ID()
		if id == "" {
			return &CorruptCollectionError{Collection: collection, Err: fmt.Errorf("document %d has no string id", i)}
		}
		if _, dup := seen[id]; dup {
			return &CorruptCollectionError{Collection: collection, Err: fmt.Errorf("duplicate id %q", id)}
		}
		seen[id] = struct{}{}
	}
	return nil
}
