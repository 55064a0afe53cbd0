package db

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/stevemurr/shopstore/store"
)

// Record is implemented by typed records, usually through an embedded
// model.Base. Extra fields are stored fields the Go type does not declare;
// they are kept so that a decode/encode cycle never drops data.
type Record interface {
	// Touch stamps the creation time when it is still unset.
	Touch(now time.Time)
	ExtraFields() map[string]json.RawMessage
	SetExtraFields(extra map[string]json.RawMessage)
}

type recordPtr[T any] interface {
	*T
	Record
}

var knownFieldCache sync.Map // reflect.Type -> map[string]struct{}

// knownFields returns the JSON names of the fields declared by t, including
// those promoted from embedded structs.
func knownFields(t reflect.Type) map[string]struct{} {
	if v, ok := knownFieldCache.Load(t); ok {
		return v.(map[string]struct{})
	}
	fields := make(map[string]struct{})
	collectFields(t, fields)
	v, _ := knownFieldCache.LoadOrStore(t, fields)
	return v.(map[string]struct{})
}

func collectFields(t reflect.Type, out map[string]struct{}) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if f.Anonymous && name == "" {
			collectFields(f.Type, out)
			continue
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		out[name] = struct{}{}
	}
}

func encodeRecord[T any, P recordPtr[T]](rec *T) (store.Document, error) {
	doc, err := store.NewDocument(rec)
	if err != nil {
		return nil, err
	}
	for k, v := range P(rec).ExtraFields() {
		if _, declared := doc[k]; !declared {
			doc[k] = append(json.RawMessage(nil), v...)
		}
	}
	return doc, nil
}

// RecordDecodeError reports a stored document that is valid JSON but does not
// fit the record type of its collection.
type RecordDecodeError struct {
	Collection string
	ID         string
	Err        error
}

func (e *RecordDecodeError) Error() string {
	return fmt.Sprintf("%s/%s: %v: %v", e.Collection, e.ID, ErrRecordDecode, e.Err)
}

func (e *RecordDecodeError) Unwrap() error { return e.Err }

func (e *RecordDecodeError) Is(target error) bool { return target == ErrRecordDecode }

func decodeRecord[T any, P recordPtr[T]](collection string, doc store.Document) (T, error) {
	var rec T
	if err := doc.Decode(&rec); err != nil {
		return rec, &RecordDecodeError{Collection: collection, ID: doc.ID(), Err: err}
	}
	known := knownFields(reflect.TypeOf(rec))
	var extra map[string]json.RawMessage
	for k, v := range doc {
		if _, ok := known[k]; ok {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = append(json.RawMessage(nil), v...)
	}
	P(&rec).SetExtraFields(extra)
	return rec, nil
}

func decodeAll[T any, P recordPtr[T]](collection string, docs []store.Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		rec, err := decodeRecord[T, P](collection, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
