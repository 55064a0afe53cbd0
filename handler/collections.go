package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/stevemurr/shopstore/db"
	"github.com/stevemurr/shopstore/schema"
	"github.com/stevemurr/shopstore/store"
)

// schemasCollection stores one document per collection that has a schema:
// {"id": <collection>, "schema": {...}}.
const schemasCollection = "_schemas"

// errRecordShape marks a write whose document does not fit the record type of
// its collection.
var errRecordShape = errors.New("record does not fit its collection")

// Query parameters of the item listing that are not field filters.
var listParams = map[string]bool{"offset": true, "limit": true, "since": true}

func readBody(c *gin.Context) ([]byte, error) {
	defer c.Request.Body.Close()
	return io.ReadAll(c.Request.Body)
}

// decodeObject decodes a JSON object keeping numbers exact.
func decodeObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("body must be a JSON object")
	}
	return obj, nil
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	s := c.Query(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return n, nil
}

// parseTimestamp accepts RFC 3339 with or without a zone; zoneless values are UTC.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp: %s", s)
}

// ---------- collection list ----------

func (h *Handler) listCollections(c *gin.Context) {
	names, err := h.db.Collections(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	visible := make([]string, 0, len(names))
	for _, name := range names {
		if !strings.HasPrefix(name, "_") {
			visible = append(visible, name)
		}
	}
	respond(c, http.StatusOK, visible)
}

// ---------- item CRUD ----------

// listItems returns one page of a collection. Other query parameters filter
// by field equality; since keeps items updated after a timestamp.
func (h *Handler) listItems(c *gin.Context) {
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		failWith(c, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		failWith(c, http.StatusBadRequest, err.Error())
		return
	}
	var since time.Time
	if s := c.Query("since"); s != "" {
		if since, err = parseTimestamp(s); err != nil {
			failWith(c, http.StatusBadRequest, "invalid since timestamp")
			return
		}
	}

	var filters []func(store.Document) bool
	for key, values := range c.Request.URL.Query() {
		if listParams[key] || len(values) == 0 {
			continue
		}
		filters = append(filters, db.FieldMatches(key, values[0]))
	}
	if !since.IsZero() {
		filters = append(filters, updatedAfter(since))
	}

	docs, err := h.db.All(c.Request.Context(), c.Param("collection"))
	if err != nil {
		h.fail(c, err)
		return
	}
	docs = db.Filter(docs, func(doc store.Document) bool {
		for _, match := range filters {
			if !match(doc) {
				return false
			}
		}
		return true
	})
	respond(c, http.StatusOK, db.Paginate(docs, offset, limit))
}

func updatedAfter(since time.Time) func(store.Document) bool {
	return func(doc store.Document) bool {
		var ts string
		if err := json.Unmarshal(doc["updatedAt"], &ts); err != nil {
			return false
		}
		t, err := parseTimestamp(ts)
		return err == nil && t.After(since)
	}
}

func (h *Handler) getItem(c *gin.Context) {
	doc, err := h.db.Get(c.Request.Context(), c.Param("collection"), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, doc)
}

func (h *Handler) createItem(c *gin.Context) {
	collection := c.Param("collection")
	raw, err := readBody(c)
	if err != nil {
		failWith(c, http.StatusBadRequest, "cannot read body")
		return
	}
	var doc store.Document
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		failWith(c, http.StatusBadRequest, "body must be a JSON object")
		return
	}
	ctx := c.Request.Context()
	if err := h.validate(ctx, collection, doc); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.checkRecord(collection, doc); err != nil {
		h.fail(c, err)
		return
	}
	created, err := h.db.Create(ctx, collection, doc)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, created)
}

// updateItem applies a merge patch. The merged result is checked against the
// collection's schema and record type before it is written.
func (h *Handler) updateItem(c *gin.Context) {
	collection, id := c.Param("collection"), c.Param("id")
	raw, err := readBody(c)
	if err != nil {
		failWith(c, http.StatusBadRequest, "cannot read body")
		return
	}
	patch, err := decodeObject(raw)
	if err != nil {
		failWith(c, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	sch, err := h.schemaFor(ctx, collection)
	if err != nil {
		h.fail(c, err)
		return
	}
	updated, err := h.db.UpdateChecked(ctx, collection, id, db.Patch(patch), func(merged store.Document) error {
		if sch != nil {
			if err := validateDoc(sch, merged); err != nil {
				return err
			}
		}
		return h.checkRecord(collection, merged)
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, updated)
}

func (h *Handler) deleteItem(c *gin.Context) {
	id := c.Param("id")
	removed, err := h.db.Remove(c.Request.Context(), c.Param("collection"), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": id, "deleted": removed})
}

// ---------- schema endpoints ----------

func (h *Handler) listSchemas(c *gin.Context) {
	docs, err := h.db.All(c.Request.Context(), schemasCollection)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make(map[string]json.RawMessage, len(docs))
	for _, doc := range docs {
		out[doc.ID()] = doc["schema"]
	}
	respond(c, http.StatusOK, out)
}

func (h *Handler) getSchema(c *gin.Context) {
	collection := c.Param("collection")
	doc, err := h.db.Get(c.Request.Context(), schemasCollection, collection)
	if errors.Is(err, db.ErrNotFound) {
		failWith(c, http.StatusNotFound, fmt.Sprintf("no schema for collection %q", collection))
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, doc["schema"])
}

func (h *Handler) putSchema(c *gin.Context) {
	collection := c.Param("collection")
	if err := store.ValidateName(collection); err != nil {
		h.fail(c, err)
		return
	}
	raw, err := readBody(c)
	if err != nil {
		failWith(c, http.StatusBadRequest, "cannot read body")
		return
	}
	if _, err := schema.Parse(raw); err != nil {
		failWith(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	doc := store.Document{"schema": json.RawMessage(raw)}
	doc.SetString("id", collection)
	_, err = h.db.Create(ctx, schemasCollection, doc)
	if errors.Is(err, db.ErrDuplicateID) {
		_, err = h.db.Update(ctx, schemasCollection, collection, db.Patch{"schema": json.RawMessage(raw)})
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, json.RawMessage(raw))
}

func (h *Handler) deleteSchema(c *gin.Context) {
	collection := c.Param("collection")
	removed, err := h.db.Remove(c.Request.Context(), schemasCollection, collection)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !removed {
		failWith(c, http.StatusNotFound, fmt.Sprintf("no schema for collection %q", collection))
		return
	}
	respond(c, http.StatusOK, gin.H{"status": "deleted", "collection": collection})
}

// ---------- schema validation helpers ----------

// schemaFor returns the schema of collection, or nil when it has none.
func (h *Handler) schemaFor(ctx context.Context, collection string) (*schema.Schema, error) {
	if err := store.ValidateName(collection); err != nil {
		return nil, err
	}
	doc, err := h.db.Get(ctx, schemasCollection, collection)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return schema.Parse(doc["schema"])
}

func (h *Handler) validate(ctx context.Context, collection string, doc store.Document) error {
	sch, err := h.schemaFor(ctx, collection)
	if err != nil || sch == nil {
		return err
	}
	return validateDoc(sch, doc)
}

// checkRecord rejects documents that the typed views of collection could not read.
func (h *Handler) checkRecord(collection string, doc store.Document) error {
	check, ok := h.recordChecks[collection]
	if !ok {
		return nil
	}
	if err := check(doc); err != nil {
		return fmt.Errorf("%w: %w", errRecordShape, err)
	}
	return nil
}

func validateDoc(sch *schema.Schema, doc store.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return sch.Validate(raw)
}
