package db

import (
	"bytes"
	"slices"

	"github.com/goccy/go-json"

	"github.com/stevemurr/shopstore/store"
)

// Predicate selects records.
type Predicate[T any] func(T) bool

// Filter returns the items matching pred, keeping their order. A nil pred matches everything.
func Filter[T any](items []T, pred Predicate[T]) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if pred == nil || pred(item) {
			out = append(out, item)
		}
	}
	return out
}

// FieldMatches matches documents whose field equals text, either as a string
// value or as the literal JSON text of a number or boolean. It is meant for
// filters taken from query strings, where the type of the value is unknown.
func FieldMatches(field, text string) func(store.Document) bool {
	return func(doc store.Document) bool {
		raw, ok := doc[field]
		if !ok {
			return false
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s == text
		}
		return string(bytes.TrimSpace(raw)) == text
	}
}

// SortBy returns a sorted copy of items. Equal items keep their relative order.
func SortBy[T any](items []T, cmp func(a, b T) int) []T {
	out := slices.Clone(items)
	slices.SortStableFunc(out, cmp)
	return out
}

// Page is one window of a longer result.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// Paginate cuts items[offset:offset+limit]. A limit of zero or less means no limit.
func Paginate[T any](items []T, offset, limit int) Page[T] {
	total := len(items)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && limit < total-offset {
		end = offset + limit
	}
	page := make([]T, end-offset)
	copy(page, items[offset:end])
	return Page[T]{Items: page, Total: total, Offset: offset, Limit: limit}
}
