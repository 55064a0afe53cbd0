// Package schema validates records against a subset of JSON Schema (draft-07).
//
// The store itself never enforces schemas. The HTTP layer keeps one schema per
// collection and checks incoming documents before writing them.
//
// Supported keywords:
//   - type (string, number, integer, boolean, object, array, null, or a list of these)
//   - properties, required, additionalProperties (boolean)
//   - items (single schema)
//   - minimum, maximum, exclusiveMinimum, exclusiveMaximum
//   - minLength, maxLength (counted in characters), pattern
//   - minItems, maxItems
//   - enum
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// ErrInvalidSchema is returned by Parse for schemas this package cannot use.
var ErrInvalidSchema = errors.New("invalid schema")

// ValidationError describes the first value that does not satisfy a schema.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string { return e.Path + ": " + e.Message }

// Schema is a parsed schema.
type Schema struct {
	Types                []string           `json:"-"`
	RawType              json.RawMessage    `json:"type,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	Minimum              *decimal.Decimal   `json:"minimum,omitempty"`
	Maximum              *decimal.Decimal   `json:"maximum,omitempty"`
	ExclusiveMinimum     *decimal.Decimal   `json:"exclusiveMinimum,omitempty"`
	ExclusiveMaximum     *decimal.Decimal   `json:"exclusiveMaximum,omitempty"`
	MinLength            *int               `json:"minLength,omitempty"`
	MaxLength            *int               `json:"maxLength,omitempty"`
	Pattern              string             `json:"pattern,omitempty"`
	MinItems             *int               `json:"minItems,omitempty"`
	MaxItems             *int               `json:"maxItems,omitempty"`
	Enum                 []json.RawMessage  `json:"enum,omitempty"`

	pattern *regexp.Regexp
	enum    []any
}

var knownTypes = []string{"string", "number", "integer", "boolean", "object", "array", "null"}

// Parse decodes and checks a schema.
func Parse(raw []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	if err := s.compile("$"); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Schema) compile(path string) error {
	if len(s.RawType) > 0 {
		if bytes.HasPrefix(bytes.TrimSpace(s.RawType), []byte("[")) {
			if err := json.Unmarshal(s.RawType, &s.Types); err != nil {
				return fmt.Errorf("%w: %s: type: %v", ErrInvalidSchema, path, err)
			}
		} else {
			var t string
			if err := json.Unmarshal(s.RawType, &t); err != nil {
				return fmt.Errorf("%w: %s: type: %v", ErrInvalidSchema, path, err)
			}
			s.Types = []string{t}
		}
		for _, t := range s.Types {
			if !slices.Contains(knownTypes, t) {
				return fmt.Errorf("%w: %s: unknown type %q", ErrInvalidSchema, path, t)
			}
		}
	}
	if s.Pattern != "" {
		re, err := regexp.Compile(s.Pattern)
		if err != nil {
			return fmt.Errorf("%w: %s: pattern: %v", ErrInvalidSchema, path, err)
		}
		s.pattern = re
	}
	for _, raw := range s.Enum {
		v, err := decodeValue(raw)
		if err != nil {
			return fmt.Errorf("%w: %s: enum: %v", ErrInvalidSchema, path, err)
		}
		s.enum = append(s.enum, v)
	}
	for name, prop := range s.Properties {
		if prop == nil {
			return fmt.Errorf("%w: %s.%s: property schema must be an object", ErrInvalidSchema, path, name)
		}
		if err := prop.compile(path + "." + name); err != nil {
			return err
		}
	}
	if s.Items != nil {
		if err := s.Items.compile(path + "[]"); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks a JSON document against the schema.
func (s *Schema) Validate(doc []byte) error {
	v, err := decodeValue(doc)
	if err != nil {
		return &ValidationError{Path: "$", Message: "invalid JSON: " + err.Error()}
	}
	return s.validate(v, "$")
}

// decodeValue decodes JSON keeping numbers exact.
func decodeValue(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Schema) validate(v any, path string) error {
	if len(s.Types) > 0 && !slices.ContainsFunc(s.Types, func(t string) bool { return hasType(v, t) }) {
		return &ValidationError{Path: path, Message: fmt.Sprintf("expected type %s, got %s", strings.Join(s.Types, " or "), typeOf(v))}
	}
	if s.enum != nil && !slices.ContainsFunc(s.enum, func(e any) bool { return equal(e, v) }) {
		return &ValidationError{Path: path, Message: "value not in enum"}
	}
	switch v := v.(type) {
	case map[string]any:
		return s.validateObject(v, path)
	case []any:
		return s.validateArray(v, path)
	case string:
		return s.validateString(v, path)
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return &ValidationError{Path: path, Message: "unreadable number " + v.String()}
		}
		return s.validateNumber(d, path)
	}
	return nil
}

func (s *Schema) validateObject(obj map[string]any, path string) error {
	for _, field := range s.Required {
		if _, ok := obj[field]; !ok {
			return &ValidationError{Path: path, Message: fmt.Sprintf("missing required field %q", field)}
		}
	}
	names := make([]string, 0, len(obj))
	for name := range obj {
		names = append(names, name)
	}
	slices.Sort(names)
	var extra []string
	for _, name := range names {
		prop, declared := s.Properties[name]
		if !declared {
			extra = append(extra, name)
			continue
		}
		if err := prop.validate(obj[name], path+"."+name); err != nil {
			return err
		}
	}
	if s.AdditionalProperties != nil && !*s.AdditionalProperties && len(extra) > 0 {
		return &ValidationError{Path: path, Message: "additional properties not allowed: " + strings.Join(extra, ", ")}
	}
	return nil
}

func (s *Schema) validateArray(arr []any, path string) error {
	if s.MinItems != nil && len(arr) < *s.MinItems {
		return &ValidationError{Path: path, Message: fmt.Sprintf("array length %d is less than minItems %d", len(arr), *s.MinItems)}
	}
	if s.MaxItems != nil && len(arr) > *s.MaxItems {
		return &ValidationError{Path: path, Message: fmt.Sprintf("array length %d is greater than maxItems %d", len(arr), *s.MaxItems)}
	}
	if s.Items == nil {
		return nil
	}
	for i, elem := range arr {
		if err := s.Items.validate(elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Schema) validateString(str, path string) error {
	n := utf8.RuneCountInString(str)
	if s.MinLength != nil && n < *s.MinLength {
		return &ValidationError{Path: path, Message: fmt.Sprintf("string length %d is less than minLength %d", n, *s.MinLength)}
	}
	if s.MaxLength != nil && n > *s.MaxLength {
		return &ValidationError{Path: path, Message: fmt.Sprintf("string length %d is greater than maxLength %d", n, *s.MaxLength)}
	}
	if s.pattern != nil && !s.pattern.MatchString(str) {
		return &ValidationError{Path: path, Message: fmt.Sprintf("%q does not match pattern %q", str, s.Pattern)}
	}
	return nil
}

func (s *Schema) validateNumber(n decimal.Decimal, path string) error {
	switch {
	case s.Minimum != nil && n.LessThan(*s.Minimum):
		return &ValidationError{Path: path, Message: fmt.Sprintf("%s is less than minimum %s", n, s.Minimum)}
	case s.Maximum != nil && n.GreaterThan(*s.Maximum):
		return &ValidationError{Path: path, Message: fmt.Sprintf("%s is greater than maximum %s", n, s.Maximum)}
	case s.ExclusiveMinimum != nil && n.LessThanOrEqual(*s.ExclusiveMinimum):
		return &ValidationError{Path: path, Message: fmt.Sprintf("%s is not greater than exclusiveMinimum %s", n, s.ExclusiveMinimum)}
	case s.ExclusiveMaximum != nil && n.GreaterThanOrEqual(*s.ExclusiveMaximum):
		return &ValidationError{Path: path, Message: fmt.Sprintf("%s is not less than exclusiveMaximum %s", n, s.ExclusiveMaximum)}
	}
	return nil
}

func typeOf(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		if isInteger(v) {
			return "integer"
		}
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func hasType(v any, t string) bool {
	actual := typeOf(v)
	return actual == t || (t == "number" && actual == "integer")
}

// isInteger reports whether n has no fractional part, so 2.0 counts as an integer.
func isInteger(n json.Number) bool {
	d, err := decimal.NewFromString(n.String())
	return err == nil && d.Equal(d.Truncate(0))
}

func equal(a, b any) bool {
	switch a := a.(type) {
	case json.Number:
		bn, ok := b.(json.Number)
		if !ok {
			return false
		}
		x, err1 := decimal.NewFromString(a.String())
		y, err2 := decimal.NewFromString(bn.String())
		return err1 == nil && err2 == nil && x.Equal(y)
	case map[string]any:
		bm, ok := b.(map[string]any)
		if !ok || len(a) != len(bm) {
			return false
		}
		for k, av := range a {
			bv, ok := bm[k]
			if !ok || !equal(av, bv) {
				return false
			}
		}
		return true
	case []any:
		ba, ok := b.([]any)
		if !ok || len(a) != len(ba) {
			return false
		}
		for i := range a {
			if !equal(a[i], ba[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
