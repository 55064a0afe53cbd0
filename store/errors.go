package store

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptCollection matches errors for stored content that cannot be parsed.
	ErrCorruptCollection = errors.New("corrupt collection")
	// ErrIO matches errors for reads or writes that could not complete.
	ErrIO = errors.New("storage i/o failure")
	// ErrInvalidName is returned for collection names that cannot be stored.
	ErrInvalidName = errors.New("invalid collection name")
)

// CorruptCollectionError reports a collection whose stored form is unparsable.
type CorruptCollectionError struct {
	Collection string
	Err        error
}

func (e *CorruptCollectionError) Error() string {
	return fmt.Sprintf("collection %q is corrupt: %v", e.Collection, e.Err)
}

func (e *CorruptCollectionError) Unwrap() error { return e.Err }

func (e *CorruptCollectionError) Is(target error) bool { return target == ErrCorruptCollection }

// IOError reports a failed load or save.
type IOError struct {
	Op         string
	Collection string
	Err        error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s collection %q: %v", e.Op, e.Collection, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }
