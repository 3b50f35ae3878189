package storage

import (
	"errors"
	"fmt"

	"github.com/l7mp/reldb/pkg/relerr"
	"github.com/l7mp/reldb/pkg/value"
)

// ErrKeyNotInScheme is returned when a plist adapter's key attribute set
// is not a subset of the relation scheme it was asked to store.
var ErrKeyNotInScheme = errors.New("primary key attributes are not a subset of the relation scheme")

// NewSchemeMismatchError reports a row whose scheme does not match the
// adapter it was added to.
func NewSchemeMismatchError(got, want value.Scheme) relerr.ErrSchemeViolation {
	return relerr.NewSchemeViolationError("storage add",
		fmt.Errorf("row scheme %s does not match adapter scheme %s", got, want))
}

// NewStorageError wraps an error from a concrete adapter backend.
func NewStorageError(adapter string, err error) relerr.ErrStorage {
	return relerr.NewStorageError(adapter, err)
}

// NewSerializationError wraps a (de)serialization failure from a
// concrete adapter's on-disk encoding.
func NewSerializationError(context string, err error) relerr.ErrSerialization {
	return relerr.NewSerializationError(context, err)
}
