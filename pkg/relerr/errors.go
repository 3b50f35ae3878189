// Package relerr defines the error kinds raised across the engine: scheme
// violations, storage adapter failures, (de)serialization failures, and
// internal invariant violations.
package relerr

import (
	"fmt"
	"sync/atomic"
)

// debugMode controls whether ErrInvariantViolation panics (debug) or is
// merely returned to the caller (release).
var debugMode atomic.Bool

// DebugMode toggles whether NewInvariantViolationError panics immediately
// instead of returning. Off by default.
func DebugMode(on bool) { debugMode.Store(on) }

// ErrSchemeViolation is raised when a row's attributes do not match a
// relation's scheme, or two relations are combined with incompatible
// schemes.
type ErrSchemeViolation = error

// NewSchemeViolationError builds an ErrSchemeViolation.
func NewSchemeViolationError(context string, err error) ErrSchemeViolation {
	if err == nil {
		return fmt.Errorf("scheme violation in %s", context)
	}
	return fmt.Errorf("scheme violation in %s: %w", context, err)
}

// ErrStorage wraps an error returned by a storage adapter (I/O, corruption,
// missing file).
type ErrStorage = error

// NewStorageError builds an ErrStorage.
func NewStorageError(adapter string, err error) ErrStorage {
	return fmt.Errorf("storage adapter %q failed: %w", adapter, err)
}

// ErrSerialization is raised on a malformed encoding read, or an
// unserializable value on write.
type ErrSerialization = error

// NewSerializationError builds an ErrSerialization.
func NewSerializationError(context string, err error) ErrSerialization {
	return fmt.Errorf("serialization error in %s: %w", context, err)
}

// ErrInvariantViolation signals an internal bug, e.g. a willChange/didChange
// mismatch. In debug mode this panics so the violation is caught close to
// its cause; in release mode it is returned like any other error.
type ErrInvariantViolation = error

// NewInvariantViolationError builds an ErrInvariantViolation. If
// DebugMode(true) was set, it panics instead of returning.
func NewInvariantViolationError(context string) ErrInvariantViolation {
	err := fmt.Errorf("invariant violation: %s", context)
	if debugMode.Load() {
		panic(err)
	}
	return err
}
