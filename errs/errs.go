// Package errs collects the sentinel errors shared across the store and
// reconciler layers.
package errs

import "github.com/pkg/errors"

// ErrConflict is returned when an insert names an existing resource with a
// different uid.
var ErrConflict = errors.New("resource conflict: existing uid does not match")

// ErrStaleWrite is returned when an update supplies a resource_version that
// no longer matches the stored one.
var ErrStaleWrite = errors.New("stale write: resource_version mismatch")

// ErrNotFound names the missing-resource case. The Resources collection
// does not return it: Get and Remove report absence with a bool.
var ErrNotFound = errors.New("resource not found")

// ErrInvariantViolation indicates a bug in the driver or history layer: a
// revision was requested that no retained view can satisfy. The history
// strategies panic with it, and nothing in this repository recovers the
// panic, so it ends the exploration.
var ErrInvariantViolation = errors.New("internal invariant violation")

// Wrap attaches call-site context to err while preserving Is/As matching
// against the sentinels above.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, message)
}

// Wrapf is Wrap with fmt-style formatting.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}
