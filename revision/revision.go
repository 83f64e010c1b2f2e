// Package revision defines the monotonic logical clock used to identify
// store snapshots throughout the state history engine.
package revision

import (
	"strconv"
)

// Revision is a totally ordered, monotonically increasing identifier for a
// StateView snapshot. The zero value is the revision before any write has
// occurred.
type Revision uint64

// Zero is the revision of the empty, pre-seed state.
func Zero() Revision { return 0 }

// Increment returns the next revision after r.
func (r Revision) Increment() Revision { return r + 1 }

// Before reports whether r precedes other.
func (r Revision) Before(other Revision) bool { return r < other }

// String renders r in its canonical resource_version form.
func (r Revision) String() string { return strconv.FormatUint(uint64(r), 10) }

// ParseRevision parses the canonical resource_version form back into a
// Revision. It is the left inverse of String: ParseRevision(r.String()) ==
// (r, nil) for every r.
func ParseRevision(s string) (Revision, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return Revision(v), nil
}
