// Package resources implements the name-indexed, sorted, structurally
// shared resource collection that every StateView kind is built from.
package resources

import (
	"sort"

	"github.com/google/go-cmp/cmp"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/types"

	"github.com/jeffa5/model-checked-orchestration/errs"
	"github.com/jeffa5/model-checked-orchestration/revision"
)

// Meta is satisfied by every resource kind the store manages. GetSpec
// returns the kind's Spec field as an interface{} so Insert can detect
// spec changes (and bump Generation) generically, without a type switch
// over every concrete kind.
type Meta interface {
	Meta() *metav1.ObjectMeta
	GetSpec() interface{}
}

// Resources is a name-indexed, sorted collection of one resource kind. The
// zero value is an empty collection. Resources is a value type: Clone
// shares the backing array with its source until the first mutation since
// the clone, at which point the mutating call reallocates only this
// collection's backing array.
type Resources[T Meta] struct {
	items []T
}

// New returns an empty collection.
func New[T Meta]() Resources[T] {
	return Resources[T]{}
}

// Clone returns a collection sharing r's backing array. The clone and the
// original remain independent: the first mutating call on either
// reallocates that call's own backing array.
func (r Resources[T]) Clone() Resources[T] {
	return Resources[T]{items: r.items}
}

// Len reports the number of resources held.
func (r Resources[T]) Len() int { return len(r.items) }

// IsEmpty reports whether the collection holds no resources.
func (r Resources[T]) IsEmpty() bool { return len(r.items) == 0 }

func (r Resources[T]) search(name string) int {
	return sort.Search(len(r.items), func(i int) bool {
		return r.items[i].Meta().Name >= name
	})
}

// Get returns the resource named name, if present.
func (r Resources[T]) Get(name string) (T, bool) {
	i := r.search(name)
	if i < len(r.items) && r.items[i].Meta().Name == name {
		return r.items[i], true
	}
	var zero T
	return zero, false
}

// Has reports whether name is present.
func (r Resources[T]) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Iter returns every resource in name order. The returned slice shares
// r's backing array and must not be mutated by the caller.
func (r Resources[T]) Iter() []T { return r.items }

// Insert applies §4.2's insert semantics: conflict on uid mismatch, stale
// write on resource_version mismatch, generation bump on spec change,
// otherwise plain insert/replace. atRevision becomes the new
// resource_version on success.
func (r *Resources[T]) Insert(resource T, atRevision revision.Revision) error {
	meta := resource.Meta()
	i := r.search(meta.Name)
	if i == len(r.items) || r.items[i].Meta().Name != meta.Name {
		// Fresh insert.
		if meta.UID == "" {
			meta.UID = types.UID(uuidLike(meta.Name, atRevision))
		}
		meta.ResourceVersion = atRevision.String()
		if meta.Generation == 0 {
			meta.Generation = 1
		}
		items := make([]T, len(r.items)+1)
		copy(items, r.items[:i])
		items[i] = resource
		copy(items[i+1:], r.items[i:])
		r.items = items
		return nil
	}

	existing := r.items[i]
	existingMeta := existing.Meta()
	if meta.UID != "" && existingMeta.UID != "" && meta.UID != existingMeta.UID {
		return errs.ErrConflict
	}
	if meta.ResourceVersion != "" && meta.ResourceVersion != existingMeta.ResourceVersion {
		return errs.ErrStaleWrite
	}

	meta.UID = existingMeta.UID
	meta.CreationTimestamp = existingMeta.CreationTimestamp
	meta.Generation = existingMeta.Generation
	if !specEqual(existing, resource) {
		meta.Generation = existingMeta.Generation + 1
	}
	meta.ResourceVersion = atRevision.String()

	items := make([]T, len(r.items))
	copy(items, r.items)
	items[i] = resource
	r.items = items
	return nil
}

// specEqual compares the two resources' Spec fields structurally.
func specEqual[T Meta](a, b T) bool {
	return cmp.Diff(a.GetSpec(), b.GetSpec()) == ""
}

// Remove deletes the resource named name, returning it if present.
func (r *Resources[T]) Remove(name string) (T, bool) {
	i := r.search(name)
	if i == len(r.items) || r.items[i].Meta().Name != name {
		var zero T
		return zero, false
	}
	removed := r.items[i]
	items := make([]T, len(r.items)-1)
	copy(items, r.items[:i])
	copy(items[i:], r.items[i+1:])
	r.items = items
	return removed, true
}

// Retain keeps only the resources for which keep returns true.
func (r *Resources[T]) Retain(keep func(T) bool) {
	items := make([]T, 0, len(r.items))
	for _, it := range r.items {
		if keep(it) {
			items = append(items, it)
		}
	}
	r.items = items
}

// ForController returns every resource owned (via OwnerReferences) by uid.
func (r Resources[T]) ForController(uid types.UID) []T {
	var out []T
	for _, it := range r.items {
		for _, owner := range it.Meta().OwnerReferences {
			if owner.UID == uid {
				out = append(out, it)
				break
			}
		}
	}
	return out
}

// Matching returns every resource whose labels satisfy selector.
func (r Resources[T]) Matching(selector labels.Selector) []T {
	var out []T
	for _, it := range r.items {
		if selector.Matches(labels.Set(it.Meta().Labels)) {
			out = append(out, it)
		}
	}
	return out
}

// uuidLike derives a deterministic placeholder uid from the resource name
// and the revision it was created at, used only when the caller supplied
// none. Real uid assignment (google/uuid) happens at the controller layer
// when constructing a brand-new resource (see controller/job's pod
// creation path); this fallback only guards collection-level invariants.
func uuidLike(name string, r revision.Revision) string {
	return name + "@" + r.String()
}
