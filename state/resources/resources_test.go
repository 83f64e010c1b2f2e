package resources_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	corev1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/core/v1alpha1"
	"github.com/jeffa5/model-checked-orchestration/errs"
	"github.com/jeffa5/model-checked-orchestration/revision"
	"github.com/jeffa5/model-checked-orchestration/state/resources"
)

func pod(name string) *corev1alpha1.Pod {
	return &corev1alpha1.Pod{ObjectMeta: metav1.ObjectMeta{Name: name}}
}

func TestInsertSortsByName(t *testing.T) {
	r := resources.New[*corev1alpha1.Pod]()
	require.NoError(t, r.Insert(pod("c"), 1))
	require.NoError(t, r.Insert(pod("a"), 2))
	require.NoError(t, r.Insert(pod("b"), 3))

	var names []string
	for _, p := range r.Iter() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestInsertConflictOnUIDMismatch(t *testing.T) {
	r := resources.New[*corev1alpha1.Pod]()
	p1 := pod("a")
	p1.UID = "uid-1"
	require.NoError(t, r.Insert(p1, 1))

	p2 := pod("a")
	p2.UID = "uid-2"
	err := r.Insert(p2, 2)
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestInsertStaleWrite(t *testing.T) {
	r := resources.New[*corev1alpha1.Pod]()
	require.NoError(t, r.Insert(pod("a"), 1))

	stale := pod("a")
	stale.ResourceVersion = revision.Revision(999).String()
	err := r.Insert(stale, 2)
	assert.ErrorIs(t, err, errs.ErrStaleWrite)
}

func TestInsertBumpsGenerationOnSpecChange(t *testing.T) {
	r := resources.New[*corev1alpha1.Pod]()
	p := pod("a")
	require.NoError(t, r.Insert(p, 1))
	stored, _ := r.Get("a")
	assert.Equal(t, int64(1), stored.Generation)

	updated := pod("a")
	updated.ResourceVersion = stored.ResourceVersion
	updated.Spec.NodeName = "node-1"
	require.NoError(t, r.Insert(updated, 2))
	stored, _ = r.Get("a")
	assert.Equal(t, int64(2), stored.Generation)
	assert.Equal(t, "node-1", stored.Spec.NodeName)
}

func TestInsertNoGenerationBumpWithoutSpecChange(t *testing.T) {
	r := resources.New[*corev1alpha1.Pod]()
	p := pod("a")
	require.NoError(t, r.Insert(p, 1))
	stored, _ := r.Get("a")

	same := pod("a")
	same.ResourceVersion = stored.ResourceVersion
	same.Labels = map[string]string{"k": "v"}
	require.NoError(t, r.Insert(same, 2))
	stored, _ = r.Get("a")
	assert.Equal(t, int64(1), stored.Generation)
}

func TestCloneIsIndependent(t *testing.T) {
	r := resources.New[*corev1alpha1.Pod]()
	require.NoError(t, r.Insert(pod("a"), 1))

	clone := r.Clone()
	require.NoError(t, clone.Insert(pod("b"), 2))

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 2, clone.Len())
}

func TestRemove(t *testing.T) {
	r := resources.New[*corev1alpha1.Pod]()
	require.NoError(t, r.Insert(pod("a"), 1))

	removed, ok := r.Remove("a")
	require.True(t, ok)
	assert.Equal(t, "a", removed.Name)
	assert.False(t, r.Has("a"))

	_, ok = r.Remove("missing")
	assert.False(t, ok)
}

func TestForController(t *testing.T) {
	r := resources.New[*corev1alpha1.Pod]()
	owned := pod("a")
	owned.OwnerReferences = []metav1.OwnerReference{{UID: "owner-1"}}
	require.NoError(t, r.Insert(owned, 1))
	require.NoError(t, r.Insert(pod("b"), 2))

	owned2 := r.ForController("owner-1")
	require.Len(t, owned2, 1)
	assert.Equal(t, "a", owned2[0].Name)
}
