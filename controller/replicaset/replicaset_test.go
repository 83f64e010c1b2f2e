package replicaset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	appsv1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/apps/v1alpha1"
	corev1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/core/v1alpha1"
	"github.com/jeffa5/model-checked-orchestration/controller/replicaset"
	"github.com/jeffa5/model-checked-orchestration/state"
)

func int32ptr(i int32) *int32 { return &i }

func newTestReplicaSet(name string, replicas int32) *appsv1alpha1.ReplicaSet {
	rs := &appsv1alpha1.ReplicaSet{}
	rs.Name = name
	rs.UID = "rs-uid-" + name
	rs.Spec.Replicas = int32ptr(replicas)
	rs.Spec.Selector = &metav1.LabelSelector{MatchLabels: map[string]string{"app": name}}
	rs.Spec.Template.Labels = map[string]string{"app": name}
	rs.Spec.Template.Spec.Containers = []corev1.Container{{Name: "c", Image: "img"}}
	rs.Spec.Template.Spec.RestartPolicy = corev1.RestartPolicyAlways
	return rs
}

func TestJoinsFirst(t *testing.T) {
	v := state.NewView()
	c := replicaset.New()
	action, ok := c.Step(1, &v)
	require.True(t, ok)
	assert.Equal(t, state.ControllerJoin{ID: 1}, action.Operation)
}

func TestScalesUpToReplicas(t *testing.T) {
	v := state.NewView()
	v = v.Apply(state.ControllerJoin{ID: 1})
	rs := newTestReplicaSet("web", 2)
	v = v.Apply(state.NewReplicaSet{ReplicaSet: rs})

	c := replicaset.New()

	action, ok := c.Step(1, &v)
	require.True(t, ok)
	newPod, ok := action.Operation.(state.NewPod)
	require.True(t, ok)
	v = v.Apply(newPod)

	action, ok = c.Step(1, &v)
	require.True(t, ok)
	newPod2, ok := action.Operation.(state.NewPod)
	require.True(t, ok)
	v = v.Apply(newPod2)

	count := 0
	for range v.Pods.Iter() {
		count++
	}
	assert.Equal(t, 2, count)

	// A third step only syncs status now that replica count is satisfied.
	action, ok = c.Step(1, &v)
	require.True(t, ok)
	upsert, ok := action.Operation.(state.UpsertReplicaSet)
	require.True(t, ok)
	assert.Equal(t, int32(2), upsert.ReplicaSet.Status.Replicas)
}

func TestScalesDownToReplicas(t *testing.T) {
	v := state.NewView()
	v = v.Apply(state.ControllerJoin{ID: 1})
	rs := newTestReplicaSet("web", 1)
	v = v.Apply(state.NewReplicaSet{ReplicaSet: rs})

	for _, name := range []string{"web-a", "web-b"} {
		pod := &corev1alpha1.Pod{}
		pod.Name = name
		pod.Labels = map[string]string{"app": "web"}
		pod.OwnerReferences = []metav1.OwnerReference{{UID: rs.UID, Controller: boolPtrTest(true)}}
		v = v.Apply(state.NewPod{Pod: pod})
	}

	c := replicaset.New()
	action, ok := c.Step(1, &v)
	require.True(t, ok)
	del, ok := action.Operation.(state.DeletePod)
	require.True(t, ok)
	assert.Contains(t, []string{"web-a", "web-b"}, del.PodName)
}

func boolPtrTest(b bool) *bool { return &b }
