package statefulset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	appsv1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/apps/v1alpha1"
	corev1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/core/v1alpha1"
	"github.com/jeffa5/model-checked-orchestration/controller/statefulset"
	"github.com/jeffa5/model-checked-orchestration/state"
)

func int32ptr(i int32) *int32 { return &i }

func newTestStatefulSet(name string, replicas int32) *appsv1alpha1.StatefulSet {
	sts := &appsv1alpha1.StatefulSet{}
	sts.Name = name
	sts.UID = "sts-uid-" + name
	sts.Spec.Replicas = int32ptr(replicas)
	sts.Spec.ServiceName = name
	sts.Spec.Template.Spec.Containers = []corev1.Container{{Name: "c", Image: "img"}}
	sts.Spec.Template.Spec.RestartPolicy = corev1.RestartPolicyAlways
	return sts
}

// ownedPod builds a pod named <sts>-<ordinal>, owned by sts. When ready is
// true it is placed on a node and marked ready so the ordinal it occupies
// counts as healthy; otherwise it is left unscheduled and not ready.
func ownedPod(sts *appsv1alpha1.StatefulSet, ordinal int, ready bool) *corev1alpha1.Pod {
	p := &corev1alpha1.Pod{}
	p.Name = sts.Name + "-" + itoa(ordinal)
	p.OwnerReferences = []metav1.OwnerReference{{UID: sts.UID, Controller: boolPtrTest(true)}}
	p.Spec.Containers = sts.Spec.Template.Spec.Containers
	if ready {
		p.Spec.NodeName = "n1"
		p.Status.Conditions = []corev1.PodCondition{{Type: corev1.PodReady, Status: corev1.ConditionTrue}}
	}
	return p
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := ""
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		digits = string(rune('0'+i%10)) + digits
		i /= 10
	}
	if neg {
		digits = "-" + digits
	}
	return digits
}

func boolPtrTest(b bool) *bool { return &b }

func TestJoinsFirst(t *testing.T) {
	v := state.NewView()
	c := statefulset.New()
	action, ok := c.Step(1, &v)
	require.True(t, ok)
	assert.Equal(t, state.ControllerJoin{ID: 1}, action.Operation)
}

func TestCreatesOrdinalZeroFirst(t *testing.T) {
	v := state.NewView()
	v = v.Apply(state.ControllerJoin{ID: 1})
	sts := newTestStatefulSet("db", 2)
	v = v.Apply(state.UpsertStatefulSet{StatefulSet: sts})

	c := statefulset.New()
	action, ok := c.Step(1, &v)
	require.True(t, ok)
	newPod, ok := action.Operation.(state.NewPod)
	require.True(t, ok)
	assert.Equal(t, "db-0", newPod.Pod.Name)
}

func TestWaitsForLowerOrdinalReadyBeforeNext(t *testing.T) {
	v := state.NewView()
	v = v.Apply(state.ControllerJoin{ID: 1})
	sts := newTestStatefulSet("db", 2)
	v = v.Apply(state.UpsertStatefulSet{StatefulSet: sts})
	v = v.Apply(state.NewPod{Pod: ownedPod(sts, 0, false)})

	c := statefulset.New()
	action, ok := c.Step(1, &v)
	if ok {
		_, isNewPod := action.Operation.(state.NewPod)
		assert.False(t, isNewPod, "should not create db-1 before db-0 is ready")
	}
}

func TestCreatesNextOrdinalOnceLowerIsReady(t *testing.T) {
	v := state.NewView()
	v = v.Apply(state.ControllerJoin{ID: 1})
	sts := newTestStatefulSet("db", 2)
	v = v.Apply(state.UpsertStatefulSet{StatefulSet: sts})
	v = v.Apply(state.NewPod{Pod: ownedPod(sts, 0, true)})

	c := statefulset.New()
	action, ok := c.Step(1, &v)
	require.True(t, ok)
	newPod, ok := action.Operation.(state.NewPod)
	require.True(t, ok)
	assert.Equal(t, "db-1", newPod.Pod.Name)
}

func TestScalesDownHighestOrdinalFirst(t *testing.T) {
	v := state.NewView()
	v = v.Apply(state.ControllerJoin{ID: 1})
	sts := newTestStatefulSet("db", 1)
	v = v.Apply(state.UpsertStatefulSet{StatefulSet: sts})
	v = v.Apply(state.NewPod{Pod: ownedPod(sts, 0, true)})
	v = v.Apply(state.NewPod{Pod: ownedPod(sts, 1, true)})

	c := statefulset.New()
	action, ok := c.Step(1, &v)
	require.True(t, ok)
	del, ok := action.Operation.(state.DeletePod)
	require.True(t, ok)
	assert.Equal(t, "db-1", del.PodName)
}

func TestSyncsStatusOnceScaled(t *testing.T) {
	v := state.NewView()
	v = v.Apply(state.ControllerJoin{ID: 1})
	sts := newTestStatefulSet("db", 1)
	v = v.Apply(state.UpsertStatefulSet{StatefulSet: sts})
	v = v.Apply(state.NewPod{Pod: ownedPod(sts, 0, true)})

	c := statefulset.New()
	action, ok := c.Step(1, &v)
	require.True(t, ok)
	upsert, ok := action.Operation.(state.UpsertStatefulSet)
	require.True(t, ok)
	assert.Equal(t, int32(1), upsert.StatefulSet.Status.Replicas)
	assert.Equal(t, int32(1), upsert.StatefulSet.Status.ReadyReplicas)
}
