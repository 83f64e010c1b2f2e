package deployment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	appsv1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/apps/v1alpha1"
	"github.com/jeffa5/model-checked-orchestration/controller/deployment"
	"github.com/jeffa5/model-checked-orchestration/state"
)

func int32ptr(i int32) *int32 { return &i }

func newTestDeployment(name string, replicas int32) *appsv1alpha1.Deployment {
	d := &appsv1alpha1.Deployment{}
	d.Name = name
	d.UID = "dep-uid-" + name
	d.Spec.Replicas = int32ptr(replicas)
	d.Spec.Selector = &metav1.LabelSelector{MatchLabels: map[string]string{"app": name}}
	d.Spec.Template.Labels = map[string]string{"app": name}
	d.Spec.Template.Spec.Containers = []corev1.Container{{Name: "c", Image: "img"}}
	d.Spec.Template.Spec.RestartPolicy = corev1.RestartPolicyAlways
	return d
}

func TestJoinsFirst(t *testing.T) {
	v := state.NewView()
	c := deployment.New()
	action, ok := c.Step(1, &v)
	require.True(t, ok)
	assert.Equal(t, state.ControllerJoin{ID: 1}, action.Operation)
}

func TestCreatesOwnedReplicaSet(t *testing.T) {
	v := state.NewView()
	v = v.Apply(state.ControllerJoin{ID: 1})
	d := newTestDeployment("web", 3)
	v = v.Apply(state.UpsertDeployment{Deployment: d})

	c := deployment.New()
	action, ok := c.Step(1, &v)
	require.True(t, ok)
	newRS, ok := action.Operation.(state.NewReplicaSet)
	require.True(t, ok)
	assert.Equal(t, "web-rs", newRS.ReplicaSet.Name)
	require.NotNil(t, newRS.ReplicaSet.Spec.Replicas)
	assert.Equal(t, int32(3), *newRS.ReplicaSet.Spec.Replicas)
}

func TestSyncsSpecChangeToReplicaSet(t *testing.T) {
	v := state.NewView()
	v = v.Apply(state.ControllerJoin{ID: 1})
	d := newTestDeployment("web", 3)
	v = v.Apply(state.UpsertDeployment{Deployment: d})

	c := deployment.New()
	action, ok := c.Step(1, &v)
	require.True(t, ok)
	v = v.Apply(action.Operation)

	updated := d.DeepCopy()
	updated.Spec.Replicas = int32ptr(5)
	v = v.Apply(state.UpsertDeployment{Deployment: updated})

	action, ok = c.Step(1, &v)
	require.True(t, ok)
	upsertRS, ok := action.Operation.(state.UpsertReplicaSet)
	require.True(t, ok)
	require.NotNil(t, upsertRS.ReplicaSet.Spec.Replicas)
	assert.Equal(t, int32(5), *upsertRS.ReplicaSet.Spec.Replicas)
}

func TestCopiesReplicaSetStatusUpward(t *testing.T) {
	v := state.NewView()
	v = v.Apply(state.ControllerJoin{ID: 1})
	d := newTestDeployment("web", 1)
	v = v.Apply(state.UpsertDeployment{Deployment: d})

	c := deployment.New()
	action, ok := c.Step(1, &v)
	require.True(t, ok)
	v = v.Apply(action.Operation)

	rs, ok := v.ReplicaSets.Get("web-rs")
	require.True(t, ok)
	updatedRS := rs.DeepCopy()
	updatedRS.Status.Replicas = 1
	updatedRS.Status.ReadyReplicas = 1
	v = v.Apply(state.UpsertReplicaSet{ReplicaSet: updatedRS})

	action, ok = c.Step(1, &v)
	require.True(t, ok)
	upsertDep, ok := action.Operation.(state.UpsertDeployment)
	require.True(t, ok)
	assert.Equal(t, int32(1), upsertDep.Deployment.Status.Replicas)
	assert.Equal(t, int32(1), upsertDep.Deployment.Status.ReadyReplicas)
}
