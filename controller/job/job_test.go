package job_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"

	batchv1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/batch/v1alpha1"
	"github.com/jeffa5/model-checked-orchestration/clock"
	"github.com/jeffa5/model-checked-orchestration/controller/job"
	"github.com/jeffa5/model-checked-orchestration/state"
)

func int32ptr(v int32) *int32 { return &v }

func newTestJob(name string) *batchv1alpha1.Job {
	j := &batchv1alpha1.Job{}
	j.Name = name
	j.Spec.Template.Spec.Containers = []corev1.Container{{Name: "c", Image: "busybox"}}
	j.Spec.Template.Spec.RestartPolicy = corev1.RestartPolicyNever
	return j
}

func step(t *testing.T, c *job.Controller, v state.View) (state.View, bool) {
	t.Helper()
	action, ok := c.Step(1, &v)
	if !ok {
		return v, false
	}
	return v.Apply(action.Operation), true
}

func TestJoinsFirst(t *testing.T) {
	v := state.NewView()
	c := job.New()
	action, ok := c.Step(1, &v)
	require.True(t, ok)
	assert.Equal(t, state.ControllerJoin{ID: 1}, action.Operation)
}

func TestNonParallelJobCreatesOnePod(t *testing.T) {
	v := state.NewView()
	v = v.Apply(state.ControllerJoin{ID: 1})
	v = v.Apply(state.UpsertJob{Job: newTestJob("j1")})

	c := &job.Controller{Clock: clock.NewFakeClock(time.Unix(0, 0))}
	v, ok := step(t, c, v)
	require.True(t, ok)
	assert.Equal(t, 1, v.Pods.Len())
}

func TestParallelJobCreatesUpToParallelism(t *testing.T) {
	v := state.NewView()
	v = v.Apply(state.ControllerJoin{ID: 1})
	j := newTestJob("j2")
	j.Spec.Parallelism = int32ptr(3)
	v = v.Apply(state.UpsertJob{Job: j})

	c := &job.Controller{Clock: clock.NewFakeClock(time.Unix(0, 0))}
	var ok bool
	for i := 0; i < 3; i++ {
		v, ok = step(t, c, v)
		require.True(t, ok)
	}
	assert.Equal(t, 3, v.Pods.Len())

	// A fourth step with no completions/parallelism headroom left should
	// fall through to a routine status sync rather than creating another
	// pod.
	v, ok = step(t, c, v)
	require.True(t, ok)
	assert.Equal(t, 3, v.Pods.Len())
	updated, found := v.Jobs.Get("j2")
	require.True(t, found)
	assert.Equal(t, int32(3), updated.Status.Active)
}

func TestBackoffLimitExceededFailsJob(t *testing.T) {
	v := state.NewView()
	v = v.Apply(state.ControllerJoin{ID: 1})
	j := newTestJob("j3")
	j.Spec.BackoffLimit = int32ptr(2)
	j.Status.Failed = 3
	v = v.Apply(state.UpsertJob{Job: j})

	c := &job.Controller{Clock: clock.NewFakeClock(time.Unix(0, 0))}
	v, ok := step(t, c, v)
	require.True(t, ok)

	updated, found := v.Jobs.Get("j3")
	require.True(t, found)
	var failed *batchv1alpha1.JobCondition
	for i := range updated.Status.Conditions {
		if updated.Status.Conditions[i].Type == batchv1alpha1.JobFailed {
			failed = &updated.Status.Conditions[i]
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, corev1.ConditionTrue, failed.Status)
}

func TestSuspendResumeResetsStartTime(t *testing.T) {
	v := state.NewView()
	v = v.Apply(state.ControllerJoin{ID: 1})
	j := newTestJob("j4")
	j.Spec.Suspend = boolPtrTest(true)
	v = v.Apply(state.UpsertJob{Job: j})

	fc := clock.NewFakeClock(time.Unix(100, 0))
	c := &job.Controller{Clock: fc}

	v, ok := step(t, c, v)
	require.True(t, ok)
	suspended, found := v.Jobs.Get("j4")
	require.True(t, found)
	cond := findCond(suspended.Status.Conditions, batchv1alpha1.JobSuspended)
	require.NotNil(t, cond)
	assert.Equal(t, corev1.ConditionTrue, cond.Status)

	// resume
	resumedSpec := suspended.DeepCopy()
	resumedSpec.Spec.Suspend = boolPtrTest(false)
	v = v.Apply(state.UpsertJob{Job: resumedSpec})

	fc.Set(time.Unix(200, 0))
	v, ok = step(t, c, v)
	require.True(t, ok)
	resumed, found := v.Jobs.Get("j4")
	require.True(t, found)
	require.NotNil(t, resumed.Status.StartTime)
	assert.Equal(t, int64(200), resumed.Status.StartTime.Unix())
}

func findCond(conds []batchv1alpha1.JobCondition, t batchv1alpha1.JobConditionType) *batchv1alpha1.JobCondition {
	for i := range conds {
		if conds[i].Type == t {
			return &conds[i]
		}
	}
	return nil
}

func boolPtrTest(b bool) *bool { return &b }
