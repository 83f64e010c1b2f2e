package node_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corev1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/core/v1alpha1"
	"github.com/jeffa5/model-checked-orchestration/controller/node"
	"github.com/jeffa5/model-checked-orchestration/state"
)

func TestJoinsFirst(t *testing.T) {
	v := state.NewView()
	c := node.New("n1")
	action, ok := c.Step(1, &v)
	require.True(t, ok)
	assert.Equal(t, state.ControllerJoin{ID: 1}, action.Operation)
}

func TestJoinsClusterOnFirstStepAfterRegistering(t *testing.T) {
	v := state.NewView()
	v = v.Apply(state.ControllerJoin{ID: 1})

	c := node.New("n1")
	action, ok := c.Step(1, &v)
	require.True(t, ok)
	join, ok := action.Operation.(state.NodeJoin)
	require.True(t, ok)
	assert.Equal(t, "n1", join.NodeName)
}

func TestRunsScheduledPod(t *testing.T) {
	v := state.NewView()
	v = v.Apply(state.ControllerJoin{ID: 1})
	v = v.Apply(state.NodeJoin{NodeName: "n1"})

	pod := &corev1alpha1.Pod{}
	pod.Name = "p1"
	v = v.Apply(state.NewPod{Pod: pod})
	v = v.Apply(state.SchedulePod{PodName: "p1", NodeName: "n1"})

	c := node.New("n1")
	action, ok := c.Step(1, &v)
	require.True(t, ok)
	run, ok := action.Operation.(state.RunPod)
	require.True(t, ok)
	assert.Equal(t, "p1", run.PodName)
	assert.Equal(t, "n1", run.NodeName)
}

func TestIdleOnceEverythingSettled(t *testing.T) {
	v := state.NewView()
	v = v.Apply(state.ControllerJoin{ID: 1})
	v = v.Apply(state.NodeJoin{NodeName: "n1"})

	pod := &corev1alpha1.Pod{}
	pod.Name = "p1"
	v = v.Apply(state.NewPod{Pod: pod})
	v = v.Apply(state.SchedulePod{PodName: "p1", NodeName: "n1"})
	v = v.Apply(state.RunPod{PodName: "p1", NodeName: "n1"})

	c := node.New("n1")
	_, ok := c.Step(1, &v)
	assert.False(t, ok)
}

func TestIgnoresPodsScheduledElsewhere(t *testing.T) {
	v := state.NewView()
	v = v.Apply(state.ControllerJoin{ID: 1})
	v = v.Apply(state.NodeJoin{NodeName: "n1"})
	v = v.Apply(state.NodeJoin{NodeName: "n2"})

	pod := &corev1alpha1.Pod{}
	pod.Name = "p1"
	v = v.Apply(state.NewPod{Pod: pod})
	v = v.Apply(state.SchedulePod{PodName: "p1", NodeName: "n2"})

	c := node.New("n1")
	_, ok := c.Step(1, &v)
	assert.False(t, ok)
}
