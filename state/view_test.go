package state_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corev1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/core/v1alpha1"
	"github.com/jeffa5/model-checked-orchestration/state"
)

func TestApplyNodeJoinAndRunPod(t *testing.T) {
	v := state.NewView()
	v = v.Apply(state.NodeJoin{NodeName: "n1", Capacity: corev1alpha1.ResourceQuantities{Pods: 10}})
	require.True(t, v.Nodes.Has("n1"))

	v = v.Apply(state.NewPod{Pod: &corev1alpha1.Pod{}})
	// NewPod with an unnamed pod: simulate a named pod instead for the
	// schedule/run path below.
	pod := &corev1alpha1.Pod{}
	pod.Name = "p1"
	v = v.Apply(state.NewPod{Pod: pod})
	v = v.Apply(state.SchedulePod{PodName: "p1", NodeName: "n1"})

	scheduled, ok := v.Pods.Get("p1")
	require.True(t, ok)
	assert.Equal(t, "n1", scheduled.Spec.NodeName)

	v = v.Apply(state.RunPod{PodName: "p1", NodeName: "n1"})
	node, ok := v.Nodes.Get("n1")
	require.True(t, ok)
	assert.Contains(t, node.Status.Running, "p1")
}

func TestApplyNodeCrashDropsPods(t *testing.T) {
	v := state.NewView()
	v = v.Apply(state.NodeJoin{NodeName: "n1"})
	pod := &corev1alpha1.Pod{}
	pod.Name = "p1"
	v = v.Apply(state.NewPod{Pod: pod})
	v = v.Apply(state.SchedulePod{PodName: "p1", NodeName: "n1"})

	v = v.Apply(state.NodeCrash{NodeName: "n1"})
	assert.False(t, v.Nodes.Has("n1"))
	assert.False(t, v.Pods.Has("p1"))
}

func TestApplySchedulePodMissingTargetIsNoOp(t *testing.T) {
	v := state.NewView()
	before := v.Revision
	v = v.Apply(state.SchedulePod{PodName: "ghost", NodeName: "n1"})
	assert.True(t, before.Before(v.Revision))
	assert.False(t, v.Pods.Has("ghost"))
}

func TestCloneIsIndependentAcrossKinds(t *testing.T) {
	v := state.NewView()
	v = v.Apply(state.NodeJoin{NodeName: "n1"})

	clone := v.Clone()
	clone = clone.Apply(state.NodeJoin{NodeName: "n2"})

	assert.Equal(t, 1, v.Nodes.Len())
	assert.Equal(t, 2, clone.Nodes.Len())
}
