package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corev1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/core/v1alpha1"
	"github.com/jeffa5/model-checked-orchestration/controller"
	"github.com/jeffa5/model-checked-orchestration/controller/node"
	"github.com/jeffa5/model-checked-orchestration/controller/scheduler"
	"github.com/jeffa5/model-checked-orchestration/history"
	"github.com/jeffa5/model-checked-orchestration/model"
	"github.com/jeffa5/model-checked-orchestration/state"
)

func TestEveryPodEventuallyScheduledUnderStrongConsistency(t *testing.T) {
	v := state.NewView()
	pod := &corev1alpha1.Pod{}
	pod.Name = "p1"
	v = v.Apply(state.NewPod{Pod: pod})

	cfg := model.Config{
		Controllers: []controller.Controllers{
			&node.Controller{NodeName: "n1"},
			scheduler.New(),
		},
		InitialView: v,
		Consistency: history.Strong{},
	}
	m := model.New(cfg)
	c := &model.Checker{MaxDepth: 20, MaxStates: 2000}
	violations := c.Check(m)

	for _, viol := range violations {
		t.Logf("violation: %s at depth %d", viol.Property, viol.Depth)
	}
	require.NotEmpty(t, m.Properties())
	assert.Empty(t, violations)
}
