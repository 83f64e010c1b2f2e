// Package scheduler implements the least-loaded-node Pod scheduler, a
// reference implementation of the Scheduler contract (§4.8), grounded on
// original_source's controller/scheduler.rs.
package scheduler

import (
	"k8s.io/klog/v2"

	"github.com/jeffa5/model-checked-orchestration/controller"
	"github.com/jeffa5/model-checked-orchestration/state"
)

// Controller assigns unscheduled Pods to the Node currently running the
// fewest Pods. Nodes are ranked by the length of their Running list only;
// a Node's Capacity is never consulted.
type Controller struct{}

// New returns a Scheduler controller.
func New() *Controller { return &Controller{} }

func (c *Controller) Name() string { return "scheduler" }

func (c *Controller) Step(id int, view *state.View) (controller.Action, bool) {
	if !controller.Joined(view, id) {
		return controller.Action{Operation: state.ControllerJoin{ID: id}}, true
	}

	var bestNode string
	bestLoad := -1
	for _, node := range view.Nodes.Iter() {
		if !node.Status.Ready {
			continue
		}
		load := len(node.Status.Running)
		if bestLoad == -1 || load < bestLoad {
			bestLoad = load
			bestNode = node.Name
		}
	}
	if bestNode == "" {
		return controller.Action{}, false
	}

	for _, pod := range view.Pods.Iter() {
		if pod.Spec.NodeName == "" {
			klog.V(4).InfoS("scheduling pod", "pod", pod.Name, "node", bestNode)
			return controller.Action{Operation: state.SchedulePod{PodName: pod.Name, NodeName: bestNode}}, true
		}
	}
	return controller.Action{}, false
}
