// Package node implements the node-agent reference controller: it joins
// the node into the store on first step, then reports pods scheduled to it
// as running. Grounded on original_source's controller/node.rs.
package node

import (
	"k8s.io/klog/v2"

	corev1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/core/v1alpha1"
	"github.com/jeffa5/model-checked-orchestration/controller"
	"github.com/jeffa5/model-checked-orchestration/state"
)

// defaultCapacity matches the capacity original_source/src/controller/node.rs
// assigns a freshly-joined node in the absence of an operator-supplied one.
var defaultCapacity = corev1alpha1.ResourceQuantities{CPUCores: 4, MemoryMB: 4000, Pods: 32}

// Controller models a single node agent. NodeName identifies which Node
// resource this instance owns.
type Controller struct {
	NodeName string
}

// New returns a node-agent controller for the named node.
func New(nodeName string) *Controller { return &Controller{NodeName: nodeName} }

func (c *Controller) Name() string { return "node/" + c.NodeName }

func (c *Controller) Step(id int, view *state.View) (controller.Action, bool) {
	if !controller.Joined(view, id) {
		return controller.Action{Operation: state.ControllerJoin{ID: id}}, true
	}

	if !view.Nodes.Has(c.NodeName) {
		klog.V(4).InfoS("node joining cluster", "node", c.NodeName)
		return controller.Action{Operation: state.NodeJoin{NodeName: c.NodeName, Capacity: defaultCapacity}}, true
	}

	node, _ := view.Nodes.Get(c.NodeName)
	running := map[string]bool{}
	for _, name := range node.Status.Running {
		running[name] = true
	}
	for _, pod := range view.Pods.Iter() {
		if pod.Spec.NodeName == c.NodeName && !running[pod.Name] {
			klog.V(4).InfoS("node running pod", "node", c.NodeName, "pod", pod.Name)
			return controller.Action{Operation: state.RunPod{PodName: pod.Name, NodeName: c.NodeName}}, true
		}
	}
	return controller.Action{}, false
}
