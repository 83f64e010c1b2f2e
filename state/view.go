// Package state implements the StateView snapshot and the Operation
// dispatch table that advances one view to its successor.
package state

import (
	"fmt"

	appsv1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/apps/v1alpha1"
	batchv1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/batch/v1alpha1"
	corev1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/core/v1alpha1"
	"github.com/jeffa5/model-checked-orchestration/revision"
	"github.com/jeffa5/model-checked-orchestration/state/resources"
)

// View is an immutable (copy-on-write) snapshot of every managed resource
// kind at one revision.
type View struct {
	Revision revision.Revision

	Nodes        resources.Resources[*corev1alpha1.Node]
	Pods         resources.Resources[*corev1alpha1.Pod]
	Jobs         resources.Resources[*batchv1alpha1.Job]
	ReplicaSets  resources.Resources[*appsv1alpha1.ReplicaSet]
	Deployments  resources.Resources[*appsv1alpha1.Deployment]
	StatefulSets resources.Resources[*appsv1alpha1.StatefulSet]

	// Controllers holds the session ids that have registered via
	// ControllerJoin.
	Controllers map[int]bool
}

// NewView returns the empty view at revision zero.
func NewView() View {
	return View{
		Revision:    revision.Zero(),
		Controllers: map[int]bool{},
	}
}

// Clone returns a View sharing every kind's backing storage with v, safe to
// mutate independently (copy-on-write applies per kind, see
// state/resources.Resources.Clone).
func (v View) Clone() View {
	controllers := make(map[int]bool, len(v.Controllers))
	for k := range v.Controllers {
		controllers[k] = true
	}
	return View{
		Revision:     v.Revision,
		Nodes:        v.Nodes.Clone(),
		Pods:         v.Pods.Clone(),
		Jobs:         v.Jobs.Clone(),
		ReplicaSets:  v.ReplicaSets.Clone(),
		Deployments:  v.Deployments.Clone(),
		StatefulSets: v.StatefulSets.Clone(),
		Controllers:  controllers,
	}
}

// Apply returns the successor view after applying op, at revision
// v.Revision+1. Apply never fails: operations that reference a resource
// which no longer exists (e.g. SchedulePod after the pod was deleted) are
// defined no-ops (§7), matching the "missing target" error-taxonomy entry.
func (v View) Apply(op Operation) View {
	next := v.Clone()
	next.Revision = v.Revision.Increment()

	switch o := op.(type) {
	case NodeJoin:
		node := &corev1alpha1.Node{}
		node.Name = o.NodeName
		node.Status.Capacity = o.Capacity
		node.Status.Ready = true
		_ = next.Nodes.Insert(node, next.Revision)

	case ControllerJoin:
		next.Controllers[o.ID] = true

	case NewPod:
		if o.Pod != nil {
			_ = next.Pods.Insert(o.Pod, next.Revision)
		}

	case NewReplicaSet:
		if o.ReplicaSet != nil {
			_ = next.ReplicaSets.Insert(o.ReplicaSet, next.Revision)
		}

	case SchedulePod:
		if pod, ok := next.Pods.Get(o.PodName); ok {
			pod = pod.DeepCopy()
			pod.Spec.NodeName = o.NodeName
			_ = next.Pods.Insert(pod, next.Revision)
		}

	case RunPod:
		if node, ok := next.Nodes.Get(o.NodeName); ok {
			node = node.DeepCopy()
			if !containsString(node.Status.Running, o.PodName) {
				node.Status.Running = append(node.Status.Running, o.PodName)
			}
			_ = next.Nodes.Insert(node, next.Revision)
		}

	case NodeCrash:
		next.Nodes.Remove(o.NodeName)
		next.Pods.Retain(func(p *corev1alpha1.Pod) bool {
			return p.Spec.NodeName != o.NodeName
		})

	case UpsertPod:
		if o.Pod != nil {
			_ = next.Pods.Insert(o.Pod, next.Revision)
		}

	case DeletePod:
		next.Pods.Remove(o.PodName)

	case UpsertJob:
		if o.Job != nil {
			_ = next.Jobs.Insert(o.Job, next.Revision)
		}

	case UpsertReplicaSet:
		if o.ReplicaSet != nil {
			_ = next.ReplicaSets.Insert(o.ReplicaSet, next.Revision)
		}

	case UpsertDeployment:
		if o.Deployment != nil {
			_ = next.Deployments.Insert(o.Deployment, next.Revision)
		}

	case UpsertStatefulSet:
		if o.StatefulSet != nil {
			_ = next.StatefulSets.Insert(o.StatefulSet, next.Revision)
		}

	default:
		panic(fmt.Sprintf("state: unhandled operation variant %T", op))
	}

	return next
}

func containsString(xs []string, x string) bool {
	for _, s := range xs {
		if s == x {
			return true
		}
	}
	return false
}
