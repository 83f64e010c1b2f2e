package state

import (
	appsv1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/apps/v1alpha1"
	batchv1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/batch/v1alpha1"
	corev1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/core/v1alpha1"
	"github.com/jeffa5/model-checked-orchestration/revision"
)

// Operation is a single store mutation. It is a closed sum type: every
// concrete variant below implements Operation, and View.Apply's type
// switch has an exhaustive default panic so a future addition that forgets
// to wire a case fails loudly rather than silently no-opping.
type Operation interface {
	isOperation()
}

// NodeJoin registers a new cluster node with the given capacity.
type NodeJoin struct {
	NodeName string
	Capacity corev1alpha1.ResourceQuantities
}

func (NodeJoin) isOperation() {}

// ControllerJoin registers controller session id as live.
type ControllerJoin struct {
	ID int
}

func (ControllerJoin) isOperation() {}

// NewPod creates an unscheduled pod.
type NewPod struct {
	Pod *corev1alpha1.Pod
}

func (NewPod) isOperation() {}

// NewReplicaSet creates a new ReplicaSet resource.
type NewReplicaSet struct {
	ReplicaSet *appsv1alpha1.ReplicaSet
}

func (NewReplicaSet) isOperation() {}

// SchedulePod assigns podName to nodeName. A no-op if the pod is gone.
type SchedulePod struct {
	PodName  string
	NodeName string
}

func (SchedulePod) isOperation() {}

// RunPod records that nodeName observed podName running.
type RunPod struct {
	PodName  string
	NodeName string
}

func (RunPod) isOperation() {}

// NodeCrash removes a node and every pod scheduled to it.
type NodeCrash struct {
	NodeName string
}

func (NodeCrash) isOperation() {}

// UpsertPod inserts or updates a Pod following §4.2's collection semantics.
type UpsertPod struct {
	Pod *corev1alpha1.Pod
}

func (UpsertPod) isOperation() {}

// DeletePod removes a pod outright, whatever finalizers it still carries.
type DeletePod struct {
	PodName string
}

func (DeletePod) isOperation() {}

// UpsertJob inserts or updates a Job.
type UpsertJob struct {
	Job *batchv1alpha1.Job
}

func (UpsertJob) isOperation() {}

// UpsertReplicaSet inserts or updates a ReplicaSet.
type UpsertReplicaSet struct {
	ReplicaSet *appsv1alpha1.ReplicaSet
}

func (UpsertReplicaSet) isOperation() {}

// UpsertDeployment inserts or updates a Deployment.
type UpsertDeployment struct {
	Deployment *appsv1alpha1.Deployment
}

func (UpsertDeployment) isOperation() {}

// UpsertStatefulSet inserts or updates a StatefulSet.
type UpsertStatefulSet struct {
	StatefulSet *appsv1alpha1.StatefulSet
}

func (UpsertStatefulSet) isOperation() {}

// Change pairs an Operation with the revision the emitting controller had
// observed when it decided to emit it. OptimisticLinearHistory uses
// SourceRevision to decide whether the change extends the optimistic head
// or rolls the chain back to the older view the controller read.
type Change struct {
	Operation      Operation
	SourceRevision revision.Revision
}
