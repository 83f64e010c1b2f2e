// Package replicaset is a reference implementation of the ReplicaSet
// Controller contract (§4.8): scale to spec.Replicas, selecting scale-down
// victims with the same ordering the Job controller uses (§4.7.1),
// grounded on gregwebs-kubernetes's StatefulSet control loop's
// create/delete-to-match-target shape, simplified to a non-ordinal set.
package replicaset

import (
	"fmt"

	"github.com/google/uuid"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/klog/v2"

	appsv1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/apps/v1alpha1"
	corev1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/core/v1alpha1"
	"github.com/jeffa5/model-checked-orchestration/controller"
	"github.com/jeffa5/model-checked-orchestration/controller/podutil"
	"github.com/jeffa5/model-checked-orchestration/state"
)

// Controller reconciles every ReplicaSet in the view each step, emitting at
// most one Operation per step like every other controller in this system.
type Controller struct{}

func New() *Controller { return &Controller{} }

func (c *Controller) Name() string { return "replicaset" }

func (c *Controller) Step(id int, view *state.View) (controller.Action, bool) {
	if !controller.Joined(view, id) {
		return controller.Action{Operation: state.ControllerJoin{ID: id}}, true
	}

	for _, rs := range view.ReplicaSets.Iter() {
		selector, err := metav1.LabelSelectorAsSelector(rs.Spec.Selector)
		if err != nil {
			klog.V(2).InfoS("replicaset has invalid selector", "replicaset", rs.Name, "err", err)
			continue
		}
		owned := ownedPods(view, rs.UID, selector)

		var active []*corev1alpha1.Pod
		for _, p := range owned {
			if podutil.IsActive(p) {
				active = append(active, p)
			}
		}

		want := int32(1)
		if rs.Spec.Replicas != nil {
			want = *rs.Spec.Replicas
		}

		if int32(len(active)) < want {
			pod := newPod(rs)
			klog.V(4).InfoS("replicaset creating pod", "replicaset", rs.Name, "pod", pod.Name)
			return controller.Action{Operation: state.NewPod{Pod: pod}}, true
		}

		if int32(len(active)) > want {
			podutil.SortActivePods(active)
			victim := active[0]
			klog.V(4).InfoS("replicaset deleting pod", "replicaset", rs.Name, "pod", victim.Name)
			return controller.Action{Operation: state.DeletePod{PodName: victim.Name}}, true
		}

		readyReplicas := int32(0)
		for _, p := range active {
			if p.Status.IsReady() {
				readyReplicas++
			}
		}
		if rs.Status.Replicas != int32(len(active)) || rs.Status.ReadyReplicas != readyReplicas {
			updated := rs.DeepCopy()
			updated.Status.Replicas = int32(len(active))
			updated.Status.ReadyReplicas = readyReplicas
			return controller.Action{Operation: state.UpsertReplicaSet{ReplicaSet: updated}}, true
		}
	}
	return controller.Action{}, false
}

func ownedPods(view *state.View, uid types.UID, selector labels.Selector) []*corev1alpha1.Pod {
	var out []*corev1alpha1.Pod
	for _, p := range view.Pods.Matching(selector) {
		for _, owner := range p.OwnerReferences {
			if owner.UID == uid {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

func newPod(rs *appsv1alpha1.ReplicaSet) *corev1alpha1.Pod {
	p := &corev1alpha1.Pod{}
	p.GenerateName = rs.Name + "-"
	p.Name = fmt.Sprintf("%s-%s", rs.Name, uuid.NewString()[:8])
	p.Labels = rs.Spec.Template.Labels
	p.OwnerReferences = []metav1.OwnerReference{{
		APIVersion: "apps/v1alpha1",
		Kind:       "ReplicaSet",
		Name:       rs.Name,
		UID:        rs.UID,
		Controller: boolPtr(true),
	}}
	p.Spec.Containers = rs.Spec.Template.Spec.Containers
	p.Spec.RestartPolicy = rs.Spec.Template.Spec.RestartPolicy
	return p
}

func boolPtr(b bool) *bool { return &b }
