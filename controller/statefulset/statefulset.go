// Package statefulset is a reference implementation of the StatefulSet
// Controller contract (§4.8), grounded directly on
// gregwebs-kubernetes/pkg/controller/statefulset/stateful_set_control.go's
// ordinal-aware scale-up/scale-down loop: pods are created in increasing
// ordinal order and deleted in decreasing ordinal order, one mutation per
// step, waiting for each created pod to become healthy before moving to
// the next ordinal under OrderedReady management (the teacher's
// isCreated/isHealthy/isRunningAndReady predicates, renamed to this
// system's Pod vocabulary). ControllerRevision-based update history is not
// modelled: UpdateRevision/CurrentRevision here are opaque strings, since
// the store's own Revision engine already orders writes.
package statefulset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"

	appsv1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/apps/v1alpha1"
	corev1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/core/v1alpha1"
	"github.com/jeffa5/model-checked-orchestration/controller"
	"github.com/jeffa5/model-checked-orchestration/state"
)

type Controller struct{}

func New() *Controller { return &Controller{} }

func (c *Controller) Name() string { return "statefulset" }

func (c *Controller) Step(id int, view *state.View) (controller.Action, bool) {
	if !controller.Joined(view, id) {
		return controller.Action{Operation: state.ControllerJoin{ID: id}}, true
	}

	for _, sts := range view.StatefulSets.Iter() {
		ordinals := ownedOrdinals(view, sts)
		want := int32(1)
		if sts.Spec.Replicas != nil {
			want = *sts.Spec.Replicas
		}

		if int32(len(ordinals)) < want {
			next := nextMissingOrdinal(ordinals, want)
			if action, ok := maybeCreate(sts, ordinals, next); ok {
				return action, true
			}
		}

		if int32(len(ordinals)) > want {
			if action, ok := maybeDeleteHighestOrdinal(sts, ordinals, want); ok {
				return action, true
			}
		}

		if action, ok := syncStatus(sts, ordinals); ok {
			return action, true
		}
	}
	return controller.Action{}, false
}

type ordinalPod struct {
	ordinal int
	pod     *corev1alpha1.Pod
}

func ownedOrdinals(view *state.View, sts *appsv1alpha1.StatefulSet) []ordinalPod {
	prefix := sts.Name + "-"
	var out []ordinalPod
	for _, p := range view.Pods.Iter() {
		if !strings.HasPrefix(p.Name, prefix) {
			continue
		}
		ord, err := strconv.Atoi(strings.TrimPrefix(p.Name, prefix))
		if err != nil {
			continue
		}
		owned := false
		for _, owner := range p.OwnerReferences {
			if owner.UID == sts.UID {
				owned = true
			}
		}
		if owned {
			out = append(out, ordinalPod{ordinal: ord, pod: p})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ordinal < out[j].ordinal })
	return out
}

func nextMissingOrdinal(ordinals []ordinalPod, want int32) int {
	have := map[int]bool{}
	for _, o := range ordinals {
		have[o.ordinal] = true
	}
	for i := 0; i < int(want); i++ {
		if !have[i] {
			return i
		}
	}
	return int(want)
}

// maybeCreate creates the pod at ordinal only once every lower ordinal is
// healthy (isRunningAndReady), matching OrderedReady management policy —
// the default, and the only policy this reference implementation models.
func maybeCreate(sts *appsv1alpha1.StatefulSet, ordinals []ordinalPod, ordinal int) (controller.Action, bool) {
	for _, o := range ordinals {
		if o.ordinal < ordinal && !isRunningAndReady(o.pod) {
			return controller.Action{}, false
		}
	}
	pod := newOrdinalPod(sts, ordinal)
	klog.V(4).InfoS("statefulset creating pod", "statefulset", sts.Name, "pod", pod.Name)
	return controller.Action{Operation: state.NewPod{Pod: pod}}, true
}

func maybeDeleteHighestOrdinal(sts *appsv1alpha1.StatefulSet, ordinals []ordinalPod, want int32) (controller.Action, bool) {
	if len(ordinals) == 0 {
		return controller.Action{}, false
	}
	victim := ordinals[len(ordinals)-1]
	klog.V(4).InfoS("statefulset deleting pod", "statefulset", sts.Name, "pod", victim.pod.Name)
	return controller.Action{Operation: state.DeletePod{PodName: victim.pod.Name}}, true
}

func syncStatus(sts *appsv1alpha1.StatefulSet, ordinals []ordinalPod) (controller.Action, bool) {
	var ready int32
	for _, o := range ordinals {
		if isRunningAndReady(o.pod) {
			ready++
		}
	}
	replicas := int32(len(ordinals))
	if sts.Status.Replicas == replicas && sts.Status.ReadyReplicas == ready {
		return controller.Action{}, false
	}
	updated := sts.DeepCopy()
	updated.Status.Replicas = replicas
	updated.Status.ReadyReplicas = ready
	updated.Status.CurrentReplicas = replicas
	return controller.Action{Operation: state.UpsertStatefulSet{StatefulSet: updated}}, true
}

func isRunningAndReady(p *corev1alpha1.Pod) bool {
	return p.Spec.NodeName != "" && p.Status.IsReady()
}

func newOrdinalPod(sts *appsv1alpha1.StatefulSet, ordinal int) *corev1alpha1.Pod {
	name := fmt.Sprintf("%s-%d", sts.Name, ordinal)
	p := &corev1alpha1.Pod{}
	p.Name = name
	p.Labels = sts.Spec.Template.Labels
	p.OwnerReferences = []metav1.OwnerReference{{
		APIVersion: "apps/v1alpha1",
		Kind:       "StatefulSet",
		Name:       sts.Name,
		UID:        sts.UID,
		Controller: boolPtr(true),
	}}
	p.Spec.Containers = sts.Spec.Template.Spec.Containers
	p.Spec.RestartPolicy = sts.Spec.Template.Spec.RestartPolicy
	return p
}

func boolPtr(b bool) *bool { return &b }
