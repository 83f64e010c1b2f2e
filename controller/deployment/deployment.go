// Package deployment is a reference implementation of the Deployment
// Controller contract (§4.8): roll spec.Replicas into a single owned
// ReplicaSet and copy its status back up. No rolling-update revision
// history is modelled here — that remains StatefulSet's domain, and the
// top-level History engine already owns revision history for the store as
// a whole (see DeploymentSpec's doc in apis/apps/v1alpha1).
package deployment

import (
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"

	appsv1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/apps/v1alpha1"
	"github.com/jeffa5/model-checked-orchestration/controller"
	"github.com/jeffa5/model-checked-orchestration/state"
)

type Controller struct{}

func New() *Controller { return &Controller{} }

func (c *Controller) Name() string { return "deployment" }

func (c *Controller) Step(id int, view *state.View) (controller.Action, bool) {
	if !controller.Joined(view, id) {
		return controller.Action{Operation: state.ControllerJoin{ID: id}}, true
	}

	for _, d := range view.Deployments.Iter() {
		rsName := fmt.Sprintf("%s-rs", d.Name)
		rs, ok := view.ReplicaSets.Get(rsName)
		if !ok {
			klog.V(4).InfoS("deployment creating replicaset", "deployment", d.Name, "replicaset", rsName)
			newRS := &appsv1alpha1.ReplicaSet{}
			newRS.Name = rsName
			newRS.Labels = d.Spec.Template.Labels
			newRS.OwnerReferences = []metav1.OwnerReference{{
				APIVersion: "apps/v1alpha1",
				Kind:       "Deployment",
				Name:       d.Name,
				UID:        d.UID,
				Controller: boolPtr(true),
			}}
			newRS.Spec = appsv1alpha1.ReplicaSetSpec{
				Replicas: d.Spec.Replicas,
				Selector: d.Spec.Selector,
				Template: d.Spec.Template,
			}
			return controller.Action{Operation: state.NewReplicaSet{ReplicaSet: newRS}}, true
		}

		if needsSpecSync(d, rs) {
			updated := rs.DeepCopy()
			updated.Spec.Replicas = d.Spec.Replicas
			updated.Spec.Template = d.Spec.Template
			return controller.Action{Operation: state.UpsertReplicaSet{ReplicaSet: updated}}, true
		}

		if d.Status.Replicas != rs.Status.Replicas || d.Status.ReadyReplicas != rs.Status.ReadyReplicas {
			updated := d.DeepCopy()
			updated.Status.Replicas = rs.Status.Replicas
			updated.Status.ReadyReplicas = rs.Status.ReadyReplicas
			updated.Status.ObservedGeneration = d.Generation
			return controller.Action{Operation: state.UpsertDeployment{Deployment: updated}}, true
		}
	}
	return controller.Action{}, false
}

func needsSpecSync(d *appsv1alpha1.Deployment, rs *appsv1alpha1.ReplicaSet) bool {
	wantReplicas := int32(1)
	if d.Spec.Replicas != nil {
		wantReplicas = *d.Spec.Replicas
	}
	haveReplicas := int32(1)
	if rs.Spec.Replicas != nil {
		haveReplicas = *rs.Spec.Replicas
	}
	return wantReplicas != haveReplicas
}

func boolPtr(b bool) *bool { return &b }
