/*
Copyright 2020 The Kruise Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package v1alpha1 holds the ReplicaSet, Deployment and StatefulSet API
// types. Reconciliation for these three is specified only at the
// Controller-contract level; the Step implementations in
// controller/{replicaset,deployment,statefulset} are reference
// implementations that exercise these types end to end.
package v1alpha1

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
)

// ReplicaSetSpec defines the desired state of a ReplicaSet.
type ReplicaSetSpec struct {
	// +optional
	Replicas *int32 `json:"replicas,omitempty"`

	Selector *metav1.LabelSelector `json:"selector"`

	Template corev1.PodTemplateSpec `json:"template"`
}

// ReplicaSetStatus defines the observed state of a ReplicaSet.
type ReplicaSetStatus struct {
	Replicas int32 `json:"replicas"`

	// +optional
	ReadyReplicas int32 `json:"readyReplicas,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// ReplicaSet is the Schema for the replicasets API.
type ReplicaSet struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   ReplicaSetSpec   `json:"spec,omitempty"`
	Status ReplicaSetStatus `json:"status,omitempty"`
}

// Meta implements resources.Meta.
func (r *ReplicaSet) Meta() *metav1.ObjectMeta { return &r.ObjectMeta }

// GetSpec implements resources.Meta.
func (r *ReplicaSet) GetSpec() interface{} { return r.Spec }

// DeepCopy returns a deep copy of r.
func (r *ReplicaSet) DeepCopy() *ReplicaSet {
	if r == nil {
		return nil
	}
	out := *r
	out.ObjectMeta = *r.ObjectMeta.DeepCopy()
	return &out
}

// +kubebuilder:object:root=true

// ReplicaSetList contains a list of ReplicaSet.
type ReplicaSetList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []ReplicaSet `json:"items"`
}

// DeploymentSpec defines the desired state of a Deployment. Unlike real
// Kubernetes, rolling-update revision history here is delegated entirely to
// the single owned ReplicaSet (the top-level History engine already owns
// revision history for the whole store), so DeploymentSpec carries no
// RevisionHistoryLimit of its own.
type DeploymentSpec struct {
	// +optional
	Replicas *int32 `json:"replicas,omitempty"`

	Selector *metav1.LabelSelector `json:"selector"`

	Template corev1.PodTemplateSpec `json:"template"`
}

// DeploymentStatus defines the observed state of a Deployment, copied up
// from the owned ReplicaSet's status each reconciliation.
type DeploymentStatus struct {
	Replicas int32 `json:"replicas"`

	// +optional
	ReadyReplicas int32 `json:"readyReplicas,omitempty"`

	// +optional
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// Deployment is the Schema for the deployments API.
type Deployment struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   DeploymentSpec   `json:"spec,omitempty"`
	Status DeploymentStatus `json:"status,omitempty"`
}

// Meta implements resources.Meta.
func (d *Deployment) Meta() *metav1.ObjectMeta { return &d.ObjectMeta }

// GetSpec implements resources.Meta.
func (d *Deployment) GetSpec() interface{} { return d.Spec }

// DeepCopy returns a deep copy of d.
func (d *Deployment) DeepCopy() *Deployment {
	if d == nil {
		return nil
	}
	out := *d
	out.ObjectMeta = *d.ObjectMeta.DeepCopy()
	return &out
}

// +kubebuilder:object:root=true

// DeploymentList contains a list of Deployment.
type DeploymentList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Deployment `json:"items"`
}

// StatefulSetUpdateStrategyType enumerates the strategies the StatefulSet
// controller supports.
type StatefulSetUpdateStrategyType string

const (
	RollingUpdateStatefulSetStrategyType StatefulSetUpdateStrategyType = "RollingUpdate"
	OnDeleteStatefulSetStrategyType       StatefulSetUpdateStrategyType = "OnDelete"
)

// StatefulSetUpdateStrategy indicates the strategy the StatefulSet
// controller uses to perform updates.
type StatefulSetUpdateStrategy struct {
	// +optional
	Type StatefulSetUpdateStrategyType `json:"type,omitempty"`

	// +optional
	RollingUpdate *RollingUpdateStatefulSetStrategy `json:"rollingUpdate,omitempty"`
}

// RollingUpdateStatefulSetStrategy is used to communicate parameters for
// RollingUpdateStatefulSetStrategyType.
type RollingUpdateStatefulSetStrategy struct {
	// Partition indicates the ordinal at which the StatefulSet should be
	// partitioned by default. Pods with an ordinal below Partition are not
	// updated.
	// +optional
	Partition *int32 `json:"partition,omitempty"`

	// +optional
	MaxUnavailable *intstr.IntOrString `json:"maxUnavailable,omitempty"`
}

// PodManagementPolicyType governs whether Pods are brought up/down
// sequentially (OrderedReady) or all at once (Parallel).
type PodManagementPolicyType string

const (
	OrderedReadyPodManagement PodManagementPolicyType = "OrderedReady"
	ParallelPodManagement     PodManagementPolicyType = "Parallel"
)

// StatefulSetSpec defines the desired state of a StatefulSet.
type StatefulSetSpec struct {
	// +optional
	Replicas *int32 `json:"replicas,omitempty"`

	Selector *metav1.LabelSelector `json:"selector"`

	Template corev1.PodTemplateSpec `json:"template"`

	ServiceName string `json:"serviceName,omitempty"`

	// +optional
	PodManagementPolicy PodManagementPolicyType `json:"podManagementPolicy,omitempty"`

	// +optional
	UpdateStrategy StatefulSetUpdateStrategy `json:"updateStrategy,omitempty"`

	// +optional
	RevisionHistoryLimit *int32 `json:"revisionHistoryLimit,omitempty"`
}

// StatefulSetStatus defines the observed state of a StatefulSet.
type StatefulSetStatus struct {
	// +optional
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`

	Replicas int32 `json:"replicas"`

	ReadyReplicas int32 `json:"readyReplicas"`

	CurrentReplicas int32 `json:"currentReplicas"`

	UpdatedReplicas int32 `json:"updatedReplicas"`

	// CurrentRevision and UpdateRevision are informational only here: the
	// store's own Revision engine is the source of truth for ordering, so
	// these carry opaque template-hash strings rather than a parallel
	// ControllerRevision history.
	// +optional
	CurrentRevision string `json:"currentRevision,omitempty"`

	// +optional
	UpdateRevision string `json:"updateRevision,omitempty"`
}

// +genclient
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:subresource:scale:specpath=.spec.replicas,statuspath=.status.replicas,selectorpath=.status.labelSelector

// StatefulSet is the Schema for the statefulsets API.
type StatefulSet struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   StatefulSetSpec   `json:"spec,omitempty"`
	Status StatefulSetStatus `json:"status,omitempty"`
}

// Meta implements resources.Meta.
func (s *StatefulSet) Meta() *metav1.ObjectMeta { return &s.ObjectMeta }

// GetSpec implements resources.Meta.
func (s *StatefulSet) GetSpec() interface{} { return s.Spec }

// DeepCopy returns a deep copy of s.
func (s *StatefulSet) DeepCopy() *StatefulSet {
	if s == nil {
		return nil
	}
	out := *s
	out.ObjectMeta = *s.ObjectMeta.DeepCopy()
	return &out
}

// +kubebuilder:object:root=true

// StatefulSetList contains a list of StatefulSet.
type StatefulSetList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []StatefulSet `json:"items"`
}
