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

// Package v1alpha1 holds the Pod and Node resource types modelled by the
// store: the leaves every higher-level controller (Job, ReplicaSet,
// Scheduler, Node agent) reads and writes.
package v1alpha1

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// PodSpec is the model's reduced pod spec: enough to drive scheduling,
// container restart accounting and failure-policy matching without
// depending on the full apiserver-side validation surface.
type PodSpec struct {
	// NodeName is set by the Scheduler once the pod has been assigned.
	// +optional
	NodeName string `json:"nodeName,omitempty"`

	Containers []corev1.Container `json:"containers"`

	// RestartPolicy governs whether container restarts are counted toward
	// BackoffLimit: only OnFailure pods have them counted; Always and Never
	// pods do not.
	// +optional
	RestartPolicy corev1.RestartPolicy `json:"restartPolicy,omitempty"`
}

// PodStatus is the observed state of a Pod.
type PodStatus struct {
	// +optional
	Phase corev1.PodPhase `json:"phase,omitempty"`

	// +optional
	Conditions []corev1.PodCondition `json:"conditions,omitempty"`

	// +optional
	ContainerStatuses []corev1.ContainerStatus `json:"containerStatuses,omitempty"`
}

// IsTerminal reports whether the pod has reached a phase the Job/ReplicaSet
// reconcilers treat as finished.
func (s PodStatus) IsTerminal() bool {
	return s.Phase == corev1.PodSucceeded || s.Phase == corev1.PodFailed
}

// IsReady reports whether the pod's PodReady condition is True.
func (s PodStatus) IsReady() bool {
	for _, c := range s.Conditions {
		if c.Type == corev1.PodReady {
			return c.Status == corev1.ConditionTrue
		}
	}
	return false
}

// ReadyTransitionTime returns the LastTransitionTime of the PodReady
// condition, used by the active-pod victim ordering (§4.7.1 "most recently
// ready first").
func (s PodStatus) ReadyTransitionTime() metav1.Time {
	for _, c := range s.Conditions {
		if c.Type == corev1.PodReady {
			return c.LastTransitionTime
		}
	}
	return metav1.Time{}
}

// MaxContainerRestarts returns the highest RestartCount across all
// containers, used both for backoff accounting and victim ordering.
func (s PodStatus) MaxContainerRestarts() int32 {
	var max int32
	for _, cs := range s.ContainerStatuses {
		if cs.RestartCount > max {
			max = cs.RestartCount
		}
	}
	return max
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// Pod is the Schema for the modelled pods.
type Pod struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   PodSpec   `json:"spec,omitempty"`
	Status PodStatus `json:"status,omitempty"`
}

// Meta implements resources.Meta.
func (p *Pod) Meta() *metav1.ObjectMeta { return &p.ObjectMeta }

// GetSpec implements resources.Meta.
func (p *Pod) GetSpec() interface{} { return p.Spec }

// DeepCopy returns a deep copy of p, used whenever a mutation must not
// observably affect a retained snapshot.
func (p *Pod) DeepCopy() *Pod {
	if p == nil {
		return nil
	}
	out := *p
	out.ObjectMeta = *p.ObjectMeta.DeepCopy()
	out.Spec.Containers = append([]corev1.Container(nil), p.Spec.Containers...)
	out.Status.Conditions = append([]corev1.PodCondition(nil), p.Status.Conditions...)
	out.Status.ContainerStatuses = append([]corev1.ContainerStatus(nil), p.Status.ContainerStatuses...)
	return &out
}

// +kubebuilder:object:root=true

// PodList contains a list of Pod.
type PodList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Pod `json:"items"`
}

// ResourceQuantities is the model's simplified node capacity vector
// (deliberately narrower than corev1.ResourceList). The scheduler does not
// compare these fields: it ranks nodes by running-pod count.
type ResourceQuantities struct {
	CPUCores int64 `json:"cpuCores"`
	MemoryMB int64 `json:"memoryMB"`
	Pods     int64 `json:"pods"`
}

// NodeSpec is the desired state of a modelled cluster node.
type NodeSpec struct {
	// +optional
	Unschedulable bool `json:"unschedulable,omitempty"`
}

// NodeStatus is the observed state of a modelled cluster node.
type NodeStatus struct {
	Capacity ResourceQuantities `json:"capacity"`

	// Running holds the names of pods the node agent has observed running.
	Running []string `json:"running,omitempty"`

	Ready bool `json:"ready"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// Node is the Schema for the modelled nodes.
type Node struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   NodeSpec   `json:"spec,omitempty"`
	Status NodeStatus `json:"status,omitempty"`
}

// Meta implements resources.Meta.
func (n *Node) Meta() *metav1.ObjectMeta { return &n.ObjectMeta }

// GetSpec implements resources.Meta.
func (n *Node) GetSpec() interface{} { return n.Spec }

// DeepCopy returns a deep copy of n.
func (n *Node) DeepCopy() *Node {
	if n == nil {
		return nil
	}
	out := *n
	out.ObjectMeta = *n.ObjectMeta.DeepCopy()
	out.Status.Running = append([]string(nil), n.Status.Running...)
	return &out
}

// +kubebuilder:object:root=true

// NodeList contains a list of Node.
type NodeList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Node `json:"items"`
}
