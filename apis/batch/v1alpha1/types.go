/*
Copyright 2016 The Kubernetes Authors.

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

// Package v1alpha1 holds the Job API types reconciled by controller/job.
package v1alpha1

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// JobTrackingFinalizer is set on every Pod owned by a Job until its
	// terminal status has been folded into the Job's counters.
	JobTrackingFinalizer = "batch.kubernetes.io/job-tracking"

	// JobCompletionIndexAnnotation records a Pod's completion index for
	// Indexed-mode Jobs.
	JobCompletionIndexAnnotation = "batch.kubernetes.io/job-completion-index"

	// JobCompletionIndexEnvName is the env var name injected into every
	// container of an Indexed-mode Job's pod template.
	JobCompletionIndexEnvName = "JOB_COMPLETION_INDEX"

	// JobIndexFailureCountAnnotation carries an Indexed-mode pod's
	// cumulative non-ignored failure count for its completion index
	// forward onto its replacement, so BackoffLimitPerIndex can be
	// evaluated across a whole chain of per-index retries rather than
	// just the most recent pod.
	JobIndexFailureCountAnnotation = "batch.kubernetes.io/job-index-failure-count"

	// JobIndexIgnoredFailureCountAnnotation is JobIndexFailureCountAnnotation's
	// counterpart for failures whose PodFailurePolicy rule matched Ignore:
	// tracked separately so they never contribute to BackoffLimitPerIndex.
	JobIndexIgnoredFailureCountAnnotation = "batch.kubernetes.io/job-index-ignored-failure-count"

	// MaxPodCreateDeletePerSync bounds the number of create/delete
	// operations a single reconciliation round may emit.
	MaxPodCreateDeletePerSync = 500

	// maxGenerateNamePrefixLength is the longest generateName the Job
	// controller produces, "-<index>-" suffix included: the job name is
	// truncated to leave room for the suffix.
	maxGenerateNamePrefixLength = 58
)

// MaxGenerateNamePrefixLength exposes maxGenerateNamePrefixLength to callers
// outside this package (controller/job) that must replicate the truncation.
func MaxGenerateNamePrefixLength() int { return maxGenerateNamePrefixLength }

// CompletionMode specifies how Pod completions are tracked for a Job with
// a non-nil Completions value.
type CompletionMode string

const (
	// NonIndexedCompletion is the default: any Completions successful pods
	// complete the Job, with no notion of a per-pod index.
	NonIndexedCompletion CompletionMode = "NonIndexed"
	// IndexedCompletion assigns each pod an index in [0, Completions) via
	// JobCompletionIndexAnnotation/JobCompletionIndexEnvName.
	IndexedCompletion CompletionMode = "Indexed"
)

// PodFailurePolicyAction is the effect a matched PodFailurePolicyRule has on
// the owning Job.
type PodFailurePolicyAction string

const (
	// PodFailurePolicyActionFailJob indicates the Job is failed immediately.
	PodFailurePolicyActionFailJob PodFailurePolicyAction = "FailJob"
	// PodFailurePolicyActionFailIndex indicates only the pod's index is
	// marked permanently failed (Indexed mode with per-index backoff).
	PodFailurePolicyActionFailIndex PodFailurePolicyAction = "FailIndex"
	// PodFailurePolicyActionIgnore excludes the failure from both
	// BackoffLimit and status.Failed accounting entirely.
	PodFailurePolicyActionIgnore PodFailurePolicyAction = "Ignore"
	// PodFailurePolicyActionCount is the default: count the failure as
	// usual against BackoffLimit/status.Failed.
	PodFailurePolicyActionCount PodFailurePolicyAction = "Count"
)

// PodFailurePolicyOnExitCodesOperator selects how Values is compared
// against the matched container's exit code.
type PodFailurePolicyOnExitCodesOperator string

const (
	PodFailurePolicyOnExitCodesOpIn    PodFailurePolicyOnExitCodesOperator = "In"
	PodFailurePolicyOnExitCodesOpNotIn PodFailurePolicyOnExitCodesOperator = "NotIn"
)

// PodFailurePolicyOnExitCodesRequirement matches a terminated container's
// exit code.
type PodFailurePolicyOnExitCodesRequirement struct {
	// +optional
	ContainerName *string                             `json:"containerName,omitempty"`
	Operator      PodFailurePolicyOnExitCodesOperator `json:"operator"`
	Values        []int32                             `json:"values"`
}

// PodFailurePolicyOnPodConditionsPattern matches a pod condition.
type PodFailurePolicyOnPodConditionsPattern struct {
	Type   corev1.PodConditionType `json:"type"`
	Status corev1.ConditionStatus  `json:"status"`
}

// PodFailurePolicyRule matches a failed pod against either its containers'
// exit codes or its conditions, exactly one of the two fields is set.
type PodFailurePolicyRule struct {
	Action PodFailurePolicyAction `json:"action"`

	// +optional
	OnExitCodes *PodFailurePolicyOnExitCodesRequirement `json:"onExitCodes,omitempty"`

	// +optional
	OnPodConditions []PodFailurePolicyOnPodConditionsPattern `json:"onPodConditions,omitempty"`
}

// PodFailurePolicy is an ordered list of rules; the first matching rule
// determines the action (§4.7.4).
type PodFailurePolicy struct {
	Rules []PodFailurePolicyRule `json:"rules"`
}

// JobSpec is the desired state of a Job.
type JobSpec struct {
	// +optional
	Parallelism *int32 `json:"parallelism,omitempty"`

	// +optional
	Completions *int32 `json:"completions,omitempty"`

	// +optional
	ActiveDeadlineSeconds *int64 `json:"activeDeadlineSeconds,omitempty"`

	// +optional
	BackoffLimit *int32 `json:"backoffLimit,omitempty"`

	// BackoffLimitPerIndex, when set, enables per-index backoff accounting
	// for Indexed-mode jobs used in concert with FailIndex pod failure
	// policy rules.
	// +optional
	BackoffLimitPerIndex *int32 `json:"backoffLimitPerIndex,omitempty"`

	Selector *metav1.LabelSelector `json:"selector"`

	Template corev1.PodTemplateSpec `json:"template"`

	// +optional
	CompletionMode *CompletionMode `json:"completionMode,omitempty"`

	// +optional
	Suspend *bool `json:"suspend,omitempty"`

	// +optional
	PodFailurePolicy *PodFailurePolicy `json:"podFailurePolicy,omitempty"`

	// +optional
	TTLSecondsAfterFinished *int32 `json:"ttlSecondsAfterFinished,omitempty"`
}

// JobConditionType is the type of a JobCondition.
type JobConditionType string

const (
	JobSuspended      JobConditionType = "Suspended"
	JobComplete       JobConditionType = "Complete"
	JobFailed         JobConditionType = "Failed"
	JobFailureTarget  JobConditionType = "FailureTarget"
)

// JobCondition describes the state of a Job at a point in time.
type JobCondition struct {
	Type               JobConditionType       `json:"type"`
	Status             corev1.ConditionStatus `json:"status"`
	LastProbeTime      metav1.Time            `json:"lastProbeTime,omitempty"`
	LastTransitionTime metav1.Time            `json:"lastTransitionTime,omitempty"`
	Reason             string                 `json:"reason,omitempty"`
	Message            string                 `json:"message,omitempty"`
}

// UncountedTerminatedPods holds the uids of pods whose terminal status has
// been observed but not yet folded into Succeeded/Failed, and whose
// tracking finalizer removal is still pending (§4.7.3).
type UncountedTerminatedPods struct {
	Succeeded []string `json:"succeeded,omitempty"`
	Failed    []string `json:"failed,omitempty"`
}

// JobStatus is the observed state of a Job.
type JobStatus struct {
	// +optional
	Conditions []JobCondition `json:"conditions,omitempty"`

	// +optional
	StartTime *metav1.Time `json:"startTime,omitempty"`

	// +optional
	CompletionTime *metav1.Time `json:"completionTime,omitempty"`

	// +optional
	Active int32 `json:"active,omitempty"`

	// +optional
	Ready *int32 `json:"ready,omitempty"`

	// +optional
	Succeeded int32 `json:"succeeded,omitempty"`

	// +optional
	Failed int32 `json:"failed,omitempty"`

	// CompletedIndexes is the compressed interval-list textual
	// representation of the Indexed-mode succeeded set, e.g. "0,2-4".
	// +optional
	CompletedIndexes string `json:"completedIndexes,omitempty"`

	// FailedIndexes is CompletedIndexes's counterpart: the compressed
	// interval-list of indexes that have permanently failed, either via a
	// FailIndex PodFailurePolicy match or by exceeding
	// BackoffLimitPerIndex. Only populated when BackoffLimitPerIndex is
	// set.
	// +optional
	FailedIndexes string `json:"failedIndexes,omitempty"`

	// +optional
	UncountedTerminatedPods *UncountedTerminatedPods `json:"uncountedTerminatedPods,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// Job is the Schema for the jobs API.
type Job struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   JobSpec   `json:"spec,omitempty"`
	Status JobStatus `json:"status,omitempty"`
}

// Meta implements resources.Meta.
func (j *Job) Meta() *metav1.ObjectMeta { return &j.ObjectMeta }

// GetSpec implements resources.Meta.
func (j *Job) GetSpec() interface{} { return j.Spec }

// DeepCopy returns a deep copy of j.
func (j *Job) DeepCopy() *Job {
	if j == nil {
		return nil
	}
	out := *j
	out.ObjectMeta = *j.ObjectMeta.DeepCopy()
	out.Status.Conditions = append([]JobCondition(nil), j.Status.Conditions...)
	if j.Status.UncountedTerminatedPods != nil {
		u := *j.Status.UncountedTerminatedPods
		u.Succeeded = append([]string(nil), u.Succeeded...)
		u.Failed = append([]string(nil), u.Failed...)
		out.Status.UncountedTerminatedPods = &u
	}
	return &out
}

// +kubebuilder:object:root=true

// JobList contains a list of Job.
type JobList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Job `json:"items"`
}
