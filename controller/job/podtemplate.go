package job

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	batchv1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/batch/v1alpha1"
	corev1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/core/v1alpha1"
	"github.com/jeffa5/model-checked-orchestration/clock"
)

// isPodFailed reports whether p counts as failed for a Job: Failed phase
// outright, or (when RestartPolicy is OnFailure) a restart count that has
// exceeded BackoffLimit, matching the pod-failure accounting original_source
// folds directly into is_pod_failed rather than leaving to phase alone.
func isPodFailed(p *corev1alpha1.Pod, j *batchv1alpha1.Job) bool {
	if p.Status.Phase == corev1.PodFailed {
		return true
	}
	if p.Spec.RestartPolicy != corev1.RestartPolicyOnFailure {
		return false
	}
	if j.Spec.BackoffLimit == nil {
		return false
	}
	return p.Status.MaxContainerRestarts() > *j.Spec.BackoffLimit
}

// podGenerateNameWithIndex builds the GenerateName for a new pod as
// "<prefix>-<index>-", truncating the job name so the whole generateName,
// suffix included, is at most MaxGenerateNamePrefixLength characters.
// When index is negative (NonIndexed mode) no index segment is appended.
func podGenerateNameWithIndex(jobName string, index int) string {
	suffix := "-"
	if index >= 0 {
		suffix = fmt.Sprintf("-%d-", index)
	}
	prefix := jobName
	maxLen := batchv1alpha1.MaxGenerateNamePrefixLength() - len(suffix)
	if len(prefix) > maxLen {
		prefix = prefix[:maxLen]
	}
	return prefix + suffix
}

func appendJobCompletionFinalizerIfNotFound(finalizers []string) []string {
	for _, f := range finalizers {
		if f == batchv1alpha1.JobTrackingFinalizer {
			return finalizers
		}
	}
	return append(append([]string(nil), finalizers...), batchv1alpha1.JobTrackingFinalizer)
}

func addCompletionIndexAnnotation(annotations map[string]string, index int) map[string]string {
	out := make(map[string]string, len(annotations)+1)
	for k, v := range annotations {
		out[k] = v
	}
	out[batchv1alpha1.JobCompletionIndexAnnotation] = strconv.Itoa(index)
	return out
}

// parseAnnotationInt32 reads a non-negative integer annotation, defaulting
// to 0 when absent or malformed.
func parseAnnotationInt32(annotations map[string]string, key string) int32 {
	v, ok := annotations[key]
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return 0
	}
	return int32(n)
}

func podIndexFailureCount(p *corev1alpha1.Pod) int32 {
	return parseAnnotationInt32(p.Annotations, batchv1alpha1.JobIndexFailureCountAnnotation)
}

func podIndexIgnoredFailureCount(p *corev1alpha1.Pod) int32 {
	return parseAnnotationInt32(p.Annotations, batchv1alpha1.JobIndexIgnoredFailureCountAnnotation)
}

// indexFailureCounts returns the highest failure/ignored-failure counts
// carried by any pod (terminal ones included) seen so far for idx: the
// baseline a freshly-created replacement pod for that index must start
// from.
func indexFailureCounts(pods []*corev1alpha1.Pod, idx uint32) (failures, ignored int32) {
	for _, p := range pods {
		pidx, ok := getCompletionIndex(p)
		if !ok || pidx != idx {
			continue
		}
		if f := podIndexFailureCount(p); f > failures {
			failures = f
		}
		if ig := podIndexIgnoredFailureCount(p); ig > ignored {
			ignored = ig
		}
	}
	return failures, ignored
}

func withIndexFailureCountAnnotations(annotations map[string]string, failures, ignored int32) map[string]string {
	out := make(map[string]string, len(annotations)+2)
	for k, v := range annotations {
		out[k] = v
	}
	out[batchv1alpha1.JobIndexFailureCountAnnotation] = strconv.FormatInt(int64(failures), 10)
	out[batchv1alpha1.JobIndexIgnoredFailureCountAnnotation] = strconv.FormatInt(int64(ignored), 10)
	return out
}

func addCompletionIndexEnvVariables(template *corev1.PodTemplateSpec) {
	for i := range template.Spec.Containers {
		addCompletionIndexEnvVariable(&template.Spec.Containers[i])
	}
}

func addCompletionIndexEnvVariable(c *corev1.Container) {
	for _, e := range c.Env {
		if e.Name == batchv1alpha1.JobCompletionIndexEnvName {
			return
		}
	}
	c.Env = append(c.Env, corev1.EnvVar{
		Name: batchv1alpha1.JobCompletionIndexEnvName,
		ValueFrom: &corev1.EnvVarSource{
			FieldRef: &corev1.ObjectFieldSelector{
				FieldPath: fmt.Sprintf("metadata.annotations['%s']", batchv1alpha1.JobCompletionIndexAnnotation),
			},
		},
	})
}

// newPodForJob builds a new owned Pod from job's template. index is the
// completion index to assign in Indexed mode, or -1 for NonIndexed.
// baseFailures/baseIgnored seed the new pod's per-index failure-count
// annotations, carrying forward a predecessor pod's tally for the same
// index (ignored for NonIndexed jobs, where both are always 0).
func newPodForJob(j *batchv1alpha1.Job, index int, baseFailures, baseIgnored int32, c clock.Clock) *corev1alpha1.Pod {
	template := j.Spec.Template.DeepCopy()

	p := &corev1alpha1.Pod{}
	p.GenerateName = podGenerateNameWithIndex(j.Name, index)
	p.Name = p.GenerateName + uuid.NewString()[:8]
	p.Namespace = j.Namespace
	p.Labels = template.Labels
	p.Annotations = template.Annotations
	p.Finalizers = appendJobCompletionFinalizerIfNotFound(nil)
	p.CreationTimestamp = metav1.NewTime(c.Now())
	p.UID = types.UID(uuid.NewString())
	p.OwnerReferences = []metav1.OwnerReference{
		{
			APIVersion: "batch/v1alpha1",
			Kind:       "Job",
			Name:       j.Name,
			UID:        j.UID,
			Controller: boolPtr(true),
		},
	}

	if index >= 0 {
		p.Annotations = addCompletionIndexAnnotation(p.Annotations, index)
		p.Annotations = withIndexFailureCountAnnotations(p.Annotations, baseFailures, baseIgnored)
		addCompletionIndexEnvVariables(template)
		p.Name = fmt.Sprintf("%s%d", p.GenerateName, index)
	}

	p.Spec.Containers = append([]corev1.Container(nil), template.Spec.Containers...)
	p.Spec.RestartPolicy = template.Spec.RestartPolicy

	return p
}

func boolPtr(b bool) *bool { return &b }
