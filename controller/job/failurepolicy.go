package job

import (
	"fmt"

	corev1 "k8s.io/api/core/v1"

	batchv1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/batch/v1alpha1"
	corev1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/core/v1alpha1"
)

// matchPodFailurePolicy walks pfp's rules in order (§4.7.4) and returns on
// the first match: an optional FailJob message, whether the failure should
// be counted toward BackoffLimit/status.Failed, and the matched action (nil
// if no rule matched, which counts by default).
func matchPodFailurePolicy(pfp *batchv1alpha1.PodFailurePolicy, pod *corev1alpha1.Pod) (message string, countFailed bool, action *batchv1alpha1.PodFailurePolicyAction) {
	for index, rule := range pfp.Rules {
		rule := rule
		if rule.OnExitCodes != nil {
			if cs := matchOnExitCodes(&pod.Status, rule.OnExitCodes); cs != nil {
				switch rule.Action {
				case batchv1alpha1.PodFailurePolicyActionIgnore:
					return "", false, &rule.Action
				case batchv1alpha1.PodFailurePolicyActionFailIndex:
					// Tracked per-index (job.go's foldUncounted), not
					// against the whole job's BackoffLimit/status.Failed.
					return "", false, &rule.Action
				case batchv1alpha1.PodFailurePolicyActionCount:
					return "", true, &rule.Action
				case batchv1alpha1.PodFailurePolicyActionFailJob:
					exitCode := int32(0)
					if cs.State.Terminated != nil {
						exitCode = cs.State.Terminated.ExitCode
					}
					msg := fmt.Sprintf("Container %s for pod %s/%s failed with exit code %d matching %s rule at index %d",
						cs.Name, pod.Namespace, pod.Name, exitCode, rule.Action, index)
					return msg, true, &rule.Action
				}
			}
		} else if len(rule.OnPodConditions) > 0 {
			if cond := matchOnPodConditions(&pod.Status, rule.OnPodConditions); cond != nil {
				switch rule.Action {
				case batchv1alpha1.PodFailurePolicyActionIgnore:
					return "", false, &rule.Action
				case batchv1alpha1.PodFailurePolicyActionFailIndex:
					return "", false, &rule.Action
				case batchv1alpha1.PodFailurePolicyActionCount:
					return "", true, &rule.Action
				case batchv1alpha1.PodFailurePolicyActionFailJob:
					msg := fmt.Sprintf("Pod %s/%s has condition %s matching %s rule at index %d",
						pod.Namespace, pod.Name, cond.Type, rule.Action, index)
					return msg, true, &rule.Action
				}
			}
		}
	}
	return "", true, nil
}

func matchOnExitCodes(status *corev1alpha1.PodStatus, req *batchv1alpha1.PodFailurePolicyOnExitCodesRequirement) *corev1.ContainerStatus {
	if cs := matchingContainer(status.ContainerStatuses, req); cs != nil {
		return cs
	}
	return nil
}

func matchingContainer(css []corev1.ContainerStatus, req *batchv1alpha1.PodFailurePolicyOnExitCodesRequirement) *corev1.ContainerStatus {
	for i := range css {
		cs := css[i]
		if cs.State.Terminated == nil {
			continue
		}
		if req.ContainerName != nil && *req.ContainerName != cs.Name {
			continue
		}
		if cs.State.Terminated.ExitCode == 0 {
			continue
		}
		if isOnExitCodesOperatorMatching(cs.State.Terminated.ExitCode, req) {
			return &css[i]
		}
	}
	return nil
}

func isOnExitCodesOperatorMatching(exitCode int32, req *batchv1alpha1.PodFailurePolicyOnExitCodesRequirement) bool {
	switch req.Operator {
	case batchv1alpha1.PodFailurePolicyOnExitCodesOpIn:
		for _, v := range req.Values {
			if v == exitCode {
				return true
			}
		}
		return false
	case batchv1alpha1.PodFailurePolicyOnExitCodesOpNotIn:
		for _, v := range req.Values {
			if v == exitCode {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func matchOnPodConditions(status *corev1alpha1.PodStatus, patterns []batchv1alpha1.PodFailurePolicyOnPodConditionsPattern) *corev1.PodCondition {
	for i := range status.Conditions {
		pc := status.Conditions[i]
		for _, pattern := range patterns {
			if pc.Type == pattern.Type && pc.Status == pattern.Status {
				return &status.Conditions[i]
			}
		}
	}
	return nil
}

// getFailJobMessage returns the FailJob message of the first failed pod
// whose failure policy rule matched with FailJob, if any.
func getFailJobMessage(job *batchv1alpha1.Job, pods []*corev1alpha1.Pod) (string, bool) {
	if job.Spec.PodFailurePolicy == nil {
		return "", false
	}
	for _, p := range pods {
		if !isPodFailed(p, job) {
			continue
		}
		msg, _, action := matchPodFailurePolicy(job.Spec.PodFailurePolicy, p)
		if action != nil && *action == batchv1alpha1.PodFailurePolicyActionFailJob && msg != "" {
			return msg, true
		}
	}
	return "", false
}

// nonIgnoredFailedPodsCount subtracts pods whose failure policy rule
// matched Ignore or FailIndex (the actions matchPodFailurePolicy reports as
// not counted) from the raw failed-pod count.
func nonIgnoredFailedPodsCount(job *batchv1alpha1.Job, failedPods []*corev1alpha1.Pod) int {
	result := len(failedPods)
	if job.Spec.PodFailurePolicy == nil {
		return result
	}
	for _, p := range failedPods {
		_, countFailed, _ := matchPodFailurePolicy(job.Spec.PodFailurePolicy, p)
		if !countFailed {
			result--
		}
	}
	return result
}
