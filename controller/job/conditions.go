package job

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	batchv1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/batch/v1alpha1"
	"github.com/jeffa5/model-checked-orchestration/clock"
)

func findConditionByType(conditions []batchv1alpha1.JobCondition, t batchv1alpha1.JobConditionType) *batchv1alpha1.JobCondition {
	for i := range conditions {
		if conditions[i].Type == t {
			return &conditions[i]
		}
	}
	return nil
}

func newCondition(t batchv1alpha1.JobConditionType, status corev1.ConditionStatus, reason, message string, now metav1.Time) batchv1alpha1.JobCondition {
	return batchv1alpha1.JobCondition{
		Type:               t,
		Status:             status,
		LastProbeTime:      now,
		LastTransitionTime: now,
		Reason:             reason,
		Message:            message,
	}
}

// ensureJobConditionStatus appends or updates conditions with a condition
// of type t, returning the updated slice and whether anything changed. It
// never appends a brand-new False condition, since "absent" already means
// false; it may update an existing condition to False, though.
func ensureJobConditionStatus(conditions []batchv1alpha1.JobCondition, t batchv1alpha1.JobConditionType, status corev1.ConditionStatus, reason, message string, c clock.Clock) ([]batchv1alpha1.JobCondition, bool) {
	now := metav1.NewTime(c.Now())
	out := make([]batchv1alpha1.JobCondition, len(conditions))
	copy(out, conditions)

	if existing := findConditionByType(out, t); existing != nil {
		if existing.Status != status || existing.Reason != reason || existing.Message != message {
			*existing = newCondition(t, status, reason, message, now)
			return out, true
		}
		return conditions, false
	}

	if status != corev1.ConditionFalse {
		out = append(out, newCondition(t, status, reason, message, now))
		return out, true
	}
	return conditions, false
}
