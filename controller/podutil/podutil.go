// Package podutil holds pod predicates and orderings shared by the Job
// controller (§4.7.1) and the ReplicaSet reference controller (§4.8), which
// select scale-down victims the same way. The StatefulSet controller does
// not use it: it removes pods in descending ordinal order.
package podutil

import (
	"sort"

	corev1 "k8s.io/api/core/v1"

	corev1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/core/v1alpha1"
)

// IsActive reports whether p is neither terminal nor being deleted.
func IsActive(p *corev1alpha1.Pod) bool {
	return !p.Status.IsTerminal() && p.DeletionTimestamp == nil
}

// IsTerminating reports whether p has a deletion timestamp but has not yet
// been removed from the store.
func IsTerminating(p *corev1alpha1.Pod) bool {
	return p.DeletionTimestamp != nil
}

func phaseRank(phase corev1.PodPhase) int {
	switch phase {
	case corev1.PodPending:
		return 0
	case corev1.PodUnknown:
		return 1
	case corev1.PodRunning:
		return 2
	default:
		return 3
	}
}

// SortActivePods orders pods least-valuable-first per §4.7.1:
//  1. unassigned before assigned
//  2. Pending < Unknown < Running
//  3. not-ready before ready
//  4. among ready pods, most-recently-ready first
//  5. higher max container restart count first
//  6. newer creation timestamp first (no timestamp sorts first)
func SortActivePods(pods []*corev1alpha1.Pod) {
	sort.SliceStable(pods, func(i, j int) bool {
		a, b := pods[i], pods[j]

		aAssigned, bAssigned := a.Spec.NodeName != "", b.Spec.NodeName != ""
		if aAssigned != bAssigned {
			return !aAssigned
		}

		ar, br := phaseRank(a.Status.Phase), phaseRank(b.Status.Phase)
		if ar != br {
			return ar < br
		}

		aReady, bReady := a.Status.IsReady(), b.Status.IsReady()
		if aReady != bReady {
			return !aReady
		}

		if aReady && bReady {
			at, bt := a.Status.ReadyTransitionTime(), b.Status.ReadyTransitionTime()
			if !at.Equal(&bt) {
				return at.After(bt.Time)
			}
		}

		ar2, br2 := a.Status.MaxContainerRestarts(), b.Status.MaxContainerRestarts()
		if ar2 != br2 {
			return ar2 > br2
		}

		aHasTS, bHasTS := !a.CreationTimestamp.IsZero(), !b.CreationTimestamp.IsZero()
		if aHasTS != bHasTS {
			return !aHasTS
		}
		return a.CreationTimestamp.After(b.CreationTimestamp.Time)
	})
}
