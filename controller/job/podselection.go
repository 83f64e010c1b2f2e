package job

import (
	batchv1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/batch/v1alpha1"
	corev1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/core/v1alpha1"
	"github.com/jeffa5/model-checked-orchestration/controller/podutil"
)

func getCompletionIndex(pod *corev1alpha1.Pod) (uint32, bool) {
	v, ok := pod.Annotations[batchv1alpha1.JobCompletionIndexAnnotation]
	if !ok {
		return 0, false
	}
	var idx uint32
	var n int
	for _, r := range v {
		if r < '0' || r > '9' {
			return 0, false
		}
		idx = idx*10 + uint32(r-'0')
		n++
	}
	if n == 0 {
		return 0, false
	}
	return idx, true
}

func getIndexes(pods []*corev1alpha1.Pod) []uint32 {
	var out []uint32
	for _, p := range pods {
		if idx, ok := getCompletionIndex(p); ok {
			out = append(out, idx)
		}
	}
	return out
}

// activePodsForRemoval picks rmAtLeast victims from active pods, preferring
// duplicate-index pods (Indexed mode only) before falling back to the
// standard active-pod ordering (§4.7.1, podutil.SortActivePods).
func activePodsForRemoval(j *batchv1alpha1.Job, pods []*corev1alpha1.Pod, rmAtLeast int) []*corev1alpha1.Pod {
	var rm, left []*corev1alpha1.Pod
	if isIndexed(j) {
		rm, left = appendDuplicatedIndexPodsForRemoval(pods, completionsOf(j))
	} else {
		left = append([]*corev1alpha1.Pod(nil), pods...)
	}

	if len(rm) < rmAtLeast {
		podutil.SortActivePods(left)
		need := rmAtLeast - len(rm)
		if need > len(left) {
			need = len(left)
		}
		rm = append(rm, left[:need]...)
	}
	return rm
}

// appendDuplicatedIndexPodsForRemoval scans pods for duplicated completion
// indexes, selecting n-1 of each group of n for removal, keeping the
// remainder in left. Pods without a valid index, or with an index ≥
// completions, are always selected for removal.
//
// Ported from original_source, including its loop-counter bound: the final
// group is cut at countLooped, the number of completed loop iterations,
// rather than at len(pods). After the out-of-range break below, countLooped
// is the position of the first out-of-range pod, so the final group holds
// exactly the pods of the last in-range index (see DESIGN.md's Open Question
// Decisions).
func appendDuplicatedIndexPodsForRemoval(pods []*corev1alpha1.Pod, completions uint32) (rm, left []*corev1alpha1.Pod) {
	sorted := append([]*corev1alpha1.Pod(nil), pods...)
	sortByCompletionIndex(sorted)

	var lastIndex *uint32
	firstRepeatPos := 0
	countLooped := 0

	for i := 0; i < len(sorted); i++ {
		p := sorted[i]
		ix, hasIx := getCompletionIndex(p)
		if hasIx && ix >= completions {
			rm = append(rm, sorted[i:]...)
			break
		}
		if !indexEqual(hasIx, ix, lastIndex) {
			rm, left = appendPodsWithSameIndexForRemovalAndRemaining(rm, left, sorted[firstRepeatPos:i])
			firstRepeatPos = i
			if hasIx {
				v := ix
				lastIndex = &v
			} else {
				lastIndex = nil
			}
		}
		countLooped++
	}
	rm, left = appendPodsWithSameIndexForRemovalAndRemaining(rm, left, sorted[firstRepeatPos:countLooped])
	return rm, left
}

func indexEqual(hasIx bool, ix uint32, last *uint32) bool {
	if !hasIx {
		return last == nil
	}
	return last != nil && *last == ix
}

func appendPodsWithSameIndexForRemovalAndRemaining(rm, left []*corev1alpha1.Pod, group []*corev1alpha1.Pod) ([]*corev1alpha1.Pod, []*corev1alpha1.Pod) {
	if len(group) == 0 {
		return rm, left
	}
	if _, ok := getCompletionIndex(group[0]); !ok {
		return append(rm, group...), left
	}
	if len(group) == 1 {
		return rm, append(left, group[0])
	}
	ordered := append([]*corev1alpha1.Pod(nil), group...)
	podutil.SortActivePods(ordered)
	rm = append(rm, ordered[:len(ordered)-1]...)
	left = append(left, ordered[len(ordered)-1])
	return rm, left
}

func sortByCompletionIndex(pods []*corev1alpha1.Pod) {
	less := func(i, j int) bool {
		ai, aok := getCompletionIndex(pods[i])
		bi, bok := getCompletionIndex(pods[j])
		if !aok && !bok {
			return false
		}
		if !aok {
			return true
		}
		if !bok {
			return false
		}
		return ai < bi
	}
	insertionSort(pods, less)
}

func insertionSort(pods []*corev1alpha1.Pod, less func(i, j int) bool) {
	for i := 1; i < len(pods); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			pods[j], pods[j-1] = pods[j-1], pods[j]
		}
	}
}

func isIndexed(j *batchv1alpha1.Job) bool {
	return j.Spec.CompletionMode != nil && *j.Spec.CompletionMode == batchv1alpha1.IndexedCompletion
}

func completionsOf(j *batchv1alpha1.Job) uint32 {
	if j.Spec.Completions == nil {
		return 0
	}
	return uint32(*j.Spec.Completions)
}
