package job

import (
	"sort"
	"strconv"
	"strings"
)

// interval is a closed, inclusive [Start, End] range of completion indexes,
// the unit calculateSucceededIndexes/status.CompletedIndexes deal in.
type interval struct {
	Start, End uint32
}

// parseIndexesFromString is the inverse of formatIndexes: it turns the
// compressed "0,2-4" textual form back into a sorted, non-overlapping
// interval list, clamping anything at or beyond completions.
func parseIndexesFromString(indexesStr string, completions uint32) []interval {
	var result []interval
	if indexesStr == "" {
		return result
	}

	var lastInterval *interval
	for _, intervalStr := range strings.Split(indexesStr, ",") {
		parts := strings.SplitN(intervalStr, "-", 2)
		first, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			continue
		}
		if uint32(first) >= completions {
			break
		}
		last := uint32(first)
		if len(parts) == 2 {
			l, err := strconv.ParseUint(parts[1], 10, 32)
			if err != nil {
				continue
			}
			last = uint32(l)
			if last >= completions {
				last = completions - 1
			}
		}
		if lastInterval != nil && lastInterval.End == uint32(first)-1 {
			lastInterval.End = last
			continue
		}
		result = append(result, interval{Start: uint32(first), End: last})
		lastInterval = &result[len(result)-1]
	}
	return result
}

// formatIndexes renders intervals back into status.CompletedIndexes's
// compressed textual form.
func formatIndexes(intervals []interval) string {
	parts := make([]string, 0, len(intervals))
	for _, iv := range intervals {
		if iv.Start == iv.End {
			parts = append(parts, strconv.FormatUint(uint64(iv.Start), 10))
		} else {
			parts = append(parts, strconv.FormatUint(uint64(iv.Start), 10)+"-"+strconv.FormatUint(uint64(iv.End), 10))
		}
	}
	return strings.Join(parts, ",")
}

// withOrderedIndexes merges a sorted interval list with a set of newly
// observed individual indexes.
func withOrderedIndexes(oi []interval, newIndexes []uint32) []interval {
	sort.Slice(newIndexes, func(i, j int) bool { return newIndexes[i] < newIndexes[j] })
	newIntervals := make([]interval, len(newIndexes))
	for i, idx := range newIndexes {
		newIntervals[i] = interval{Start: idx, End: idx}
	}
	return mergeIntervals(oi, newIntervals)
}

// mergeIntervals merges two sorted, non-overlapping interval lists into
// one sorted, non-overlapping list, coalescing adjacent/overlapping
// intervals. This is the associative merge property exercised by
// SPEC_FULL.md §8's round-trip law.
func mergeIntervals(oi, newIntervals []interval) []interval {
	var result []interval
	var lastInterval *interval

	appendOrMerge := func(iv interval) {
		if lastInterval == nil || iv.Start > lastInterval.End+1 {
			result = append(result, iv)
			lastInterval = &result[len(result)-1]
		} else if lastInterval.End < iv.End {
			lastInterval.End = iv.End
		}
	}

	i, j := 0, 0
	for i < len(oi) && j < len(newIntervals) {
		if oi[i].Start < newIntervals[j].Start {
			appendOrMerge(oi[i])
			i++
		} else {
			appendOrMerge(newIntervals[j])
			j++
		}
	}
	for ; i < len(oi); i++ {
		appendOrMerge(oi[i])
	}
	for ; j < len(newIntervals); j++ {
		appendOrMerge(newIntervals[j])
	}
	return result
}

// countIndexes returns the number of distinct indexes covered by
// intervals.
func countIndexes(intervals []interval) int {
	total := 0
	for _, iv := range intervals {
		total += int(iv.End-iv.Start) + 1
	}
	return total
}

// firstPendingIndexes returns up to count indexes in [0, completions) not
// already covered by nonPending, in ascending order.
func firstPendingIndexes(count int, completions uint32, nonPending []interval) []uint32 {
	if count == 0 {
		return nil
	}
	var result []uint32
	var candidate uint32
	for _, iv := range nonPending {
		for candidate < completions && len(result) < count && candidate < iv.Start {
			result = append(result, candidate)
			candidate++
		}
		if candidate < iv.End+1 {
			candidate = iv.End + 1
		}
	}
	for candidate < completions && len(result) < count {
		result = append(result, candidate)
		candidate++
	}
	return result
}
