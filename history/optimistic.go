package history

import (
	"sort"

	"github.com/jeffa5/model-checked-orchestration/errs"
	"github.com/jeffa5/model-checked-orchestration/revision"
	"github.com/jeffa5/model-checked-orchestration/state"
)

// OptimisticLinearHistory maintains a committed base view followed by a
// chain of optimistic extensions. A writer observing the current tail
// extends the chain; once the chain grows past commitEvery links it is
// collapsed, promoting the tail to the new committed base. A writer whose
// baseline has fallen behind the tail (a simulated leader change) instead
// discards every other retained view, keeping only its own baseline, and
// appends its write after it, numbered after the discarded tail so that
// revisions stay strictly increasing.
type OptimisticLinearHistory struct {
	commitEvery int
	views       []state.View // views[0] is the committed base; ascending revision
}

// NewOptimisticLinearHistory seeds an OptimisticLinearHistory at initial.
func NewOptimisticLinearHistory(initial state.View, commitEvery int) *OptimisticLinearHistory {
	if commitEvery < 1 {
		commitEvery = 1
	}
	return &OptimisticLinearHistory{commitEvery: commitEvery, views: []state.View{initial}}
}

func (h *OptimisticLinearHistory) indexOf(r revision.Revision) (int, bool) {
	i := sort.Search(len(h.views), func(i int) bool { return h.views[i].Revision >= r })
	if i < len(h.views) && h.views[i].Revision == r {
		return i, true
	}
	return 0, false
}

func (h *OptimisticLinearHistory) AddChange(change state.Change, _ int) revision.Revision {
	baseIdx, ok := h.indexOf(change.SourceRevision)
	if !ok {
		panic(errs.ErrInvariantViolation)
	}
	tailIdx := len(h.views) - 1

	var base state.View
	if baseIdx == tailIdx {
		base = h.views[tailIdx]
	} else {
		// Leader change: the writer's baseline is stale relative to the
		// current optimistic tail. Keep only that baseline view; the new
		// write is numbered after the discarded tail.
		tailRevision := h.views[tailIdx].Revision
		base = h.views[baseIdx]
		h.views = []state.View{base}
		base.Revision = tailRevision
	}

	next := base.Apply(change.Operation)
	h.views = append(h.views, next)

	if len(h.views) > h.commitEvery+1 {
		// Collapse: the new tail becomes the sole committed base.
		h.views = []state.View{next}
	}

	return next.Revision
}

func (h *OptimisticLinearHistory) MaxRevision() revision.Revision {
	return h.views[len(h.views)-1].Revision
}

func (h *OptimisticLinearHistory) StateAt(r revision.Revision) state.View {
	if i, ok := h.indexOf(r); ok {
		return h.views[i]
	}
	panic(errs.ErrInvariantViolation)
}

func (h *OptimisticLinearHistory) ValidRevisions(_ int) []revision.Revision {
	out := make([]revision.Revision, len(h.views))
	for i, v := range h.views {
		out[i] = v.Revision
	}
	return out
}

func (h *OptimisticLinearHistory) ResetSession(_ int) {}

func (h *OptimisticLinearHistory) Clone() History {
	views := make([]state.View, len(h.views))
	copy(views, h.views)
	return &OptimisticLinearHistory{commitEvery: h.commitEvery, views: views}
}
