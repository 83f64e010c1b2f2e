package history

import (
	"github.com/jeffa5/model-checked-orchestration/errs"
	"github.com/jeffa5/model-checked-orchestration/revision"
	"github.com/jeffa5/model-checked-orchestration/state"
)

// BoundedHistory retains the most recent K+1 views: a reader may lag the
// writer by at most K revisions. Writes always extend the newest view;
// the oldest retained view is evicted once the ring exceeds capacity.
type BoundedHistory struct {
	k     int
	views []state.View // oldest first
}

// NewBoundedHistory seeds a BoundedHistory retaining initial plus up to k
// further generations.
func NewBoundedHistory(initial state.View, k int) *BoundedHistory {
	return &BoundedHistory{k: k, views: []state.View{initial}}
}

func (h *BoundedHistory) AddChange(change state.Change, _ int) revision.Revision {
	latest := h.views[len(h.views)-1]
	next := latest.Apply(change.Operation)
	h.views = append(h.views, next)
	if len(h.views) > h.k+1 {
		h.views = h.views[len(h.views)-(h.k+1):]
	}
	return next.Revision
}

func (h *BoundedHistory) MaxRevision() revision.Revision {
	return h.views[len(h.views)-1].Revision
}

func (h *BoundedHistory) StateAt(r revision.Revision) state.View {
	for _, v := range h.views {
		if v.Revision == r {
			return v
		}
	}
	panic(errs.ErrInvariantViolation)
}

func (h *BoundedHistory) ValidRevisions(_ int) []revision.Revision {
	out := make([]revision.Revision, len(h.views))
	for i, v := range h.views {
		out[i] = v.Revision
	}
	return out
}

func (h *BoundedHistory) ResetSession(_ int) {}

func (h *BoundedHistory) Clone() History {
	views := make([]state.View, len(h.views))
	copy(views, h.views)
	return &BoundedHistory{k: h.k, views: views}
}
