package history

import (
	"github.com/jeffa5/model-checked-orchestration/errs"
	"github.com/jeffa5/model-checked-orchestration/revision"
	"github.com/jeffa5/model-checked-orchestration/state"
)

// EventualHistory retains every view ever produced. Any reader may observe
// any past snapshot: the weakest, most permissive regime, useful for
// exploring the full space of stale reads a controller might act on.
type EventualHistory struct {
	views []state.View // consecutive revisions: views[i].Revision == views[0].Revision+i
}

// NewEventualHistory seeds an EventualHistory at initial.
func NewEventualHistory(initial state.View) *EventualHistory {
	return &EventualHistory{views: []state.View{initial}}
}

func (h *EventualHistory) AddChange(change state.Change, _ int) revision.Revision {
	latest := h.views[len(h.views)-1]
	next := latest.Apply(change.Operation)
	h.views = append(h.views, next)
	return next.Revision
}

func (h *EventualHistory) MaxRevision() revision.Revision {
	return h.views[len(h.views)-1].Revision
}

func (h *EventualHistory) StateAt(r revision.Revision) state.View {
	first := h.views[0].Revision
	if r < first || r-first >= revision.Revision(len(h.views)) {
		panic(errs.ErrInvariantViolation)
	}
	return h.views[r-first]
}

func (h *EventualHistory) ValidRevisions(_ int) []revision.Revision {
	out := make([]revision.Revision, len(h.views))
	for i, v := range h.views {
		out[i] = v.Revision
	}
	return out
}

func (h *EventualHistory) ResetSession(_ int) {}

func (h *EventualHistory) Clone() History {
	views := make([]state.View, len(h.views))
	copy(views, h.views)
	return &EventualHistory{views: views}
}
