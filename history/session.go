package history

import (
	"github.com/jeffa5/model-checked-orchestration/errs"
	"github.com/jeffa5/model-checked-orchestration/revision"
	"github.com/jeffa5/model-checked-orchestration/state"
)

// SessionHistory retains every view not yet superseded by all known
// sessions' high-water marks ("read your writes" / monotonic reads): a
// session never observes a revision older than the last one it wrote.
// Reads do not move a session's high-water mark.
type SessionHistory struct {
	views     []state.View // oldest first, ascending revision
	highWater map[int]revision.Revision
}

// NewSessionHistory seeds a SessionHistory at initial.
func NewSessionHistory(initial state.View) *SessionHistory {
	return &SessionHistory{
		views:     []state.View{initial},
		highWater: map[int]revision.Revision{},
	}
}

func (h *SessionHistory) AddChange(change state.Change, sessionID int) revision.Revision {
	latest := h.views[len(h.views)-1]
	next := latest.Apply(change.Operation)
	h.views = append(h.views, next)
	h.highWater[sessionID] = next.Revision
	h.gc()
	return next.Revision
}

// gc drops any retained view older than the minimum high-water mark across
// every known session (a view every session has already moved past).
func (h *SessionHistory) gc() {
	if len(h.highWater) == 0 {
		return
	}
	min := h.views[len(h.views)-1].Revision
	for _, r := range h.highWater {
		if r < min {
			min = r
		}
	}
	i := 0
	for i < len(h.views)-1 && h.views[i].Revision < min {
		i++
	}
	if i > 0 {
		h.views = h.views[i:]
	}
}

func (h *SessionHistory) MaxRevision() revision.Revision {
	return h.views[len(h.views)-1].Revision
}

func (h *SessionHistory) StateAt(r revision.Revision) state.View {
	for _, v := range h.views {
		if v.Revision == r {
			return v
		}
	}
	panic(errs.ErrInvariantViolation)
}

func (h *SessionHistory) ValidRevisions(sessionID int) []revision.Revision {
	floor, known := h.highWater[sessionID]
	var out []revision.Revision
	for _, v := range h.views {
		if !known || v.Revision >= floor {
			out = append(out, v.Revision)
		}
	}
	return out
}

func (h *SessionHistory) ResetSession(sessionID int) {
	delete(h.highWater, sessionID)
}

func (h *SessionHistory) Clone() History {
	views := make([]state.View, len(h.views))
	copy(views, h.views)
	highWater := make(map[int]revision.Revision, len(h.highWater))
	for k, v := range h.highWater {
		highWater[k] = v
	}
	return &SessionHistory{views: views, highWater: highWater}
}
