package history

import (
	"github.com/jeffa5/model-checked-orchestration/errs"
	"github.com/jeffa5/model-checked-orchestration/revision"
	"github.com/jeffa5/model-checked-orchestration/state"
)

// LinearizableHistory retains only the latest view. Every session always
// reads the single current revision: the strongest, simplest regime.
type LinearizableHistory struct {
	current state.View
}

// NewLinearizableHistory seeds a LinearizableHistory at initial.
func NewLinearizableHistory(initial state.View) *LinearizableHistory {
	return &LinearizableHistory{current: initial}
}

func (h *LinearizableHistory) AddChange(change state.Change, _ int) revision.Revision {
	h.current = h.current.Apply(change.Operation)
	return h.current.Revision
}

func (h *LinearizableHistory) MaxRevision() revision.Revision { return h.current.Revision }

func (h *LinearizableHistory) StateAt(r revision.Revision) state.View {
	if r != h.current.Revision {
		panic(errs.ErrInvariantViolation)
	}
	return h.current
}

func (h *LinearizableHistory) ValidRevisions(_ int) []revision.Revision {
	return []revision.Revision{h.current.Revision}
}

func (h *LinearizableHistory) ResetSession(_ int) {}

func (h *LinearizableHistory) Clone() History {
	return &LinearizableHistory{current: h.current}
}
