package history_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffa5/model-checked-orchestration/history"
	"github.com/jeffa5/model-checked-orchestration/revision"
	"github.com/jeffa5/model-checked-orchestration/state"
)

func join(name string) state.Operation { return state.NodeJoin{NodeName: name} }

func TestLinearizableOnlyRetainsLatest(t *testing.T) {
	h := history.NewLinearizableHistory(state.NewView())
	r1 := h.AddChange(state.Change{Operation: join("n1")}, 1)
	r2 := h.AddChange(state.Change{Operation: join("n2")}, 1)

	assert.Equal(t, r2, h.MaxRevision())
	assert.Panics(t, func() { h.StateAt(r1) })
	assert.Equal(t, []revision.Revision{r2}, h.ValidRevisions(1))
}

func TestBoundedRetainsKPlusOne(t *testing.T) {
	h := history.NewBoundedHistory(state.NewView(), 2)
	var revs []revision.Revision
	for i := 0; i < 5; i++ {
		r := h.AddChange(state.Change{Operation: join("n")}, 1)
		revs = append(revs, r)
	}
	valid := h.ValidRevisions(1)
	require.Len(t, valid, 3)
	assert.Equal(t, revs[len(revs)-3:], valid)
}

func TestSessionHighWaterExcludesOlderViews(t *testing.T) {
	h := history.NewSessionHistory(state.NewView())
	h.AddChange(state.Change{Operation: join("n1")}, 1)
	r2 := h.AddChange(state.Change{Operation: join("n2")}, 2)

	valid := h.ValidRevisions(2)
	for _, r := range valid {
		assert.True(t, r >= r2)
	}
	assert.Contains(t, valid, r2)
}

func TestEventualRetainsEverything(t *testing.T) {
	h := history.NewEventualHistory(state.NewView())
	h.AddChange(state.Change{Operation: join("n1")}, 1)
	h.AddChange(state.Change{Operation: join("n2")}, 1)
	assert.Len(t, h.ValidRevisions(1), 3)
}

func TestOptimisticLinearCollapsesOnCommit(t *testing.T) {
	h := history.NewOptimisticLinearHistory(state.NewView(), 2)
	r1 := h.AddChange(state.Change{Operation: join("n1"), SourceRevision: 0}, 1)
	r2 := h.AddChange(state.Change{Operation: join("n2"), SourceRevision: r1}, 1)
	assert.Len(t, h.ValidRevisions(1), 3)

	r3 := h.AddChange(state.Change{Operation: join("n3"), SourceRevision: r2}, 1)
	assert.Len(t, h.ValidRevisions(1), 1)
	assert.Equal(t, r3, h.MaxRevision())
}

func TestOptimisticLinearRebasesOnStaleWriter(t *testing.T) {
	h := history.NewOptimisticLinearHistory(state.NewView(), 10)
	r1 := h.AddChange(state.Change{Operation: join("n1"), SourceRevision: 0}, 1)
	h.AddChange(state.Change{Operation: join("n2"), SourceRevision: r1}, 1)

	// A second writer whose baseline is the original committed base (0),
	// not the current tail, forces a rollback that discards "n2".
	h.AddChange(state.Change{Operation: join("n3"), SourceRevision: 0}, 2)

	valid := h.ValidRevisions(2)
	require.Len(t, valid, 2)
}
