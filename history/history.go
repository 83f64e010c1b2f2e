// Package history implements the five interchangeable consistency regimes
// a State can be configured with: Linearizable, Bounded(k), Session,
// Eventual and OptimisticLinear(commitEvery).
package history

import (
	"github.com/jeffa5/model-checked-orchestration/revision"
	"github.com/jeffa5/model-checked-orchestration/state"
)

// History stores past views and answers which of them a given session may
// currently observe. All five strategies below implement it.
type History interface {
	// AddChange applies change.Operation, returning the resulting
	// revision. sessionID identifies the writer; only Session tracks
	// per-writer progress, the other strategies ignore it.
	AddChange(change state.Change, sessionID int) revision.Revision

	// MaxRevision is the most recently committed revision.
	MaxRevision() revision.Revision

	// StateAt returns the view at r. Panics with errs.ErrInvariantViolation
	// if r is not currently retained: callers must only ask for revisions
	// returned by ValidRevisions.
	StateAt(r revision.Revision) state.View

	// ValidRevisions lists every revision sessionID may currently read.
	ValidRevisions(sessionID int) []revision.Revision

	// ResetSession clears any per-session bookkeeping for sessionID
	// (only Session keeps any). The model driver never calls it.
	ResetSession(sessionID int)

	// Clone returns an independent copy: mutating the clone via AddChange
	// must never be observable through the receiver. Every strategy here
	// holds its retained views in a slice behind a pointer receiver, so a
	// plain interface-value copy would alias the same backing slice/map
	// across branches of exploration (model.Model.NextState visits many
	// actions from the same ModelState); Clone is what keeps those branches
	// independent.
	Clone() History
}

// ConsistencySetup names and constructs one of the five regimes.
type ConsistencySetup interface {
	NewHistory(initial state.View) History
}

// Strong selects LinearizableHistory.
type Strong struct{}

func (Strong) NewHistory(initial state.View) History { return NewLinearizableHistory(initial) }

// Bounded selects BoundedHistory retaining K+1 generations.
type Bounded struct{ K int }

func (b Bounded) NewHistory(initial state.View) History { return NewBoundedHistory(initial, b.K) }

// Session selects SessionHistory.
type Session struct{}

func (Session) NewHistory(initial state.View) History { return NewSessionHistory(initial) }

// Eventual selects EventualHistory.
type Eventual struct{}

func (Eventual) NewHistory(initial state.View) History { return NewEventualHistory(initial) }

// OptimisticLinear selects OptimisticLinearHistory, collapsing the
// optimistic chain to a new committed base every CommitEvery changes.
type OptimisticLinear struct{ CommitEvery int }

func (o OptimisticLinear) NewHistory(initial state.View) History {
	return NewOptimisticLinearHistory(initial, o.CommitEvery)
}
