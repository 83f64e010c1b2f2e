// Package model assembles the Controllers, the initial StateView and a
// ConsistencySetup into a Model the checker in this package (or any
// external explorer) can drive: InitStates/Actions/NextState/Properties.
//
// Grounded on original_source/src/abstract_model.rs's AbstractModelCfg.
package model

import (
	"sort"
	"strconv"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	batchv1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/batch/v1alpha1"
	corev1alpha1 "github.com/jeffa5/model-checked-orchestration/apis/core/v1alpha1"
	"github.com/jeffa5/model-checked-orchestration/controller"
	"github.com/jeffa5/model-checked-orchestration/controller/podutil"
	"github.com/jeffa5/model-checked-orchestration/history"
	"github.com/jeffa5/model-checked-orchestration/revision"
	"github.com/jeffa5/model-checked-orchestration/state"
)

// Config is the static configuration a Model is built from: the
// controller roster, the initial view and the consistency level every
// ModelState's History is constructed with.
type Config struct {
	Controllers []controller.Controllers
	InitialView state.View
	Consistency history.ConsistencySetup
}

// ModelState is one node of the explored state graph: a History instance
// (holding every retained revision under the configured consistency
// level) plus the per-controller session it was derived from is implicit
// in which revisions are ValidRevisions(id) for each controller index.
type ModelState struct {
	History history.History
}

// ActionKind distinguishes the two action shapes a step can take, mirroring
// original_source's Action enum (ControllerStep / NodeCrash).
type ActionKind int

const (
	ActionControllerStep ActionKind = iota
	ActionNodeCrash
)

// Action is one candidate transition out of a ModelState.
type Action struct {
	Kind ActionKind

	// ControllerStep fields.
	ControllerID   int
	ControllerName string

	// NodeCrash fields.
	NodeName string
}

// Model drives Config's controllers over the state space rooted at
// Config.InitialView.
type Model struct {
	cfg Config
}

func New(cfg Config) *Model { return &Model{cfg: cfg} }

// InitStates returns the single root ModelState: a freshly constructed
// History seeded with InitialView.
func (m *Model) InitStates() []ModelState {
	return []ModelState{{History: m.cfg.Consistency.NewHistory(m.cfg.InitialView)}}
}

// Actions enumerates every controller step (one per controller, over
// every revision its consistency level exposes to it) plus a NodeCrash
// action for every currently-ready node, appending them to out.
func (m *Model) Actions(s ModelState, out *[]Action) {
	for id, c := range m.cfg.Controllers {
		for _, r := range s.History.ValidRevisions(id) {
			view := s.History.StateAt(r)
			if _, ok := c.Step(id, &view); ok {
				*out = append(*out, Action{Kind: ActionControllerStep, ControllerID: id, ControllerName: c.Name()})
			}
		}
	}

	latest := s.History.StateAt(s.History.MaxRevision())
	for _, n := range latest.Nodes.Iter() {
		if n.Status.Ready {
			*out = append(*out, Action{Kind: ActionNodeCrash, NodeName: n.Name})
		}
	}
}

// NextState applies action to s, returning the successor ModelState. A
// ControllerStep re-runs the named controller at its own latest valid
// revision (rather than trusting Actions' snapshot, since another
// action may have advanced history since Actions was enumerated) and
// folds its resulting Operation into History via AddChange.
func (m *Model) NextState(s ModelState, a Action) (ModelState, bool) {
	// Clone first: every History implementation mutates its backing slice
	// in place via a pointer receiver, so exploring more than one action
	// out of s would otherwise corrupt sibling branches sharing s.History.
	next := s.History.Clone()

	switch a.Kind {
	case ActionControllerStep:
		c := m.cfg.Controllers[a.ControllerID]
		revisions := next.ValidRevisions(a.ControllerID)
		if len(revisions) == 0 {
			return ModelState{}, false
		}
		r := revisions[len(revisions)-1]
		view := next.StateAt(r)
		action, ok := c.Step(a.ControllerID, &view)
		if !ok {
			return ModelState{}, false
		}
		next.AddChange(state.Change{Operation: action.Operation, SourceRevision: r}, a.ControllerID)
		return ModelState{History: next}, true

	case ActionNodeCrash:
		r := next.MaxRevision()
		next.AddChange(state.Change{Operation: state.NodeCrash{NodeName: a.NodeName}, SourceRevision: r}, -1)
		return ModelState{History: next}, true
	}

	return ModelState{}, false
}

// PropertyKind mirrors stateright's Expectation enum: Always must hold in
// every reachable state, Eventually must hold in at least one state along
// every infinite/terminal path.
type PropertyKind int

const (
	PropertyAlways PropertyKind = iota
	PropertyEventually
)

// Property is a named, quantified predicate over a ModelState, checked by
// whatever explorer drives this Model (the Checker below, or an external
// one).
type Property struct {
	Name  string
	Kind  PropertyKind
	Check func(ModelState) bool
}

// Properties returns the testable properties SPEC_FULL.md §8 names.
func (m *Model) Properties() []Property {
	return []Property{
		{
			Name: "every pod eventually gets scheduled",
			Kind: PropertyEventually,
			Check: func(s ModelState) bool {
				v := s.History.StateAt(s.History.MaxRevision())
				for _, p := range v.Pods.Iter() {
					if p.Spec.NodeName == "" {
						return false
					}
				}
				return true
			},
		},
		{
			// §8: "active"/"ready" match the actual active/ready pod
			// counts "whenever the system is quiescent" — checked only
			// once no controller (and no node crash) has a pending
			// action out of s, since the Job controller converges these
			// counts over several reconciliation steps rather than
			// instantaneously.
			Name: "Job active/ready status matches its pods whenever quiescent",
			Kind: PropertyAlways,
			Check: func(s ModelState) bool {
				var pending []Action
				m.Actions(s, &pending)
				if len(pending) > 0 {
					return true
				}
				v := s.History.StateAt(s.History.MaxRevision())
				for _, j := range v.Jobs.Iter() {
					var active, ready int32
					for _, p := range v.Pods.Iter() {
						if !ownedBy(p.OwnerReferences, j.UID) {
							continue
						}
						if podutil.IsActive(p) {
							active++
							if p.Status.IsReady() {
								ready++
							}
						}
					}
					statusReady := int32(0)
					if j.Status.Ready != nil {
						statusReady = *j.Status.Ready
					}
					if active != j.Status.Active || ready != statusReady {
						return false
					}
				}
				return true
			},
		},
		{
			// §8: every active Job pod carries the tracking finalizer;
			// every terminal Job pod already folded into
			// Succeeded/Failed (i.e. no longer present in
			// UncountedTerminatedPods) no longer carries it.
			Name: "Job tracking finalizer presence matches pod lifecycle state",
			Kind: PropertyAlways,
			Check: func(s ModelState) bool {
				v := s.History.StateAt(s.History.MaxRevision())
				for _, j := range v.Jobs.Iter() {
					uc := batchv1alpha1.UncountedTerminatedPods{}
					if j.Status.UncountedTerminatedPods != nil {
						uc = *j.Status.UncountedTerminatedPods
					}
					for _, p := range v.Pods.Iter() {
						if !ownedBy(p.OwnerReferences, j.UID) {
							continue
						}
						fin := hasJobFinalizer(p)
						if podutil.IsActive(p) {
							if !fin {
								return false
							}
							continue
						}
						if !p.Status.IsTerminal() {
							continue
						}
						folded := !containsStr(uc.Succeeded, string(p.UID)) && !containsStr(uc.Failed, string(p.UID))
						if folded && fin {
							return false
						}
					}
				}
				return true
			},
		},
		{
			// §8: every Indexed-mode pod's completion index annotation
			// falls within [0, completions).
			Name: "indexed Job pods carry a completion index within [0, completions)",
			Kind: PropertyAlways,
			Check: func(s ModelState) bool {
				v := s.History.StateAt(s.History.MaxRevision())
				for _, j := range v.Jobs.Iter() {
					if j.Spec.CompletionMode == nil || *j.Spec.CompletionMode != batchv1alpha1.IndexedCompletion {
						continue
					}
					var completions uint32
					if j.Spec.Completions != nil {
						completions = uint32(*j.Spec.Completions)
					}
					for _, p := range v.Pods.Iter() {
						if !ownedBy(p.OwnerReferences, j.UID) {
							continue
						}
						raw, ok := p.Annotations[batchv1alpha1.JobCompletionIndexAnnotation]
						if !ok {
							continue
						}
						idx, err := strconv.ParseUint(raw, 10, 32)
						if err != nil || uint32(idx) >= completions {
							return false
						}
					}
				}
				return true
			},
		},
		{
			// §8: per-resource Generation never decreases across the
			// revisions any controller session can currently observe,
			// taken together in ascending revision order.
			Name: "resource Generation is non-decreasing",
			Kind: PropertyAlways,
			Check: func(s ModelState) bool {
				last := map[string]int64{}
				for _, r := range visibleRevisions(m, s) {
					v := s.History.StateAt(r)
					for _, rm := range viewGenerations(v) {
						if prev, ok := last[rm.key]; ok && rm.generation < prev {
							return false
						}
						last[rm.key] = rm.generation
					}
				}
				return true
			},
		},
		{
			// §8: under Strong (Linearizable) consistency, a resource's
			// resource_version is always a well-formed revision no later
			// than the view's own revision: a reader never observes a
			// write from its own future. (Comparing writes' strict
			// increase across time needs the full visited trace, which
			// Property.Check's single-ModelState signature doesn't carry;
			// this is the strongest equivalent checkable per state.)
			Name: "ResourceVersion never outpaces its view under Linearizable history",
			Kind: PropertyAlways,
			Check: func(s ModelState) bool {
				if _, ok := m.cfg.Consistency.(history.Strong); !ok {
					return true
				}
				v := s.History.StateAt(s.History.MaxRevision())
				for _, rm := range viewGenerations(v) {
					rv, err := revision.ParseRevision(rm.resourceVersion)
					if err != nil || v.Revision.Before(rv) {
						return false
					}
				}
				return true
			},
		},
		{
			// §8: every Job eventually reaches a terminal condition
			// (Complete or Failed) rather than reconciling forever.
			// Jobs whose PodFailurePolicy/BackoffLimit make them
			// destined to fail are still expected to terminate, just not
			// necessarily with Complete(True).
			Name: "every Job eventually reaches a terminal condition",
			Kind: PropertyEventually,
			Check: func(s ModelState) bool {
				v := s.History.StateAt(s.History.MaxRevision())
				for _, j := range v.Jobs.Iter() {
					if !jobTerminal(j) {
						return false
					}
				}
				return true
			},
		},
	}
}

func ownedBy(owners []metav1.OwnerReference, uid types.UID) bool {
	for _, o := range owners {
		if o.UID == uid {
			return true
		}
	}
	return false
}

func hasJobFinalizer(p *corev1alpha1.Pod) bool {
	for _, f := range p.Finalizers {
		if f == batchv1alpha1.JobTrackingFinalizer {
			return true
		}
	}
	return false
}

func containsStr(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func jobTerminal(j *batchv1alpha1.Job) bool {
	for _, t := range []batchv1alpha1.JobConditionType{batchv1alpha1.JobComplete, batchv1alpha1.JobFailed} {
		for _, cond := range j.Status.Conditions {
			if cond.Type == t && cond.Status == corev1.ConditionTrue {
				return true
			}
		}
	}
	return false
}

// resourceMeta is a (kind, name)-keyed snapshot of the Generation/
// ResourceVersion fields the cross-revision properties above need, shared
// across every resource kind a View holds.
type resourceMeta struct {
	key             string
	generation      int64
	resourceVersion string
}

func viewGenerations(v state.View) []resourceMeta {
	var out []resourceMeta
	for _, n := range v.Nodes.Iter() {
		m := n.Meta()
		out = append(out, resourceMeta{"Node/" + m.Name, m.Generation, m.ResourceVersion})
	}
	for _, p := range v.Pods.Iter() {
		m := p.Meta()
		out = append(out, resourceMeta{"Pod/" + m.Name, m.Generation, m.ResourceVersion})
	}
	for _, j := range v.Jobs.Iter() {
		m := j.Meta()
		out = append(out, resourceMeta{"Job/" + m.Name, m.Generation, m.ResourceVersion})
	}
	for _, r := range v.ReplicaSets.Iter() {
		m := r.Meta()
		out = append(out, resourceMeta{"ReplicaSet/" + m.Name, m.Generation, m.ResourceVersion})
	}
	for _, d := range v.Deployments.Iter() {
		m := d.Meta()
		out = append(out, resourceMeta{"Deployment/" + m.Name, m.Generation, m.ResourceVersion})
	}
	for _, st := range v.StatefulSets.Iter() {
		m := st.Meta()
		out = append(out, resourceMeta{"StatefulSet/" + m.Name, m.Generation, m.ResourceVersion})
	}
	return out
}

// visibleRevisions returns every revision any controller session can
// currently observe in s.History, sorted oldest first, deduplicated. The
// node-crash pseudo-session is not included.
func visibleRevisions(m *Model, s ModelState) []revision.Revision {
	seen := map[revision.Revision]bool{}
	var out []revision.Revision
	for id := range m.cfg.Controllers {
		for _, r := range s.History.ValidRevisions(id) {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
