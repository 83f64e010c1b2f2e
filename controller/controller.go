// Package controller defines the Controller contract every reconciler
// implements and the closed set of controllers the model driver knows how
// to drive polymorphically.
package controller

import (
	"github.com/jeffa5/model-checked-orchestration/state"
)

// Action is what a controller step produced: an Operation to push into the
// history, or nothing if no action was warranted this step.
type Action struct {
	Operation state.Operation
}

// Controllers is implemented by every reconciler type in this repository
// (controller/job.Controller, controller/scheduler.Controller, ...),
// letting the model driver hold a heterogeneous roster
// ([]controller.Controllers) and invoke Step polymorphically without
// reflection.
type Controllers interface {
	// Step runs one reconciliation step against view. It returns the action
	// to take and true, or false when no action is warranted this step. No
	// per-session local state is passed in or returned.
	//
	// The first Action a not-yet-joined controller returns MUST be
	// ControllerJoin(id); every implementation under controller/ enforces
	// that itself rather than relying on callers to remember.
	Step(id int, view *state.View) (Action, bool)

	// Name identifies the controller kind for logging and property
	// predicates (e.g. "job", "scheduler").
	Name() string
}

// Joined reports whether id has already registered in view.
func Joined(view *state.View, id int) bool {
	return view.Controllers[id]
}
