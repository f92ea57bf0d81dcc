package platform

// Tracker follows one goal through the status protocol: a new goal starts
// in progress, polls with the same goal continue it, and a different goal
// replaces it. A fault is terminal until Stop.
type Tracker[T comparable] struct {
	target    T
	tolerance float64
	active    bool
	arrived   bool
	failed    bool
}

// Set adopts target unless it is already the current goal. It reports
// whether the goal changed.
func (t *Tracker[T]) Set(target T, tolerance float64) bool {
	if t.active && t.target == target && t.tolerance == tolerance {
		return false
	}
	t.target = target
	t.tolerance = tolerance
	t.active = true
	t.arrived = false
	return true
}

// Goal returns the current goal while one is being pursued.
func (t *Tracker[T]) Goal() (T, float64, bool) {
	return t.target, t.tolerance, t.active && !t.arrived && !t.failed
}

// Resolve records whether the goal is satisfied and returns the status the
// caller should report.
func (t *Tracker[T]) Resolve(within bool) Status {
	switch {
	case t.failed:
		return Error
	case !t.active:
		return Error
	case t.arrived || within:
		t.arrived = true
		return Arrived
	default:
		return InProgress
	}
}

// Fail marks the current goal as faulted.
func (t *Tracker[T]) Fail() { t.failed = true }

func (t *Tracker[T]) Failed() bool { return t.failed }

// Busy reports whether a goal is still being pursued.
func (t *Tracker[T]) Busy() bool {
	_, _, ok := t.Goal()
	return ok
}

// Stop drops the goal and clears any fault.
func (t *Tracker[T]) Stop() {
	*t = Tracker[T]{}
}
