package matrix

// Aggregate is the tri-state value of one task across the selected variants,
// plus a neutral value for "no selected variant has this task".
type Aggregate int

const (
	AggregateNone Aggregate = iota
	AggregateUnchecked
	AggregateChecked
	AggregateMixed
)

func (a Aggregate) String() string {
	switch a {
	case AggregateUnchecked:
		return "unchecked"
	case AggregateChecked:
		return "checked"
	case AggregateMixed:
		return "mixed"
	default:
		return "none"
	}
}

// Control is the aggregate checkbox for one active task.
type Control struct {
	Task  string
	State Aggregate
}

// Aggregator reads and writes task state over the variants that are selected
// at the moment of each call. It holds no state of its own.
type Aggregator struct {
	m *Matrix
}

// Aggregator returns the task aggregator bound to m.
func (m *Matrix) Aggregator() Aggregator {
	return Aggregator{m: m}
}

// ActiveTasks is the sorted union of task names over the selected variants.
func (a Aggregator) ActiveTasks() []string {
	return unionTasks(a.m.Selected())
}

// Get aggregates task over the selected variants that define it. Selected
// variants without the task do not take part.
func (a Aggregator) Get(task string) Aggregate {
	var checked, unchecked int
	for _, v := range a.m.Selected() {
		value, ok := v.Checked(task)
		switch {
		case !ok:
			continue
		case value:
			checked++
		default:
			unchecked++
		}
	}
	switch {
	case checked == 0 && unchecked == 0:
		return AggregateNone
	case unchecked == 0:
		return AggregateChecked
	case checked == 0:
		return AggregateUnchecked
	default:
		return AggregateMixed
	}
}

// Set writes value to task on every selected variant that defines it and
// returns the number of cells written.
func (a Aggregator) Set(task string, value bool) int {
	n := 0
	for _, v := range a.m.Selected() {
		if v.SetChecked(task, value) {
			n++
		}
	}
	return n
}

// Toggle flips the aggregate checkbox: a checked task becomes unchecked,
// anything else (unchecked or mixed) becomes checked. A task no selected
// variant defines stays AggregateNone.
func (a Aggregator) Toggle(task string) Aggregate {
	value := a.Get(task) != AggregateChecked
	if a.Set(task, value) == 0 {
		return AggregateNone
	}
	return a.Get(task)
}

// SetAll writes value to every active task on every selected variant,
// skipping tasks a variant does not define.
func (a Aggregator) SetAll(value bool) int {
	n := 0
	for _, task := range a.ActiveTasks() {
		n += a.Set(task, value)
	}
	return n
}

// Controls returns one control per active task, in ActiveTasks order.
func (a Aggregator) Controls() []Control {
	tasks := a.ActiveTasks()
	out := make([]Control, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, Control{Task: task, State: a.Get(task)})
	}
	return out
}
