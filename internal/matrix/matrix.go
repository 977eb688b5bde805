// Package matrix holds the editable variant × task selection state.
//
// A Matrix is built once from a catalog and then mutated in place by two
// kinds of input: variant selection (Select) and aggregate task writes made
// through an Aggregator over the currently selected variants. Nothing in this
// package blocks or locks; callers deliver events one at a time.
package matrix

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kingrea/patchmatrix/internal/catalog"
)

// ErrNotFound reports a lookup for a variant that is not in the matrix.
var ErrNotFound = errors.New("matrix: not found")

// TaskState is the include/exclude flag of one task on one variant.
type TaskState struct {
	Checked bool
}

// Variant is one row of the matrix.
type Variant struct {
	ID          string
	DisplayName string
	Selected    bool

	order []string
	tasks map[string]*TaskState
}

// Matrix is the ordered set of variants. Order is fixed at construction.
type Matrix struct {
	variants []*Variant
}

// New builds a matrix with every variant unselected and every task unchecked.
func New(cat catalog.Catalog) *Matrix {
	m := &Matrix{variants: make([]*Variant, 0, len(cat.Variants))}
	for _, def := range cat.Variants {
		v := &Variant{
			ID:          def.ID,
			DisplayName: def.DisplayName,
			tasks:       make(map[string]*TaskState, len(def.Tasks)),
		}
		for _, task := range def.Tasks {
			if _, ok := v.tasks[task.Name]; ok {
				continue
			}
			v.tasks[task.Name] = &TaskState{}
			v.order = append(v.order, task.Name)
		}
		m.variants = append(m.variants, v)
	}
	return m
}

// Len returns the number of variants.
func (m *Matrix) Len() int {
	if m == nil {
		return 0
	}
	return len(m.variants)
}

// Variants returns the variants in display order.
func (m *Matrix) Variants() []*Variant {
	if m == nil {
		return nil
	}
	out := make([]*Variant, len(m.variants))
	copy(out, m.variants)
	return out
}

// At returns the variant at a display index.
func (m *Matrix) At(index int) (*Variant, bool) {
	if m == nil || index < 0 || index >= len(m.variants) {
		return nil, false
	}
	return m.variants[index], true
}

// Find returns the variant with the given id.
func (m *Matrix) Find(id string) (*Variant, error) {
	if m != nil {
		for _, v := range m.variants {
			if v.ID == id {
				return v, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: variant %q", ErrNotFound, id)
}

// Selected returns the selected variants in display order.
func (m *Matrix) Selected() []*Variant {
	if m == nil {
		return nil
	}
	var out []*Variant
	for _, v := range m.variants {
		if v.Selected {
			out = append(out, v)
		}
	}
	return out
}

// AllTasks returns the sorted union of task names across every variant.
func (m *Matrix) AllTasks() []string {
	if m == nil {
		return nil
	}
	return unionTasks(m.variants)
}

// Tasks returns the variant's task names in catalog order.
func (v *Variant) Tasks() []string {
	out := make([]string, len(v.order))
	copy(out, v.order)
	return out
}

// Has reports whether the variant defines task.
func (v *Variant) Has(task string) bool {
	_, ok := v.tasks[task]
	return ok
}

// Checked returns the task's checked flag. The second result is false when
// the variant does not define task.
func (v *Variant) Checked(task string) (checked, ok bool) {
	state, ok := v.tasks[task]
	if !ok {
		return false, false
	}
	return state.Checked, true
}

// SetChecked updates an existing task. It never adds a task the variant does
// not define and reports whether anything was written.
func (v *Variant) SetChecked(task string, value bool) bool {
	state, ok := v.tasks[task]
	if !ok {
		return false
	}
	state.Checked = value
	return true
}

// NumChecked counts the variant's checked tasks.
func (v *Variant) NumChecked() int {
	n := 0
	for _, state := range v.tasks {
		if state.Checked {
			n++
		}
	}
	return n
}

// CheckedTasks returns the names of checked tasks, sorted.
func (v *Variant) CheckedTasks() []string {
	var out []string
	for name, state := range v.tasks {
		if state.Checked {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func unionTasks(variants []*Variant) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, v := range variants {
		for _, name := range v.order {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
