// Package submission turns the checked cells of a matrix into the patch
// request payload and hands it to the patch server.
package submission

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kingrea/patchmatrix/internal/matrix"
)

// VariantTasks is one payload record: a variant and its checked task names.
type VariantTasks struct {
	Variant string   `json:"variant"`
	Tasks   []string `json:"tasks"`
}

// Payload is the body of POST /patch/{patchId}.
type Payload []VariantTasks

// Len returns the number of (variant, task) cells in the payload.
func (p Payload) Len() int {
	n := 0
	for _, vt := range p {
		n += len(vt.Tasks)
	}
	return n
}

// Empty reports whether the payload carries no cells.
func (p Payload) Empty() bool {
	return p.Len() == 0
}

// Build projects every variant with at least one checked task, regardless of
// which variants are selected. Variants keep display order and task names
// are sorted.
func Build(m *matrix.Matrix) Payload {
	payload := Payload{}
	for _, v := range m.Variants() {
		tasks := v.CheckedTasks()
		if len(tasks) == 0 {
			continue
		}
		payload = append(payload, VariantTasks{Variant: v.ID, Tasks: tasks})
	}
	return payload
}

// Apply checks every cell named by payload on m and returns how many cells
// were set. Variants or tasks m does not know are skipped; they are reported
// together in the returned error after all valid cells are applied.
func Apply(m *matrix.Matrix, payload Payload) (int, error) {
	var (
		applied int
		errs    []error
	)
	for _, vt := range payload {
		v, err := m.Find(vt.Variant)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, task := range vt.Tasks {
			if !v.SetChecked(task, true) {
				errs = append(errs, fmt.Errorf("%w: task %q on variant %q", matrix.ErrNotFound, task, vt.Variant))
				continue
			}
			applied++
		}
	}
	return applied, errors.Join(errs...)
}

// TVPair is a single (variant, task) cell.
type TVPair struct {
	Variant  string
	TaskName string
}

// Pairs flattens a payload into cells.
func Pairs(payload Payload) []TVPair {
	out := make([]TVPair, 0, payload.Len())
	for _, vt := range payload {
		for _, task := range vt.Tasks {
			out = append(out, TVPair{Variant: vt.Variant, TaskName: task})
		}
	}
	return out
}

// FromPairs groups cells back into payload records. Variants appear in order
// of first occurrence; task names within a variant are sorted and deduplicated.
func FromPairs(pairs []TVPair) Payload {
	index := map[string]int{}
	seen := map[TVPair]struct{}{}
	payload := Payload{}
	for _, pair := range pairs {
		if _, dup := seen[pair]; dup {
			continue
		}
		seen[pair] = struct{}{}
		i, ok := index[pair.Variant]
		if !ok {
			i = len(payload)
			index[pair.Variant] = i
			payload = append(payload, VariantTasks{Variant: pair.Variant})
		}
		payload[i].Tasks = append(payload[i].Tasks, pair.TaskName)
	}
	for i := range payload {
		sort.Strings(payload[i].Tasks)
	}
	return payload
}
