package matrix

// Modifiers carries the modifier keys held during a variant activation.
type Modifiers struct {
	CtrlOrMeta bool
	Shift      bool
}

// Select applies one click on the variant at index:
//
//   - ctrl/meta toggles only that variant;
//   - shift selects the inclusive range between the first selected variant
//     (or index 0 when nothing is selected) and index, leaving the rest alone;
//   - a plain click selects that variant and clears every other one.
//
// Ctrl wins when both modifiers are held. An out-of-range index changes
// nothing and returns false.
func (m *Matrix) Select(index int, mods Modifiers) bool {
	if m == nil || index < 0 || index >= len(m.variants) {
		return false
	}
	switch {
	case mods.CtrlOrMeta:
		m.variants[index].Selected = !m.variants[index].Selected
	case mods.Shift:
		lo, hi := m.anchor(), index
		if lo > hi {
			lo, hi = hi, lo
		}
		for i := lo; i <= hi; i++ {
			m.variants[i].Selected = true
		}
	default:
		for i, v := range m.variants {
			v.Selected = i == index
		}
	}
	return true
}

// SelectID is Select addressed by variant id.
func (m *Matrix) SelectID(id string, mods Modifiers) error {
	for i, v := range m.Variants() {
		if v.ID == id {
			m.Select(i, mods)
			return nil
		}
	}
	_, err := m.Find(id)
	return err
}

// ClearSelection deselects every variant.
func (m *Matrix) ClearSelection() {
	for _, v := range m.Variants() {
		v.Selected = false
	}
}

// anchor is the index of the first selected variant, or 0.
func (m *Matrix) anchor() int {
	for i, v := range m.variants {
		if v.Selected {
			return i
		}
	}
	return 0
}
