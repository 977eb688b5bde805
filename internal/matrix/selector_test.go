package matrix

import (
	"reflect"
	"testing"
)

func fiveVariants() *Matrix {
	return New(testCatalog(
		variantDef("a", "compile"),
		variantDef("b", "compile"),
		variantDef("c", "compile"),
		variantDef("d", "compile"),
		variantDef("e", "compile"),
	))
}

func TestPlainClicksLeaveOnlyLastSelected(t *testing.T) {
	m := fiveVariants()
	m.Select(1, Modifiers{CtrlOrMeta: true})
	m.Select(3, Modifiers{CtrlOrMeta: true})
	for _, idx := range []int{2, 0, 4, 4} {
		m.Select(idx, Modifiers{})
		v, _ := m.At(idx)
		if got := selectedIDs(m); !reflect.DeepEqual(got, []string{v.ID}) {
			t.Fatalf("after plain click on %d selected = %v, want [%s]", idx, got, v.ID)
		}
	}
}

func TestCtrlClickTogglesOnlyTarget(t *testing.T) {
	m := fiveVariants()
	m.Select(0, Modifiers{})
	m.Select(2, Modifiers{CtrlOrMeta: true})
	if got := selectedIDs(m); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Fatalf("selected = %v, want [a c]", got)
	}
	m.Select(2, Modifiers{CtrlOrMeta: true})
	if got := selectedIDs(m); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("double toggle should restore, selected = %v", got)
	}
	m.Select(0, Modifiers{CtrlOrMeta: true, Shift: true})
	if got := selectedIDs(m); len(got) != 0 {
		t.Fatalf("ctrl must win over shift, selected = %v", got)
	}
}

func TestShiftClickFromEmptySelectionAnchorsAtZero(t *testing.T) {
	m := fiveVariants()
	m.Select(3, Modifiers{Shift: true})
	if got := selectedIDs(m); !reflect.DeepEqual(got, []string{"a", "b", "c", "d"}) {
		t.Fatalf("selected = %v, want [a b c d]", got)
	}
}

func TestShiftClickSelectsRangeInEitherDirection(t *testing.T) {
	m := fiveVariants()
	m.Select(3, Modifiers{})
	m.Select(1, Modifiers{Shift: true})
	if got := selectedIDs(m); !reflect.DeepEqual(got, []string{"b", "c", "d"}) {
		t.Fatalf("backward range = %v, want [b c d]", got)
	}

	m.Select(1, Modifiers{})
	m.Select(3, Modifiers{Shift: true})
	if got := selectedIDs(m); !reflect.DeepEqual(got, []string{"b", "c", "d"}) {
		t.Fatalf("forward range = %v, want [b c d]", got)
	}
	m.Select(3, Modifiers{Shift: true})
	if got := selectedIDs(m); !reflect.DeepEqual(got, []string{"b", "c", "d"}) {
		t.Fatalf("repeated shift click changed selection: %v", got)
	}
}

func TestShiftClickDoesNotClearOutsideRange(t *testing.T) {
	m := fiveVariants()
	m.Select(1, Modifiers{})
	m.Select(4, Modifiers{CtrlOrMeta: true})
	m.Select(2, Modifiers{Shift: true})
	if got := selectedIDs(m); !reflect.DeepEqual(got, []string{"b", "c", "e"}) {
		t.Fatalf("selected = %v, want [b c e]", got)
	}
}

func TestSelectOutOfRangeIsNoop(t *testing.T) {
	m := fiveVariants()
	m.Select(0, Modifiers{})
	for _, idx := range []int{-1, 5, 99} {
		if m.Select(idx, Modifiers{}) {
			t.Fatalf("Select(%d) should report false", idx)
		}
	}
	if got := selectedIDs(m); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("selection changed by out-of-range click: %v", got)
	}
}

func TestSelectIDAndClear(t *testing.T) {
	m := fiveVariants()
	if err := m.SelectID("c", Modifiers{}); err != nil {
		t.Fatalf("SelectID: %v", err)
	}
	if err := m.SelectID("zzz", Modifiers{}); err == nil {
		t.Fatalf("expected error for unknown id")
	}
	if got := selectedIDs(m); !reflect.DeepEqual(got, []string{"c"}) {
		t.Fatalf("selected = %v", got)
	}
	m.ClearSelection()
	if got := selectedIDs(m); len(got) != 0 {
		t.Fatalf("ClearSelection left %v", got)
	}
}
