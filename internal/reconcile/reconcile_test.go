package reconcile

import (
	"reflect"
	"testing"
)

func TestDiffCart_EmptyCart(t *testing.T) {
	desired := []DesiredItem{
		{ProductID: "prod-1", Name: "Saw", Quantity: 2},
		{ProductID: "prod-2", Name: "Mixer", Quantity: 1},
	}

	diff := DiffCart(nil, desired)

	want := []Missing{
		{ProductID: "prod-1", Name: "Saw", Add: 2},
		{ProductID: "prod-2", Name: "Mixer", Add: 1},
	}
	if !reflect.DeepEqual(diff.ToAdd, want) {
		t.Errorf("ToAdd = %+v, want %+v", diff.ToAdd, want)
	}
	if len(diff.Surplus) != 0 {
		t.Errorf("Surplus = %d, want 0", len(diff.Surplus))
	}
}

func TestDiffCart_PartiallyPresent(t *testing.T) {
	current := []CurrentItem{
		{ProductID: "prod-1", Quantity: 1},
	}
	desired := []DesiredItem{
		{ProductID: "prod-1", Quantity: 3},
	}

	diff := DiffCart(current, desired)

	if len(diff.ToAdd) != 1 {
		t.Fatalf("ToAdd = %d, want 1", len(diff.ToAdd))
	}
	if diff.ToAdd[0].Have != 1 || diff.ToAdd[0].Add != 2 {
		t.Errorf("Missing = %+v, want Have=1 Add=2", diff.ToAdd[0])
	}
}

func TestDiffCart_AlreadySatisfied(t *testing.T) {
	current := []CurrentItem{
		{ProductID: "prod-1", Quantity: 2},
		{ProductID: "prod-2", Quantity: 1},
	}
	desired := []DesiredItem{
		{ProductID: "prod-1", Quantity: 2},
		{ProductID: "prod-2", Quantity: 1},
	}

	diff := DiffCart(current, desired)

	if !diff.IsEmpty() {
		t.Errorf("expected empty diff, got %+v", diff.ToAdd)
	}
	if got := diff.Satisfied(desired); !reflect.DeepEqual(got, []string{"prod-1", "prod-2"}) {
		t.Errorf("Satisfied = %v", got)
	}
}

func TestDiffCart_SurplusIsReportedNotRemoved(t *testing.T) {
	current := []CurrentItem{
		{ProductID: "prod-1", Quantity: 5},
		{ProductID: "stray", Quantity: 1},
	}
	desired := []DesiredItem{
		{ProductID: "prod-1", Quantity: 2},
	}

	diff := DiffCart(current, desired)

	if !diff.IsEmpty() {
		t.Errorf("ToAdd = %+v, want none", diff.ToAdd)
	}
	if len(diff.Surplus) != 2 {
		t.Fatalf("Surplus = %d, want 2", len(diff.Surplus))
	}
	if diff.Surplus[0].ProductID != "prod-1" || diff.Surplus[0].Have != 5 || diff.Surplus[0].Want != 2 {
		t.Errorf("Surplus[0] = %+v", diff.Surplus[0])
	}
}

func TestDiffCart_DuplicatesAreSummed(t *testing.T) {
	current := []CurrentItem{
		{ProductID: "prod-1", Quantity: 1},
		{ProductID: "prod-1", Quantity: 1},
	}
	desired := []DesiredItem{
		{ProductID: "prod-1", Quantity: 2},
		{ProductID: "prod-1", Quantity: 1},
	}

	diff := DiffCart(current, desired)

	if len(diff.ToAdd) != 1 || diff.ToAdd[0].Add != 1 {
		t.Errorf("ToAdd = %+v, want one entry adding 1", diff.ToAdd)
	}
}

func TestDiffCart_ZeroQuantityIgnored(t *testing.T) {
	diff := DiffCart(nil, []DesiredItem{{ProductID: "prod-1", Quantity: 0}})
	if !diff.IsEmpty() {
		t.Errorf("ToAdd = %+v, want none", diff.ToAdd)
	}
}

func TestDiffCart_PreservesSelectionOrder(t *testing.T) {
	desired := []DesiredItem{
		{ProductID: "z", Quantity: 1},
		{ProductID: "a", Quantity: 1},
		{ProductID: "m", Quantity: 1},
	}

	for i := 0; i < 20; i++ {
		diff := DiffCart(nil, desired)
		var ids []string
		for _, m := range diff.ToAdd {
			ids = append(ids, m.ProductID)
		}
		if !reflect.DeepEqual(ids, []string{"z", "a", "m"}) {
			t.Fatalf("order = %v, want [z a m]", ids)
		}
	}
}
