// Package reconcile computes the delta between what a widget cart already
// holds and what the user selected. The widget cart only supports adding, so
// the delta is expressed as quantities still missing; anything the cart holds
// beyond the selection is reported but never acted on.
package reconcile

// CurrentItem is a line the external cart already holds.
type CurrentItem struct {
	ProductID string // External product identifier
	Quantity  int    // Quantity in the cart
}

// DesiredItem is a line the user selected.
type DesiredItem struct {
	ProductID string // External product identifier
	Name      string // Display name, carried through for diagnostics
	Quantity  int    // Selected quantity
}

// Missing is a quantity that still has to be added for ProductID.
type Missing struct {
	ProductID string
	Name      string
	Have      int // Quantity already in the cart
	Add       int // Quantity still to add
}

// Surplus is a product the cart holds more of than selected.
type Surplus struct {
	ProductID string
	Have      int
	Want      int
}

// CartDiff describes how far the cart is from the selection.
type CartDiff struct {
	ToAdd   []Missing // In selection order
	Surplus []Surplus // Informational, the widget offers no removal channel
}

// IsEmpty returns true if nothing needs to be added.
func (d *CartDiff) IsEmpty() bool {
	return len(d.ToAdd) == 0
}

// Satisfied returns the product ids that were selected and are fully present.
func (d *CartDiff) Satisfied(desired []DesiredItem) []string {
	missing := make(map[string]bool, len(d.ToAdd))
	for _, m := range d.ToAdd {
		missing[m.ProductID] = true
	}
	var ids []string
	for _, item := range desired {
		if item.Quantity > 0 && !missing[item.ProductID] {
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}

// DiffCart computes what must be added to current to cover desired.
//
// Matching is by ProductID. Duplicate entries on either side are summed, so a
// cart that lists the same product on two lines counts as one holding.
// Output order follows the first appearance in desired, which keeps injection
// order stable across retries.
func DiffCart(current []CurrentItem, desired []DesiredItem) *CartDiff {
	diff := &CartDiff{}

	have := make(map[string]int, len(current))
	for _, item := range current {
		have[item.ProductID] += item.Quantity
	}

	want := make(map[string]int, len(desired))
	names := make(map[string]string, len(desired))
	order := make([]string, 0, len(desired))
	for _, item := range desired {
		if item.Quantity <= 0 {
			continue
		}
		if _, seen := want[item.ProductID]; !seen {
			order = append(order, item.ProductID)
			names[item.ProductID] = item.Name
		}
		want[item.ProductID] += item.Quantity
	}

	for _, id := range order {
		if gap := want[id] - have[id]; gap > 0 {
			diff.ToAdd = append(diff.ToAdd, Missing{
				ProductID: id,
				Name:      names[id],
				Have:      have[id],
				Add:       gap,
			})
		}
	}

	for _, item := range current {
		if have[item.ProductID] > want[item.ProductID] && !hasSurplus(diff.Surplus, item.ProductID) {
			diff.Surplus = append(diff.Surplus, Surplus{
				ProductID: item.ProductID,
				Have:      have[item.ProductID],
				Want:      want[item.ProductID],
			})
		}
	}

	return diff
}

func hasSurplus(list []Surplus, productID string) bool {
	for _, s := range list {
		if s.ProductID == productID {
			return true
		}
	}
	return false
}
