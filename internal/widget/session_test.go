package widget

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"rentsync/internal/model"
)

func testPeriod() model.RentalPeriod {
	start := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	return model.RentalPeriod{StartDate: start, EndDate: start.Add(48 * time.Hour)}
}

func rentalItems() []model.RentalItem {
	return []model.RentalItem{
		{ID: "saw", Name: "Tile saw", DailyRate: decimal.NewFromInt(45), Quantity: 2, BooqableID: "uuid-saw", Slug: "tile-saw"},
		{ID: "mixer", Name: "Mixer", DailyRate: decimal.NewFromInt(30), Quantity: 1, BooqableID: "uuid-mixer"},
		{ID: "blade", Name: "Blade", DailyRate: decimal.NewFromInt(12), Quantity: 3, BooqableID: "uuid-blade", IsConsumable: true},
		{ID: "level", Name: "Level", DailyRate: decimal.NewFromInt(20), Quantity: 1, BooqableID: "level"},
		{ID: "drill", Name: "Drill", DailyRate: decimal.NewFromInt(25), Quantity: 0, BooqableID: "uuid-drill"},
	}
}

type mapResolver map[string]string

func (m mapResolver) Resolve(ctx context.Context, ref string) (string, error) {
	if id, ok := m[ref]; ok {
		return id, nil
	}
	return "", errors.New("unknown slug")
}

// loadableWidget wires p so that loading the script installs a widget with
// setTimespan and a working addItems.
func loadableWidget(p *fakePage, cart *fakeCart) {
	p.onScriptLoad = func() {
		installWidget(p, widgetSetup{cart: cart})
		p.defineFunc(GlobalName+".cart.setTimespan", accepts)
		p.defineFunc(GlobalName+".cart.addItems", func(args ...any) error {
			for _, entry := range args[0].([]map[string]any) {
				cart.add(entry["product_id"].(string), entry["quantity"].(int))
			}
			return nil
		})
	}
}

func TestSync_EndToEnd(t *testing.T) {
	p := newFakePage(t, "")
	cart := newFakeCart()
	loadableWidget(p, cart)

	s := NewSession(p, nil, testLogger(), testOptions())
	attempt, err := s.Sync(context.Background(), SyncRequest{Items: rentalItems(), Period: testPeriod()})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if !attempt.Succeeded || !attempt.Confirmed {
		t.Errorf("attempt = %+v", attempt)
	}
	want := []string{"url", "cart.setTimespan", "cart.addItems"}
	if !reflect.DeepEqual(attempt.AppliedChannels, want) {
		t.Errorf("AppliedChannels = %v, want %v", attempt.AppliedChannels, want)
	}
	if attempt.Before.ItemCount != 0 || attempt.After.ItemCount != 3 {
		t.Errorf("item count %d -> %d", attempt.Before.ItemCount, attempt.After.ItemCount)
	}

	// Only the two eligible rentals reach the widget.
	calls := p.callsTo(GlobalName + ".cart.addItems")
	if len(calls) != 1 {
		t.Fatalf("addItems calls = %d", len(calls))
	}
	var ids []string
	for _, entry := range calls[0].Args[0].([]map[string]any) {
		ids = append(ids, entry["product_id"].(string))
	}
	if !reflect.DeepEqual(ids, []string{"uuid-saw", "uuid-mixer"}) {
		t.Errorf("injected ids = %v", ids)
	}
}

func TestSync_PeriodBeforeItems(t *testing.T) {
	p := newFakePage(t, "")
	loadableWidget(p, newFakeCart())

	s := NewSession(p, nil, testLogger(), testOptions())
	if _, err := s.Sync(context.Background(), SyncRequest{Items: rentalItems(), Period: testPeriod()}); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	setAt, addAt := -1, -1
	for i, path := range p.callPaths() {
		switch path {
		case GlobalName + ".cart.setTimespan":
			setAt = i
		case GlobalName + ".cart.addItems":
			addAt = i
		}
	}
	if setAt < 0 || addAt < 0 || setAt > addAt {
		t.Errorf("setTimespan at %d, addItems at %d; period must be applied first", setAt, addAt)
	}
}

func TestSync_Preconditions(t *testing.T) {
	tests := []struct {
		name  string
		req   SyncRequest
		field string
	}{
		{
			name:  "no period",
			req:   SyncRequest{Items: rentalItems()},
			field: "rental_period",
		},
		{
			name: "no eligible items",
			req: SyncRequest{
				Items:  []model.RentalItem{{ID: "a", BooqableID: "a", Quantity: 1}},
				Period: testPeriod(),
			},
			field: "items",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := newFakePage(t, "")
			s := NewSession(p, nil, testLogger(), testOptions())

			attempt, err := s.Sync(context.Background(), tc.req)
			if !errors.Is(err, model.ErrInvalidRequest) {
				t.Fatalf("err = %v, want invalid request", err)
			}
			if attempt != nil {
				t.Error("attempt returned for a precondition failure")
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Errorf("err = %q, want mention of %s", err, tc.field)
			}
			if len(p.scripts) != 0 || p.urlWrites != 0 || len(p.callPaths()) != 0 {
				t.Error("page touched before preconditions passed")
			}
		})
	}
}

func TestSync_BusyGuard(t *testing.T) {
	p := newFakePage(t, "")
	s := NewSession(p, nil, testLogger(), testOptions())
	s.busy.Store(true)

	_, err := s.Sync(context.Background(), SyncRequest{Items: rentalItems(), Period: testPeriod()})
	if !errors.Is(err, model.ErrBusy) {
		t.Fatalf("err = %v, want busy", err)
	}
	if len(p.scripts) != 0 {
		t.Error("busy session touched the page")
	}

	s.busy.Store(false)
	if s.Busy() {
		t.Error("Busy = true after release")
	}
}

func TestSync_UnconfirmedInTrustedMode(t *testing.T) {
	// Clicks land on a placeholder but the structured cart never changes.
	p := newFakePage(t, placeholder("uuid-saw", "tile-saw")+placeholder("uuid-mixer", "mixer"))
	p.onScriptLoad = func() { installWidget(p, widgetSetup{cart: newFakeCart(), enhance: true}) }

	s := NewSession(p, nil, testLogger(), testOptions())
	attempt, err := s.Sync(context.Background(), SyncRequest{Items: rentalItems(), Period: testPeriod()})

	if !errors.Is(err, ErrUnconfirmed) {
		t.Fatalf("err = %v, want ErrUnconfirmed", err)
	}
	if attempt == nil || attempt.Succeeded {
		t.Errorf("attempt = %+v, want unsucceeded", attempt)
	}
}

func TestSync_ConfirmsDelayedClickEffect(t *testing.T) {
	// The widget has no cart api; its buttons update cart data 40ms after a click.
	p := newFakePage(t, placeholder("uuid-saw", "tile-saw"))
	cart := newFakeCart()
	p.onScriptLoad = func() {
		installWidget(p, widgetSetup{cart: cart, enhance: true, clicksAddItem: true, clickDelay: 40 * time.Millisecond})
	}
	items := []model.RentalItem{
		{ID: "saw", Name: "Tile saw", Quantity: 1, BooqableID: "uuid-saw"},
	}

	s := NewSession(p, nil, testLogger(), testOptions())
	attempt, err := s.Sync(context.Background(), SyncRequest{Items: items, Period: testPeriod()})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !attempt.Succeeded || !attempt.Confirmed {
		t.Errorf("attempt = %+v, want succeeded and confirmed", attempt)
	}
	if attempt.After.ItemCount != 1 {
		t.Errorf("After.ItemCount = %d, want 1", attempt.After.ItemCount)
	}
}

func TestSync_NoWidgetNoPlaceholders(t *testing.T) {
	p := newFakePage(t, "")
	p.scriptErr = errors.New("blocked")

	s := NewSession(p, nil, testLogger(), testOptions())
	attempt, err := s.Sync(context.Background(), SyncRequest{Items: rentalItems(), Period: testPeriod()})

	if !errors.Is(err, ErrNotAdded) {
		t.Fatalf("err = %v, want ErrNotAdded", err)
	}
	if !strings.Contains(err.Error(), ReasonNotInitialized) {
		t.Errorf("err = %q, want reason %q", err, ReasonNotInitialized)
	}
	if !reflect.DeepEqual(attempt.AppliedChannels, []string{"url"}) {
		t.Errorf("AppliedChannels = %v", attempt.AppliedChannels)
	}
}

func TestSync_ResolvesSlugs(t *testing.T) {
	p := newFakePage(t, "")
	cart := newFakeCart()
	loadableWidget(p, cart)

	items := []model.RentalItem{
		{ID: "saw", Name: "Tile saw", Quantity: 1, BooqableID: "tile-saw"},
	}
	resolver := mapResolver{"tile-saw": "3f2b9a6e-1c4d-4e8a-9b1f-0a2c3d4e5f60"}

	s := NewSession(p, resolver, testLogger(), testOptions())
	if _, err := s.Sync(context.Background(), SyncRequest{Items: items, Period: testPeriod()}); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	calls := p.callsTo(GlobalName + ".cart.addItems")
	if len(calls) != 1 {
		t.Fatalf("addItems calls = %d", len(calls))
	}
	got := calls[0].Args[0].([]map[string]any)[0]["product_id"]
	if got != "3f2b9a6e-1c4d-4e8a-9b1f-0a2c3d4e5f60" {
		t.Errorf("product_id = %v, want resolved uuid", got)
	}
}
