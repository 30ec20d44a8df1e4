package quote

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"rentsync/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func sampleItems() []model.RentalItem {
	return []model.RentalItem{
		{ID: "saw", Name: "Tile saw", DailyRate: d("45.00"), FirstDayRate: dp("60.00"), Quantity: 1},
		{ID: "mixer", Name: "Mortar mixer", DailyRate: d("30.50"), Quantity: 2},
		{ID: "blade", Name: "Diamond blade", DailyRate: d("12.99"), Quantity: 3, IsConsumable: true},
		{ID: "grout", Name: "Grout bag", DailyRate: d("8.25"), Quantity: 1, IsSalesItem: true},
		{ID: "level", Name: "Laser level", DailyRate: d("20"), Quantity: 0},
	}
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name          string
		days          int
		wantFirst     string
		wantRemaining string
		wantFlat      string
		wantTotal     string
	}{
		{
			name:          "single day has no remaining days",
			days:          1,
			wantFirst:     "121",
			wantRemaining: "0",
			wantFlat:      "47.22",
			wantTotal:     "168.22",
		},
		{
			name:          "three days",
			days:          3,
			wantFirst:     "121",
			wantRemaining: "212",
			wantFlat:      "47.22",
			wantTotal:     "380.22",
		},
		{
			name:          "zero days clamps remaining",
			days:          0,
			wantFirst:     "121",
			wantRemaining: "0",
			wantFlat:      "47.22",
			wantTotal:     "168.22",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := Compute(sampleItems(), tc.days)

			if !q.FirstDayTotal.Equal(d(tc.wantFirst)) {
				t.Errorf("FirstDayTotal = %s, want %s", q.FirstDayTotal, tc.wantFirst)
			}
			if !q.RemainingDaysTotal.Equal(d(tc.wantRemaining)) {
				t.Errorf("RemainingDaysTotal = %s, want %s", q.RemainingDaysTotal, tc.wantRemaining)
			}
			if !q.ConsumablesTotal.Equal(d(tc.wantFlat)) {
				t.Errorf("ConsumablesTotal = %s, want %s", q.ConsumablesTotal, tc.wantFlat)
			}
			if !q.GrandTotal.Equal(d(tc.wantTotal)) {
				t.Errorf("GrandTotal = %s, want %s", q.GrandTotal, tc.wantTotal)
			}
			if len(q.Lines) != 4 {
				t.Errorf("Lines = %d, want 4 (zero quantity skipped)", len(q.Lines))
			}
		})
	}
}

func TestComputeTotalsAddUp(t *testing.T) {
	items := sampleItems()
	for days := 0; days <= 31; days++ {
		q := Compute(items, days)
		sum := q.FirstDayTotal.Add(q.RemainingDaysTotal).Add(q.ConsumablesTotal)
		if !sum.Equal(q.GrandTotal) {
			t.Fatalf("days=%d: subtotals %s != grand total %s", days, sum, q.GrandTotal)
		}

		var lines decimal.Decimal
		for _, l := range q.Lines {
			lines = lines.Add(l.Total)
		}
		if !lines.Equal(q.GrandTotal) {
			t.Fatalf("days=%d: line totals %s != grand total %s", days, lines, q.GrandTotal)
		}
	}
}

func TestComputeOneDayAlwaysZeroRemaining(t *testing.T) {
	items := []model.RentalItem{
		{ID: "a", DailyRate: d("1000.01"), Quantity: 50},
		{ID: "b", DailyRate: d("0.33"), FirstDayRate: dp("0.10"), Quantity: 7},
	}
	q := Compute(items, 1)
	if !q.RemainingDaysTotal.IsZero() {
		t.Errorf("RemainingDaysTotal = %s, want 0", q.RemainingDaysTotal)
	}
}

func TestComputeEmpty(t *testing.T) {
	q := Compute(nil, 5)
	if !q.GrandTotal.IsZero() {
		t.Errorf("GrandTotal = %s, want 0", q.GrandTotal)
	}
	if q.Lines == nil {
		t.Error("Lines should be an empty slice, not nil")
	}
}

func TestForPeriod(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	period := model.RentalPeriod{StartDate: start, EndDate: start.Add(2*24*time.Hour + 8*time.Hour)}

	q := ForPeriod([]model.RentalItem{{ID: "a", DailyRate: d("10"), Quantity: 1}}, period)
	if q.RentalDays != 3 {
		t.Errorf("RentalDays = %d, want 3", q.RentalDays)
	}
	if !q.GrandTotal.Equal(d("30")) {
		t.Errorf("GrandTotal = %s, want 30", q.GrandTotal)
	}
}
