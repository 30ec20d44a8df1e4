// Package quote computes local rental price quotes.
// Pure functions only: safe to call on every request or render.
package quote

import (
	"github.com/shopspring/decimal"

	"rentsync/internal/model"
)

// Quote is the price breakdown for a selection over a rental period.
type Quote struct {
	RentalDays         int             `json:"rental_days"`
	FirstDayTotal      decimal.Decimal `json:"first_day_total"`
	RemainingDaysTotal decimal.Decimal `json:"remaining_days_total"`
	ConsumablesTotal   decimal.Decimal `json:"consumables_total"`
	GrandTotal         decimal.Decimal `json:"grand_total"`
	Lines              []Line          `json:"lines"`
}

// Line is the per-item contribution to a quote.
type Line struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	FirstDay  decimal.Decimal `json:"first_day"`
	Remaining decimal.Decimal `json:"remaining"`
	Flat      decimal.Decimal `json:"flat"`
	Total     decimal.Decimal `json:"total"`
}

// Compute prices items over rentalDays.
//
// Rental items pay their first-day rate (falling back to the daily rate) once
// and the daily rate for every day after the first. Consumables and sale items
// pay their rate once regardless of duration. Items with zero quantity are
// skipped.
func Compute(items []model.RentalItem, rentalDays int) Quote {
	extraDays := decimal.NewFromInt(int64(max(0, rentalDays-1)))

	q := Quote{
		RentalDays:         rentalDays,
		FirstDayTotal:      decimal.Zero,
		RemainingDaysTotal: decimal.Zero,
		ConsumablesTotal:   decimal.Zero,
		Lines:              make([]Line, 0, len(items)),
	}

	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		qty := decimal.NewFromInt(int64(item.Quantity))
		line := Line{
			ItemID:    item.ID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			FirstDay:  decimal.Zero,
			Remaining: decimal.Zero,
			Flat:      decimal.Zero,
		}

		if item.IsRental() {
			line.FirstDay = item.FirstDayPrice().Mul(qty)
			line.Remaining = item.DailyRate.Mul(qty).Mul(extraDays)
			q.FirstDayTotal = q.FirstDayTotal.Add(line.FirstDay)
			q.RemainingDaysTotal = q.RemainingDaysTotal.Add(line.Remaining)
		} else {
			line.Flat = item.DailyRate.Mul(qty)
			q.ConsumablesTotal = q.ConsumablesTotal.Add(line.Flat)
		}

		line.Total = line.FirstDay.Add(line.Remaining).Add(line.Flat)
		q.Lines = append(q.Lines, line)
	}

	q.GrandTotal = q.FirstDayTotal.Add(q.RemainingDaysTotal).Add(q.ConsumablesTotal)
	return q
}

// ForPeriod prices items over the inclusive day span of period.
func ForPeriod(items []model.RentalItem, period model.RentalPeriod) Quote {
	return Compute(items, period.Days())
}
