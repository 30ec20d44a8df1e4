package model

import (
	"fmt"
	"time"
)

// RentalPeriod is the chosen rental window. EndDate must be after StartDate.
type RentalPeriod struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// Duration presets offered by the duration selector.
const (
	PresetDay     = "1d"
	PresetWeekend = "weekend"
	PresetWeek    = "1w"
	PresetTwoWeek = "2w"
	PresetMonth   = "1m"
)

// Validate checks that the period is set and ordered.
func (p RentalPeriod) Validate() error {
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return NewValidationError("rental_period", "start and end dates are required")
	}
	if !p.EndDate.After(p.StartDate) {
		return NewValidationError("rental_period", "end date must be after start date")
	}
	return nil
}

// Days returns the inclusive calendar-day span of the period.
// A pickup and return on the same day counts as one day.
func (p RentalPeriod) Days() int {
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return 0
	}
	start := civilDay(p.StartDate)
	end := civilDay(p.EndDate.In(p.StartDate.Location()))
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24+0.5) + 1
}

// StartsAt renders the start as ISO-8601 with offset.
func (p RentalPeriod) StartsAt() string {
	return p.StartDate.Format(time.RFC3339)
}

// StopsAt renders the end as ISO-8601 with offset.
func (p RentalPeriod) StopsAt() string {
	return p.EndDate.Format(time.RFC3339)
}

// CustomPeriod builds a daily custom range: pickup at the start of the first
// day, return at the end of the last day.
func CustomPeriod(first, last time.Time) (RentalPeriod, error) {
	p := RentalPeriod{
		StartDate: civilDay(first),
		EndDate:   civilDay(last).Add(24*time.Hour - time.Second),
	}
	return p, p.Validate()
}

// PeriodFromPreset builds a fixed-length period starting at start.
func PeriodFromPreset(start time.Time, preset string) (RentalPeriod, error) {
	var days int
	switch preset {
	case PresetDay:
		days = 1
	case PresetWeekend:
		// Friday pickup through Monday return, anchored to the next Friday.
		offset := (int(time.Friday) - int(start.Weekday()) + 7) % 7
		start = start.AddDate(0, 0, offset)
		days = 4
	case PresetWeek:
		days = 7
	case PresetTwoWeek:
		days = 14
	case PresetMonth:
		days = 30
	default:
		return RentalPeriod{}, NewValidationError("duration", fmt.Sprintf("unknown preset %q", preset))
	}
	return CustomPeriod(start, start.AddDate(0, 0, days-1))
}

func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DateLayout is the calendar-date format the APIs and CLI accept.
const DateLayout = "2006-01-02"

// ParsePeriod builds a period from calendar dates in loc. With a preset only
// start is read; otherwise start and end are the first and last rental days.
func ParsePeriod(start, end, preset string, loc *time.Location) (RentalPeriod, error) {
	if loc == nil {
		loc = time.UTC
	}
	if start == "" {
		return RentalPeriod{}, NewValidationError("rental_period", "start date is required")
	}
	first, err := time.ParseInLocation(DateLayout, start, loc)
	if err != nil {
		return RentalPeriod{}, NewValidationError("start_date", "expected YYYY-MM-DD")
	}
	if preset != "" {
		return PeriodFromPreset(first, preset)
	}
	if end == "" {
		return RentalPeriod{}, NewValidationError("rental_period", "end date or duration is required")
	}
	last, err := time.ParseInLocation(DateLayout, end, loc)
	if err != nil {
		return RentalPeriod{}, NewValidationError("end_date", "expected YYYY-MM-DD")
	}
	return CustomPeriod(first, last)
}
