package widget

import (
	"context"
	"time"
)

// Widget contract constants.
const (
	// GlobalName is the global object the widget script installs.
	GlobalName = "Booqable"

	// ScriptElementID is the stable id of the injected script tag.
	ScriptElementID = "booqable-script"

	// PlaceholderClass marks product placeholders awaiting enhancement.
	PlaceholderClass = "booqable-product-button"

	// Placeholder attributes carrying the external id (UUID) and the slug.
	AttrProductID = "data-id"
	AttrSlug      = "data-slug"

	// URL query parameters the widget reads the rental period from.
	ParamStartsAt = "starts_at"
	ParamStopsAt  = "stops_at"

	// PageChangeEvent is the trigger() event that makes the widget rescan.
	PageChangeEvent = "page-change"
)

// Options tunes the bounded waits. Defaults come from DefaultOptions; tests
// shrink them.
type Options struct {
	ScriptSrc         string
	ScriptLoadTimeout time.Duration
	ReadyTimeout      time.Duration
	ReadyInterval     time.Duration

	EnhanceAttempts  int
	EnhanceBaseDelay time.Duration
	EnhanceGrowth    float64

	TierAConfirmWindow time.Duration
	ChangeTimeout      time.Duration
	ChangeInterval     time.Duration
	RefreshEvery       int
}

// DefaultOptions returns the production tunables.
func DefaultOptions() Options {
	return Options{
		ScriptLoadTimeout:  15 * time.Second,
		ReadyTimeout:       8 * time.Second,
		ReadyInterval:      100 * time.Millisecond,
		EnhanceAttempts:    10,
		EnhanceBaseDelay:   150 * time.Millisecond,
		EnhanceGrowth:      1.5,
		TierAConfirmWindow: 800 * time.Millisecond,
		ChangeTimeout:      10 * time.Second,
		ChangeInterval:     250 * time.Millisecond,
		RefreshEvery:       4,
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.ScriptLoadTimeout <= 0 {
		o.ScriptLoadTimeout = def.ScriptLoadTimeout
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = def.ReadyTimeout
	}
	if o.ReadyInterval <= 0 {
		o.ReadyInterval = def.ReadyInterval
	}
	if o.EnhanceAttempts <= 0 {
		o.EnhanceAttempts = def.EnhanceAttempts
	}
	if o.EnhanceBaseDelay <= 0 {
		o.EnhanceBaseDelay = def.EnhanceBaseDelay
	}
	if o.EnhanceGrowth < 1 {
		o.EnhanceGrowth = def.EnhanceGrowth
	}
	if o.TierAConfirmWindow <= 0 {
		o.TierAConfirmWindow = def.TierAConfirmWindow
	}
	if o.ChangeTimeout <= 0 {
		o.ChangeTimeout = def.ChangeTimeout
	}
	if o.ChangeInterval <= 0 {
		o.ChangeInterval = def.ChangeInterval
	}
	if o.RefreshEvery <= 0 {
		o.RefreshEvery = def.RefreshEvery
	}
	return o
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
