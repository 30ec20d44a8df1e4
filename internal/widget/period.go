package widget

import (
	"context"
	"log/slog"
)

// PeriodResult lists the channels that accepted the rental period.
type PeriodResult struct {
	AppliedVia []string `json:"applied_via"`
}

// ChannelURL names the query-string channel, which always succeeds.
const ChannelURL = "url"

// periodMethods are the setter names the widget has been seen to expose, in
// preference order.
var periodMethods = []string{"setTimespan", "setPeriod", "setDates", "setRentalPeriod"}

// PeriodApplier pushes a rental period into the widget through every channel
// that accepts it.
type PeriodApplier struct {
	page   Page
	logger *slog.Logger
}

// NewPeriodApplier creates an applier for page.
func NewPeriodApplier(page Page, logger *slog.Logger) *PeriodApplier {
	return &PeriodApplier{page: page, logger: logger}
}

// Apply writes the period to the URL, then to the first widget setter that
// accepts it, and finally asks the widget to rescan. It never fails.
func (a *PeriodApplier) Apply(ctx context.Context, startsAt, stopsAt string) PeriodResult {
	res := PeriodResult{AppliedVia: []string{ChannelURL}}

	if err := a.writeURL(ctx, startsAt, stopsAt); err != nil {
		a.logger.Warn("rental period url update failed", "error", err)
	}

	if h := Discover(ctx, a.page, a.logger); h != nil {
		if ch, ok := a.applySetter(ctx, h, startsAt, stopsAt); ok {
			res.AppliedVia = append(res.AppliedVia, ch)
		}
		h.Refresh(ctx)
	}

	a.logger.Debug("rental period applied", "starts_at", startsAt, "stops_at", stopsAt, "channels", res.AppliedVia)
	return res
}

func (a *PeriodApplier) writeURL(ctx context.Context, startsAt, stopsAt string) error {
	u, err := a.page.URL(ctx)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set(ParamStartsAt, startsAt)
	q.Set(ParamStopsAt, stopsAt)
	u.RawQuery = q.Encode()
	return a.page.ReplaceURL(ctx, u)
}

// applySetter tries each setter on the cart object (or the handle itself when
// there is no cart), positional arguments first and an object argument second.
func (a *PeriodApplier) applySetter(ctx context.Context, h *Handle, startsAt, stopsAt string) (string, bool) {
	prefix := "handle."
	base := ""
	if h.HasCart() {
		prefix = "cart."
		base = "cart."
	}

	for _, name := range periodMethods {
		path := base + name
		if !h.Can(ctx, path) {
			continue
		}

		err := h.Invoke(ctx, path, startsAt, stopsAt)
		if err == nil {
			return prefix + name, true
		}
		a.logger.Debug("period setter rejected positional args", "method", path, "error", err)

		err = h.Invoke(ctx, path, map[string]string{ParamStartsAt: startsAt, ParamStopsAt: stopsAt})
		if err == nil {
			return prefix + name + "(object)", true
		}
		a.logger.Debug("period setter rejected object arg", "method", path, "error", err)

		if ctx.Err() != nil {
			break
		}
	}
	return "", false
}
