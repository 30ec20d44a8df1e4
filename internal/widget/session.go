package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"rentsync/internal/model"
)

var (
	// ErrUnconfirmed means every call went through but a trustworthy cart
	// reading showed no change.
	ErrUnconfirmed = errors.New("cart did not change after adding items")

	// ErrNotAdded means no item could be placed in the cart.
	ErrNotAdded = errors.New("items could not be added to the cart")
)

// IDResolver maps an external product reference (slug or UUID) to the id the
// widget knows the product by.
type IDResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// SyncRequest is one checkout action on the in-page widget path.
type SyncRequest struct {
	Items  []model.RentalItem `json:"items"`
	Period model.RentalPeriod `json:"period"`
}

// CartSyncAttempt records one synchronization. It lives only for the
// duration of the call that produced it.
type CartSyncAttempt struct {
	Before          Snapshot        `json:"before"`
	After           Snapshot        `json:"after"`
	AppliedChannels []string        `json:"applied_channels"`
	Succeeded       bool            `json:"succeeded"`
	Confirmed       bool            `json:"confirmed"`
	Added           []string        `json:"added,omitempty"`
	Failed          []ItemFailure   `json:"failed,omitempty"`
	Short           []ItemShortfall `json:"short,omitempty"`
	Reason          string          `json:"reason,omitempty"`
}

// Session runs checkout syncs against one page. At most one sync is in
// flight at a time; a second trigger while busy is refused.
type Session struct {
	page     Page
	logger   *slog.Logger
	resolver IDResolver

	loader   *Loader
	period   *PeriodApplier
	verifier *Verifier
	injector *Injector

	busy atomic.Bool
}

// NewSession wires the engine components for page. resolver may be nil, in
// which case external ids are used as given.
func NewSession(page Page, resolver IDResolver, logger *slog.Logger, opts Options) *Session {
	opts = opts.withDefaults()
	verifier := NewVerifier(page, logger, opts)
	return &Session{
		page:     page,
		logger:   logger,
		resolver: resolver,
		loader:   NewLoader(page, logger, opts),
		period:   NewPeriodApplier(page, logger),
		verifier: verifier,
		injector: NewInjector(page, verifier, logger, opts),
	}
}

// Busy reports whether a sync is in flight.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// Sync pushes the period and the eligible items into the widget cart.
//
// Preconditions are checked before the page is touched. The period is always
// applied before items are injected. The returned attempt is non-nil whenever
// the widget was driven, including on ErrUnconfirmed and ErrNotAdded.
func (s *Session) Sync(ctx context.Context, req SyncRequest) (*CartSyncAttempt, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, model.NewBusyError("cart sync")
	}
	defer s.busy.Store(false)

	if err := req.Period.Validate(); err != nil {
		return nil, err
	}
	lines := model.SyncLines(req.Items)
	if len(lines) == 0 {
		return nil, model.NewValidationError("items", "no items are eligible for cart sync")
	}

	start := time.Now()
	items := s.resolve(ctx, lines)

	s.loader.EnsureLoaded(ctx)
	if err := s.loader.Watch(ctx); err != nil {
		s.logger.Warn("placeholder observer not installed", "error", err)
	}
	if !s.loader.WaitReady(ctx) {
		s.logger.Warn("widget not ready, continuing with fallbacks")
	}

	periodRes := s.period.Apply(ctx, req.Period.StartsAt(), req.Period.StopsAt())
	injectRes := s.injector.Inject(ctx, items)

	attempt := &CartSyncAttempt{
		Before:          injectRes.Before,
		After:           injectRes.After,
		AppliedChannels: append(append([]string{}, periodRes.AppliedVia...), injectRes.AppliedVia...),
		Confirmed:       injectRes.Confirmed,
		Added:           injectRes.Added,
		Failed:          injectRes.Failed,
		Short:           injectRes.Short,
		Reason:          injectRes.Reason,
	}

	logAttrs := []any{
		"channels", attempt.AppliedChannels,
		"added", len(attempt.Added),
		"failed", len(attempt.Failed),
		"duration_ms", time.Since(start).Milliseconds(),
	}

	if !injectRes.OK {
		s.logger.Warn("cart sync failed", append(logAttrs, "reason", injectRes.Reason)...)
		return attempt, fmt.Errorf("%w: %s", ErrNotAdded, injectRes.Reason)
	}
	if !injectRes.Confirmed && CanTrust(injectRes.After) {
		attempt.Reason = ErrUnconfirmed.Error()
		s.logger.Warn("cart sync unconfirmed", append(logAttrs, "short", len(attempt.Short))...)
		return attempt, ErrUnconfirmed
	}

	attempt.Succeeded = true
	s.logger.Info("cart synced", append(logAttrs, "confirmed", attempt.Confirmed)...)
	return attempt, nil
}

// resolve maps each line to the id the widget uses. Unresolvable references
// are passed through; the slug still lets Tier B find the placeholder.
func (s *Session) resolve(ctx context.Context, lines []model.SyncLine) []Item {
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		item := Item{ProductID: l.ProductID, Slug: l.Slug, Name: l.Name, Quantity: l.Quantity}
		if s.resolver != nil {
			id, err := s.resolver.Resolve(ctx, l.ProductID)
			switch {
			case err != nil:
				s.logger.Warn("product reference not resolved", "ref", l.ProductID, "error", err)
			case id != l.ProductID:
				if item.Slug == "" {
					item.Slug = l.ProductID
				}
				item.ProductID = id
			}
		}
		items = append(items, item)
	}
	return items
}
