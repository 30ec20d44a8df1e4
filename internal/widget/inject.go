package widget

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rentsync/internal/reconcile"
)

// Item is one product to place in the widget cart.
type Item struct {
	ProductID string `json:"product_id"`
	Slug      string `json:"slug,omitempty"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}

// ItemFailure records why one item could not be added.
type ItemFailure struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Reason    string `json:"reason"`
}

// ItemShortfall records a clicked item the cart holds fewer new units of
// than requested.
type ItemShortfall struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Wanted    int    `json:"wanted"`
	Got       int    `json:"got"`
}

// InjectResult is the outcome of one Inject call.
type InjectResult struct {
	OK         bool            `json:"ok"`
	Confirmed  bool            `json:"confirmed"`
	AppliedVia []string        `json:"applied_via"`
	Added      []string        `json:"added,omitempty"`
	Failed     []ItemFailure   `json:"failed,omitempty"`
	Short      []ItemShortfall `json:"short,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Before     Snapshot        `json:"before"`
	After      Snapshot        `json:"after"`
}

// Channel names recorded in InjectResult.AppliedVia.
const (
	ChannelAlreadyInCart = "already-in-cart"
	ChannelDOMClick      = "dom.click"
)

// Failure reasons.
const (
	ReasonNotInitialized = "widget not initialized"
	ReasonNoButtons      = "no product buttons found"
	ReasonNoPlaceholder  = "no placeholder found"
	ReasonNotAdded       = "could not add items to cart"
)

var (
	batchAddMethods = []string{"addItems", "addLineItems", "addLines"}
	itemAddMethods  = []string{"addItem", "addProductGroup", "add"}

	// enhancedSelectors find the interactive child the widget renders inside a
	// placeholder, most specific first.
	enhancedSelectors = []string{
		"button:not([disabled])",
		"[role=\"button\"]",
		"a[href]",
		"input[type=\"submit\"]",
		"input[type=\"button\"]",
	}

	pointerSequence = []string{"mousedown", "mouseup", "click"}
)

// forceVisibleStyle lays a placeholder out off-screen so the widget enhances
// it even when the page hides it.
const forceVisibleStyle = "display:block !important;visibility:visible !important;" +
	"position:absolute !important;left:-10000px !important;top:0 !important;" +
	"opacity:0.01 !important;pointer-events:auto !important;"

// Injector places items in the widget cart.
type Injector struct {
	page     Page
	verifier *Verifier
	logger   *slog.Logger
	opts     Options
}

// NewInjector creates an injector for page.
func NewInjector(page Page, verifier *Verifier, logger *slog.Logger, opts Options) *Injector {
	return &Injector{page: page, verifier: verifier, logger: logger, opts: opts.withDefaults()}
}

// Inject adds items to the widget cart, through the widget API first and
// through synthetic clicks on product placeholders when the API call cannot
// be confirmed. Both tiers measure against one baseline snapshot.
func (in *Injector) Inject(ctx context.Context, items []Item) *InjectResult {
	res := &InjectResult{}

	pending := make([]Item, 0, len(items))
	for _, item := range items {
		if item.Quantity > 0 {
			pending = append(pending, item)
		}
	}
	if len(pending) == 0 {
		res.Reason = "no items to add"
		return res
	}

	baseline := in.verifier.Snapshot(ctx)
	res.Before = baseline
	res.After = baseline

	// A trusted baseline tells us what is already there; only the gap is added.
	if CanTrust(baseline) {
		pending = in.outstanding(baseline, pending, res)
		if len(pending) == 0 {
			res.OK = true
			res.Confirmed = true
			res.AppliedVia = []string{ChannelAlreadyInCart}
			return res
		}
	}

	handle := Discover(ctx, in.page, in.logger)
	if handle != nil && handle.HasCart() {
		channels := in.tierA(ctx, handle, pending)
		if len(channels) > 0 {
			res.AppliedVia = append(res.AppliedVia, channels...)

			after, changed := in.verifier.WaitForChange(ctx, baseline, in.opts.TierAConfirmWindow)
			res.After = after
			if changed {
				in.finish(res, pending, true)
				return res
			}
			if !CanTrust(after) {
				// Opaque widget: a call that did not throw is taken as success.
				in.logger.Info("cart api call accepted but unverifiable, assuming success", "channels", channels)
				in.finish(res, pending, false)
				return res
			}
			in.logger.Info("cart api call had no visible effect, falling back to placeholders", "channels", channels)
		}
	}

	in.tierB(ctx, handle != nil, pending, baseline, res)
	return res
}

// outstanding reduces items to the quantities the cart still lacks and
// records fully present items as added.
func (in *Injector) outstanding(baseline Snapshot, items []Item, res *InjectResult) []Item {
	current := make([]reconcile.CurrentItem, 0, len(baseline.Lines))
	for _, l := range baseline.Lines {
		current = append(current, reconcile.CurrentItem{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	desired := make([]reconcile.DesiredItem, 0, len(items))
	byID := make(map[string]Item, len(items))
	for _, item := range items {
		desired = append(desired, reconcile.DesiredItem{ProductID: item.ProductID, Name: item.Name, Quantity: item.Quantity})
		if _, ok := byID[item.ProductID]; !ok {
			byID[item.ProductID] = item
		}
	}

	diff := reconcile.DiffCart(current, desired)
	res.Added = append(res.Added, diff.Satisfied(desired)...)
	for _, extra := range diff.Surplus {
		in.logger.Debug("cart holds more than selected", "product_id", extra.ProductID, "have", extra.Have, "want", extra.Want)
	}

	out := make([]Item, 0, len(diff.ToAdd))
	for _, m := range diff.ToAdd {
		item := byID[m.ProductID]
		item.Quantity = m.Add
		out = append(out, item)
	}
	return out
}

func (in *Injector) finish(res *InjectResult, items []Item, confirmed bool) {
	res.OK = true
	res.Confirmed = confirmed
	for _, item := range items {
		res.Added = append(res.Added, item.ProductID)
	}
}

// tierA calls the widget cart API. It returns the channels that accepted a
// call without throwing; none means Tier A did not provisionally succeed.
func (in *Injector) tierA(ctx context.Context, h *Handle, items []Item) []string {
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, map[string]any{"product_id": item.ProductID, "quantity": item.Quantity})
	}

	for _, name := range batchAddMethods {
		path := "cart." + name
		if !h.Can(ctx, path) {
			continue
		}
		err := h.Invoke(ctx, path, payload)
		if err == nil {
			return []string{path}
		}
		in.logger.Debug("batch add rejected", "method", path, "error", err)
	}

	var channels []string
	record := func(ch string) {
		for _, c := range channels {
			if c == ch {
				return
			}
		}
		channels = append(channels, ch)
	}

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		for _, name := range itemAddMethods {
			path := "cart." + name
			if !h.Can(ctx, path) {
				continue
			}
			if err := h.Invoke(ctx, path, item.ProductID, item.Quantity); err == nil {
				record(path)
				break
			}
			if err := h.Invoke(ctx, path, map[string]any{"product_id": item.ProductID, "quantity": item.Quantity}); err == nil {
				record(path + "(object)")
				break
			}
			in.logger.Debug("item add rejected", "method", path, "product_id", item.ProductID)
		}
	}
	return channels
}

// tierB clicks each item's placeholder once per unit until the cart shows the
// item, then waits for cart data that updates after the click.
func (in *Injector) tierB(ctx context.Context, widgetPresent bool, items []Item, baseline Snapshot, res *InjectResult) {
	foundAny := false
	var clicked []Item

	for _, item := range items {
		if ctx.Err() != nil {
			res.Failed = append(res.Failed, ItemFailure{ProductID: item.ProductID, Name: item.Name, Reason: ctx.Err().Error()})
			continue
		}

		node, ok := in.findPlaceholder(ctx, item)
		if !ok {
			in.logger.Warn("no placeholder for item", "product_id", item.ProductID, "name", item.Name)
			res.Failed = append(res.Failed, ItemFailure{ProductID: item.ProductID, Name: item.Name, Reason: ReasonNoPlaceholder})
			continue
		}
		foundAny = true

		target := in.awaitEnhancement(ctx, node)
		if err := in.clickUntilAdded(ctx, target, item, baseline); err != nil {
			res.Failed = append(res.Failed, ItemFailure{ProductID: item.ProductID, Name: item.Name, Reason: err.Error()})
			continue
		}
		clicked = append(clicked, item)
		res.Added = append(res.Added, item.ProductID)
	}

	if len(clicked) == 0 {
		res.After = in.verifier.Snapshot(ctx)
		switch {
		case !widgetPresent && !foundAny:
			res.Reason = ReasonNotInitialized
		case !foundAny:
			res.Reason = ReasonNoButtons
		default:
			res.Reason = ReasonNotAdded
		}
		return
	}

	res.OK = true
	res.AppliedVia = append(res.AppliedVia, ChannelDOMClick)

	res.After, _ = in.verifier.WaitFor(ctx, in.opts.ChangeTimeout, func(s Snapshot) bool {
		if countable(baseline, s) {
			return len(shortfalls(baseline, s, clicked)) == 0
		}
		return HasChanged(baseline, s)
	})
	res.Confirmed = HasChanged(baseline, res.After)
	if countable(baseline, res.After) {
		res.Short = shortfalls(baseline, res.After, clicked)
		if len(res.Short) > 0 {
			in.logger.Warn("cart holds fewer units than clicked for", "short", res.Short)
			res.Confirmed = false
		}
	}
}

// countable reports whether per-product quantities can be compared.
func countable(before, after Snapshot) bool {
	return CanTrust(before) && CanTrust(after)
}

func shortfalls(baseline, after Snapshot, items []Item) []ItemShortfall {
	var out []ItemShortfall
	for _, item := range items {
		got := after.QuantityOf(item.ProductID) - baseline.QuantityOf(item.ProductID)
		if got < item.Quantity {
			out = append(out, ItemShortfall{
				ProductID: item.ProductID,
				Name:      item.Name,
				Wanted:    item.Quantity,
				Got:       max(got, 0),
			})
		}
	}
	return out
}

// findPlaceholder locates the item's placeholder by external id, then slug.
func (in *Injector) findPlaceholder(ctx context.Context, item Item) (Node, bool) {
	var selectors []string
	for _, v := range []string{item.ProductID, item.Slug} {
		if v == "" {
			continue
		}
		selectors = append(selectors,
			fmt.Sprintf(".%s[%s=%s]", PlaceholderClass, AttrProductID, cssString(v)),
			fmt.Sprintf(".%s[%s=%s]", PlaceholderClass, AttrSlug, cssString(v)),
		)
	}

	for _, sel := range selectors {
		n, ok, err := in.page.QueryNode(ctx, sel)
		if err != nil {
			in.logger.Debug("placeholder query failed", "selector", sel, "error", err)
			continue
		}
		if ok {
			return n, true
		}
	}
	return "", false
}

// awaitEnhancement forces the placeholder visible, nudges the widget, and
// waits for it to render an interactive child. The original inline style is
// restored when the wait ends. Returns the child, or the placeholder itself
// when no child appeared.
func (in *Injector) awaitEnhancement(ctx context.Context, node Node) Node {
	original, err := in.page.InlineStyle(ctx, node)
	if err == nil {
		if err := in.page.SetInlineStyle(ctx, node, original+";"+forceVisibleStyle); err != nil {
			in.logger.Debug("placeholder style override failed", "error", err)
		}
		defer func() {
			restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := in.page.SetInlineStyle(restoreCtx, node, original); err != nil {
				in.logger.Debug("placeholder style restore failed", "error", err)
			}
		}()
	}

	RefreshSignal(ctx, in.page, in.logger)

	delay := in.opts.EnhanceBaseDelay
	for attempt := 0; attempt < in.opts.EnhanceAttempts; attempt++ {
		for _, sel := range enhancedSelectors {
			if child, ok, err := in.page.QueryWithin(ctx, node, sel); err == nil && ok {
				return child
			}
		}
		if err := sleep(ctx, delay); err != nil {
			break
		}
		delay = time.Duration(float64(delay) * in.opts.EnhanceGrowth)
	}

	in.logger.Debug("placeholder not enhanced, clicking it directly", "node", node)
	return node
}

// clickUntilAdded dispatches one pointer sequence per unit of quantity. With
// structured cart data it stops once the cart holds the item's units on top
// of baseline; otherwise it stops as soon as the cart differs from baseline.
func (in *Injector) clickUntilAdded(ctx context.Context, target Node, item Item, baseline Snapshot) error {
	want := baseline.QuantityOf(item.ProductID) + item.Quantity
	for i := 0; i < item.Quantity; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		RefreshSignal(ctx, in.page, in.logger)

		for _, ev := range pointerSequence {
			if err := in.page.Dispatch(ctx, target, ev); err != nil {
				in.logger.Debug("pointer event failed", "event", ev, "error", err)
			}
		}
		if err := in.page.Click(ctx, target); err != nil {
			in.logger.Debug("native click failed", "error", err)
		}

		now := in.verifier.Snapshot(ctx)
		if countable(baseline, now) {
			if now.QuantityOf(item.ProductID) >= want {
				return nil
			}
			continue
		}
		if HasChanged(baseline, now) {
			return nil
		}
	}
	return nil
}

// cssString quotes s as a CSS string literal.
func cssString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\a `)
	return `"` + r.Replace(s) + `"`
}
