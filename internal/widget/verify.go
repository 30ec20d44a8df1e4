package widget

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Snapshot is a best-effort reading of the widget cart.
type Snapshot struct {
	ItemCount int        `json:"item_count"`
	Signature string     `json:"signature"`
	Lines     []CartLine `json:"-"`
}

const (
	// EmptySignature is the structured signature of an empty cart.
	EmptySignature = "empty"

	// DOMSignaturePrefix tags snapshots read from markup rather than cart data.
	DOMSignaturePrefix = "dom-items:"
)

// cartItemSelectors lists known cart line renderings, most specific first.
var cartItemSelectors = []string{
	"[data-booqable-cart-item]",
	".booqable-cart-item",
	".booqable-cart .line-item",
	".bq-cart-item",
	".cart-line-item",
}

// emptyCartMarkers are texts the widget renders for an empty cart.
var emptyCartMarkers = []string{
	"your cart is empty",
	"cart is empty",
	"no items in your cart",
}

// Verifier reads the widget cart and decides whether it changed.
type Verifier struct {
	page   Page
	logger *slog.Logger
	opts   Options
}

// NewVerifier creates a verifier for page.
func NewVerifier(page Page, logger *slog.Logger, opts Options) *Verifier {
	return &Verifier{page: page, logger: logger, opts: opts.withDefaults()}
}

// Snapshot reads the cart, preferring structured cart data over markup.
func (v *Verifier) Snapshot(ctx context.Context) Snapshot {
	if h := Discover(ctx, v.page, v.logger); h != nil {
		if lines, ok := h.CartItems(ctx); ok {
			return structuredSnapshot(lines)
		}
	}
	return v.domSnapshot(ctx)
}

func structuredSnapshot(lines []CartLine) Snapshot {
	s := Snapshot{Lines: lines}
	if len(lines) == 0 {
		s.Signature = EmptySignature
		return s
	}

	pairs := make([]string, 0, len(lines))
	for _, l := range lines {
		s.ItemCount += l.Quantity
		pairs = append(pairs, fmt.Sprintf("%s:%d", l.ProductID, l.Quantity))
	}
	sort.Strings(pairs)
	s.Signature = strings.Join(pairs, "|")
	return s
}

func (v *Verifier) domSnapshot(ctx context.Context) Snapshot {
	count := 0
	markup, err := v.page.Markup(ctx)
	if err != nil {
		v.logger.Debug("cart markup unreadable", "error", err)
	} else {
		count = countCartNodes(markup)
	}
	return Snapshot{ItemCount: count, Signature: fmt.Sprintf("%s%d", DOMSignaturePrefix, count)}
}

// countCartNodes counts rendered cart lines. An explicit empty-cart marker
// wins over stale line nodes.
func countCartNodes(markup string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return 0
	}

	text := strings.ToLower(doc.Find("body").Text())
	for _, marker := range emptyCartMarkers {
		if strings.Contains(text, marker) {
			return 0
		}
	}

	for _, sel := range cartItemSelectors {
		if n := doc.Find(sel).Length(); n > 0 {
			return n
		}
	}
	return 0
}

// CanTrust reports whether a snapshot is reliable enough that "no change"
// may be read as failure.
func CanTrust(s Snapshot) bool {
	return !strings.HasPrefix(s.Signature, DOMSignaturePrefix)
}

// HasChanged reports whether after reflects a cart change relative to before.
// Two empty snapshots never count as a change.
func HasChanged(before, after Snapshot) bool {
	if isEmpty(before) && isEmpty(after) {
		return false
	}
	return after.ItemCount > before.ItemCount || after.Signature != before.Signature
}

// QuantityOf returns the units of productID in a structured snapshot.
func (s Snapshot) QuantityOf(productID string) int {
	n := 0
	for _, l := range s.Lines {
		if l.ProductID == productID {
			n += l.Quantity
		}
	}
	return n
}

func isEmpty(s Snapshot) bool {
	return s.ItemCount == 0 && (s.Signature == EmptySignature || s.Signature == DOMSignaturePrefix+"0")
}

// WaitForChange polls until the cart differs from before or timeout passes,
// sending a refresh signal every few polls. It returns the last snapshot read
// and whether a change was seen.
func (v *Verifier) WaitForChange(ctx context.Context, before Snapshot, timeout time.Duration) (Snapshot, bool) {
	return v.WaitFor(ctx, timeout, func(s Snapshot) bool { return HasChanged(before, s) })
}

// WaitFor polls until done accepts a snapshot or timeout passes, sending a
// refresh signal every few polls.
func (v *Verifier) WaitFor(ctx context.Context, timeout time.Duration, done func(Snapshot) bool) (Snapshot, bool) {
	deadline := time.Now().Add(timeout)
	polls := 0
	for {
		last := v.Snapshot(ctx)
		if done(last) {
			return last, true
		}
		if time.Now().After(deadline) {
			return last, false
		}
		if err := sleep(ctx, v.opts.ChangeInterval); err != nil {
			return last, false
		}
		polls++
		if polls%v.opts.RefreshEvery == 0 {
			RefreshSignal(ctx, v.page, v.logger)
		}
	}
}
