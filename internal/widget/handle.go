package widget

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Handle is a probed reference to the widget's global object. It is resolved
// fresh for each phase of an operation and never cached across phases: the
// widget may finish initializing, or reinitialize, at any point.
type Handle struct {
	page    Page
	logger  *slog.Logger
	hasCart bool

	mu    sync.Mutex
	kinds map[string]Kind
}

// Discover resolves the widget handle. Returns nil when the widget global is
// not present or is not an object.
func Discover(ctx context.Context, page Page, logger *slog.Logger) *Handle {
	kind, err := page.Lookup(ctx, GlobalName)
	if err != nil {
		logger.Debug("widget lookup failed", "error", err)
		return nil
	}
	if kind != KindObject && kind != KindFunction {
		return nil
	}

	h := &Handle{
		page:   page,
		logger: logger,
		kinds:  map[string]Kind{"": kind},
	}
	h.hasCart = h.kind(ctx, "cart") == KindObject
	return h
}

// HasCart reports whether the widget exposes a cart sub-object.
func (h *Handle) HasCart() bool {
	return h.hasCart
}

// Can reports whether path (relative to the widget global) is a callable.
func (h *Handle) Can(ctx context.Context, path string) bool {
	return h.kind(ctx, path) == KindFunction
}

// Invoke calls the method at path if it exists. A missing method returns
// ErrAbsent; a method that throws returns *InvocationError.
func (h *Handle) Invoke(ctx context.Context, path string, args ...any) error {
	if !h.Can(ctx, path) {
		return fmt.Errorf("%s: %w", path, ErrAbsent)
	}
	return h.page.Invoke(ctx, h.abs(path), args...)
}

// CartLine is one entry of the widget's structured cart data.
type CartLine struct {
	ProductID string
	Quantity  int
}

// cartIDFields lists the field names the widget has been seen to use for the
// product identifier of a cart line, in preference order.
var cartIDFields = []string{"product_id", "item_id", "productId", "product_group_id", "id"}

// CartItems reads the structured cart items. ok is false when the widget does
// not expose structured cart data with an items list.
func (h *Handle) CartItems(ctx context.Context) (lines []CartLine, ok bool) {
	var raw []map[string]any
	found, err := h.page.Value(ctx, h.abs("cartData.items"), &raw)
	if err != nil {
		h.logger.Debug("cart data unreadable", "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}

	lines = make([]CartLine, 0, len(raw))
	for _, entry := range raw {
		id := ""
		for _, field := range cartIDFields {
			if v, ok := entry[field]; ok && v != nil {
				id = fmt.Sprint(v)
				break
			}
		}
		if id == "" {
			continue
		}
		qty := 1
		if v, ok := entry["quantity"].(float64); ok {
			qty = int(v)
		}
		lines = append(lines, CartLine{ProductID: id, Quantity: qty})
	}
	return lines, true
}

// Refresh asks the widget to rescan the page. It calls refresh() and
// trigger("page-change") when present and ignores every failure.
func (h *Handle) Refresh(ctx context.Context) {
	if h.Can(ctx, "refresh") {
		if err := h.page.Invoke(ctx, h.abs("refresh")); err != nil {
			h.logger.Debug("widget refresh failed", "error", err)
		}
	}
	if h.Can(ctx, "trigger") {
		if err := h.page.Invoke(ctx, h.abs("trigger"), PageChangeEvent); err != nil {
			h.logger.Debug("widget trigger failed", "error", err)
		}
	}
}

func (h *Handle) kind(ctx context.Context, path string) Kind {
	h.mu.Lock()
	k, ok := h.kinds[path]
	h.mu.Unlock()
	if ok {
		return k
	}

	k, err := h.page.Lookup(ctx, h.abs(path))
	if err != nil {
		h.logger.Debug("widget probe failed", "path", path, "error", err)
		return KindAbsent
	}
	h.mu.Lock()
	h.kinds[path] = k
	h.mu.Unlock()
	return k
}

func (h *Handle) abs(path string) string {
	if path == "" {
		return GlobalName
	}
	return GlobalName + "." + path
}

// RefreshSignal resolves the current handle and refreshes it. It is a no-op
// when the widget is absent and never fails.
func RefreshSignal(ctx context.Context, page Page, logger *slog.Logger) {
	if h := Discover(ctx, page, logger); h != nil {
		h.Refresh(ctx)
	}
}
