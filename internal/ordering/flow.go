// Package ordering creates rental orders on the platform from a local
// selection: create the order, attach one line per eligible item, then fetch
// the hosted checkout URL. It is the server-trusted alternative to pushing
// items into the widget cart.
package ordering

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"rentsync/internal/adapter"
	"rentsync/internal/model"
)

// Backend is the subset of platform operations the flow needs.
// adapter.Adapter satisfies it in-process; ProxyClient satisfies it over HTTP.
type Backend interface {
	CreateOrder(ctx context.Context, req *adapter.CreateOrderRequest) (*model.Order, error)
	AddLine(ctx context.Context, req *adapter.AddLineRequest) (*model.Line, error)
	CheckoutURL(ctx context.Context, orderID string, book bool) (*model.Checkout, error)
}

// OrderRequest is the local selection to turn into a platform order.
type OrderRequest struct {
	Items  []model.RentalItem
	Period model.RentalPeriod
	// Book reserves stock before the checkout URL is returned.
	Book bool
}

// StepError reports which step of the sequence failed. OrderID is set once
// the order exists, so callers can point at the partial order.
type StepError struct {
	Step    string
	OrderID string
	Err     error
}

func (e *StepError) Error() string {
	return "failed to " + e.Step + ": " + model.UserMessage(e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// UserMessage is the text shown to the user.
func (e *StepError) UserMessage() string { return e.Error() }

// Flow runs the order-creation sequence. One order at a time: a second call
// while one is in flight fails with model.ErrBusy instead of creating a
// duplicate order.
type Flow struct {
	backend Backend
	logger  *slog.Logger
	busy    atomic.Bool
}

// NewFlow creates a flow over backend.
func NewFlow(backend Backend, logger *slog.Logger) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{backend: backend, logger: logger}
}

// CreateOrder validates the selection, then issues create-order, one
// add-line per eligible item and get-checkout-url, strictly in that order.
// Any failure aborts the sequence. Nothing already created is rolled back.
func (f *Flow) CreateOrder(ctx context.Context, req OrderRequest) (*model.RemoteOrder, error) {
	if !f.busy.CompareAndSwap(false, true) {
		return nil, model.NewBusyError("order creation")
	}
	defer f.busy.Store(false)

	lines := model.SyncLines(req.Items)
	if len(lines) == 0 {
		return nil, model.NewValidationError("items", "no items are eligible for ordering")
	}
	if err := req.Period.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	order, err := f.backend.CreateOrder(ctx, &adapter.CreateOrderRequest{
		StartsAt: req.Period.StartsAt(),
		StopsAt:  req.Period.StopsAt(),
	})
	if err != nil {
		return nil, &StepError{Step: "create order", Err: err}
	}
	if order == nil || order.ID == "" {
		return nil, &StepError{Step: "create order", Err: fmt.Errorf("platform returned no order id")}
	}
	f.logger.Info("order created", "order_id", order.ID, "lines", len(lines))

	for _, line := range lines {
		_, err := f.backend.AddLine(ctx, &adapter.AddLineRequest{
			OrderID:   order.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
		if err != nil {
			f.logger.Warn("add line failed, order left partial",
				"order_id", order.ID, "item", line.ItemID, "error", err)
			return nil, &StepError{
				Step:    "add line for item " + itemLabel(line),
				OrderID: order.ID,
				Err:     err,
			}
		}
	}

	checkout, err := f.backend.CheckoutURL(ctx, order.ID, req.Book)
	if err != nil {
		return nil, &StepError{Step: "get checkout URL", OrderID: order.ID, Err: err}
	}
	if checkout == nil || checkout.URL == "" {
		return nil, &StepError{Step: "get checkout URL", OrderID: order.ID, Err: fmt.Errorf("platform returned an empty checkout URL")}
	}

	f.logger.Info("order ready for checkout",
		"order_id", order.ID,
		"booked", checkout.Booked,
		"duration_ms", time.Since(start).Milliseconds())

	return &model.RemoteOrder{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		CheckoutURL: checkout.URL,
	}, nil
}

func itemLabel(line model.SyncLine) string {
	if line.Name != "" {
		return line.Name
	}
	return line.ItemID
}
