package booqable

import (
	"context"
	"fmt"
	"strconv"

	"rentsync/internal/adapter"
	"rentsync/internal/model"
)

// =============================================================================
// RENTAL PLATFORM ADAPTER
// =============================================================================
//
// Flow driven by the storefront's order creation:
//   1. CreateOrder  → concept order scoped to the rental period
//   2. AddLine      → one line per eligible item, in cart order
//   3. CheckoutURL  → hosted checkout; with book=true the order is reserved
//                     first so stock is claimed before the customer pays
//
// Orders are never rolled back here. A failed AddLine leaves a partial
// concept order on the platform, which expires on its own.
// =============================================================================

// Adapter implements adapter.Adapter for the rental platform.
type Adapter struct {
	client *Client
}

// New creates a platform adapter.
func New(cfg Config) (*Adapter, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Adapter{client: client}, nil
}

// ListProducts returns the products shown in the shop. Archived and hidden
// groups are dropped.
func (a *Adapter) ListProducts(ctx context.Context) ([]model.Product, error) {
	groups, err := a.client.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	products := make([]model.Product, 0, len(groups))
	for _, g := range groups {
		if g.Archived || !g.ShowInStore {
			continue
		}
		products = append(products, toProduct(g))
	}
	return products, nil
}

// GetProduct fetches one product by id or slug.
func (a *Adapter) GetProduct(ctx context.Context, idOrSlug string) (*model.Product, error) {
	if idOrSlug == "" {
		return nil, model.NewValidationError("product_id", "required")
	}
	g, err := a.client.GetProduct(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	p := toProduct(*g)
	return &p, nil
}

// CreateOrder creates a concept order for the period.
func (a *Adapter) CreateOrder(ctx context.Context, req *adapter.CreateOrderRequest) (*model.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	o, err := a.client.CreateOrder(ctx, req.StartsAt, req.StopsAt)
	if err != nil {
		return nil, err
	}
	return toOrder(*o), nil
}

// AddLine adds a product line to an order.
func (a *Adapter) AddLine(ctx context.Context, req *adapter.AddLineRequest) (*model.Line, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	l, err := a.client.AddLine(ctx, req.OrderID, req.ProductID, req.Quantity)
	if err != nil {
		return nil, err
	}
	return &model.Line{
		ID:        l.ID,
		OrderID:   l.OrderID,
		ProductID: l.ProductID,
		Quantity:  l.Quantity,
	}, nil
}

// BookOrder books product quantities on an order.
func (a *Adapter) BookOrder(ctx context.Context, orderID string, ids map[string]int) (*model.Order, error) {
	if orderID == "" {
		return nil, model.NewValidationError("order_id", "required")
	}
	if len(ids) == 0 {
		return nil, model.NewValidationError("ids", "at least one product is required")
	}
	for id, qty := range ids {
		if qty <= 0 {
			return nil, model.NewValidationError("ids", fmt.Sprintf("quantity for %s must be positive", id))
		}
	}
	o, err := a.client.Book(ctx, orderID, ids)
	if err != nil {
		return nil, err
	}
	return toOrder(*o), nil
}

// ReserveOrder moves an order to reserved.
func (a *Adapter) ReserveOrder(ctx context.Context, orderID string) (*model.Order, error) {
	if orderID == "" {
		return nil, model.NewValidationError("order_id", "required")
	}
	o, err := a.client.Reserve(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return toOrder(*o), nil
}

// CheckoutURL returns the hosted checkout for an order, reserving it first
// when book is set.
func (a *Adapter) CheckoutURL(ctx context.Context, orderID string, book bool) (*model.Checkout, error) {
	if orderID == "" {
		return nil, model.NewValidationError("order_id", "required")
	}
	if book {
		if _, err := a.client.Reserve(ctx, orderID); err != nil {
			return nil, fmt.Errorf("booking order %s: %w", orderID, err)
		}
	}
	return &model.Checkout{
		OrderID: orderID,
		URL:     a.client.CheckoutURL(orderID),
		Booked:  book,
	}, nil
}

func toProduct(g ProductGroup) model.Product {
	return model.Product{
		ID:            g.ID,
		Slug:          g.Slug,
		Name:          g.Name,
		Description:   g.Description,
		BasePrice:     model.FromMinorUnits(g.BasePriceInCents),
		ImageURL:      g.PhotoURL,
		Trackable:     g.Trackable,
		StockCount:    g.StockCount,
		ProductGroup:  g.GroupName,
		ShowInStore:   g.ShowInStore,
		PriceStructID: g.PriceStructureID,
	}
}

func toOrder(o Order) *model.Order {
	number := ""
	if o.Number > 0 {
		number = strconv.Itoa(o.Number)
	}
	return &model.Order{
		ID:       o.ID,
		Number:   number,
		Status:   o.Status,
		StartsAt: o.StartsAt,
		StopsAt:  o.StopsAt,
	}
}

// Verify Adapter implements adapter.Adapter at compile time.
var _ adapter.Adapter = (*Adapter)(nil)
