// Package adapter defines the interface for rental platform integrations.
// Adapters translate platform-specific APIs to the proxy's model types.
package adapter

import (
	"context"

	"rentsync/internal/model"
)

// Adapter abstracts rental platform operations into a unified interface.
//
// All methods return model types ready for API serialization.
// Platform-specific error handling is encapsulated within each implementation:
// callers see *model.APIError values carrying the most specific upstream message.
type Adapter interface {
	// ListProducts returns the products visible in the shop.
	ListProducts(ctx context.Context) ([]model.Product, error)

	// GetProduct fetches one product by id or slug.
	GetProduct(ctx context.Context, idOrSlug string) (*model.Product, error)

	// CreateOrder creates an empty order scoped to a rental period.
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*model.Order, error)

	// AddLine adds a product line to an existing order.
	AddLine(ctx context.Context, req *AddLineRequest) (*model.Line, error)

	// BookOrder books product quantities on an order, claiming stock.
	BookOrder(ctx context.Context, orderID string, ids map[string]int) (*model.Order, error)

	// ReserveOrder moves an order to reserved.
	ReserveOrder(ctx context.Context, orderID string) (*model.Order, error)

	// CheckoutURL returns the hosted checkout for an order. With book set the
	// order is reserved first so checkout cannot oversell.
	CheckoutURL(ctx context.Context, orderID string, book bool) (*model.Checkout, error)
}

// CreateOrderRequest contains data for creating a new order.
// Both timestamps are RFC 3339 with offset.
type CreateOrderRequest struct {
	StartsAt string `json:"starts_at"`
	StopsAt  string `json:"stops_at"`
}

// AddLineRequest adds Quantity units of ProductID to OrderID.
type AddLineRequest struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Validate checks the request before any remote call is made.
func (r *CreateOrderRequest) Validate() error {
	if r.StartsAt == "" {
		return model.NewValidationError("starts_at", "required")
	}
	if r.StopsAt == "" {
		return model.NewValidationError("stops_at", "required")
	}
	return nil
}

// Validate checks the request before any remote call is made.
func (r *AddLineRequest) Validate() error {
	switch {
	case r.OrderID == "":
		return model.NewValidationError("order_id", "required")
	case r.ProductID == "":
		return model.NewValidationError("product_id", "required")
	case r.Quantity <= 0:
		return model.NewValidationError("quantity", "must be positive")
	}
	return nil
}
