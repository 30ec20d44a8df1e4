package adapter

import (
	"context"

	"rentsync/internal/model"
)

// Mock implements Adapter for testing.
// Each method can be configured via function fields.
type Mock struct {
	ListProductsFunc func(ctx context.Context) ([]model.Product, error)
	GetProductFunc   func(ctx context.Context, idOrSlug string) (*model.Product, error)
	CreateOrderFunc  func(ctx context.Context, req *CreateOrderRequest) (*model.Order, error)
	AddLineFunc      func(ctx context.Context, req *AddLineRequest) (*model.Line, error)
	BookOrderFunc    func(ctx context.Context, orderID string, ids map[string]int) (*model.Order, error)
	ReserveOrderFunc func(ctx context.Context, orderID string) (*model.Order, error)
	CheckoutURLFunc  func(ctx context.Context, orderID string, book bool) (*model.Checkout, error)
}

// ListProducts calls the configured ListProductsFunc or returns no products.
func (m *Mock) ListProducts(ctx context.Context) ([]model.Product, error) {
	if m.ListProductsFunc != nil {
		return m.ListProductsFunc(ctx)
	}
	return []model.Product{}, nil
}

// GetProduct calls the configured GetProductFunc or returns an error.
func (m *Mock) GetProduct(ctx context.Context, idOrSlug string) (*model.Product, error) {
	if m.GetProductFunc != nil {
		return m.GetProductFunc(ctx, idOrSlug)
	}
	return nil, model.NewNotFoundError("product")
}

// CreateOrder calls the configured CreateOrderFunc or returns an error.
func (m *Mock) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*model.Order, error) {
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, req)
	}
	return nil, model.NewInternalError(nil)
}

// AddLine calls the configured AddLineFunc or returns an error.
func (m *Mock) AddLine(ctx context.Context, req *AddLineRequest) (*model.Line, error) {
	if m.AddLineFunc != nil {
		return m.AddLineFunc(ctx, req)
	}
	return nil, model.NewNotFoundError("order")
}

// BookOrder calls the configured BookOrderFunc or returns an error.
func (m *Mock) BookOrder(ctx context.Context, orderID string, ids map[string]int) (*model.Order, error) {
	if m.BookOrderFunc != nil {
		return m.BookOrderFunc(ctx, orderID, ids)
	}
	return nil, model.NewNotFoundError("order")
}

// ReserveOrder calls the configured ReserveOrderFunc or returns an error.
func (m *Mock) ReserveOrder(ctx context.Context, orderID string) (*model.Order, error) {
	if m.ReserveOrderFunc != nil {
		return m.ReserveOrderFunc(ctx, orderID)
	}
	return nil, model.NewNotFoundError("order")
}

// CheckoutURL calls the configured CheckoutURLFunc or returns an error.
func (m *Mock) CheckoutURL(ctx context.Context, orderID string, book bool) (*model.Checkout, error) {
	if m.CheckoutURLFunc != nil {
		return m.CheckoutURLFunc(ctx, orderID, book)
	}
	return nil, model.NewNotFoundError("order")
}

// Verify Mock implements Adapter interface at compile time.
var _ Adapter = (*Mock)(nil)
