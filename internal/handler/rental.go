package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"rentsync/internal/adapter"
	"rentsync/internal/clientinfo"
	"rentsync/internal/idmap"
	"rentsync/internal/model"
)

// productsResponse keeps the products key present for an empty list.
type productsResponse struct {
	Products []model.Product `json:"products"`
}

// handleRentalAction dispatches POST /api/rental by the body's action field.
// Order-mutating actions need the proxy bearer token and a supported client.
func (h *Handler) handleRentalAction(w http.ResponseWriter, r *http.Request) {
	var req model.ActionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Action == "" {
		h.writeError(w, model.NewValidationError("action", "required"))
		return
	}
	if !req.Known() {
		h.writeError(w, model.NewValidationError("action", "unknown action "+req.Action))
		return
	}

	if req.Mutating() {
		if err := h.authorize(r); err != nil {
			h.logger.Warn("rejected rental action",
				slog.String("action", req.Action),
				slog.String("remote", r.RemoteAddr))
			h.writeError(w, err)
			return
		}
		info, _ := clientinfo.FromContext(r.Context())
		if err := h.gate.Check(info); err != nil {
			h.writeError(w, err)
			return
		}
	}

	status, body, err := h.dispatch(r.Context(), &req)
	if err != nil {
		h.logger.Debug("rental action failed",
			slog.String("action", req.Action),
			slog.String("error", err.Error()))
		h.writeError(w, err)
		return
	}
	if req.Mutating() {
		h.logger.Info("rental action",
			slog.String("action", req.Action),
			slog.String("order_id", req.OrderID))
	}
	h.writeJSON(w, status, body)
}

// authorize checks the request's bearer token.
func (h *Handler) authorize(r *http.Request) error {
	return h.checkToken(r.Header.Get("Authorization"))
}

// checkToken compares an Authorization header value with the proxy token in
// constant time.
func (h *Handler) checkToken(header string) error {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return model.NewUnauthorizedError("missing bearer token")
	}
	if h.token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
		return model.NewUnauthorizedError("invalid bearer token")
	}
	return nil
}

func (h *Handler) dispatch(ctx context.Context, req *model.ActionRequest) (int, any, error) {
	switch req.Action {
	case model.ActionGetProducts:
		products, err := h.adapter.ListProducts(ctx)
		if err != nil {
			return 0, nil, err
		}
		if products == nil {
			products = []model.Product{}
		}
		return http.StatusOK, productsResponse{Products: products}, nil

	case model.ActionGetProductDetails:
		if req.ProductID == "" {
			return 0, nil, model.NewValidationError("product_id", "required")
		}
		product, err := h.adapter.GetProduct(ctx, req.ProductID)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, model.ActionResponse{Product: product}, nil

	case model.ActionCreateOrder:
		order, err := h.adapter.CreateOrder(ctx, &adapter.CreateOrderRequest{
			StartsAt: req.StartsAt,
			StopsAt:  req.StopsAt,
		})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, model.ActionResponse{Order: order}, nil

	case model.ActionAddLine:
		line := &adapter.AddLineRequest{OrderID: req.OrderID, ProductID: req.ProductID, Quantity: req.Quantity}
		if err := line.Validate(); err != nil {
			return 0, nil, err
		}
		id, err := h.resolveProduct(ctx, req.ProductID)
		if err != nil {
			return 0, nil, err
		}
		line.ProductID = id
		created, err := h.adapter.AddLine(ctx, line)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, model.ActionResponse{Line: created}, nil

	case model.ActionBookOrder:
		if len(req.IDs) == 0 {
			return 0, nil, model.NewValidationError("ids", "at least one product is required")
		}
		ids := make(map[string]int, len(req.IDs))
		for ref, qty := range req.IDs {
			id, err := h.resolveProduct(ctx, ref)
			if err != nil {
				return 0, nil, err
			}
			ids[id] += qty
		}
		order, err := h.adapter.BookOrder(ctx, req.OrderID, ids)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, model.ActionResponse{Order: order}, nil

	case model.ActionReserveOrder:
		order, err := h.adapter.ReserveOrder(ctx, req.OrderID)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, model.ActionResponse{Order: order}, nil

	case model.ActionGetCheckoutURL:
		checkout, err := h.adapter.CheckoutURL(ctx, req.OrderID, req.Book)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, model.ActionResponse{Checkout: checkout}, nil
	}
	return 0, nil, model.NewValidationError("action", "unknown action "+req.Action)
}

// resolveProduct maps a slug to the platform id. Without a resolver the
// reference is passed through for the platform to interpret.
func (h *Handler) resolveProduct(ctx context.Context, ref string) (string, error) {
	if h.resolver == nil {
		return ref, nil
	}
	id, err := h.resolver.Resolve(ctx, ref)
	if errors.Is(err, idmap.ErrUnknownSlug) {
		return "", model.NewNotFoundError("product " + ref)
	}
	return id, err
}

// resolverFunc adapts a function to ordering.IDResolver.
type resolverFunc func(ctx context.Context, ref string) (string, error)

func (f resolverFunc) Resolve(ctx context.Context, ref string) (string, error) { return f(ctx, ref) }
