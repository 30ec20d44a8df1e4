package ordering

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"rentsync/internal/adapter"
	"rentsync/internal/clientinfo"
	"rentsync/internal/model"
)

// ActionPath is the proxy's action-dispatched endpoint.
const ActionPath = "/api/rental"

// ProxyConfig configures a ProxyClient.
type ProxyConfig struct {
	BaseURL string
	// Token authorizes order-mutating actions.
	Token  string
	Client clientinfo.Info
	// HTTPClient overrides the default instrumented client.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// ProxyClient calls the rental proxy's action endpoint. It implements
// adapter.Adapter, so everything that works against the platform in-process
// also works through a deployed proxy.
type ProxyClient struct {
	httpClient *http.Client
	endpoint   string
	token      string
	clientHdr  string
	logger     *slog.Logger
}

// NewProxyClient creates a proxy client.
func NewProxyClient(cfg ProxyConfig) (*ProxyClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("proxy base URL is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var hdr string
	if cfg.Client != (clientinfo.Info{}) {
		var err error
		if hdr, err = clientinfo.Format(cfg.Client); err != nil {
			return nil, fmt.Errorf("formatting client header: %w", err)
		}
	}

	return &ProxyClient{
		httpClient: cfg.HTTPClient,
		endpoint:   strings.TrimSuffix(cfg.BaseURL, "/") + ActionPath,
		token:      cfg.Token,
		clientHdr:  hdr,
		logger:     cfg.Logger,
	}, nil
}

// ListProducts calls get-products.
func (c *ProxyClient) ListProducts(ctx context.Context) ([]model.Product, error) {
	resp, err := c.call(ctx, model.ActionRequest{Action: model.ActionGetProducts})
	if err != nil {
		return nil, err
	}
	return resp.Products, nil
}

// GetProduct calls get-product-details.
func (c *ProxyClient) GetProduct(ctx context.Context, idOrSlug string) (*model.Product, error) {
	resp, err := c.call(ctx, model.ActionRequest{Action: model.ActionGetProductDetails, ProductID: idOrSlug})
	if err != nil {
		return nil, err
	}
	if resp.Product == nil {
		return nil, missingResource("product")
	}
	return resp.Product, nil
}

// CreateOrder calls create-order.
func (c *ProxyClient) CreateOrder(ctx context.Context, req *adapter.CreateOrderRequest) (*model.Order, error) {
	resp, err := c.call(ctx, model.ActionRequest{
		Action:   model.ActionCreateOrder,
		StartsAt: req.StartsAt,
		StopsAt:  req.StopsAt,
	})
	if err != nil {
		return nil, err
	}
	if resp.Order == nil {
		return nil, missingResource("order")
	}
	return resp.Order, nil
}

// AddLine calls add-line.
func (c *ProxyClient) AddLine(ctx context.Context, req *adapter.AddLineRequest) (*model.Line, error) {
	resp, err := c.call(ctx, model.ActionRequest{
		Action:    model.ActionAddLine,
		OrderID:   req.OrderID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		return nil, err
	}
	if resp.Line == nil {
		return nil, missingResource("line")
	}
	return resp.Line, nil
}

// BookOrder calls book-order.
func (c *ProxyClient) BookOrder(ctx context.Context, orderID string, ids map[string]int) (*model.Order, error) {
	resp, err := c.call(ctx, model.ActionRequest{Action: model.ActionBookOrder, OrderID: orderID, IDs: ids})
	if err != nil {
		return nil, err
	}
	if resp.Order == nil {
		return nil, missingResource("order")
	}
	return resp.Order, nil
}

// ReserveOrder calls reserve-order.
func (c *ProxyClient) ReserveOrder(ctx context.Context, orderID string) (*model.Order, error) {
	resp, err := c.call(ctx, model.ActionRequest{Action: model.ActionReserveOrder, OrderID: orderID})
	if err != nil {
		return nil, err
	}
	if resp.Order == nil {
		return nil, missingResource("order")
	}
	return resp.Order, nil
}

// CheckoutURL calls get-checkout-url.
func (c *ProxyClient) CheckoutURL(ctx context.Context, orderID string, book bool) (*model.Checkout, error) {
	resp, err := c.call(ctx, model.ActionRequest{Action: model.ActionGetCheckoutURL, OrderID: orderID, Book: book})
	if err != nil {
		return nil, err
	}
	if resp.Checkout == nil {
		return nil, missingResource("checkout")
	}
	return resp.Checkout, nil
}

// call posts one action and decodes the envelope.
func (c *ProxyClient) call(ctx context.Context, action model.ActionRequest) (*model.ActionResponse, error) {
	body, err := json.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" && action.Mutating() {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.clientHdr != "" {
		req.Header.Set(clientinfo.Header, c.clientHdr)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewUpstreamError("rental proxy", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	c.logger.Debug("proxy call",
		"action", action.Action,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseProxyError(resp.StatusCode, respBody)
	}

	var out model.ActionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("parsing %s response: %w", action.Action, err)
	}
	return &out, nil
}

// parseProxyError keeps the proxy's message and details verbatim and maps the
// status back onto the matching sentinel.
func parseProxyError(status int, body []byte) error {
	var env model.ErrorResponse
	json.Unmarshal(body, &env) // Best effort parse

	apiErr := model.NewRemoteCallError(status, env.Error, env.Details)
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		apiErr.Err = model.ErrInvalidRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		apiErr.Err = model.ErrUnauthorized
	case http.StatusNotFound:
		apiErr.Err = model.ErrNotFound
	case http.StatusConflict:
		apiErr.Err = model.ErrBusy
	case http.StatusUpgradeRequired:
		apiErr.Err = model.ErrClientOutdated
	case http.StatusTooManyRequests:
		apiErr.Err = model.ErrRateLimited
	}
	return apiErr
}

func missingResource(name string) error {
	return model.NewUpstreamError("rental proxy", fmt.Errorf("response has no %s", name))
}

// Verify ProxyClient implements adapter.Adapter at compile time.
var _ adapter.Adapter = (*ProxyClient)(nil)
