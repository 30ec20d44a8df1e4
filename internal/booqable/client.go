// Package booqable implements adapter.Adapter over the rental platform's REST
// API: product listing, orders scoped to a rental period, order lines,
// booking and the hosted checkout URL.
package booqable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"rentsync/internal/model"
	"rentsync/internal/transport"
)

// =============================================================================
// AUTHENTICATION AND FAILURE HANDLING
// =============================================================================
//
// The v1 API authenticates with an api_key query parameter on every call.
// The key is a server-side secret; it never reaches the storefront, which is
// why order mutations go through the proxy at all.
//
// Calls pass through a circuit breaker. Only transport failures, 5xx and 429
// responses count against it: a 404 for an unknown product or a 422 for a
// bad quantity says nothing about upstream health.
//
// =============================================================================

const (
	apiPath     = "/api/1"
	serviceName = "rental platform"
	userAgent   = "rentsync/1.0"
	pageSize    = 100
)

// Config holds the platform client configuration.
type Config struct {
	BaseURL string // e.g. https://acme.booqable.com
	ShopURL string // hosted shop serving checkout, e.g. https://acme.booqable.shop
	APIKey  string

	// Transport overrides the upstream round tripper. Nil uses the Chrome
	// fingerprint transport.
	Transport http.RoundTripper
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Client is the rental platform HTTP client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	shopURL    string
	apiKey     string
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *slog.Logger
}

// NewClient creates a platform client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	rt := cfg.Transport
	if rt == nil {
		rt = transport.NewChromeTransport(cfg.Timeout)
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(rt),
		},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		shopURL: strings.TrimSuffix(cfg.ShopURL, "/"),
		apiKey:  cfg.APIKey,
		logger:  cfg.Logger,
	}
	if c.shopURL == "" {
		c.shopURL = c.baseURL
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        serviceName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: isHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c, nil
}

// isHealthy reports whether err leaves the upstream's health untouched.
func isHealthy(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
	}
	return false
}

// === Products ===

// ListProducts returns every product group, following pagination.
func (c *Client) ListProducts(ctx context.Context) ([]ProductGroup, error) {
	var all []ProductGroup
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("per", strconv.Itoa(pageSize))

		var resp productGroupsResponse
		if err := c.do(ctx, http.MethodGet, "/product_groups", q, nil, "products", &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.ProductGroups...)
		if len(resp.ProductGroups) < pageSize {
			return all, nil
		}
	}
}

// GetProduct fetches one product group by id or slug.
func (c *Client) GetProduct(ctx context.Context, idOrSlug string) (*ProductGroup, error) {
	var resp productGroupResponse
	if err := c.do(ctx, http.MethodGet, "/product_groups/"+url.PathEscape(idOrSlug), nil, nil, "product", &resp); err != nil {
		return nil, err
	}
	return &resp.ProductGroup, nil
}

// === Orders ===

// CreateOrder creates a concept order for the period.
func (c *Client) CreateOrder(ctx context.Context, startsAt, stopsAt string) (*Order, error) {
	body := orderRequest{Order: orderParams{StartsAt: startsAt, StopsAt: stopsAt}}
	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, "/orders", nil, body, "order", &resp); err != nil {
		return nil, err
	}
	return &resp.Order, nil
}

// GetOrder fetches an order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var resp orderResponse
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil, nil, "order", &resp); err != nil {
		return nil, err
	}
	return &resp.Order, nil
}

// AddLine adds quantity units of a product to an order.
func (c *Client) AddLine(ctx context.Context, orderID, productID string, quantity int) (*Line, error) {
	body := lineRequest{Line: lineParams{OrderID: orderID, ProductID: productID, Quantity: quantity}}
	var resp lineResponse
	path := "/orders/" + url.PathEscape(orderID) + "/lines"
	if err := c.do(ctx, http.MethodPost, path, nil, body, "line", &resp); err != nil {
		return nil, err
	}
	if resp.Line.OrderID == "" {
		resp.Line.OrderID = orderID
	}
	return &resp.Line, nil
}

// Book books product quantities on an order, adding them when missing.
func (c *Client) Book(ctx context.Context, orderID string, ids map[string]int) (*Order, error) {
	var resp orderResponse
	path := "/orders/" + url.PathEscape(orderID) + "/book"
	if err := c.do(ctx, http.MethodPost, path, nil, bookRequest{IDs: ids}, "order", &resp); err != nil {
		return nil, err
	}
	return &resp.Order, nil
}

// Reserve moves an order to reserved, claiming stock for every line.
func (c *Client) Reserve(ctx context.Context, orderID string) (*Order, error) {
	var resp orderResponse
	path := "/orders/" + url.PathEscape(orderID) + "/reserve"
	if err := c.do(ctx, http.MethodPost, path, nil, struct{}{}, "order", &resp); err != nil {
		return nil, err
	}
	return &resp.Order, nil
}

// CheckoutURL returns the hosted checkout URL for an order.
func (c *Client) CheckoutURL(orderID string) string {
	return c.shopURL + "/checkout?order_id=" + url.QueryEscape(orderID)
}

// === Transport ===

// do sends one API call through the circuit breaker and decodes the response
// into out. resource names the entity for not-found errors.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, resource string, out any) error {
	start := time.Now()
	respBody, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, path, query, body, resource)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return model.NewUpstreamError(serviceName, err)
		}
		c.logger.Debug("upstream call failed", "method", method, "path", path, "error", err)
		return err
	}
	c.logger.Debug("upstream call", "method", method, "path", path, "duration_ms", time.Since(start).Milliseconds())

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing %s response: %w", resource, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body any, resource string) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPath+path+"?"+query.Encode(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewUpstreamError(serviceName, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, parseErrorResponse(resource, resp.StatusCode, respBody)
	}
	return respBody, nil
}

// parseErrorResponse converts a platform error payload to an APIError,
// keeping the most specific message the payload offers.
func parseErrorResponse(resource string, statusCode int, body []byte) error {
	var apiErr errorResponse
	json.Unmarshal(body, &apiErr) // Best effort parse

	msg := apiErr.Error.Message
	if msg == "" {
		msg = apiErr.Message
	}

	switch {
	case statusCode == http.StatusNotFound:
		return model.NewNotFoundError(resource)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return model.NewUnauthorizedError("rental platform authentication failed")
	case statusCode == http.StatusTooManyRequests:
		return model.NewRateLimitError(serviceName)
	case statusCode < 500:
		return model.NewRemoteCallError(statusCode, msg, fieldErrors(apiErr.Errors))
	default:
		return model.NewUpstreamError(serviceName, fmt.Errorf("status %d: %s", statusCode, msg))
	}
}

// fieldErrors flattens per-field validation messages in a stable order.
func fieldErrors(errs map[string][]string) string {
	if len(errs) == 0 {
		return ""
	}
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	slices.Sort(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+" "+strings.Join(errs[f], ", "))
	}
	return strings.Join(parts, "; ")
}
