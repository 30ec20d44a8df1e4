// MCP transport handler for the rental proxy using the official MCP Go SDK.
// Exposes product listing, quoting and order creation as MCP tools.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"rentsync/internal/model"
	"rentsync/internal/ordering"
	"rentsync/internal/quote"
)

// === MCP Tool Input/Output Types ===
// Money travels as decimal strings so tool schemas stay plain JSON types.

// ListProductsInput is the input schema for list_products. It takes no arguments.
type ListProductsInput struct{}

// ProductSummary is one product in list_products output.
type ProductSummary struct {
	ID        string `json:"id" jsonschema:"platform product id"`
	Slug      string `json:"slug" jsonschema:"product slug"`
	Name      string `json:"name" jsonschema:"display name"`
	BasePrice string `json:"base_price" jsonschema:"base rental price as a decimal string"`
}

// ListProductsOutput is the output schema for list_products.
type ListProductsOutput struct {
	Products []ProductSummary `json:"products" jsonschema:"products shown in the store"`
}

// QuoteRentalInput is the input schema for quote_rental.
type QuoteRentalInput struct {
	ProjectSlug string         `json:"project_slug" jsonschema:"catalog project slug"`
	Quantities  map[string]int `json:"quantities,omitempty" jsonschema:"quantity per catalog item id; unnamed items keep their suggested quantity"`
	StartDate   string         `json:"start_date" jsonschema:"first rental day, YYYY-MM-DD"`
	EndDate     string         `json:"end_date,omitempty" jsonschema:"last rental day, YYYY-MM-DD"`
	Preset      string         `json:"preset,omitempty" jsonschema:"duration preset instead of end_date: 1d, weekend, 1w, 2w or 1m"`
}

// QuoteLineOutput is one priced item.
type QuoteLineOutput struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Total    string `json:"total"`
}

// QuoteOutput is the output schema for quote_rental.
type QuoteOutput struct {
	StartsAt           string            `json:"starts_at"`
	StopsAt            string            `json:"stops_at"`
	RentalDays         int               `json:"rental_days"`
	FirstDayTotal      string            `json:"first_day_total"`
	RemainingDaysTotal string            `json:"remaining_days_total"`
	ConsumablesTotal   string            `json:"consumables_total"`
	GrandTotal         string            `json:"grand_total"`
	Lines              []QuoteLineOutput `json:"lines"`
}

// CreateRentalOrderInput is the input schema for create_rental_order.
type CreateRentalOrderInput struct {
	ProjectSlug string         `json:"project_slug" jsonschema:"catalog project slug"`
	Quantities  map[string]int `json:"quantities,omitempty" jsonschema:"quantity per catalog item id; unnamed items keep their suggested quantity"`
	StartDate   string         `json:"start_date" jsonschema:"first rental day, YYYY-MM-DD"`
	EndDate     string         `json:"end_date,omitempty" jsonschema:"last rental day, YYYY-MM-DD"`
	Preset      string         `json:"preset,omitempty" jsonschema:"duration preset instead of end_date: 1d, weekend, 1w, 2w or 1m"`
	Book        bool           `json:"book,omitempty" jsonschema:"reserve stock before returning the checkout URL"`
}

// NewMCPServer creates an MCP server with the rental tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "rentsync",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Tool rental storefront. List rentable products, quote a project's " +
				"equipment over a rental period, and create an order that returns a hosted checkout URL.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_products",
		Description: "List the rentable products shown in the store.",
	}, h.mcpListProducts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "quote_rental",
		Description: "Price a catalog project's items over a rental period.",
	}, h.mcpQuoteRental)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_rental_order",
		Description: "Create a rental order for a catalog project and return its checkout URL. Requires the proxy bearer token.",
	}, h.mcpCreateRentalOrder)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpListProducts(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ListProductsInput,
) (*mcp.CallToolResult, *ListProductsOutput, error) {
	products, err := h.adapter.ListProducts(ctx)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	out := &ListProductsOutput{Products: make([]ProductSummary, 0, len(products))}
	for _, p := range products {
		out.Products = append(out.Products, ProductSummary{
			ID:        p.ID,
			Slug:      p.Slug,
			Name:      p.Name,
			BasePrice: p.BasePrice.StringFixed(2),
		})
	}
	return nil, out, nil
}

func (h *Handler) mcpQuoteRental(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input QuoteRentalInput,
) (*mcp.CallToolResult, *QuoteOutput, error) {
	items, period, err := h.mcpSelection(ctx, input.ProjectSlug, input.Quantities, input.StartDate, input.EndDate, input.Preset)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	q := quote.ForPeriod(items, period)
	out := &QuoteOutput{
		StartsAt:           period.StartsAt(),
		StopsAt:            period.StopsAt(),
		RentalDays:         q.RentalDays,
		FirstDayTotal:      q.FirstDayTotal.StringFixed(2),
		RemainingDaysTotal: q.RemainingDaysTotal.StringFixed(2),
		ConsumablesTotal:   q.ConsumablesTotal.StringFixed(2),
		GrandTotal:         q.GrandTotal.StringFixed(2),
		Lines:              make([]QuoteLineOutput, 0, len(q.Lines)),
	}
	for _, l := range q.Lines {
		out.Lines = append(out.Lines, QuoteLineOutput{
			ItemID:   l.ItemID,
			Name:     l.Name,
			Quantity: l.Quantity,
			Total:    l.Total.StringFixed(2),
		})
	}
	return nil, out, nil
}

func (h *Handler) mcpCreateRentalOrder(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CreateRentalOrderInput,
) (*mcp.CallToolResult, *model.RemoteOrder, error) {
	var header string
	if req != nil && req.Extra != nil && req.Extra.Header != nil {
		header = req.Extra.Header.Get("Authorization")
	}
	if err := h.checkToken(header); err != nil {
		return nil, nil, h.mcpError(err)
	}

	items, period, err := h.mcpSelection(ctx, input.ProjectSlug, input.Quantities, input.StartDate, input.EndDate, input.Preset)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	// A flow per call: concurrent agents each get their own order.
	flow := ordering.NewFlow(ordering.Resolving(h.adapter, resolverFunc(h.resolveProduct)), h.logger)
	order, err := flow.CreateOrder(ctx, ordering.OrderRequest{Items: items, Period: period, Book: input.Book})
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, order, nil
}

// mcpSelection resolves a project selection and its rental period.
func (h *Handler) mcpSelection(ctx context.Context, slug string, quantities map[string]int, start, end, preset string) ([]model.RentalItem, model.RentalPeriod, error) {
	period, err := model.ParsePeriod(start, end, preset, h.loc)
	if err != nil {
		return nil, model.RentalPeriod{}, err
	}
	items, err := h.selection(ctx, slug, quantities)
	if err != nil {
		return nil, model.RentalPeriod{}, err
	}
	return items, period, nil
}

// mcpError converts errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	var stepErr *ordering.StepError
	if errors.As(err, &stepErr) {
		return fmt.Errorf("%s", stepErr.UserMessage())
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, model.UserMessage(apiErr))
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
