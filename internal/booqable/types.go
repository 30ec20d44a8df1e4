package booqable

// Wire types for the rental platform REST API (v1). Responses wrap each
// resource under its singular or plural name.

// ProductGroup is a rentable product as the platform lists it.
type ProductGroup struct {
	ID               string `json:"id"`
	Slug             string `json:"slug"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	BasePriceInCents int64  `json:"base_price_in_cents"`
	PhotoURL         string `json:"photo_url"`
	Trackable        bool   `json:"trackable"`
	StockCount       int    `json:"stock_count"`
	ShowInStore      bool   `json:"show_in_store"`
	Archived         bool   `json:"archived"`
	PriceStructureID string `json:"price_structure_id"`
	GroupName        string `json:"group_name"`
}

type productGroupsResponse struct {
	ProductGroups []ProductGroup `json:"product_groups"`
	Meta          struct {
		TotalCount int `json:"total_count"`
	} `json:"meta"`
}

type productGroupResponse struct {
	ProductGroup ProductGroup `json:"product_group"`
}

// Order is a rental order scoped to a period.
type Order struct {
	ID       string `json:"id"`
	Number   int    `json:"number"`
	Status   string `json:"status"`
	StartsAt string `json:"starts_at"`
	StopsAt  string `json:"stops_at"`
}

type orderParams struct {
	StartsAt string `json:"starts_at"`
	StopsAt  string `json:"stops_at"`
}

type orderRequest struct {
	Order orderParams `json:"order"`
}

type orderResponse struct {
	Order Order `json:"order"`
}

// Line is one product line on an order.
type Line struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"item_id"`
	Quantity  int    `json:"quantity"`
	Title     string `json:"title"`
}

type lineParams struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"item_id"`
	Quantity  int    `json:"quantity"`
}

type lineRequest struct {
	Line lineParams `json:"line"`
}

type lineResponse struct {
	Line Line `json:"line"`
}

// bookRequest books quantities per product on an existing order.
type bookRequest struct {
	IDs map[string]int `json:"ids"`
}

// errorResponse is the platform's error envelope. Validation failures carry
// per-field messages.
type errorResponse struct {
	Error struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}
