package model

// Actions accepted by the proxy's action endpoint.
const (
	ActionGetProducts       = "get-products"
	ActionGetProductDetails = "get-product-details"
	ActionCreateOrder       = "create-order"
	ActionAddLine           = "add-line"
	ActionBookOrder         = "book-order"
	ActionReserveOrder      = "reserve-order"
	ActionGetCheckoutURL    = "get-checkout-url"
)

// ActionRequest is the body of POST /api/rental: an action name plus the
// flat parameters that action reads.
type ActionRequest struct {
	Action    string         `json:"action"`
	ProductID string         `json:"product_id,omitempty"`
	OrderID   string         `json:"order_id,omitempty"`
	StartsAt  string         `json:"starts_at,omitempty"`
	StopsAt   string         `json:"stops_at,omitempty"`
	Quantity  int            `json:"quantity,omitempty"`
	IDs       map[string]int `json:"ids,omitempty"`
	Book      bool           `json:"book,omitempty"`
}

// Known reports whether the action is one the endpoint dispatches.
func (r ActionRequest) Known() bool {
	switch r.Action {
	case ActionGetProducts, ActionGetProductDetails, ActionCreateOrder, ActionAddLine,
		ActionBookOrder, ActionReserveOrder, ActionGetCheckoutURL:
		return true
	}
	return false
}

// Mutating reports whether the action changes platform state and therefore
// needs the proxy token.
func (r ActionRequest) Mutating() bool {
	switch r.Action {
	case ActionGetProducts, ActionGetProductDetails:
		return false
	default:
		return true
	}
}

// ActionResponse is the success envelope. Exactly one field is set, named
// after the resource the action returns.
type ActionResponse struct {
	Products []Product `json:"products,omitempty"`
	Product  *Product  `json:"product,omitempty"`
	Order    *Order    `json:"order,omitempty"`
	Line     *Line     `json:"line,omitempty"`
	Checkout *Checkout `json:"checkout,omitempty"`
}

// ErrorResponse is the failure envelope returned with a non-2xx status.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
