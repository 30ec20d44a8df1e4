// Package model defines the rental storefront data structures shared by the
// proxy, the order flow and the widget engine.
package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RentalItem is a catalog item as selected by the user.
// Quantity is mutable user state; everything else comes from the catalog.
type RentalItem struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	RetailPrice  decimal.Decimal  `json:"retail_price"`
	DailyRate    decimal.Decimal  `json:"daily_rate"`
	FirstDayRate *decimal.Decimal `json:"first_day_rate,omitempty"`
	Quantity     int              `json:"quantity"`
	IsConsumable bool             `json:"is_consumable,omitempty"`
	IsSalesItem  bool             `json:"is_sales_item,omitempty"`
	ImageURL     string           `json:"image_url,omitempty"`

	// BooqableID is the external product identifier. Depending on where the
	// record came from it is either a human slug or an opaque UUID.
	BooqableID string `json:"booqable_id,omitempty"`
	Slug       string `json:"slug,omitempty"`
}

// Validate checks the item invariants.
func (i RentalItem) Validate() error {
	if i.Quantity < 0 {
		return NewValidationError("quantity", fmt.Sprintf("item %s has negative quantity %d", i.ID, i.Quantity))
	}
	if i.DailyRate.IsNegative() {
		return NewValidationError("daily_rate", fmt.Sprintf("item %s has a negative rate", i.ID))
	}
	return nil
}

// IsRental reports whether the item is priced per day.
func (i RentalItem) IsRental() bool {
	return !i.IsConsumable && !i.IsSalesItem
}

// EligibleForSync reports whether the item may be pushed to the external cart.
// Items whose external id merely echoes the local id were never mapped to a
// real external product.
func (i RentalItem) EligibleForSync() bool {
	return i.BooqableID != "" &&
		i.BooqableID != i.ID &&
		i.IsRental() &&
		i.Quantity > 0
}

// FirstDayPrice returns the first-day rate, falling back to the daily rate.
func (i RentalItem) FirstDayPrice() decimal.Decimal {
	if i.FirstDayRate != nil {
		return *i.FirstDayRate
	}
	return i.DailyRate
}

// SyncLine is one (external product, quantity) pair bound for the external cart.
type SyncLine struct {
	ItemID    string `json:"item_id"`
	ProductID string `json:"product_id"`
	Slug      string `json:"slug,omitempty"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}

// SyncLines filters items down to the ones eligible for external sync.
// Both the order flow and the item injector consume this, never the raw list.
func SyncLines(items []RentalItem) []SyncLine {
	lines := make([]SyncLine, 0, len(items))
	for _, item := range items {
		if !item.EligibleForSync() {
			continue
		}
		lines = append(lines, SyncLine{
			ItemID:    item.ID,
			ProductID: item.BooqableID,
			Slug:      item.Slug,
			Name:      item.Name,
			Quantity:  item.Quantity,
		})
	}
	return lines
}

// EquipmentCategory groups required equipment for a project type.
type EquipmentCategory struct {
	Name     string       `json:"name"`
	Guidance string       `json:"guidance,omitempty"`
	Items    []RentalItem `json:"items"`
}

// AddOnCategory groups optional add-ons (consumables, accessories).
type AddOnCategory struct {
	Name     string       `json:"name"`
	Guidance string       `json:"guidance,omitempty"`
	Items    []RentalItem `json:"items"`
}

// RemoteOrder is an order created in the rental platform.
// Immutable once returned.
type RemoteOrder struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number,omitempty"`
	CheckoutURL string `json:"checkout_url"`
}

// Product is the rental platform's catalog entry for a rentable product.
type Product struct {
	ID            string          `json:"id"`
	Slug          string          `json:"slug"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	BasePrice     decimal.Decimal `json:"base_price"`
	ImageURL      string          `json:"image_url,omitempty"`
	Trackable     bool            `json:"trackable,omitempty"`
	StockCount    int             `json:"stock_count,omitempty"`
	ProductGroup  string          `json:"product_group_id,omitempty"`
	ShowInStore   bool            `json:"show_in_store"`
	PriceStructID string          `json:"price_structure_id,omitempty"`
}

// Order is the rental platform's view of an order.
type Order struct {
	ID       string `json:"id"`
	Number   string `json:"number,omitempty"`
	Status   string `json:"status,omitempty"`
	StartsAt string `json:"starts_at,omitempty"`
	StopsAt  string `json:"stops_at,omitempty"`
}

// Line is a line item attached to an order.
type Line struct {
	ID        string `json:"id,omitempty"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Checkout is the hosted checkout reference for an order.
type Checkout struct {
	OrderID string `json:"order_id"`
	URL     string `json:"url"`
	Booked  bool   `json:"booked,omitempty"`
}
